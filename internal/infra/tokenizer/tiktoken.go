package tokenizer

import (
	"fmt"
	"log/slog"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding は使用する BPE エンコーディング
const DefaultEncoding = "cl100k_base"

// TokenCounter はトークン数をカウントする機能を提供する
// Llama-3 のトークナイザとは一致しないため、プロンプト長の見積もりにのみ使う
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTokenCounter は新しいTokenCounterを作成する
// cl100k_baseエンコーディングを使用する
func NewTokenCounter() (*TokenCounter, error) {
	encoding, err := tiktoken.GetEncoding(DefaultEncoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get tiktoken encoding: %w", err)
	}

	return &TokenCounter{
		encoding: encoding,
	}, nil
}

// NewTokenCounterOrEstimate はエンコーディングを取得できない環境（オフライン等）では
// 文字数による推定にフォールバックする TokenCounter を返す
func NewTokenCounterOrEstimate(logger *slog.Logger) *TokenCounter {
	tc, err := NewTokenCounter()
	if err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("tiktoken encoding unavailable, falling back to estimate", "error", err)
		return &TokenCounter{}
	}
	return tc
}

// CountTokens はテキストのトークン数をカウントする
func (tc *TokenCounter) CountTokens(text string) int {
	if tc == nil || tc.encoding == nil {
		return EstimateTokens(text)
	}
	tokens := tc.encoding.Encode(text, nil, nil)
	return len(tokens)
}

// EstimateTokens はテキストの推定トークン数を返す
// 正確にカウントせず、大まかな推定値を返す（文字数を基準）
func EstimateTokens(text string) int {
	// ポルトガル語でも概ね3文字で1トークン。端数は切り上げる
	n := len([]rune(text))
	return (n + 2) / 3
}
