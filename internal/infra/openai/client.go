package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/jinford/protocol-rag/internal/core/generation"
)

const (
	// DefaultTimeout はAPI呼び出しのデフォルトタイムアウト
	DefaultTimeout = 300 * time.Second

	// MaxRetries はレート制限エラー時の最大リトライ回数
	MaxRetries = 3

	// BaseBackoff はExponential Backoffの基底時間
	BaseBackoff = 2 * time.Second

	// MaxBackoff はExponential Backoffの最大待機時間
	MaxBackoff = 32 * time.Second

	// stopSequence は Llama-3 のターン終端トークン
	stopSequence = "<|eot_id|>"
)

// ErrMaxRetriesExceeded は最大リトライ回数を超過した場合のエラー
var ErrMaxRetriesExceeded = errors.New("max retries exceeded")

// Generator はローカルの OpenAI 互換推論サーバ（llama.cpp server 等）で
// completions エンドポイントを呼び出す generation.Generator 実装
// プロンプトはチャットテンプレート適用済みの生テキストとして送る
type Generator struct {
	client      openai.Client
	model       string
	settings    generation.Settings
	timeout     time.Duration
	baseBackoff time.Duration
	logger      *slog.Logger
}

// GeneratorOption は Generator のオプション設定
type GeneratorOption func(*Generator)

// WithTimeout は1回の生成のタイムアウトを設定する
func WithTimeout(timeout time.Duration) GeneratorOption {
	return func(g *Generator) {
		if timeout > 0 {
			g.timeout = timeout
		}
	}
}

// WithGeneratorLogger は Generator にロガーを設定する
func WithGeneratorLogger(logger *slog.Logger) GeneratorOption {
	return func(g *Generator) {
		g.logger = logger
	}
}

// withBackoff はリトライ間隔の基底時間を上書きする（テスト用）
func withBackoff(d time.Duration) GeneratorOption {
	return func(g *Generator) {
		g.baseBackoff = d
	}
}

// NewGenerator は新しい Generator を作成する
// モデル名にはローカルのモデルファイル名を使う
func NewGenerator(baseURL, apiKey, modelPath string, settings generation.Settings, opts ...GeneratorOption) *Generator {
	g := &Generator{
		client: openai.NewClient(
			option.WithBaseURL(baseURL),
			option.WithAPIKey(apiKey),
			// リトライは generateWithRetry で行う
			option.WithMaxRetries(0),
		),
		model:       filepath.Base(modelPath),
		settings:    settings,
		timeout:     DefaultTimeout,
		baseBackoff: BaseBackoff,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	return g
}

// NewGeneratorFactory は generation.Initializer 用のファクトリを返す
func NewGeneratorFactory(baseURL, apiKey string, opts ...GeneratorOption) generation.GeneratorFactory {
	return func(modelPath string, settings generation.Settings) (generation.Generator, error) {
		if baseURL == "" {
			return nil, fmt.Errorf("LLM base URL is not set")
		}
		return NewGenerator(baseURL, apiKey, modelPath, settings, opts...), nil
	}
}

// Generate はプロンプトに続くテキストを生成し、前後の空白を除いて返す
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	text, err := g.generateWithRetry(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (g *Generator) generateWithRetry(ctx context.Context, prompt string) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= MaxRetries; attempt++ {
		if attempt > 0 {
			backoffDuration := time.Duration(math.Pow(2, float64(attempt-1))) * g.baseBackoff
			if backoffDuration > MaxBackoff {
				backoffDuration = MaxBackoff
			}

			g.logger.Warn("rate limited, retrying", "attempt", attempt, "backoff", backoffDuration)

			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoffDuration):
			}
		}

		params := openai.CompletionNewParams{
			Model: openai.CompletionNewParamsModel(g.model),
			Prompt: openai.CompletionNewParamsPromptUnion{
				OfString: openai.String(prompt),
			},
			Temperature: openai.Float(g.settings.Temperature),
			Stop: openai.CompletionNewParamsStopUnion{
				OfString: openai.String(stopSequence),
			},
		}

		if g.settings.MaxTokens > 0 {
			params.MaxTokens = openai.Int(int64(g.settings.MaxTokens))
		}

		completion, err := g.client.Completions.New(ctx, params)
		if err != nil {
			lastErr = err

			if isRateLimitError(err) {
				continue
			}

			return "", fmt.Errorf("completion API call failed: %w", err)
		}

		if len(completion.Choices) == 0 {
			return "", generation.ErrEmptyCompletion
		}

		g.logger.Debug("completion generated",
			"model", g.model,
			"tokens", completion.Usage.TotalTokens,
			"finishReason", completion.Choices[0].FinishReason,
		)

		return completion.Choices[0].Text, nil
	}

	return "", fmt.Errorf("%w: %v", ErrMaxRetriesExceeded, lastErr)
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}

	return false
}

// インターフェース実装の確認
var _ generation.Generator = (*Generator)(nil)
