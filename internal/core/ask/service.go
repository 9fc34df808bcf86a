package ask

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jinford/protocol-rag/internal/core/generation"
	"github.com/jinford/protocol-rag/internal/core/search"
)

// answerPreviewRunes はログに残す回答の先頭文字数
const answerPreviewRunes = 50

// Retriever は質問に近いチャンクを返すインターフェース
type Retriever interface {
	Search(ctx context.Context, query string) ([]*search.SearchResult, error)
}

// AskService は検索結果をコンテキストにして回答を生成する
type AskService struct {
	retriever    Retriever
	generator    generation.Generator
	counter      TokenCounter
	promptBudget int
	logger       *slog.Logger
}

type AskServiceOption func(*AskService)

// WithAskLogger は AskService にロガーを設定する
func WithAskLogger(logger *slog.Logger) AskServiceOption {
	return func(s *AskService) {
		s.logger = logger
	}
}

// WithPromptBudget はプロンプトのトークン上限と数え方を設定する
func WithPromptBudget(counter TokenCounter, budget int) AskServiceOption {
	return func(s *AskService) {
		s.counter = counter
		s.promptBudget = budget
	}
}

// NewAskService は新しいAskServiceを作成する
func NewAskService(
	retriever Retriever,
	generator generation.Generator,
	opts ...AskServiceOption,
) *AskService {
	svc := &AskService{
		retriever: retriever,
		generator: generator,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(svc)
	}

	if svc.logger == nil {
		svc.logger = slog.Default()
	}

	return svc
}

// Ask は質問に対してRAGベースで回答を生成する
func (s *AskService) Ask(ctx context.Context, params AskParams) (*AskResult, error) {
	question := strings.TrimSpace(params.Question)
	if question == "" {
		question = DefaultQuestion
	}

	results, err := s.retriever.Search(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}

	s.logger.Info("documents retrieved", "count", len(results))

	kept := FitToBudget(question, results, s.counter, s.promptBudget)
	if dropped := len(results) - len(kept); dropped > 0 {
		s.logger.Warn("context trimmed to fit prompt budget", "dropped", dropped, "budget", s.promptBudget)
	}

	prompt := BuildPrompt(question, JoinContext(kept))

	s.logger.Info("generating answer with LLM")
	answer, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}
	answer = strings.TrimSpace(answer)

	s.logger.Info("answer generated", "preview", preview(answer, answerPreviewRunes))

	sources := make([]SourceReference, 0, len(kept))
	for _, r := range kept {
		sources = append(sources, SourceReference{
			Source:  r.Chunk.Source,
			Page:    r.Chunk.Page,
			Ordinal: r.Chunk.Ordinal,
			Score:   r.Score,
			Excerpt: r.Chunk.Content,
		})
	}

	return &AskResult{
		Question: question,
		Answer:   answer,
		Sources:  sources,
		Dropped:  len(results) - len(kept),
	}, nil
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
