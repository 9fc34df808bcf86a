package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// DefaultTopK は検索結果の上限件数
const DefaultTopK = 3

// Embedder はテキストのEmbedding生成インターフェース
type Embedder interface {
	// Embed は単一テキストのEmbeddingを生成する
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Retriever はクエリに近いチャンクを取得する
type Retriever struct {
	store    VectorStore
	embedder Embedder
	topK     int
	logger   *slog.Logger
}

// RetrieverOption は Retriever のオプション設定
type RetrieverOption func(*Retriever)

// WithRetrieverLogger は Retriever にロガーを設定する
func WithRetrieverLogger(logger *slog.Logger) RetrieverOption {
	return func(r *Retriever) {
		r.logger = logger
	}
}

// WithTopK は取得件数の上限を上書きする
func WithTopK(k int) RetrieverOption {
	return func(r *Retriever) {
		r.topK = k
	}
}

// NewRetriever は新しい Retriever を作成する
func NewRetriever(store VectorStore, embedder Embedder, opts ...RetrieverOption) *Retriever {
	r := &Retriever{
		store:    store,
		embedder: embedder,
		topK:     DefaultTopK,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.topK <= 0 {
		r.topK = DefaultTopK
	}
	return r
}

// Search はクエリに基づいてベクトル検索を実行する
func (r *Retriever) Search(ctx context.Context, query string) ([]*SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	queryVector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := r.store.Search(ctx, queryVector, r.topK)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	// ストア実装によらず上限を保証する
	if len(results) > r.topK {
		results = results[:r.topK]
	}

	r.logger.Debug("documents retrieved", "count", len(results), "topK", r.topK)

	return results, nil
}

// TopK は取得件数の上限を返す
func (r *Retriever) TopK() int {
	return r.topK
}
