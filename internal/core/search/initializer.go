package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jinford/protocol-rag/internal/core/ingestion"
)

// Indexer は文書からベクトルストアを構築するインターフェース
type Indexer interface {
	Index(ctx context.Context, path string) (*ingestion.IndexStats, error)
}

// Initializer はベクトルストアを開くか構築し、Retriever を返す
type Initializer struct {
	store        VectorStore
	indexer      Indexer
	embedder     Embedder
	documentPath string
	topK         int
	logger       *slog.Logger
}

type initializerOptions struct {
	topK   int
	logger *slog.Logger
}

// InitializerOption は Initializer のオプション設定
type InitializerOption func(*initializerOptions)

// WithInitializerLogger は Initializer にロガーを設定する
func WithInitializerLogger(logger *slog.Logger) InitializerOption {
	return func(o *initializerOptions) {
		o.logger = logger
	}
}

// WithInitializerTopK は生成する Retriever の取得件数を設定する
func WithInitializerTopK(k int) InitializerOption {
	return func(o *initializerOptions) {
		o.topK = k
	}
}

// NewInitializer は新しい Initializer を作成する
func NewInitializer(
	store VectorStore,
	indexer Indexer,
	embedder Embedder,
	documentPath string,
	opts ...InitializerOption,
) *Initializer {
	options := initializerOptions{
		topK:   DefaultTopK,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	return &Initializer{
		store:        store,
		indexer:      indexer,
		embedder:     embedder,
		documentPath: documentPath,
		topK:         options.topK,
		logger:       options.logger,
	}
}

// Initialize は永続化済みのストアがあれば開き、なければ文書から構築する
// 開けなかったストアは破棄して作り直す
func (i *Initializer) Initialize(ctx context.Context) (*Retriever, error) {
	exists, err := i.store.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check vector store: %w", err)
	}

	if !exists {
		i.logger.Info("vector store not found, indexing", "document", i.documentPath)
		return i.Rebuild(ctx)
	}

	if err := i.store.Open(ctx); err != nil {
		i.logger.Warn("failed to open vector store, rebuilding", "error", err)
		return i.Rebuild(ctx)
	}

	count, err := i.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count chunks: %w", err)
	}
	i.logger.Info("vector store loaded", "chunks", count)

	return i.newRetriever(), nil
}

// Rebuild は既存のストアの状態にかかわらず文書から再構築する
func (i *Initializer) Rebuild(ctx context.Context) (*Retriever, error) {
	stats, err := i.indexer.Index(ctx, i.documentPath)
	if err != nil {
		return nil, fmt.Errorf("failed to build vector store: %w", err)
	}

	i.logger.Info("vector store created", "chunks", stats.Chunks, "pages", stats.Pages)

	return i.newRetriever(), nil
}

func (i *Initializer) newRetriever() *Retriever {
	return NewRetriever(i.store, i.embedder,
		WithTopK(i.topK),
		WithRetrieverLogger(i.logger),
	)
}
