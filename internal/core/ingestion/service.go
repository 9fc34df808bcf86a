package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jinford/protocol-rag/internal/core/document"
)

// Indexer は文書の読み込みからベクトルストアへの保存までを行う
type Indexer struct {
	loader         document.Loader
	splitter       Splitter
	embedder       Embedder
	store          ChunkWriter
	pipelineConfig *PipelineConfig
	logger         *slog.Logger
}

type indexerOptions struct {
	pipelineConfig *PipelineConfig
	logger         *slog.Logger
}

// IndexerOption は Indexer のオプション設定
type IndexerOption func(*indexerOptions)

// WithIndexLogger は Indexer にロガーを設定する
func WithIndexLogger(logger *slog.Logger) IndexerOption {
	return func(o *indexerOptions) {
		o.logger = logger
	}
}

// WithIndexPipelineConfig はパイプライン設定を上書きする
func WithIndexPipelineConfig(cfg *PipelineConfig) IndexerOption {
	return func(o *indexerOptions) {
		o.pipelineConfig = cfg
	}
}

// NewIndexer は新しい Indexer を作成する
func NewIndexer(
	loader document.Loader,
	splitter Splitter,
	embedder Embedder,
	store ChunkWriter,
	opts ...IndexerOption,
) *Indexer {
	options := indexerOptions{
		pipelineConfig: DefaultPipelineConfig(),
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	if options.pipelineConfig == nil {
		options.pipelineConfig = DefaultPipelineConfig()
	}

	return &Indexer{
		loader:         loader,
		splitter:       splitter,
		embedder:       embedder,
		store:          store,
		pipelineConfig: options.pipelineConfig,
		logger:         options.logger,
	}
}

// Index は文書を読み込み、分割とEmbedding生成を行ってストアを作り直す
// 文書の読み込みや分割に失敗した場合、ストアには一切触れない
func (ix *Indexer) Index(ctx context.Context, path string) (*IndexStats, error) {
	startTime := time.Now()

	doc, err := ix.loader.Load(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}

	chunks, err := SplitDocument(doc, ix.splitter)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoChunks, path)
	}

	ix.logger.Info("document split into chunks",
		"source", path,
		"pages", len(doc.Pages),
		"chunks", len(chunks),
	)

	vectors, err := embedChunks(ctx, ix.embedder, chunks, ix.pipelineConfig, ix.logger)
	if err != nil {
		return nil, err
	}

	if err := ix.store.Replace(ctx, chunks, vectors); err != nil {
		return nil, fmt.Errorf("failed to persist chunks: %w", err)
	}

	stats := &IndexStats{
		Source:   path,
		Pages:    len(doc.Pages),
		Chunks:   len(chunks),
		Duration: time.Since(startTime),
	}

	ix.logger.Info("indexing completed",
		"chunks", stats.Chunks,
		"model", ix.embedder.ModelName(),
		"duration", stats.Duration,
	)

	return stats, nil
}
