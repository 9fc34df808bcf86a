package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultBatchSize は1リクエストあたりのチャンク数
	DefaultBatchSize = 32
	// DefaultEmbeddingWorkerCount はEmbedding生成の並列数
	DefaultEmbeddingWorkerCount = 1
)

// PipelineConfig はEmbedding生成パイプラインの設定
type PipelineConfig struct {
	// BatchSize は1回の BatchEmbed に渡すチャンク数
	BatchSize int
	// EmbeddingWorkerCount は同時に実行する BatchEmbed の数
	EmbeddingWorkerCount int
}

// DefaultPipelineConfig はデフォルトのパイプライン設定を返す
func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		BatchSize:            DefaultBatchSize,
		EmbeddingWorkerCount: DefaultEmbeddingWorkerCount,
	}
}

// embedChunks はチャンクをバッチに分けてEmbeddingを生成する
// 戻り値の順序はチャンクの順序と一致する
func embedChunks(ctx context.Context, embedder Embedder, chunks []*Chunk, cfg *PipelineConfig, logger *slog.Logger) ([][]float32, error) {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	workers := cfg.EmbeddingWorkerCount
	if workers <= 0 {
		workers = DefaultEmbeddingWorkerCount
	}

	vectors := make([][]float32, len(chunks))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)

	for start := 0; start < len(chunks); start += batchSize {
		end := min(start+batchSize, len(chunks))

		eg.Go(func() error {
			texts := make([]string, 0, end-start)
			for _, c := range chunks[start:end] {
				texts = append(texts, c.Content)
			}

			batch, err := embedder.BatchEmbed(egCtx, texts)
			if err != nil {
				logger.Error("batch embedding failed", "from", start, "to", end, "error", err)
				return fmt.Errorf("failed to embed chunks %d-%d: %w", start, end, err)
			}
			if len(batch) != len(texts) {
				return fmt.Errorf("%w: got %d, want %d", ErrVectorCountMismatch, len(batch), len(texts))
			}

			copy(vectors[start:end], batch)
			logger.Debug("batch embedded", "from", start, "to", end)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return vectors, nil
}
