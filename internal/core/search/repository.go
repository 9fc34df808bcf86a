package search

import (
	"context"

	"github.com/jinford/protocol-rag/internal/core/ingestion"
)

// VectorStore は永続化されたベクトルストアへのアクセスを統合するインターフェース
type VectorStore interface {
	ingestion.ChunkWriter

	// Exists は永続化されたストアが存在するかを返す
	Exists(ctx context.Context) (bool, error)

	// Open は既存のストアを開く。壊れている場合はエラーを返す
	Open(ctx context.Context) error

	// Search はクエリベクトルに近いチャンクを類似度の高い順に最大 k 件返す
	Search(ctx context.Context, queryVector []float32, k int) ([]*SearchResult, error)

	// Count は保存済みチャンク数を返す
	Count(ctx context.Context) (int, error)

	// Close はストアを閉じる
	Close() error
}
