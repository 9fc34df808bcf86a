package ingestion

import "context"

// ChunkWriter はベクトルストアへの書き込み操作を表す
// ストアを変更する経路は Replace のみ
type ChunkWriter interface {
	// Replace は保存済みのチャンクをすべて破棄し、chunks と vectors（同じ順序）で置き換える
	// 失敗した場合、次回の起動で再構築されるよう完成したストアを残さない
	Replace(ctx context.Context, chunks []*Chunk, vectors [][]float32) error
}
