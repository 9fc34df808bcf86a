package search

import "github.com/jinford/protocol-rag/internal/core/ingestion"

// SearchResult はベクトル検索の結果を表す
// Score は大きいほど類似している
type SearchResult struct {
	Chunk *ingestion.Chunk `json:"chunk"`
	Score float64          `json:"score"`
}

// Content はチャンク本文を返す
func (r *SearchResult) Content() string {
	if r == nil || r.Chunk == nil {
		return ""
	}
	return r.Chunk.Content
}
