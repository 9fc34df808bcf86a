package ingestion

import (
	"time"

	"github.com/google/uuid"
)

// Chunk は文書から切り出したテキスト断片を表す
// インデックス時に一度だけ生成され、以降は変更しない
type Chunk struct {
	ID      uuid.UUID `json:"id"`
	Source  string    `json:"source"`
	Page    int       `json:"page"`
	Ordinal int       `json:"ordinal"`
	Content string    `json:"content"`
}

// IndexStats はインデックス化処理の結果を表す
type IndexStats struct {
	Source   string
	Pages    int
	Chunks   int
	Duration time.Duration
}
