package ingestion

import "errors"

var (
	// ErrInvalidConfig はチャンク分割設定が不正な場合のエラー
	ErrInvalidConfig = errors.New("invalid splitter config")

	// ErrNoChunks は文書から1件もチャンクが得られなかった場合のエラー
	ErrNoChunks = errors.New("document produced no chunks")

	// ErrVectorCountMismatch はEmbedding件数がチャンク件数と一致しない場合のエラー
	ErrVectorCountMismatch = errors.New("embedding count does not match chunk count")
)
