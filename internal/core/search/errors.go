package search

import "errors"

var (
	// ErrStoreNotFound は永続化されたベクトルストアが存在しない場合のエラー
	ErrStoreNotFound = errors.New("vector store not found")

	// ErrEmptyQuery は検索クエリが空の場合のエラー
	ErrEmptyQuery = errors.New("query is required")
)
