package generation

import "errors"

var (
	// ErrModelUnavailable はモデルファイルを用意できなかった場合のエラー
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrEmptyCompletion は生成結果が空だった場合のエラー
	ErrEmptyCompletion = errors.New("no completion choices returned")
)
