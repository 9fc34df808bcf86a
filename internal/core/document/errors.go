package document

import (
	"errors"
	"fmt"
	"io/fs"
)

var (
	// ErrDocumentNotFound は文書ファイルが存在しない場合のエラー
	// errors.Is(err, fs.ErrNotExist) も成立する
	ErrDocumentNotFound = fmt.Errorf("document not found: %w", fs.ErrNotExist)

	// ErrNoText は文書からテキストを1文字も抽出できなかった場合のエラー
	ErrNoText = errors.New("no text extracted from document")
)

// NotFoundError は見つからなかった文書のパスを保持する
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("protocol file %q was not found in the project root", e.Path)
}

func (e *NotFoundError) Unwrap() error {
	return ErrDocumentNotFound
}
