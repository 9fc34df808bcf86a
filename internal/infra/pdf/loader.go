package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/jinford/protocol-rag/internal/core/document"
	"github.com/ledongthuc/pdf"
)

// maxFileSize はメモリ上で展開するPDFの上限サイズ
const maxFileSize = 200 << 20

// Loader はPDFファイルからページごとのテキストを抽出する
type Loader struct {
	logger *slog.Logger
}

// LoaderOption は Loader のオプション設定
type LoaderOption func(*Loader)

// WithLoaderLogger は Loader にロガーを設定する
func WithLoaderLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

// NewLoader は新しい Loader を作成する
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l
}

// Load はPDFを読み込み、テキストを持つページだけを返す
func (l *Loader) Load(ctx context.Context, path string) (*document.Document, error) {
	stat, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &document.NotFoundError{Path: path}
		}
		return nil, fmt.Errorf("failed to stat PDF file: %w", err)
	}
	if stat.IsDir() {
		return nil, fmt.Errorf("protocol path %q is a directory", path)
	}
	if stat.Size() > maxFileSize {
		return nil, fmt.Errorf("pdf too large for in-memory extraction: %d bytes", stat.Size())
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF file: %w", err)
	}

	pages, err := l.extractPages(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PDF %s: %w", path, err)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: %s", document.ErrNoText, path)
	}

	l.logger.Info("document loaded", "source", path, "pages", len(pages))

	return &document.Document{
		Source: path,
		Pages:  pages,
	}, nil
}

// extractPages はページ順にプレーンテキストを取り出す
// ledongthuc/pdf は壊れた入力で panic することがあるためエラーに変換する
func (l *Loader) extractPages(ctx context.Context, content []byte) (pages []*document.Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, err
	}

	total := reader.NumPage()
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		// フォント名はページごとに別物を指しうるので共有しない
		text, err := page.GetPlainText(nil)
		if err != nil {
			l.logger.Warn("failed to extract page text", "page", i, "error", err)
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		pages = append(pages, &document.Page{Number: i, Text: text})
	}

	return pages, nil
}

var _ document.Loader = (*Loader)(nil)
