package ingestion

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jinford/protocol-rag/internal/core/document"
	"github.com/tmc/langchaingo/textsplitter"
)

const (
	// DefaultChunkSize はチャンクの最大文字数
	DefaultChunkSize = 1000
	// DefaultChunkOverlap は隣接チャンク間で重複させる文字数
	DefaultChunkOverlap = 200
)

// DefaultSeparators は段落、行、文、単語の順に分割を試みる区切り文字
var DefaultSeparators = []string{"\n\n", "\n", ".", " "}

// Splitter はテキストをチャンク単位に分割するインターフェース
type Splitter interface {
	SplitText(text string) ([]string, error)
}

// RecursiveSplitter は区切り文字を段階的に細かくしながら分割する
type RecursiveSplitter struct {
	inner textsplitter.RecursiveCharacter
}

// NewRecursiveSplitter は文字数ベースの再帰分割器を作成する
func NewRecursiveSplitter(chunkSize, chunkOverlap int) (*RecursiveSplitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive: %d", ErrInvalidConfig, chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: chunk overlap must be in [0, %d): %d", ErrInvalidConfig, chunkSize, chunkOverlap)
	}

	inner := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
		textsplitter.WithSeparators(DefaultSeparators),
		textsplitter.WithKeepSeparator(true),
		textsplitter.WithLenFunc(utf8.RuneCountInString),
	)

	return &RecursiveSplitter{inner: inner}, nil
}

// SplitText はテキストを分割する
func (s *RecursiveSplitter) SplitText(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	parts, err := s.inner.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("failed to split text: %w", err)
	}
	return parts, nil
}

// SplitDocument は文書をページ単位で分割し、チャンクに変換する
// Ordinal は文書全体で0から連番になる
func SplitDocument(doc *document.Document, splitter Splitter) ([]*Chunk, error) {
	var chunks []*Chunk
	for _, page := range doc.Pages {
		parts, err := splitter.SplitText(page.Text)
		if err != nil {
			return nil, fmt.Errorf("failed to split page %d: %w", page.Number, err)
		}
		for _, part := range parts {
			content := strings.TrimSpace(part)
			if content == "" {
				continue
			}
			chunks = append(chunks, &Chunk{
				ID:      uuid.New(),
				Source:  doc.Source,
				Page:    page.Number,
				Ordinal: len(chunks),
				Content: content,
			})
		}
	}
	return chunks, nil
}

var _ Splitter = (*RecursiveSplitter)(nil)
