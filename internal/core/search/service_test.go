package search

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/jinford/protocol-rag/internal/core/document"
	"github.com/jinford/protocol-rag/internal/core/ingestion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEmbedder struct {
	called bool
	vector []float32
}

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.called = true
	if e.vector != nil {
		return e.vector, nil
	}
	return []float32{1, 0}, nil
}

// memoryStore はテスト用のインメモリ VectorStore
type memoryStore struct {
	exists  bool
	openErr error
	opened  int
	resets  int
	chunks  []*ingestion.Chunk
	vectors [][]float32
}

func (s *memoryStore) Exists(ctx context.Context) (bool, error) { return s.exists, nil }

func (s *memoryStore) Open(ctx context.Context) error {
	s.opened++
	return s.openErr
}

func (s *memoryStore) Replace(ctx context.Context, chunks []*ingestion.Chunk, vectors [][]float32) error {
	s.resets++
	s.exists = true
	s.openErr = nil
	s.chunks = chunks
	s.vectors = vectors
	return nil
}

func (s *memoryStore) Search(ctx context.Context, q []float32, k int) ([]*SearchResult, error) {
	results := make([]*SearchResult, 0, len(s.chunks))
	for i, c := range s.chunks {
		var dot float64
		for j := range q {
			dot += float64(q[j]) * float64(s.vectors[i][j])
		}
		results = append(results, &SearchResult{Chunk: c, Score: dot})
	}
	sort.SliceStable(results, func(a, b int) bool { return results[a].Score > results[b].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (s *memoryStore) Count(ctx context.Context) (int, error) { return len(s.chunks), nil }
func (s *memoryStore) Close() error                           { return nil }

// stubIndexer は呼び出し回数を記録し、ストアに固定チャンクを書き込む
type stubIndexer struct {
	store *memoryStore
	calls int
	err   error
	n     int
}

func (ix *stubIndexer) Index(ctx context.Context, path string) (*ingestion.IndexStats, error) {
	ix.calls++
	if ix.err != nil {
		return nil, ix.err
	}
	n := ix.n
	if n == 0 {
		n = 5
	}
	chunks := make([]*ingestion.Chunk, n)
	vectors := make([][]float32, n)
	for i := range chunks {
		chunks[i] = &ingestion.Chunk{ID: uuid.New(), Source: path, Page: 1, Ordinal: i, Content: "trecho"}
		vectors[i] = []float32{float32(i), 1}
	}
	if err := ix.store.Replace(ctx, chunks, vectors); err != nil {
		return nil, err
	}
	return &ingestion.IndexStats{Source: path, Pages: 1, Chunks: n}, nil
}

func bufferLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, nil))
}

func TestInitializer_BuildsThenReusesStore(t *testing.T) {
	store := &memoryStore{}
	indexer := &stubIndexer{store: store}
	embedder := &stubEmbedder{}

	var firstLog bytes.Buffer
	first := NewInitializer(store, indexer, embedder, "protocolo_sepse.pdf", WithInitializerLogger(bufferLogger(&firstLog)))
	_, err := first.Initialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, indexer.calls)
	assert.Contains(t, firstLog.String(), "vector store not found, indexing")

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Greater(t, count, 0)

	var secondLog bytes.Buffer
	second := NewInitializer(store, indexer, embedder, "protocolo_sepse.pdf", WithInitializerLogger(bufferLogger(&secondLog)))
	retriever, err := second.Initialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, indexer.calls, "second run must not reindex")
	assert.Equal(t, 1, store.opened)
	assert.NotContains(t, secondLog.String(), "vector store not found, indexing")
	assert.Equal(t, DefaultTopK, retriever.TopK())
}

func TestInitializer_CorruptStoreIsRebuilt(t *testing.T) {
	store := &memoryStore{exists: true, openErr: errors.New("gob: decoding error")}
	indexer := &stubIndexer{store: store}

	var logs bytes.Buffer
	initializer := NewInitializer(store, indexer, &stubEmbedder{}, "protocolo_sepse.pdf", WithInitializerLogger(bufferLogger(&logs)))
	retriever, err := initializer.Initialize(context.Background())
	require.NoError(t, err)
	require.NotNil(t, retriever)

	assert.Equal(t, 1, indexer.calls)
	assert.Equal(t, 1, store.resets)
	assert.Contains(t, logs.String(), "rebuilding")
}

func TestInitializer_MissingDocumentFailsWithoutMutation(t *testing.T) {
	store := &memoryStore{}
	indexer := &stubIndexer{store: store, err: &document.NotFoundError{Path: "protocolo_sepse.pdf"}}

	initializer := NewInitializer(store, indexer, &stubEmbedder{}, "protocolo_sepse.pdf", WithInitializerLogger(bufferLogger(&bytes.Buffer{})))
	_, err := initializer.Initialize(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, document.ErrDocumentNotFound)
	assert.Equal(t, 0, store.resets)
}

func TestInitializer_RebuildForcesIndexing(t *testing.T) {
	store := &memoryStore{}
	indexer := &stubIndexer{store: store}
	initializer := NewInitializer(store, indexer, &stubEmbedder{}, "p.pdf", WithInitializerLogger(bufferLogger(&bytes.Buffer{})))

	_, err := initializer.Initialize(context.Background())
	require.NoError(t, err)
	_, err = initializer.Rebuild(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, indexer.calls)
}

func TestRetriever_SearchReturnsAtMostTopK(t *testing.T) {
	store := &memoryStore{}
	indexer := &stubIndexer{store: store, n: 10}
	_, err := indexer.Index(context.Background(), "p.pdf")
	require.NoError(t, err)

	embedder := &stubEmbedder{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	retriever := NewRetriever(store, embedder, WithRetrieverLogger(logger))

	results, err := retriever.Search(context.Background(), "Qual é o manejo imediato para sepse?")
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.True(t, embedder.called)

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
	assert.Equal(t, 9, results[0].Chunk.Ordinal)
}

func TestRetriever_EmptyStoreReturnsNothing(t *testing.T) {
	retriever := NewRetriever(&memoryStore{exists: true}, &stubEmbedder{})

	results, err := retriever.Search(context.Background(), "sepse")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRetriever_EmptyQuery(t *testing.T) {
	embedder := &stubEmbedder{}
	retriever := NewRetriever(&memoryStore{}, embedder)

	_, err := retriever.Search(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuery)
	assert.False(t, embedder.called)
}
