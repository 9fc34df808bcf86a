package chromem

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/jinford/protocol-rag/internal/core/ingestion"
	"github.com/jinford/protocol-rag/internal/core/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(path string) *Store {
	return NewStore(path, "protocols", WithStoreLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func fixtureChunks() ([]*ingestion.Chunk, [][]float32) {
	contents := []string{"antibiótico", "lactato", "hemocultura", "antibiótico e lactato"}
	vectors := [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {1, 1, 0}}
	chunks := make([]*ingestion.Chunk, len(contents))
	for i, c := range contents {
		chunks[i] = &ingestion.Chunk{
			ID:      uuid.New(),
			Source:  "protocolo_sepse.pdf",
			Page:    i + 1,
			Ordinal: i,
			Content: c,
		}
	}
	return chunks, vectors
}

func TestStore_ReplaceAndReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "chroma_db")

	store := newTestStore(path)
	exists, err := store.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)

	chunks, vectors := fixtureChunks()
	require.NoError(t, store.Replace(ctx, chunks, vectors))
	require.NoError(t, store.Close())

	reopened := newTestStore(path)
	exists, err = reopened.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, exists)
	require.NoError(t, reopened.Open(ctx))

	count, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(chunks), count)

	results, err := reopened.Search(ctx, []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, chunks[0].ID, results[0].Chunk.ID)
	assert.Equal(t, "antibiótico", results[0].Chunk.Content)
	assert.Equal(t, 1, results[0].Chunk.Page)
	assert.Equal(t, "protocolo_sepse.pdf", results[0].Chunk.Source)
	assert.Equal(t, chunks[3].ID, results[1].Chunk.ID)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestStore_SearchClampsToCollectionSize(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, store.reset())

	results, err := store.Search(ctx, []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, results)

	chunks, vectors := fixtureChunks()
	require.NoError(t, store.Replace(ctx, chunks[:2], vectors[:2]))

	results, err = store.Search(ctx, []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestStore_ReplaceDropsPreviousDocuments(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(filepath.Join(t.TempDir(), "db"))
	chunks, vectors := fixtureChunks()

	require.NoError(t, store.Replace(ctx, chunks, vectors))
	require.NoError(t, store.Replace(ctx, chunks[:1], vectors[:1]))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStore_CancelledAddLeavesNoStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chroma_db")
	store := newTestStore(path)
	require.NoError(t, store.reset())

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	chunks, vectors := fixtureChunks()
	err := store.add(cancelled, chunks, vectors)
	require.Error(t, err)

	exists, err := store.Exists(context.Background())
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = store.Count(context.Background())
	assert.ErrorIs(t, err, search.ErrStoreNotFound)

	reopened := newTestStore(path)
	assert.Error(t, reopened.Open(context.Background()))
}

func TestStore_CancelledReplaceDiscardsPreviousStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "chroma_db")
	store := newTestStore(path)

	chunks, vectors := fixtureChunks()
	require.NoError(t, store.Replace(ctx, chunks, vectors))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	require.Error(t, store.Replace(cancelled, chunks, vectors))

	exists, err := newTestStore(path).Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestStore_OpenCorruptDirectoryFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chroma_db")
	collDir := filepath.Join(path, "deadbeef")
	require.NoError(t, os.MkdirAll(collDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(collDir, "00000000.gob"), []byte("garbage"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(collDir, "0badc0de.gob"), []byte("garbage"), 0o644))

	store := newTestStore(path)
	exists, err := store.Exists(context.Background())
	require.NoError(t, err)
	assert.True(t, exists)

	assert.Error(t, store.Open(context.Background()))
}

func TestStore_OpenWithoutCollectionFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chroma_db")
	require.NoError(t, os.MkdirAll(path, 0o755))

	err := newTestStore(path).Open(context.Background())
	assert.ErrorIs(t, err, search.ErrStoreNotFound)
}

func TestStore_UnopenedStoreErrors(t *testing.T) {
	store := newTestStore(filepath.Join(t.TempDir(), "db"))

	_, err := store.Search(context.Background(), []float32{1}, 3)
	assert.ErrorIs(t, err, search.ErrStoreNotFound)
}

func TestStore_ReplaceRejectsMismatchedVectors(t *testing.T) {
	chunks, vectors := fixtureChunks()
	err := newTestStore(filepath.Join(t.TempDir(), "db")).Replace(context.Background(), chunks, vectors[:1])
	assert.ErrorIs(t, err, ingestion.ErrVectorCountMismatch)
}
