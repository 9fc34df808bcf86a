package chromem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/jinford/protocol-rag/internal/core/ingestion"
	"github.com/jinford/protocol-rag/internal/core/search"
	"github.com/philippgille/chromem-go"
)

// メタデータのキー
const (
	metaSource  = "source"
	metaPage    = "page"
	metaOrdinal = "ordinal"
)

// errEmbeddingRequired はベクトル未設定のドキュメントを追加しようとした場合のエラー
// Embedding は常に呼び出し側で計算済みのものを渡す
var errEmbeddingRequired = errors.New("chromem store requires precomputed embeddings")

func precomputedOnly(ctx context.Context, text string) ([]float32, error) {
	return nil, errEmbeddingRequired
}

// Store は chromem-go の永続化DBをバックエンドとする VectorStore 実装
type Store struct {
	path       string
	collection string
	compress   bool
	logger     *slog.Logger

	mu   sync.RWMutex
	db   *chromem.DB
	coll *chromem.Collection
}

// StoreOption は Store のオプション設定
type StoreOption func(*Store)

// WithStoreLogger は Store にロガーを設定する
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithCompression は永続化ファイルを gzip 圧縮する
func WithCompression(compress bool) StoreOption {
	return func(s *Store) {
		s.compress = compress
	}
}

// NewStore は path に永続化する Store を作成する。ディスクには触れない
func NewStore(path, collection string, opts ...StoreOption) *Store {
	s := &Store{
		path:       path,
		collection: collection,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Exists は永続化ディレクトリが存在するかを返す
func (s *Store) Exists(ctx context.Context) (bool, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat vector store: %w", err)
	}
	if !info.IsDir() {
		return false, fmt.Errorf("vector store path %q is not a directory", s.path)
	}
	return true, nil
}

// Open は永続化ディレクトリを読み込む
// デコードできないファイルやコレクションの欠落はエラーになる
func (s *Store) Open(ctx context.Context) error {
	db, err := chromem.NewPersistentDB(s.path, s.compress)
	if err != nil {
		return fmt.Errorf("failed to open persistent db: %w", err)
	}

	coll := db.GetCollection(s.collection, precomputedOnly)
	if coll == nil {
		return fmt.Errorf("%w: collection %q in %s", search.ErrStoreNotFound, s.collection, s.path)
	}

	s.mu.Lock()
	s.db = db
	s.coll = coll
	s.mu.Unlock()

	s.logger.Debug("chromem store opened", "path", s.path, "collection", s.collection, "documents", coll.Count())
	return nil
}

// Replace は永続化ディレクトリを作り直し、チャンクとEmbeddingを書き込む
func (s *Store) Replace(ctx context.Context, chunks []*ingestion.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("%w: %d chunks, %d vectors", ingestion.ErrVectorCountMismatch, len(chunks), len(vectors))
	}
	if err := s.reset(); err != nil {
		return err
	}
	return s.add(ctx, chunks, vectors)
}

// reset は永続化ディレクトリを削除し、空のコレクションを作り直す
func (s *Store) reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.RemoveAll(s.path); err != nil {
		return fmt.Errorf("failed to remove vector store: %w", err)
	}

	db, err := chromem.NewPersistentDB(s.path, s.compress)
	if err != nil {
		return fmt.Errorf("failed to create persistent db: %w", err)
	}
	coll, err := db.GetOrCreateCollection(s.collection, nil, precomputedOnly)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	s.db = db
	s.coll = coll
	return nil
}

// add はチャンクとEmbeddingを追加する
// AddDocuments はキャンセル時に途中のドキュメントを黙って捨てるため、件数で書き込みを確認する
// 失敗時は永続化ディレクトリを削除し、次回の起動で再構築させる
func (s *Store) add(ctx context.Context, chunks []*ingestion.Chunk, vectors [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}

	coll, err := s.collectionOrErr()
	if err != nil {
		return err
	}

	docs := make([]chromem.Document, 0, len(chunks))
	for i, c := range chunks {
		docs = append(docs, chromem.Document{
			ID: c.ID.String(),
			Metadata: map[string]string{
				metaSource:  c.Source,
				metaPage:    strconv.Itoa(c.Page),
				metaOrdinal: strconv.Itoa(c.Ordinal),
			},
			Embedding: vectors[i],
			Content:   c.Content,
		})
	}

	before := coll.Count()
	err = coll.AddDocuments(ctx, docs, runtime.NumCPU())
	if err == nil {
		err = ctx.Err()
	}
	if err == nil {
		if added := coll.Count() - before; added != len(docs) {
			err = fmt.Errorf("stored %d of %d documents", added, len(docs))
		}
	}
	if err != nil {
		s.discard()
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

// discard は書きかけの永続化ディレクトリを削除する
func (s *Store) discard() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.db = nil
	s.coll = nil
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove incomplete vector store", "path", s.path, "error", err)
	}
}

// Search はクエリベクトルに近い順に最大 k 件を返す
func (s *Store) Search(ctx context.Context, queryVector []float32, k int) ([]*search.SearchResult, error) {
	coll, err := s.collectionOrErr()
	if err != nil {
		return nil, err
	}

	// chromem は件数を超える nResults を受け付けない
	n := min(k, coll.Count())
	if n <= 0 {
		return []*search.SearchResult{}, nil
	}

	res, err := coll.QueryEmbedding(ctx, queryVector, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}

	results := make([]*search.SearchResult, 0, len(res))
	for _, r := range res {
		chunk, err := toChunk(r)
		if err != nil {
			return nil, err
		}
		results = append(results, &search.SearchResult{
			Chunk: chunk,
			Score: float64(r.Similarity),
		})
	}
	return results, nil
}

// Count は保存済みチャンク数を返す
func (s *Store) Count(ctx context.Context) (int, error) {
	coll, err := s.collectionOrErr()
	if err != nil {
		return 0, err
	}
	return coll.Count(), nil
}

// Close はメモリ上の参照を解放する。データは追加時点で永続化済み
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.db = nil
	s.coll = nil
	return nil
}

func (s *Store) collectionOrErr() (*chromem.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.coll == nil {
		return nil, fmt.Errorf("%w: store is not open", search.ErrStoreNotFound)
	}
	return s.coll, nil
}

func toChunk(r chromem.Result) (*ingestion.Chunk, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid chunk id %q: %w", r.ID, err)
	}
	page, _ := strconv.Atoi(r.Metadata[metaPage])
	ordinal, _ := strconv.Atoi(r.Metadata[metaOrdinal])

	return &ingestion.Chunk{
		ID:      id,
		Source:  r.Metadata[metaSource],
		Page:    page,
		Ordinal: ordinal,
		Content: r.Content,
	}, nil
}

var _ search.VectorStore = (*Store)(nil)
