package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/jinford/protocol-rag/internal/core/ingestion"
	"github.com/jinford/protocol-rag/internal/core/search"
	"github.com/jinford/protocol-rag/internal/platform/database"
)

var collectionNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,40}$`)

// requiredColumns は Open 時に存在を確認するカラム
var requiredColumns = []string{"id", "ordinal", "page", "source", "content", "embedding"}

// Store は pgvector をバックエンドとする search.VectorStore 実装
// テーブルは <collection>_chunks
type Store struct {
	db     *database.Database
	tx     *database.TransactionProvider
	table  string
	ident  string
	logger *slog.Logger
}

// StoreOption は Store のオプション設定
type StoreOption func(*Store)

// WithStoreLogger は Store にロガーを設定する
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore は新しい Store を返す
func NewStore(db *database.Database, collection string, opts ...StoreOption) (*Store, error) {
	if !collectionNamePattern.MatchString(collection) {
		return nil, fmt.Errorf("invalid collection name: %q", collection)
	}

	table := collection + "_chunks"
	s := &Store{
		db:     db,
		tx:     database.NewTransactionProvider(db.Pool),
		table:  table,
		ident:  pgx.Identifier{table}.Sanitize(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

var _ search.VectorStore = (*Store)(nil)

// Exists はチャンクテーブルが存在するかを返す
func (s *Store) Exists(ctx context.Context) (bool, error) {
	var exists bool
	if err := s.db.Pool.QueryRow(ctx, "SELECT to_regclass($1::text) IS NOT NULL", s.ident).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check table: %w", err)
	}
	return exists, nil
}

// Open はテーブル定義を検証する
func (s *Store) Open(ctx context.Context) error {
	rows, err := s.db.Pool.Query(ctx,
		"SELECT column_name FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = $1",
		s.table,
	)
	if err != nil {
		return fmt.Errorf("failed to read table schema: %w", err)
	}
	columns, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return fmt.Errorf("failed to read table schema: %w", err)
	}
	if len(columns) == 0 {
		return fmt.Errorf("%w: table %s", search.ErrStoreNotFound, s.table)
	}

	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}
	for _, c := range requiredColumns {
		if !present[c] {
			return fmt.Errorf("table %s is missing column %q", s.table, c)
		}
	}

	count, err := s.Count(ctx)
	if err != nil {
		return err
	}
	s.logger.Debug("pgvector store opened", "table", s.table, "chunks", count)
	return nil
}

// Replace はテーブルを作り直してチャンクとEmbeddingを書き込む
// DROP・CREATE・INSERT を1トランザクションで行い、同じコレクションへの同時再構築は
// アドバイザリロックで直列化する。失敗時はロールバックされ、以前のテーブルが残る
func (s *Store) Replace(ctx context.Context, chunks []*ingestion.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("%w: %d chunks, %d vectors", ingestion.ErrVectorCountMismatch, len(chunks), len(vectors))
	}

	_, err := database.Transact(ctx, s.tx, func(adapters *database.Adapter) (struct{}, error) {
		if err := adapters.Locks.Acquire(ctx, database.GenerateLockID("vector-store", s.table)); err != nil {
			return struct{}{}, err
		}
		if err := s.recreateTable(ctx, adapters.Tx); err != nil {
			return struct{}{}, err
		}
		if err := s.insertChunks(ctx, adapters.Tx, chunks, vectors); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, nil
	})
	if err != nil {
		return fmt.Errorf("failed to replace vector store: %w", err)
	}
	return nil
}

func (s *Store) recreateTable(ctx context.Context, tx pgx.Tx) error {
	if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+s.ident); err != nil {
		return fmt.Errorf("failed to drop table: %w", err)
	}

	ddl := fmt.Sprintf(`CREATE TABLE %s (
	id uuid PRIMARY KEY,
	ordinal integer NOT NULL,
	page integer NOT NULL,
	source text NOT NULL,
	content text NOT NULL,
	embedding vector NOT NULL,
	created_at timestamptz NOT NULL DEFAULT now()
)`, s.ident)
	if _, err := tx.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

func (s *Store) insertChunks(ctx context.Context, tx pgx.Tx, chunks []*ingestion.Chunk, vectors [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (id, ordinal, page, source, content, embedding) VALUES ($1, $2, $3, $4, $5, $6)",
		s.ident,
	)

	batch := &pgx.Batch{}
	for i, c := range chunks {
		batch.Queue(query,
			chunkIDParam(c.ID),
			int4Param(c.Ordinal),
			int4Param(c.Page),
			c.Source,
			c.Content,
			pgvector.NewVector(vectors[i]),
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}
	return nil
}

// Search はコサイン距離の近い順に最大 k 件を返す。スコアは 1 - 距離
func (s *Store) Search(ctx context.Context, queryVector []float32, k int) ([]*search.SearchResult, error) {
	if k <= 0 {
		return []*search.SearchResult{}, nil
	}

	query := fmt.Sprintf(`SELECT id, source, page, ordinal, content, 1 - (embedding <=> $1) AS score
FROM %s
ORDER BY embedding <=> $1
LIMIT $2`, s.ident)

	rows, err := s.db.Pool.Query(ctx, query, pgvector.NewVector(queryVector), k)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	results := make([]*search.SearchResult, 0, k)
	for rows.Next() {
		var (
			id      pgtype.UUID
			source  string
			page    pgtype.Int4
			ordinal pgtype.Int4
			content string
			score   float64
		)
		if err := rows.Scan(&id, &source, &page, &ordinal, &content, &score); err != nil {
			return nil, fmt.Errorf("failed to scan search row: %w", err)
		}
		results = append(results, &search.SearchResult{
			Chunk: &ingestion.Chunk{
				ID:      chunkIDValue(id),
				Source:  source,
				Page:    int4Value(page),
				Ordinal: int4Value(ordinal),
				Content: content,
			},
			Score: score,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate search rows: %w", err)
	}
	return results, nil
}

// Count は保存済みチャンク数を返す
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int64
	if err := s.db.Pool.QueryRow(ctx, "SELECT count(*) FROM "+s.ident).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return int(count), nil
}

// Close は何もしない。接続プールは呼び出し側が所有する
func (s *Store) Close() error {
	return nil
}
