package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ensureVectorExtension は vector 拡張を作成します
// プールの AfterConnect で型登録を行うため、プール作成前に単独接続で実行する
func ensureVectorExtension(ctx context.Context, connString string) error {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return fmt.Errorf("failed to connect database: %w", err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}
	return nil
}
