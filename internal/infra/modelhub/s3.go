package modelhub

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/jinford/protocol-rag/internal/core/generation"
)

// S3Config は S3 互換ストレージの接続設定
type S3Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// S3 は S3 互換ストレージ上のミラーからモデルを取得する
// オブジェクトキーは <repoID>/<filename>
type S3 struct {
	client *minio.Client
	bucket string
	logger *slog.Logger
}

// NewS3 は新しい S3 を作成する
func NewS3(cfg S3Config, logger *slog.Logger) (*S3, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 endpoint and bucket are required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &S3{
		client: client,
		bucket: cfg.Bucket,
		logger: logger,
	}, nil
}

// ObjectKey はモデルファイルのオブジェクトキーを返す
func ObjectKey(repoID, filename string) string {
	return path.Join(repoID, filename)
}

// Download はオブジェクトを destDir に保存する。既存のファイルは上書きする
func (s *S3) Download(ctx context.Context, repoID, filename, destDir string) (string, error) {
	key := ObjectKey(repoID, filename)
	dest := filepath.Join(destDir, filename)

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	// FGetObject は既存ファイルへの追記を避けるため事前に削除する
	if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to remove stale model file: %w", err)
	}

	s.logger.Info("downloading model from s3", "bucket", s.bucket, "key", key)

	if err := s.client.FGetObject(ctx, s.bucket, key, dest, minio.GetObjectOptions{}); err != nil {
		return "", fmt.Errorf("failed to download s3://%s/%s: %w", s.bucket, key, err)
	}

	return dest, nil
}

var _ generation.ModelHub = (*S3)(nil)
