package modelhub

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gomlx/go-huggingface/hub"

	"github.com/jinford/protocol-rag/internal/core/generation"
)

const (
	// DefaultRevision は取得するブランチ
	DefaultRevision = "main"

	// cacheDirName は destDir 配下に作るハブのキャッシュディレクトリ
	cacheDirName = ".hf-cache"
)

// repoDownloader はリポジトリのファイルをキャッシュに取得し、そのパスを返す
type repoDownloader func(ctx context.Context, repoID, filename, cacheDir string) (string, error)

// HuggingFace は go-huggingface でハブからファイルを取得し、destDir に配置する
type HuggingFace struct {
	token    string
	revision string
	cacheDir string
	download repoDownloader
	logger   *slog.Logger
}

// HuggingFaceOption は HuggingFace のオプション設定
type HuggingFaceOption func(*HuggingFace)

// WithToken はアクセストークンを設定する
func WithToken(token string) HuggingFaceOption {
	return func(h *HuggingFace) {
		h.token = token
	}
}

// WithRevision は取得するリビジョンを設定する
func WithRevision(revision string) HuggingFaceOption {
	return func(h *HuggingFace) {
		if revision != "" {
			h.revision = revision
		}
	}
}

// WithCacheDir はハブのキャッシュディレクトリを設定する
// 未設定なら <destDir>/.hf-cache を使い、取得後のファイルを rename で移動できるようにする
func WithCacheDir(dir string) HuggingFaceOption {
	return func(h *HuggingFace) {
		h.cacheDir = dir
	}
}

// WithHFLogger はロガーを設定する
func WithHFLogger(logger *slog.Logger) HuggingFaceOption {
	return func(h *HuggingFace) {
		h.logger = logger
	}
}

// withDownloader はハブへのアクセスを差し替える（テスト用）
func withDownloader(d repoDownloader) HuggingFaceOption {
	return func(h *HuggingFace) {
		h.download = d
	}
}

// NewHuggingFace は新しい HuggingFace を作成する
func NewHuggingFace(opts ...HuggingFaceOption) *HuggingFace {
	h := &HuggingFace{
		revision: DefaultRevision,
		logger:   slog.Default(),
	}
	h.download = h.hubDownload
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// hubDownload は go-huggingface の Repo でファイルを取得する
// DownloadFile は context を受け取らないため、キャンセル時は待たずに戻る
func (h *HuggingFace) hubDownload(ctx context.Context, repoID, filename, cacheDir string) (string, error) {
	repo := hub.New(repoID).
		WithRevision(h.revision).
		WithCacheDir(cacheDir)
	if h.token != "" {
		repo = repo.WithAuth(h.token)
	}

	type result struct {
		path string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		path, err := repo.DownloadFile(filename)
		done <- result{path: path, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		return r.path, r.err
	}
}

// Download はファイルを取得して <destDir>/<filename> に置く
// 既存のファイルは常に上書きする
func (h *HuggingFace) Download(ctx context.Context, repoID, filename, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	cacheDir := h.cacheDir
	if cacheDir == "" {
		cacheDir = filepath.Join(destDir, cacheDirName)
	}

	h.logger.Info("downloading model", "repo", repoID, "file", filename, "revision", h.revision)

	cached, err := h.download(ctx, repoID, filename, cacheDir)
	if err != nil {
		return "", fmt.Errorf("failed to download %s/%s: %w", repoID, filename, err)
	}

	dest := filepath.Join(destDir, filename)
	if err := placeFile(cached, dest); err != nil {
		return "", err
	}

	h.logger.Info("model download finished", "path", dest)
	return dest, nil
}

// placeFile はキャッシュ上のファイルを dest に移す
// キャッシュのスナップショットはシンボリックリンクなので実体を rename し、リンクは消す
// 別ファイルシステムで rename できない場合はコピーする
func placeFile(cached, dest string) error {
	blob, err := filepath.EvalSymlinks(cached)
	if err != nil {
		return fmt.Errorf("failed to resolve cached file %s: %w", cached, err)
	}

	if err := os.Rename(blob, dest); err == nil {
		if blob != cached {
			_ = os.Remove(cached)
		}
		return nil
	}

	src, err := os.Open(blob)
	if err != nil {
		return fmt.Errorf("failed to open cached file %s: %w", blob, err)
	}
	defer src.Close()

	if _, err := writeAtomically(dest, src); err != nil {
		return err
	}
	return nil
}

// writeAtomically は一時ファイルに書き込んでから dest に rename する
func writeAtomically(dest string, r io.Reader) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	part := dest + ".part"
	f, err := os.Create(part)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", part, err)
	}

	written, err := io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(part)
		return 0, fmt.Errorf("failed to write %s: %w", part, err)
	}

	if err := os.Rename(part, dest); err != nil {
		_ = os.Remove(part)
		return 0, fmt.Errorf("failed to move %s into place: %w", dest, err)
	}
	return written, nil
}

var _ generation.ModelHub = (*HuggingFace)(nil)
