package generation

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
)

// Initializer はモデルファイルを用意し、Generator を組み立てる
type Initializer struct {
	hub      ModelHub
	spec     ModelSpec
	settings Settings
	factory  GeneratorFactory
	logger   *slog.Logger
}

// InitializerOption は Initializer のオプション設定
type InitializerOption func(*Initializer)

// WithInitializerLogger は Initializer にロガーを設定する
func WithInitializerLogger(logger *slog.Logger) InitializerOption {
	return func(i *Initializer) {
		i.logger = logger
	}
}

// WithSettings は生成パラメータを上書きする
func WithSettings(settings Settings) InitializerOption {
	return func(i *Initializer) {
		i.settings = settings
	}
}

// NewInitializer は新しい Initializer を作成する
func NewInitializer(hub ModelHub, spec ModelSpec, factory GeneratorFactory, opts ...InitializerOption) *Initializer {
	i := &Initializer{
		hub:      hub,
		spec:     spec,
		settings: DefaultSettings(),
		factory:  factory,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.logger == nil {
		i.logger = slog.Default()
	}
	return i
}

// EnsureModel はモデルファイルが無ければダウンロードし、そのパスを返す
func (i *Initializer) EnsureModel(ctx context.Context) (string, error) {
	if err := os.MkdirAll(i.spec.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create models directory: %w", err)
	}

	path := i.spec.Path()
	_, err := os.Stat(path)
	switch {
	case err == nil:
		i.logger.Info("model found locally", "path", path)
		return path, nil
	case !errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("failed to stat model file: %w", err)
	}

	i.logger.Info("model not found locally, downloading",
		"repo", i.spec.RepoID,
		"file", i.spec.Filename,
		"dir", i.spec.Dir,
	)

	downloaded, err := i.hub.Download(ctx, i.spec.RepoID, i.spec.Filename, i.spec.Dir)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}

	i.logger.Info("model downloaded", "path", downloaded)
	return downloaded, nil
}

// Initialize はモデルを用意してから Generator を返す
func (i *Initializer) Initialize(ctx context.Context) (Generator, error) {
	path, err := i.EnsureModel(ctx)
	if err != nil {
		return nil, err
	}

	gen, err := i.factory(path, i.settings)
	if err != nil {
		return nil, fmt.Errorf("failed to build generator: %w", err)
	}

	i.logger.Info("generator ready",
		"model", path,
		"temperature", i.settings.Temperature,
		"maxTokens", i.settings.MaxTokens,
		"contextWindow", i.settings.ContextWindow,
	)
	return gen, nil
}

// Settings は生成パラメータを返す
func (i *Initializer) Settings() Settings {
	return i.settings
}
