package container

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	coreask "github.com/jinford/protocol-rag/internal/core/ask"
	"github.com/jinford/protocol-rag/internal/core/document"
	"github.com/jinford/protocol-rag/internal/core/generation"
	coreingestion "github.com/jinford/protocol-rag/internal/core/ingestion"
	coresearch "github.com/jinford/protocol-rag/internal/core/search"
	"github.com/jinford/protocol-rag/internal/infra/chromem"
	"github.com/jinford/protocol-rag/internal/infra/gemini"
	"github.com/jinford/protocol-rag/internal/infra/modelhub"
	"github.com/jinford/protocol-rag/internal/infra/openai"
	"github.com/jinford/protocol-rag/internal/infra/pdf"
	"github.com/jinford/protocol-rag/internal/infra/postgres"
	"github.com/jinford/protocol-rag/internal/infra/resilience"
	"github.com/jinford/protocol-rag/internal/infra/tokenizer"
	"github.com/jinford/protocol-rag/internal/platform/config"
	"github.com/jinford/protocol-rag/internal/platform/database"
)

// ServiceContainer は設定から組み立てた依存関係を保持する
// ネットワークに触れる初期化（ストア構築、モデル取得）は各 Initializer の呼び出しまで遅延する
type ServiceContainer struct {
	Store                coresearch.VectorStore
	Embedder             coreingestion.Embedder
	Indexer              *coreingestion.Indexer
	SearchInitializer    *coresearch.Initializer
	GeneratorInitializer *generation.Initializer

	cfg          *config.Config
	tokenCounter coreask.TokenCounter
	logger       *slog.Logger
	database     *database.Database
	closers      []io.Closer
}

type containerOptions struct {
	logger           *slog.Logger
	embedder         coreingestion.Embedder
	store            coresearch.VectorStore
	loader           document.Loader
	hub              generation.ModelHub
	generatorFactory generation.GeneratorFactory
	tokenCounter     coreask.TokenCounter
}

// ContainerOption は ServiceContainer 構築時のオプション
type ContainerOption func(*containerOptions)

// WithContainerLogger はロガーを差し替える
func WithContainerLogger(logger *slog.Logger) ContainerOption {
	return func(opts *containerOptions) {
		opts.logger = logger
	}
}

// WithContainerEmbedder はカスタム Embedder を注入する
func WithContainerEmbedder(embedder coreingestion.Embedder) ContainerOption {
	return func(opts *containerOptions) {
		opts.embedder = embedder
	}
}

// WithContainerStore は VectorStore を差し替える
func WithContainerStore(store coresearch.VectorStore) ContainerOption {
	return func(opts *containerOptions) {
		opts.store = store
	}
}

// WithContainerLoader は文書ローダーを差し替える
func WithContainerLoader(loader document.Loader) ContainerOption {
	return func(opts *containerOptions) {
		opts.loader = loader
	}
}

// WithContainerModelHub はモデルの取得元を差し替える
func WithContainerModelHub(hub generation.ModelHub) ContainerOption {
	return func(opts *containerOptions) {
		opts.hub = hub
	}
}

// WithContainerGeneratorFactory は Generator の組み立て方を差し替える
func WithContainerGeneratorFactory(factory generation.GeneratorFactory) ContainerOption {
	return func(opts *containerOptions) {
		opts.generatorFactory = factory
	}
}

// WithContainerTokenCounter は TokenCounter を差し替える
func WithContainerTokenCounter(counter coreask.TokenCounter) ContainerOption {
	return func(opts *containerOptions) {
		opts.tokenCounter = counter
	}
}

// NewContainer は設定からコンテナを生成する
func NewContainer(ctx context.Context, cfg *config.Config, opts ...ContainerOption) (*ServiceContainer, error) {
	options := containerOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	c := &ServiceContainer{
		cfg:          cfg,
		tokenCounter: options.tokenCounter,
		logger:       options.logger,
	}

	cfg.LogAPIKeyStatus(options.logger)

	// Embedder
	embedder := options.embedder
	if embedder == nil {
		var err error
		embedder, err = c.newEmbedder(ctx)
		if err != nil {
			return nil, fmt.Errorf("Embedder 初期化に失敗しました: %w", err)
		}
	}
	c.Embedder = embedder

	// VectorStore
	store := options.store
	if store == nil {
		var err error
		store, err = c.newStore(ctx)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("VectorStore 初期化に失敗しました: %w", err)
		}
	}
	c.Store = store

	// Indexer
	loader := options.loader
	if loader == nil {
		loader = pdf.NewLoader(pdf.WithLoaderLogger(options.logger))
	}
	splitter, err := coreingestion.NewRecursiveSplitter(cfg.Protocol.ChunkSize, cfg.Protocol.ChunkOverlap)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("Splitter 初期化に失敗しました: %w", err)
	}
	c.Indexer = coreingestion.NewIndexer(loader, splitter, embedder, store,
		coreingestion.WithIndexLogger(options.logger),
		coreingestion.WithIndexPipelineConfig(&coreingestion.PipelineConfig{
			BatchSize:            cfg.Embedding.BatchSize,
			EmbeddingWorkerCount: cfg.Embedding.Concurrency,
		}),
	)

	c.SearchInitializer = coresearch.NewInitializer(store, c.Indexer, embedder, cfg.Protocol.File,
		coresearch.WithInitializerLogger(options.logger),
		coresearch.WithInitializerTopK(cfg.Protocol.TopK),
	)

	// Generator
	hub := options.hub
	if hub == nil {
		hub, err = c.newModelHub()
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("ModelHub 初期化に失敗しました: %w", err)
		}
	}
	factory := options.generatorFactory
	if factory == nil {
		factory = openai.NewGeneratorFactory(cfg.LLM.BaseURL, cfg.LLM.APIKey,
			openai.WithTimeout(time.Duration(cfg.LLM.TimeoutSeconds)*time.Second),
			openai.WithGeneratorLogger(options.logger),
		)
	}
	c.GeneratorInitializer = generation.NewInitializer(hub,
		generation.ModelSpec{
			RepoID:   cfg.Model.RepoID,
			Filename: cfg.Model.Filename,
			Dir:      cfg.Model.Dir,
		},
		factory,
		generation.WithInitializerLogger(options.logger),
		generation.WithSettings(generation.Settings{
			Temperature:   cfg.LLM.Temperature,
			MaxTokens:     cfg.LLM.MaxTokens,
			ContextWindow: cfg.LLM.ContextWindow,
		}),
	)

	return c, nil
}

// NewAskService は初期化済みの Retriever と Generator から AskService を組み立てる
func (c *ServiceContainer) NewAskService(retriever coreask.Retriever, generator generation.Generator) *coreask.AskService {
	counter := c.tokenCounter
	if counter == nil {
		counter = tokenizer.NewTokenCounterOrEstimate(c.logger)
		c.tokenCounter = counter
	}
	return coreask.NewAskService(retriever, generator,
		coreask.WithAskLogger(c.logger),
		coreask.WithPromptBudget(counter, c.GeneratorInitializer.Settings().PromptBudget()),
	)
}

func (c *ServiceContainer) newEmbedder(ctx context.Context) (coreingestion.Embedder, error) {
	cfg := c.cfg.Embedding

	var inner coreingestion.Embedder
	switch cfg.Provider {
	case "gemini":
		g, err := gemini.NewEmbedder(ctx, c.cfg.APIKey, cfg.GeminiModel, gemini.WithNormalize(cfg.Normalize))
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, g)
		inner = g
	default:
		inner = openai.NewEmbedder(cfg.APIKey,
			openai.WithEmbeddingBaseURL(cfg.BaseURL),
			openai.WithEmbeddingModel(cfg.Model),
			openai.WithEmbeddingDimension(cfg.Dimension),
			openai.WithNormalize(cfg.Normalize),
		)
	}

	rc := resilience.DefaultConfig()
	rc.RequestsPerSecond = cfg.RateLimit
	return resilience.Wrap(inner, rc, resilience.WithLogger(c.logger)), nil
}

func (c *ServiceContainer) newStore(ctx context.Context) (coresearch.VectorStore, error) {
	vs := c.cfg.VectorStore

	switch vs.Backend {
	case "pgvector":
		db, err := database.New(ctx, database.ConnectionParams{
			Host:     c.cfg.Database.Host,
			Port:     c.cfg.Database.Port,
			User:     c.cfg.Database.User,
			Password: c.cfg.Database.Password,
			DBName:   c.cfg.Database.DBName,
			SSLMode:  c.cfg.Database.SSLMode,
		})
		if err != nil {
			return nil, fmt.Errorf("データベース初期化に失敗しました: %w", err)
		}
		c.database = db
		return postgres.NewStore(db, vs.Collection, postgres.WithStoreLogger(c.logger))
	default:
		return chromem.NewStore(vs.Path, vs.Collection,
			chromem.WithCompression(vs.Compress),
			chromem.WithStoreLogger(c.logger),
		), nil
	}
}

func (c *ServiceContainer) newModelHub() (generation.ModelHub, error) {
	m := c.cfg.Model

	switch m.Hub {
	case "s3":
		return modelhub.NewS3(modelhub.S3Config{
			Endpoint:  m.S3.Endpoint,
			Bucket:    m.S3.Bucket,
			AccessKey: m.S3.AccessKey,
			SecretKey: m.S3.SecretKey,
			UseSSL:    m.S3.UseSSL,
		}, c.logger)
	default:
		return modelhub.NewHuggingFace(
			modelhub.WithToken(m.HFToken),
			modelhub.WithRevision(m.HFRevision),
			modelhub.WithCacheDir(m.HFCacheDir),
			modelhub.WithHFLogger(c.logger),
		), nil
	}
}

// Close は内部リソースを解放する
func (c *ServiceContainer) Close() {
	if c == nil {
		return
	}
	if c.Store != nil {
		if err := c.Store.Close(); err != nil {
			c.Logger().Warn("failed to close vector store", "error", err)
		}
	}
	for _, closer := range c.closers {
		if err := closer.Close(); err != nil {
			c.Logger().Warn("failed to close resource", "error", err)
		}
	}
	if c.database != nil {
		c.database.Close()
	}
}

// Logger はロガーを返す
func (c *ServiceContainer) Logger() *slog.Logger {
	if c == nil || c.logger == nil {
		return slog.Default()
	}
	return c.logger
}

// Config は設定を返す
func (c *ServiceContainer) Config() *config.Config {
	return c.cfg
}
