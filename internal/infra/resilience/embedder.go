package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/jinford/protocol-rag/internal/core/ingestion"
	"github.com/jinford/protocol-rag/internal/core/search"
)

// Config はレート制限とサーキットブレーカーの設定
type Config struct {
	// RequestsPerSecond は1秒あたりのリクエスト数（0以下で無制限）
	RequestsPerSecond float64
	// Burst は瞬間的に許容するリクエスト数
	Burst int
	// MaxRequests は Half-Open 状態で許可するリクエスト数
	MaxRequests uint32
	// Interval は Closed 状態でカウンタをリセットする周期
	Interval time.Duration
	// Timeout は Open から Half-Open に移るまでの時間
	Timeout time.Duration
	// ConsecutiveFailures はこの回数連続で失敗すると Open になる
	ConsecutiveFailures uint32
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond:   10,
		Burst:               1,
		MaxRequests:         1,
		Interval:            60 * time.Second,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// Embedder はEmbedderにレート制限とサーキットブレーカーをかけるラッパー
type Embedder struct {
	inner   ingestion.Embedder
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// Option は Embedder のオプション設定
type Option func(*Embedder)

// WithLogger は Embedder にロガーを設定する
func WithLogger(logger *slog.Logger) Option {
	return func(e *Embedder) {
		e.logger = logger
	}
}

// Wrap は inner をレート制限とサーキットブレーカーで包む
func Wrap(inner ingestion.Embedder, cfg Config, opts ...Option) *Embedder {
	e := &Embedder{
		inner:  inner,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	e.limiter = rate.NewLimiter(limit, burst)

	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = DefaultConfig().ConsecutiveFailures
	}

	e.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "embedder:" + inner.ModelName(),
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			e.logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})

	return e
}

// Embed は単一テキストの Embedding を生成する
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	result, err := e.breaker.Execute(func() (interface{}, error) {
		return e.inner.Embed(ctx, text)
	})
	if err != nil {
		return nil, err
	}
	return result.([]float32), nil
}

// BatchEmbed はバッチで Embedding を生成する
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	result, err := e.breaker.Execute(func() (interface{}, error) {
		return e.inner.BatchEmbed(ctx, texts)
	})
	if err != nil {
		return nil, err
	}
	return result.([][]float32), nil
}

// ModelName はモデル名を返す
func (e *Embedder) ModelName() string {
	return e.inner.ModelName()
}

// State はサーキットブレーカーの状態を返す
func (e *Embedder) State() gobreaker.State {
	return e.breaker.State()
}

// インターフェース実装の確認
var (
	_ ingestion.Embedder = (*Embedder)(nil)
	_ search.Embedder    = (*Embedder)(nil)
)
