package gemini

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/jinford/protocol-rag/internal/core/ingestion"
	"github.com/jinford/protocol-rag/internal/core/search"
	"github.com/jinford/protocol-rag/internal/shared/vector"
)

const (
	// DefaultModel はモデル未指定時のEmbeddingモデル
	DefaultModel = "text-embedding-004"
	// MaxBatchSize は BatchEmbedContents に渡せる最大件数
	MaxBatchSize = 100
)

// ErrAPIKeyNotSet はAPIキーが設定されていない場合のエラー
var ErrAPIKeyNotSet = errors.New("Gemini API key not set: please set GEMINI_API_KEY environment variable")

// Embedder は Google Generative AI のEmbeddingモデルを使う実装
type Embedder struct {
	client    *genai.Client
	model     *genai.EmbeddingModel
	modelName string
	normalize bool
}

// EmbedderOption は Embedder のオプション設定
type EmbedderOption func(*Embedder)

// WithNormalize は結果を L2 正規化するかを設定する
func WithNormalize(normalize bool) EmbedderOption {
	return func(e *Embedder) {
		e.normalize = normalize
	}
}

// NewEmbedder は新しい Embedder を作成する
func NewEmbedder(ctx context.Context, apiKey, modelName string, opts ...EmbedderOption) (*Embedder, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}
	if modelName == "" {
		modelName = DefaultModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	e := &Embedder{
		client:    client,
		model:     client.EmbeddingModel(modelName),
		modelName: modelName,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Embed は単一テキストの Embedding を生成する
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}
	if resp.Embedding == nil {
		return nil, fmt.Errorf("no embedding returned")
	}
	return e.post(resp.Embedding.Values), nil
}

// BatchEmbed はバッチで Embedding を生成する
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("no texts provided")
	}
	if len(texts) > MaxBatchSize {
		return nil, fmt.Errorf("batch size exceeds maximum of %d", MaxBatchSize)
	}

	batch := e.model.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	resp, err := e.model.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}

	embeddings := make([][]float32, 0, len(resp.Embeddings))
	for _, emb := range resp.Embeddings {
		if emb == nil {
			return nil, fmt.Errorf("no embedding returned")
		}
		embeddings = append(embeddings, e.post(emb.Values))
	}
	return embeddings, nil
}

func (e *Embedder) post(values []float32) []float32 {
	if e.normalize {
		return vector.Normalize(values)
	}
	return values
}

// ModelName はモデル名を返す
func (e *Embedder) ModelName() string {
	return e.modelName
}

// Close はクライアントを閉じる
func (e *Embedder) Close() error {
	return e.client.Close()
}

// インターフェース実装の確認
var (
	_ ingestion.Embedder = (*Embedder)(nil)
	_ search.Embedder    = (*Embedder)(nil)
)
