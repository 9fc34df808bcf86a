package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEmbedderOptionsOverrideDefaults(t *testing.T) {
	embedder := NewEmbedder("dummy-key",
		WithEmbeddingModel("custom-model"),
		WithEmbeddingDimension(42),
	)

	assert.Equal(t, "custom-model", embedder.ModelName())
	assert.Equal(t, 42, embedder.Dimension())
}

func newEmbeddingServer(t *testing.T, gotInputs *[]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		var inputs []string
		switch v := body["input"].(type) {
		case string:
			inputs = []string{v}
		case []any:
			for _, s := range v {
				inputs = append(inputs, s.(string))
			}
		}
		*gotInputs = inputs

		// 逆順で返しても入力順に並ぶことを確認する
		data := make([]map[string]any, 0, len(inputs))
		for i := len(inputs) - 1; i >= 0; i-- {
			data = append(data, map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": []float64{3, 4 * float64(i+1)},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  body["model"],
			"data":   data,
			"usage":  map[string]any{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
}

func TestEmbedder_BatchEmbedAgainstCompatibleServer(t *testing.T) {
	var inputs []string
	srv := newEmbeddingServer(t, &inputs)
	defer srv.Close()

	embedder := NewEmbedder("local", WithEmbeddingBaseURL(srv.URL), WithEmbeddingModel("all-minilm"))
	vectors, err := embedder.BatchEmbed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, inputs)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{3, 4}, vectors[0])
	assert.Equal(t, []float32{3, 8}, vectors[1])
}

func TestEmbedder_Normalize(t *testing.T) {
	var inputs []string
	srv := newEmbeddingServer(t, &inputs)
	defer srv.Close()

	embedder := NewEmbedder("local", WithEmbeddingBaseURL(srv.URL), WithNormalize(true))
	vec, err := embedder.Embed(context.Background(), "sepse")
	require.NoError(t, err)

	assert.Equal(t, []string{"sepse"}, inputs)
	assert.InDelta(t, 0.6, vec[0], 1e-6)
	assert.InDelta(t, 0.8, vec[1], 1e-6)
}

func TestEmbedder_BatchLimits(t *testing.T) {
	embedder := NewEmbedder("dummy-key")

	_, err := embedder.BatchEmbed(context.Background(), nil)
	assert.Error(t, err)

	_, err = embedder.BatchEmbed(context.Background(), make([]string, MaxBatchSize+1))
	assert.Error(t, err)
}
