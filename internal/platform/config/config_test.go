package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "protocolo_sepse.pdf", cfg.Protocol.File)
	assert.Equal(t, 1000, cfg.Protocol.ChunkSize)
	assert.Equal(t, 200, cfg.Protocol.ChunkOverlap)
	assert.Equal(t, 3, cfg.Protocol.TopK)
	assert.Equal(t, "chromem", cfg.VectorStore.Backend)
	assert.Equal(t, "./chroma_db", cfg.VectorStore.Path)
	assert.InDelta(t, 0.7, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, 2048, cfg.LLM.MaxTokens)
	assert.Equal(t, 4096, cfg.LLM.ContextWindow)
	assert.Equal(t, "llama-3-8b.Q4_K_M.gguf", cfg.Model.Filename)
	assert.Equal(t, "./models", cfg.Model.Dir)
	assert.Equal(t, "main", cfg.Model.HFRevision)
	assert.Empty(t, cfg.Model.HFCacheDir)
	assert.Equal(t, 32, cfg.Embedding.BatchSize)
}

func TestLoad_EnvFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("RETRIEVER_TOP_K=5\nVECTOR_STORE_BACKEND=pgvector\nGOOGLE_API_KEY=abcdef123\n"), 0o644))

	// godotenv.Load は既存の環境変数を上書きしないため、前後で掃除する
	keys := []string{"RETRIEVER_TOP_K", "VECTOR_STORE_BACKEND", "GOOGLE_API_KEY", "GEMINI_API_KEY"}
	for _, k := range keys {
		os.Unsetenv(k)
	}
	t.Cleanup(func() {
		for _, k := range keys {
			os.Unsetenv(k)
		}
	})

	cfg, err := Load(envFile)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Protocol.TopK)
	assert.Equal(t, "pgvector", cfg.VectorStore.Backend)
	assert.Equal(t, "abcdef123", cfg.APIKey)
}

func TestLoad_GeminiKeyTakesPrecedence(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "google")
	t.Setenv("GEMINI_API_KEY", "gemini")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "gemini", cfg.APIKey)
}

func TestLoad_MissingEnvFileIsNotAnError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "unknown backend", key: "VECTOR_STORE_BACKEND", val: "faiss"},
		{name: "unknown embedder", key: "EMBEDDING_PROVIDER", val: "cohere"},
		{name: "unknown hub", key: "MODEL_HUB", val: "ftp"},
		{name: "max tokens exceed window", key: "LLM_MAX_TOKENS", val: "8192"},
		{name: "batch size above provider limit", key: "EMBEDDING_BATCH_SIZE", val: "101"},
		{name: "zero batch size", key: "EMBEDDING_BATCH_SIZE", val: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestLoad_BatchSizeAtProviderLimit(t *testing.T) {
	t.Setenv("EMBEDDING_BATCH_SIZE", "100")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Embedding.BatchSize)
}

func TestGetEnvAsInt_FallsBackOnGarbage(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "abc")
	assert.Equal(t, 1000, getEnvAsInt("CHUNK_SIZE", 1000))
}
