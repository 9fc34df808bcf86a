package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// APIKey はGemini APIキー（GEMINI_API_KEY、なければ GOOGLE_API_KEY）
	APIKey string

	// Protocol はインデックス対象のプロトコル文書設定
	Protocol ProtocolConfig

	// VectorStore はベクトルストア設定
	VectorStore VectorStoreConfig

	// Embedding はEmbedding設定
	Embedding EmbeddingConfig

	// LLM はローカルLLM設定
	LLM LLMConfig

	// Model はモデルファイルの取得設定
	Model ModelConfig

	// Database設定（pgvectorバックエンド用）
	Database DatabaseConfig

	// Log はロガー設定
	Log LogConfig
}

// ProtocolConfig はプロトコル文書とチャンク分割の設定
type ProtocolConfig struct {
	File         string
	ChunkSize    int
	ChunkOverlap int
	TopK         int
}

// VectorStoreConfig はベクトルストアの設定
type VectorStoreConfig struct {
	Backend    string // "chromem" or "pgvector"
	Path       string
	Collection string
	Compress   bool
}

// EmbeddingConfig はEmbeddingプロバイダ設定
type EmbeddingConfig struct {
	Provider    string // "openai" or "gemini"
	BaseURL     string
	APIKey      string
	Model       string
	GeminiModel string
	Dimension   int
	Normalize   bool
	BatchSize   int
	Concurrency int
	RateLimit   float64 // 1秒あたりのリクエスト数
}

// LLMConfig は生成用LLMの設定
type LLMConfig struct {
	BaseURL        string
	APIKey         string
	Temperature    float64
	MaxTokens      int
	ContextWindow  int
	TimeoutSeconds int
}

// ModelConfig は量子化モデルファイルの取得設定
type ModelConfig struct {
	RepoID   string
	Filename string
	Dir      string
	Hub      string // "huggingface" or "s3"

	HFToken    string
	HFRevision string
	HFCacheDir string // 空なら <Dir>/.hf-cache

	S3 S3Config
}

// S3Config はS3互換ミラーの接続設定
type S3Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// DatabaseConfig はデータベース接続設定
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// LogConfig はロガー設定
type LogConfig struct {
	Level  string
	Format string
}

// Load は環境変数または.envファイルから設定を読み込みます
func Load(envFilePath string) (*Config, error) {
	// .envファイルが存在する場合は読み込む
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		APIKey: getEnv("GEMINI_API_KEY", getEnv("GOOGLE_API_KEY", "")),
		Protocol: ProtocolConfig{
			File:         getEnv("PROTOCOL_FILE", "protocolo_sepse.pdf"),
			ChunkSize:    getEnvAsInt("CHUNK_SIZE", 1000),
			ChunkOverlap: getEnvAsInt("CHUNK_OVERLAP", 200),
			TopK:         getEnvAsInt("RETRIEVER_TOP_K", 3),
		},
		VectorStore: VectorStoreConfig{
			Backend:    strings.ToLower(getEnv("VECTOR_STORE_BACKEND", "chromem")),
			Path:       getEnv("VECTOR_STORE_PATH", "./chroma_db"),
			Collection: getEnv("VECTOR_STORE_COLLECTION", "protocols"),
			Compress:   getEnvAsBool("VECTOR_STORE_COMPRESS", false),
		},
		Embedding: EmbeddingConfig{
			Provider:    strings.ToLower(getEnv("EMBEDDING_PROVIDER", "openai")),
			BaseURL:     getEnv("EMBEDDING_BASE_URL", "http://localhost:11434/v1"),
			APIKey:      getEnv("EMBEDDING_API_KEY", ""),
			Model:       getEnv("EMBEDDING_MODEL", "all-minilm"),
			GeminiModel: getEnv("GEMINI_EMBEDDING_MODEL", "text-embedding-004"),
			Dimension:   getEnvAsInt("EMBEDDING_DIMENSION", 0),
			Normalize:   getEnvAsBool("EMBEDDING_NORMALIZE", true),
			BatchSize:   getEnvAsInt("EMBEDDING_BATCH_SIZE", 32),
			Concurrency: getEnvAsInt("EMBEDDING_CONCURRENCY", 1),
			RateLimit:   getEnvAsFloat("EMBEDDING_RATE_LIMIT", 10),
		},
		LLM: LLMConfig{
			BaseURL:        getEnv("LLM_BASE_URL", "http://localhost:8080/v1"),
			APIKey:         getEnv("LLM_API_KEY", ""),
			Temperature:    getEnvAsFloat("LLM_TEMPERATURE", 0.7),
			MaxTokens:      getEnvAsInt("LLM_MAX_TOKENS", 2048),
			ContextWindow:  getEnvAsInt("LLM_CONTEXT_WINDOW", 4096),
			TimeoutSeconds: getEnvAsInt("LLM_TIMEOUT_SECONDS", 300),
		},
		Model: ModelConfig{
			RepoID:     getEnv("MODEL_REPO_ID", "amandanespoli/llama-3-8b-bnb-4bit-perguntas-respostas-medicina"),
			Filename:   getEnv("MODEL_FILENAME", "llama-3-8b.Q4_K_M.gguf"),
			Dir:        getEnv("MODELS_DIR", "./models"),
			Hub:        strings.ToLower(getEnv("MODEL_HUB", "huggingface")),
			HFToken:    getEnv("HF_TOKEN", ""),
			HFRevision: getEnv("HF_REVISION", "main"),
			HFCacheDir: getEnv("HF_CACHE_DIR", ""),
			S3: S3Config{
				Endpoint:  getEnv("MODEL_S3_ENDPOINT", ""),
				Bucket:    getEnv("MODEL_S3_BUCKET", ""),
				AccessKey: getEnv("MODEL_S3_ACCESS_KEY", ""),
				SecretKey: getEnv("MODEL_S3_SECRET_KEY", ""),
				UseSSL:    getEnvAsBool("MODEL_S3_USE_SSL", true),
			},
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "protocolrag"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "protocolrag"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// maxEmbeddingBatchSize は OpenAI / Gemini の1リクエストあたりの入力数上限
const maxEmbeddingBatchSize = 100

// Validate は設定値の組み合わせを検証します
func (c *Config) Validate() error {
	switch c.VectorStore.Backend {
	case "chromem", "pgvector":
	default:
		return fmt.Errorf("unknown vector store backend: %s", c.VectorStore.Backend)
	}
	switch c.Embedding.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("unknown embedding provider: %s", c.Embedding.Provider)
	}
	switch c.Model.Hub {
	case "huggingface", "s3":
	default:
		return fmt.Errorf("unknown model hub: %s", c.Model.Hub)
	}
	if c.Embedding.BatchSize <= 0 || c.Embedding.BatchSize > maxEmbeddingBatchSize {
		return fmt.Errorf("EMBEDDING_BATCH_SIZE must be in [1, %d]: %d", maxEmbeddingBatchSize, c.Embedding.BatchSize)
	}
	if c.Protocol.TopK <= 0 {
		return fmt.Errorf("RETRIEVER_TOP_K must be positive: %d", c.Protocol.TopK)
	}
	if c.LLM.MaxTokens >= c.LLM.ContextWindow {
		return fmt.Errorf("LLM_MAX_TOKENS (%d) must be smaller than LLM_CONTEXT_WINDOW (%d)", c.LLM.MaxTokens, c.LLM.ContextWindow)
	}
	return nil
}

// LogAPIKeyStatus はAPIキーの読み込み状態をログに出力します
// キーが未設定でもここではエラーにしない（実際に必要になった箇所で失敗する）
func (c *Config) LogAPIKeyStatus(logger *slog.Logger) {
	if c.APIKey == "" {
		logger.Warn("GEMINI_API_KEY is not set")
		return
	}
	prefix := c.APIKey
	if len(prefix) > 5 {
		prefix = prefix[:5]
	}
	logger.Debug("api key loaded", "prefix", prefix)
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得します
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat は環境変数を浮動小数点数として取得します
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool は環境変数を真偽値として取得します
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
