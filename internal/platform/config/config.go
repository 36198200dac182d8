package config

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidConfig is returned by Validate for unusable settings.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config is the full process configuration, read once at startup.
type Config struct {
	Port       int
	LogLevel   string
	LogFormat  string
	APIVersion string

	DatabaseURL    string
	DBMaxOpenConns int
	StartupRetries int

	VectorStore      string // "qdrant" or "memory"
	QdrantURL        string
	QdrantAPIKey     string
	QdrantCollection string
	RetrievalTopK    int
	RetrievalTimeout time.Duration

	EmbeddingBackend   string // "openai" or "hash"
	EmbeddingURL       string
	EmbeddingAPIKey    string
	EmbeddingModel     string
	EmbeddingBatchSize int
	EmbeddingTimeout   time.Duration

	RedisURL          string
	EmbeddingCacheTTL time.Duration

	GenerativeRuntime  string // "ollama", "openai" or "none"
	GenerativeURL      string
	GenerativeAPIKey   string
	Model              string
	QuantizedModel     string
	OffloadModel       string
	MaxInputTokens     int
	MaxNewTokens       int
	Temperature        float64
	TopP               float64
	GenerationTimeout  time.Duration
	GenerationParallel int

	TelegramBotToken string
	AlertChatID      int64
}

// Load reads .env (if present) and the environment into a Config.
func Load() (*Config, error) {
	if err := LoadEnv(); err != nil {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	cfg := &Config{
		Port:       GetInt("PORT", 7860),
		LogLevel:   Get("LOG_LEVEL", "INFO"),
		LogFormat:  Get("LOG_FORMAT", "text"),
		APIVersion: Get("API_VERSION", "v1"),

		DatabaseURL:    Get("DATABASE_URL", "sqlite3://afiya.db"),
		DBMaxOpenConns: GetInt("DB_MAX_OPEN_CONNS", 10),
		StartupRetries: GetInt("STARTUP_RETRIES", 5),

		VectorStore:      Get("VECTOR_STORE", "qdrant"),
		QdrantURL:        Get("QDRANT_URL", "http://localhost:6333"),
		QdrantAPIKey:     Get("QDRANT_API_KEY", ""),
		QdrantCollection: Get("QDRANT_COLLECTION", "medical_knowledge"),
		RetrievalTopK:    GetInt("RETRIEVAL_TOP_K", 5),
		RetrievalTimeout: GetDuration("RETRIEVAL_TIMEOUT", 10*time.Second),

		EmbeddingBackend:   Get("EMBEDDING_BACKEND", "openai"),
		EmbeddingURL:       Get("EMBEDDING_URL", "http://localhost:8080/v1"),
		EmbeddingAPIKey:    Get("EMBEDDING_API_KEY", ""),
		EmbeddingModel:     Get("EMBEDDING_MODEL", "sentence-transformers/paraphrase-multilingual-MiniLM-L12-v2"),
		EmbeddingBatchSize: GetInt("EMBEDDING_BATCH_SIZE", 32),
		EmbeddingTimeout:   GetDuration("EMBEDDING_TIMEOUT", 10*time.Second),

		RedisURL:          Get("REDIS_URL", ""),
		EmbeddingCacheTTL: GetDuration("EMBEDDING_CACHE_TTL", 24*time.Hour),

		GenerativeRuntime:  Get("GENERATIVE_RUNTIME", "ollama"),
		GenerativeURL:      Get("GENERATIVE_URL", "http://localhost:11434"),
		GenerativeAPIKey:   Get("GENERATIVE_API_KEY", ""),
		Model:              Get("NATLAS_MODEL", "ncair1/n-atlas:fp16"),
		QuantizedModel:     Get("NATLAS_QUANTIZED_MODEL", "ncair1/n-atlas:q4_K_M"),
		OffloadModel:       Get("NATLAS_OFFLOAD_MODEL", ""),
		MaxInputTokens:     GetInt("NATLAS_MAX_LENGTH", 512),
		MaxNewTokens:       GetInt("NATLAS_MAX_NEW_TOKENS", 256),
		Temperature:        GetFloat("NATLAS_TEMPERATURE", 0.7),
		TopP:               GetFloat("NATLAS_TOP_P", 0.9),
		GenerationTimeout:  GetDuration("GENERATION_TIMEOUT", 60*time.Second),
		GenerationParallel: GetInt("GENERATION_MAX_CONCURRENCY", 1),

		TelegramBotToken: Get("TELEGRAM_BOT_TOKEN", ""),
		AlertChatID:      GetInt64("ALERT_TELEGRAM_CHAT_ID", 0),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail late.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	}
	switch c.VectorStore {
	case "qdrant", "memory":
	default:
		return fmt.Errorf("%w: unknown VECTOR_STORE %q", ErrInvalidConfig, c.VectorStore)
	}
	switch c.EmbeddingBackend {
	case "openai", "hash":
	default:
		return fmt.Errorf("%w: unknown EMBEDDING_BACKEND %q", ErrInvalidConfig, c.EmbeddingBackend)
	}
	switch c.GenerativeRuntime {
	case "ollama", "openai", "none":
	default:
		return fmt.Errorf("%w: unknown GENERATIVE_RUNTIME %q", ErrInvalidConfig, c.GenerativeRuntime)
	}
	if c.RetrievalTopK <= 0 {
		return fmt.Errorf("%w: RETRIEVAL_TOP_K must be positive", ErrInvalidConfig)
	}
	if c.EmbeddingBatchSize <= 0 {
		return fmt.Errorf("%w: EMBEDDING_BATCH_SIZE must be positive", ErrInvalidConfig)
	}
	if c.MaxInputTokens <= 0 || c.MaxNewTokens <= 0 {
		return fmt.Errorf("%w: token limits must be positive", ErrInvalidConfig)
	}
	if c.GenerationParallel < 1 {
		return fmt.Errorf("%w: GENERATION_MAX_CONCURRENCY must be at least 1", ErrInvalidConfig)
	}
	return nil
}

// AlertsEnabled reports whether emergency alerts can be delivered.
func (c *Config) AlertsEnabled() bool {
	return c.TelegramBotToken != "" && c.AlertChatID != 0
}
