package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

const (
	// DefaultModelID is the sentence-transformers model served by TEI.
	DefaultModelID = "sentence-transformers/paraphrase-multilingual-mpnet-base-v2"
	// DefaultOpenAIModelID replaces DefaultModelID when EMBEDDING_PROVIDER=openai.
	DefaultOpenAIModelID = "text-embedding-3-small"
)

// Config holds runtime configuration for the similarity services.
type Config struct {
	// Server
	Port           int           `env:"PORT" envDefault:"8080"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat      string        `env:"LOG_FORMAT" envDefault:"json"` // "json" or "text"
	MaxBodyBytes   int64         `env:"MAX_BODY_BYTES" envDefault:"1048576"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"60s"`

	// Embeddings
	ModelID             string        `env:"MODEL_ID" envDefault:"sentence-transformers/paraphrase-multilingual-mpnet-base-v2"`
	EmbeddingProvider   string        `env:"EMBEDDING_PROVIDER" envDefault:"tei"` // "tei", "openai" or "hash" (offline)
	EmbeddingURL        string        `env:"EMBEDDING_URL" envDefault:"http://localhost:8081"`
	OpenAIKey           string        `env:"OPENAI_API_KEY"`
	EmbeddingTimeout    time.Duration `env:"EMBEDDING_TIMEOUT" envDefault:"30s"`
	EmbeddingDimensions int           `env:"EMBEDDING_DIMENSIONS" envDefault:"384"`
	BreakerMaxFailures  uint32        `env:"BREAKER_MAX_FAILURES" envDefault:"5"`
	BreakerTimeout      time.Duration `env:"BREAKER_TIMEOUT" envDefault:"30s"`

	// Scoring
	KeywordThreshold float64 `env:"KEYWORD_THRESHOLD" envDefault:"0.6"`

	// Cache
	CacheProvider string        `env:"CACHE_PROVIDER" envDefault:"none"` // "none", "redis" or "postgres"
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	DBURL         string        `env:"DB_URL"`
	CacheTTL      time.Duration `env:"CACHE_TTL" envDefault:"24h"`

	// Queue
	QueueURL     string `env:"QUEUE_URL" envDefault:"nats://localhost:4222"`
	QueueSubject string `env:"QUEUE_SUBJECT" envDefault:"similarity.score"`
	QueueGroup   string `env:"QUEUE_GROUP" envDefault:"similarity-workers"`
}

// Load reads configuration from environment variables with defaults.
// A value that does not parse is an error, never a silent zero.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse env: %w", err)
	}
	if cfg.EmbeddingProvider == "openai" && cfg.ModelID == DefaultModelID {
		cfg.ModelID = DefaultOpenAIModelID
	}
	return cfg, nil
}

// Validate reports configuration values the services cannot start with.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT: %d", c.Port)
	}
	if c.ModelID == "" {
		return fmt.Errorf("MODEL_ID is required")
	}
	if c.KeywordThreshold < -1 || c.KeywordThreshold > 1 {
		return fmt.Errorf("KEYWORD_THRESHOLD must be within [-1, 1], got %v", c.KeywordThreshold)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("MAX_BODY_BYTES must be positive")
	}
	switch c.EmbeddingProvider {
	case "tei", "openai":
	case "hash":
		if c.EmbeddingDimensions <= 0 {
			return fmt.Errorf("EMBEDDING_DIMENSIONS must be positive")
		}
	default:
		return fmt.Errorf("invalid EMBEDDING_PROVIDER: %s (valid options: tei, openai, hash)", c.EmbeddingProvider)
	}
	switch c.CacheProvider {
	case "none", "redis", "postgres":
	default:
		return fmt.Errorf("invalid CACHE_PROVIDER: %s (valid options: none, redis, postgres)", c.CacheProvider)
	}
	return nil
}
