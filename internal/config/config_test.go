package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	// Save original env and restore after test
	originalEnv := os.Environ()
	defer func() {
		os.Clearenv()
		for _, env := range originalEnv {
			for i, c := range env {
				if c == '=' {
					os.Setenv(env[:i], env[i+1:])
					break
				}
			}
		}
	}()

	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name     string
		got      interface{}
		expected interface{}
	}{
		{"Port", cfg.Port, 8080},
		{"LogLevel", cfg.LogLevel, "info"},
		{"LogFormat", cfg.LogFormat, "json"},
		{"ModelID", cfg.ModelID, "sentence-transformers/paraphrase-multilingual-mpnet-base-v2"},
		{"EmbeddingProvider", cfg.EmbeddingProvider, "tei"},
		{"EmbeddingTimeout", cfg.EmbeddingTimeout, 30 * time.Second},
		{"KeywordThreshold", cfg.KeywordThreshold, 0.6},
		{"CacheProvider", cfg.CacheProvider, "none"},
		{"CacheTTL", cfg.CacheTTL, 24 * time.Hour},
		{"QueueSubject", cfg.QueueSubject, "similarity.score"},
		{"MaxBodyBytes", cfg.MaxBodyBytes, int64(1 << 20)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("expected %s=%v, got %v", tt.name, tt.expected, tt.got)
			}
		})
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("MODEL_ID", "sentence-transformers/distiluse-base-multilingual-cased-v2")
	t.Setenv("KEYWORD_THRESHOLD", "0.75")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.LogLevel)
	}
	if cfg.ModelID != "sentence-transformers/distiluse-base-multilingual-cased-v2" {
		t.Errorf("unexpected model id %s", cfg.ModelID)
	}
	if cfg.KeywordThreshold != 0.75 {
		t.Errorf("expected threshold 0.75, got %v", cfg.KeywordThreshold)
	}
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"KEYWORD_THRESHOLD", "0,6"},
		{"PORT", "eighty"},
		{"CACHE_TTL", "1 day"},
		{"BREAKER_MAX_FAILURES", "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestLoadOpenAIModelID(t *testing.T) {
	t.Run("default model id is replaced", func(t *testing.T) {
		t.Setenv("EMBEDDING_PROVIDER", "openai")
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.ModelID != DefaultOpenAIModelID {
			t.Errorf("expected %s, got %s", DefaultOpenAIModelID, cfg.ModelID)
		}
	})

	t.Run("explicit model id is kept", func(t *testing.T) {
		t.Setenv("EMBEDDING_PROVIDER", "openai")
		t.Setenv("MODEL_ID", "text-embedding-3-large")
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.ModelID != "text-embedding-3-large" {
			t.Errorf("expected explicit model id, got %s", cfg.ModelID)
		}
	})

	t.Run("tei keeps the default", func(t *testing.T) {
		t.Setenv("EMBEDDING_PROVIDER", "tei")
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.ModelID != DefaultModelID {
			t.Errorf("expected %s, got %s", DefaultModelID, cfg.ModelID)
		}
	})
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Port:                8080,
			ModelID:             "m",
			EmbeddingProvider:   "hash",
			EmbeddingDimensions: 16,
			KeywordThreshold:    0.6,
			MaxBodyBytes:        1024,
			CacheProvider:       "none",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"bad port", func(c *Config) { c.Port = 0 }, true},
		{"empty model", func(c *Config) { c.ModelID = "" }, true},
		{"threshold above one", func(c *Config) { c.KeywordThreshold = 1.5 }, true},
		{"unknown provider", func(c *Config) { c.EmbeddingProvider = "bert" }, true},
		{"hash without dimensions", func(c *Config) { c.EmbeddingDimensions = 0 }, true},
		{"unknown cache", func(c *Config) { c.CacheProvider = "memcached" }, true},
		{"redis cache", func(c *Config) { c.CacheProvider = "redis" }, false},
		{"zero body limit", func(c *Config) { c.MaxBodyBytes = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
