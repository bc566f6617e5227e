package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"

	"semantic-similarity/internal/embeddings"
)

// Cache stores embeddings of reference-side texts (reference answers and
// keywords) keyed by model and text.
type Cache interface {
	// GetEmbedding retrieves a cached vector by key.
	// Returns nil if not found.
	GetEmbedding(ctx context.Context, key string) (embeddings.Vector, error)

	// SetEmbedding stores a vector with TTL. A zero TTL never expires.
	SetEmbedding(ctx context.Context, key string, vec embeddings.Vector, ttl time.Duration) error

	// Close closes the cache connection
	Close() error
}

// Key builds the cache key for text embedded by model.
func Key(model, text string) string {
	return model + ":" + strconv.FormatUint(xxhash.Sum64String(text), 16)
}
