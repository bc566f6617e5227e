package embeddings

import (
	"context"
	"errors"
	"fmt"
)

// Vector is a simple float32 slice wrapper.
type Vector []float32

// ErrBatchSize is returned when a backend answers a batch with the wrong
// number of vectors.
var ErrBatchSize = errors.New("embedding batch size mismatch")

// Embedder maps text to vectors. Implementations are shared by all requests
// and must be safe for concurrent use. EmbedBatch preserves input order.
type Embedder interface {
	Embed(ctx context.Context, text string) (Vector, error)
	EmbedBatch(ctx context.Context, texts []string) ([]Vector, error)
}

// CheckBatch verifies that a backend returned one vector per input.
func CheckBatch(vecs []Vector, want int) error {
	if len(vecs) != want {
		return fmt.Errorf("%w: got %d vectors for %d texts", ErrBatchSize, len(vecs), want)
	}
	return nil
}

// embedOne implements Embed on top of EmbedBatch.
func embedOne(ctx context.Context, e Embedder, text string) (Vector, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if err := CheckBatch(vecs, 1); err != nil {
		return nil, err
	}
	return vecs[0], nil
}
