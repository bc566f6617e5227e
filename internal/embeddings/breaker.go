package embeddings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
)

// ErrUnavailable is returned while the breaker rejects calls.
var ErrUnavailable = errors.New("embedding backend unavailable")

type breakerEmbedder struct {
	next    Embedder
	breaker *gobreaker.CircuitBreaker
}

// WithBreaker stops calling next after maxFailures consecutive failures
// and tries it again once timeout has elapsed.
func WithBreaker(next Embedder, name string, maxFailures uint32, timeout time.Duration) Embedder {
	if maxFailures == 0 {
		maxFailures = 5
	}
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// Caller cancellations say nothing about backend health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}
	return &breakerEmbedder{next: next, breaker: gobreaker.NewCircuitBreaker(settings)}
}

func (b *breakerEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	v, err := b.breaker.Execute(func() (interface{}, error) {
		return b.next.Embed(ctx, text)
	})
	if err != nil {
		return nil, b.wrap(err)
	}
	return v.(Vector), nil
}

func (b *breakerEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]Vector, error) {
	v, err := b.breaker.Execute(func() (interface{}, error) {
		return b.next.EmbedBatch(ctx, texts)
	})
	if err != nil {
		return nil, b.wrap(err)
	}
	return v.([]Vector), nil
}

func (b *breakerEmbedder) wrap(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("breaker (%s): %w: %w", b.breaker.Name(), ErrUnavailable, err)
	}
	return err
}
