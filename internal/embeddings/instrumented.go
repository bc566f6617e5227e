package embeddings

import (
	"context"
	"time"

	"semantic-similarity/internal/metrics"
)

type instrumented struct {
	next     Embedder
	provider string
}

// Instrument records latency and failures of next under the provider label.
func Instrument(next Embedder, provider string) Embedder {
	return &instrumented{next: next, provider: provider}
}

func (i *instrumented) Embed(ctx context.Context, text string) (v Vector, err error) {
	defer func(start time.Time) { metrics.ObserveEmbedding(i.provider, "single", start, err) }(time.Now())
	return i.next.Embed(ctx, text)
}

func (i *instrumented) EmbedBatch(ctx context.Context, texts []string) (v []Vector, err error) {
	defer func(start time.Time) { metrics.ObserveEmbedding(i.provider, "batch", start, err) }(time.Now())
	return i.next.EmbedBatch(ctx, texts)
}
