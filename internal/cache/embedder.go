package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"semantic-similarity/internal/embeddings"
	"semantic-similarity/internal/metrics"
)

// Embedder serves embeddings from a Cache and fills misses from the next
// embedder with a single batch call. Cache failures never fail a request:
// read errors count as misses and write errors are only logged.
type Embedder struct {
	next    embeddings.Embedder
	cache   Cache
	model   string
	ttl     time.Duration
	timeout time.Duration
	log     *slog.Logger
	group   singleflight.Group
}

// NewEmbedder wraps next with cache lookups for vectors of model. timeout
// bounds a shared backend call; zero leaves it to the backend.
func NewEmbedder(next embeddings.Embedder, c Cache, model string, ttl, timeout time.Duration, log *slog.Logger) *Embedder {
	return &Embedder{next: next, cache: c, model: model, ttl: ttl, timeout: timeout, log: log}
}

func (e *Embedder) Embed(ctx context.Context, text string) (embeddings.Vector, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([]embeddings.Vector, error) {
	out := make([]embeddings.Vector, len(texts))

	// Unique missing texts in first-seen order, and where each one goes.
	var missTexts, missKeys []string
	missAt := make(map[string][]int)

	for i, text := range texts {
		key := Key(e.model, text)
		if idx, ok := missAt[key]; ok {
			missAt[key] = append(idx, i)
			continue
		}
		vec, err := e.cache.GetEmbedding(ctx, key)
		switch {
		case err != nil:
			metrics.CacheLookups.WithLabelValues("error").Inc()
			e.log.Warn("embedding cache read failed", "err", err)
		case vec != nil:
			metrics.CacheLookups.WithLabelValues("hit").Inc()
			out[i] = vec
			continue
		default:
			metrics.CacheLookups.WithLabelValues("miss").Inc()
		}
		missAt[key] = []int{i}
		missTexts = append(missTexts, text)
		missKeys = append(missKeys, key)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	// Identical concurrent miss sets (many learners answering the same
	// exercise) share one backend call. The call is detached from any one
	// caller; each caller still stops waiting when its own ctx is done.
	ch := e.group.DoChan(strings.Join(missKeys, ","), func() (interface{}, error) {
		return e.fill(context.WithoutCancel(ctx), missTexts, missKeys)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("embed cache misses: %w", ctx.Err())
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, fmt.Errorf("embed cache misses: %w", res.Err)
	}

	vecs := res.Val.([]embeddings.Vector)
	for i, key := range missKeys {
		for _, idx := range missAt[key] {
			out[idx] = vecs[i]
		}
	}
	return out, nil
}

func (e *Embedder) fill(ctx context.Context, texts, keys []string) ([]embeddings.Vector, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	vecs, err := e.next.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if err := embeddings.CheckBatch(vecs, len(texts)); err != nil {
		return nil, err
	}
	for i, key := range keys {
		if err := e.cache.SetEmbedding(ctx, key, vecs[i], e.ttl); err != nil {
			e.log.Warn("embedding cache write failed", "err", err)
		}
	}
	return vecs, nil
}
