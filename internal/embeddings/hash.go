package embeddings

import (
	"context"
	"math"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// HashEmbedder is a deterministic offline embedder: character trigrams are
// hashed into a fixed number of buckets and the result is L2-normalized.
// It captures surface overlap only, which is enough for local runs and
// tests without a model server.
type HashEmbedder struct {
	dim int
}

// NewHashEmbedder creates a hash embedder producing dim-sized vectors.
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = 384
	}
	return &HashEmbedder{dim: dim}
}

func (e *HashEmbedder) Embed(_ context.Context, text string) (Vector, error) {
	return e.vector(text), nil
}

func (e *HashEmbedder) EmbedBatch(_ context.Context, texts []string) ([]Vector, error) {
	out := make([]Vector, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *HashEmbedder) vector(text string) Vector {
	vec := make(Vector, e.dim)
	normalized := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	if normalized == "" {
		return vec
	}
	runes := []rune(" " + normalized + " ")
	for i := 0; i+3 <= len(runes); i++ {
		h := xxhash.Sum64String(string(runes[i : i+3]))
		sign := float32(1)
		if h&(1<<63) != 0 {
			sign = -1
		}
		vec[h%uint64(e.dim)] += sign
	}

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}
