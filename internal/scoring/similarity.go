// Package scoring turns embeddings into answer scores: cosine similarity
// against reference answers and threshold-based keyword matching.
package scoring

import (
	"errors"
	"math"

	"semantic-similarity/internal/embeddings"
)

// ErrNoReferences is returned when there is nothing to compare against.
var ErrNoReferences = errors.New("no reference vectors")

// Cosine returns dot(a,b) / (|a| * |b|). Vectors of different length or
// with zero norm have similarity 0.
func Cosine(a, b embeddings.Vector) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// MaxSimilarity returns the highest cosine similarity between query and
// any of refs.
func MaxSimilarity(query embeddings.Vector, refs []embeddings.Vector) (float64, error) {
	if len(refs) == 0 {
		return 0, ErrNoReferences
	}
	best := math.Inf(-1)
	for _, ref := range refs {
		if s := Cosine(query, ref); s > best {
			best = s
		}
	}
	return best, nil
}
