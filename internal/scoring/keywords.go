package scoring

import (
	"context"
	"fmt"

	"semantic-similarity/internal/embeddings"
)

// DefaultKeywordThreshold is the similarity a keyword must exceed to match.
const DefaultKeywordThreshold = 0.6

// KeywordResult is the outcome of matching keywords against an answer.
type KeywordResult struct {
	// Score is matched/total, 0 when there are no keywords.
	Score float64
	// Matched holds the original keyword strings in request order.
	Matched []string
}

// KeywordMatcher scores keywords by embedding similarity to an answer.
type KeywordMatcher struct {
	embedder  embeddings.Embedder
	threshold float64
}

// NewKeywordMatcher creates a matcher; a keyword matches when its
// similarity to the answer is strictly greater than threshold.
func NewKeywordMatcher(embedder embeddings.Embedder, threshold float64) *KeywordMatcher {
	return &KeywordMatcher{embedder: embedder, threshold: threshold}
}

// Threshold returns the configured match threshold.
func (m *KeywordMatcher) Threshold() float64 {
	return m.threshold
}

// Match embeds all keywords in one batch and compares each with query.
// An empty keyword list yields a zero score without calling the embedder.
func (m *KeywordMatcher) Match(ctx context.Context, query embeddings.Vector, keywords []string) (KeywordResult, error) {
	res := KeywordResult{Matched: []string{}}
	if len(keywords) == 0 {
		return res, nil
	}

	vecs, err := m.embedder.EmbedBatch(ctx, keywords)
	if err != nil {
		return KeywordResult{}, fmt.Errorf("embed keywords: %w", err)
	}
	if err := embeddings.CheckBatch(vecs, len(keywords)); err != nil {
		return KeywordResult{}, fmt.Errorf("embed keywords: %w", err)
	}

	for i, kw := range keywords {
		if Cosine(query, vecs[i]) > m.threshold {
			res.Matched = append(res.Matched, kw)
		}
	}
	res.Score = float64(len(res.Matched)) / float64(len(keywords))
	return res, nil
}
