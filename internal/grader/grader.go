// Package grader scores a learner's answer against reference answers.
package grader

import (
	"context"
	"errors"
	"fmt"

	"semantic-similarity/internal/embeddings"
	"semantic-similarity/internal/script"
	"semantic-similarity/internal/scoring"
	"semantic-similarity/internal/translit"
)

// Service runs the scoring pipeline: validate, normalize script, embed,
// compare. It holds no per-request state and is safe for concurrent use.
type Service struct {
	queries    embeddings.Embedder
	references embeddings.Embedder
	translit   translit.Transliterator
	matcher    *scoring.KeywordMatcher
}

// New builds a Service. queries embeds user answers; references embeds
// reference answers and keywords and may be backed by a cache. Both may
// be the same embedder.
func New(queries, references embeddings.Embedder, tr translit.Transliterator, keywordThreshold float64) *Service {
	return &Service{
		queries:    queries,
		references: references,
		translit:   tr,
		matcher:    scoring.NewKeywordMatcher(references, keywordThreshold),
	}
}

// Normalize transliterates romanized text and passes anything else through.
// The second result reports whether text was classified as romanized.
func (s *Service) Normalize(text string) (string, bool) {
	if !script.IsRomanized(text) {
		return text, false
	}
	return s.translit.Transliterate(text), true
}

// Score validates req and computes its similarity scores. Errors wrapping
// ErrInvalidRequest are caller errors; any other error is an embedding
// failure and fatal for the request.
func (s *Service) Score(ctx context.Context, req Request) (Response, error) {
	if err := req.Validate(); err != nil {
		return Response{}, err
	}

	normalized, _ := s.Normalize(*req.UserAnswer)

	query, err := s.queries.Embed(ctx, normalized)
	if err != nil {
		return Response{}, fmt.Errorf("embed user answer: %w", err)
	}

	refs, err := s.references.EmbedBatch(ctx, req.ReferenceAnswers)
	if err != nil {
		return Response{}, fmt.Errorf("embed reference answers: %w", err)
	}
	if err := embeddings.CheckBatch(refs, len(req.ReferenceAnswers)); err != nil {
		return Response{}, fmt.Errorf("embed reference answers: %w", err)
	}

	semantic, err := scoring.MaxSimilarity(query, refs)
	if errors.Is(err, scoring.ErrNoReferences) {
		// Unreachable after validation; kept as a client error regardless.
		return Response{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	kw, err := s.matcher.Match(ctx, query, req.Keywords)
	if err != nil {
		return Response{}, err
	}

	return Response{
		SemanticSimilarity:     semantic,
		KeywordSimilarityScore: kw.Score,
		MatchedKeywords:        kw.Matched,
		NormalizedUserAnswer:   normalized,
	}, nil
}
