package grader

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidRequest marks caller contract violations. Errors wrapping it
// are client errors and are never retried.
var ErrInvalidRequest = errors.New("invalid request")

// Request asks for the similarity of UserAnswer to ReferenceAnswers.
type Request struct {
	// ReferenceAnswers are expected in native script.
	ReferenceAnswers []string `json:"reference_answers" validate:"required,min=1"`
	// UserAnswer may be romanized or native. A pointer so that an empty
	// answer is distinguishable from a missing one.
	UserAnswer *string  `json:"user_answer" validate:"required"`
	Keywords   []string `json:"keywords"`
}

// Response is the scoring outcome. All fields are always populated.
type Response struct {
	SemanticSimilarity     float64  `json:"semantic_similarity"`
	KeywordSimilarityScore float64  `json:"keyword_similarity_score"`
	MatchedKeywords        []string `json:"matched_keywords"`
	NormalizedUserAnswer   string   `json:"normalized_user_answer"`
}

// ValidationError lists every problem found in a request.
type ValidationError struct {
	Details []string
}

func (e *ValidationError) Error() string {
	return "invalid request: " + strings.Join(e.Details, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidRequest }

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the request shape before any model work.
func (r Request) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	details := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, describe(fe))
	}
	return &ValidationError{Details: details}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must contain at least %s item(s)", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %q validation", fe.Field(), fe.Tag())
	}
}
