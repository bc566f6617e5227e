package embeddings

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openai/openai-go/v3/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func norm(v Vector) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func TestCheckBatch(t *testing.T) {
	assert.NoError(t, CheckBatch([]Vector{{1}, {2}}, 2))
	assert.ErrorIs(t, CheckBatch([]Vector{{1}}, 2), ErrBatchSize)
}

func TestHashEmbedder(t *testing.T) {
	e := NewHashEmbedder(64)
	ctx := context.Background()

	a, err := e.Embed(ctx, "नमस्ते आपका स्वागत है")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "नमस्ते   आपका स्वागत है")
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.InDelta(t, 1.0, norm(a), 1e-5)
	assert.Equal(t, a, b, "whitespace runs should not change the vector")

	empty, err := e.Embed(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, norm(empty))

	batch, err := e.EmbedBatch(ctx, []string{"नमस्ते आपका स्वागत है", ""})
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, a, batch[0])
}

func TestTEIEmbedder(t *testing.T) {
	var got teiEmbedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		out := make([][]float32, len(got.Inputs))
		for i := range got.Inputs {
			out[i] = []float32{float32(i), 1}
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
	defer srv.Close()

	e, err := NewTEIEmbedder(srv.URL+"/", "test-model", time.Second)
	require.NoError(t, err)

	vecs, err := e.EmbedBatch(context.Background(), []string{"नमस्ते", "स्वागत"})
	require.NoError(t, err)
	assert.Equal(t, []string{"नमस्ते", "स्वागत"}, got.Inputs)
	assert.True(t, got.Truncate)
	assert.Equal(t, []Vector{{0, 1}, {1, 1}}, vecs)

	v, err := e.Embed(context.Background(), "नमस्ते")
	require.NoError(t, err)
	assert.Equal(t, Vector{0, 1}, v)
}

func TestTEIEmbedderErrors(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model overloaded", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		e, err := NewTEIEmbedder(srv.URL, "test-model", time.Second)
		require.NoError(t, err)
		_, err = e.EmbedBatch(context.Background(), []string{"x"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "model overloaded")
	})

	t.Run("short batch", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[[1,2]]`))
		}))
		defer srv.Close()

		e, err := NewTEIEmbedder(srv.URL, "test-model", time.Second)
		require.NoError(t, err)
		_, err = e.EmbedBatch(context.Background(), []string{"x", "y"})
		assert.ErrorIs(t, err, ErrBatchSize)
	})

	t.Run("missing url", func(t *testing.T) {
		_, err := NewTEIEmbedder("", "m", time.Second)
		assert.Error(t, err)
	})
}

func TestOpenAIEmbedderRestoresOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"object": "list",
			"model": "text-embedding-3-small",
			"data": [
				{"object": "embedding", "index": 1, "embedding": [0, 1]},
				{"object": "embedding", "index": 0, "embedding": [1, 0]}
			],
			"usage": {"prompt_tokens": 2, "total_tokens": 2}
		}`))
	}))
	defer srv.Close()

	e, err := NewOpenAIEmbedder("test-key", "text-embedding-3-small", time.Second,
		option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	require.NoError(t, err)

	vecs, err := e.EmbedBatch(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, []Vector{{1, 0}, {0, 1}}, vecs)
}

func TestNewOpenAIEmbedderRequiresKey(t *testing.T) {
	_, err := NewOpenAIEmbedder("", "", 0)
	assert.Error(t, err)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	inner := new(MockEmbedder)
	inner.On("EmbedBatch", mock.Anything, []string{"x"}).Return(nil, errors.New("backend down")).Times(2)

	e := WithBreaker(inner, "test", 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := e.EmbedBatch(ctx, []string{"x"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrUnavailable)
	}

	_, err := e.EmbedBatch(ctx, []string{"x"})
	assert.ErrorIs(t, err, ErrUnavailable)
	inner.AssertExpectations(t)
}

func TestBreakerPassesThroughSuccess(t *testing.T) {
	inner := new(MockEmbedder)
	inner.On("Embed", mock.Anything, "x").Return(Vector{1}, nil).Once()

	e := WithBreaker(inner, "test", 1, time.Minute)
	v, err := e.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, Vector{1}, v)
}

type countingEmbedder struct {
	calls atomic.Int32
	err   error
}

func (c *countingEmbedder) Embed(context.Context, string) (Vector, error) {
	c.calls.Add(1)
	return Vector{1}, c.err
}

func (c *countingEmbedder) EmbedBatch(_ context.Context, texts []string) ([]Vector, error) {
	c.calls.Add(1)
	return make([]Vector, len(texts)), c.err
}

func TestInstrumentDelegates(t *testing.T) {
	inner := &countingEmbedder{}
	e := Instrument(inner, "test")

	_, err := e.Embed(context.Background(), "x")
	require.NoError(t, err)
	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)
	assert.Equal(t, int32(2), inner.calls.Load())

	inner.err = errors.New("boom")
	_, err = e.EmbedBatch(context.Background(), []string{"a"})
	assert.Error(t, err)
}
