package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"semantic-similarity/internal/embeddings"
	"semantic-similarity/internal/logger"
)

const testModel = "test-model"

func TestEmbedderServesHitsAndFillsMisses(t *testing.T) {
	c := new(MockCache)
	next := new(embeddings.MockEmbedder)
	ctx := context.Background()

	c.On("GetEmbedding", mock.Anything, Key(testModel, "नमस्ते")).Return(embeddings.Vector{1, 0}, nil).Once()
	c.On("GetEmbedding", mock.Anything, Key(testModel, "स्वागत")).Return(nil, nil).Once()
	c.On("GetEmbedding", mock.Anything, Key(testModel, "धन्यवाद")).Return(nil, nil).Once()

	next.On("EmbedBatch", mock.Anything, []string{"स्वागत", "धन्यवाद"}).
		Return([]embeddings.Vector{{0, 1}, {0.5, 0.5}}, nil).Once()

	c.On("SetEmbedding", mock.Anything, Key(testModel, "स्वागत"), embeddings.Vector{0, 1}, time.Hour).Return(nil).Once()
	c.On("SetEmbedding", mock.Anything, Key(testModel, "धन्यवाद"), embeddings.Vector{0.5, 0.5}, time.Hour).Return(nil).Once()

	e := NewEmbedder(next, c, testModel, time.Hour, time.Second, logger.Discard())
	vecs, err := e.EmbedBatch(ctx, []string{"नमस्ते", "स्वागत", "धन्यवाद", "स्वागत"})
	require.NoError(t, err)
	assert.Equal(t, []embeddings.Vector{{1, 0}, {0, 1}, {0.5, 0.5}, {0, 1}}, vecs)

	c.AssertExpectations(t)
	next.AssertExpectations(t)
}

func TestEmbedderAllHitsSkipBackend(t *testing.T) {
	c := new(MockCache)
	next := new(embeddings.MockEmbedder)

	c.On("GetEmbedding", mock.Anything, Key(testModel, "नमस्ते")).Return(embeddings.Vector{1, 0}, nil).Once()

	e := NewEmbedder(next, c, testModel, time.Hour, time.Second, logger.Discard())
	v, err := e.Embed(context.Background(), "नमस्ते")
	require.NoError(t, err)
	assert.Equal(t, embeddings.Vector{1, 0}, v)
	next.AssertNotCalled(t, "EmbedBatch", mock.Anything, mock.Anything)
}

func TestEmbedderToleratesCacheFailures(t *testing.T) {
	c := new(MockCache)
	next := new(embeddings.MockEmbedder)

	c.On("GetEmbedding", mock.Anything, mock.Anything).Return(nil, errors.New("redis down")).Once()
	c.On("SetEmbedding", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("redis down")).Once()
	next.On("EmbedBatch", mock.Anything, []string{"नमस्ते"}).Return([]embeddings.Vector{{1, 0}}, nil).Once()

	e := NewEmbedder(next, c, testModel, time.Hour, time.Second, logger.Discard())
	vecs, err := e.EmbedBatch(context.Background(), []string{"नमस्ते"})
	require.NoError(t, err)
	assert.Equal(t, []embeddings.Vector{{1, 0}}, vecs)
}

func TestEmbedderPropagatesBackendErrors(t *testing.T) {
	c := new(MockCache)
	next := new(embeddings.MockEmbedder)

	c.On("GetEmbedding", mock.Anything, mock.Anything).Return(nil, nil)
	next.On("EmbedBatch", mock.Anything, mock.Anything).Return(nil, errors.New("model crashed")).Once()

	e := NewEmbedder(next, c, testModel, time.Hour, time.Second, logger.Discard())
	_, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model crashed")
	c.AssertNotCalled(t, "SetEmbedding", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEmbedderRejectsShortBatch(t *testing.T) {
	c := new(MockCache)
	next := new(embeddings.MockEmbedder)

	c.On("GetEmbedding", mock.Anything, mock.Anything).Return(nil, nil)
	next.On("EmbedBatch", mock.Anything, mock.Anything).Return([]embeddings.Vector{{1}}, nil).Once()

	e := NewEmbedder(next, c, testModel, time.Hour, time.Second, logger.Discard())
	_, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, embeddings.ErrBatchSize)
}

// gatedEmbedder blocks every batch until release is closed or its ctx ends.
type gatedEmbedder struct {
	started   chan struct{}
	release   chan struct{}
	startOnce sync.Once
	calls     atomic.Int32
}

func newGatedEmbedder() *gatedEmbedder {
	return &gatedEmbedder{started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedEmbedder) Embed(ctx context.Context, text string) (embeddings.Vector, error) {
	vecs, err := g.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (g *gatedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]embeddings.Vector, error) {
	g.calls.Add(1)
	g.startOnce.Do(func() { close(g.started) })
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	out := make([]embeddings.Vector, len(texts))
	for i := range texts {
		out[i] = embeddings.Vector{1, float32(i)}
	}
	return out, nil
}

func TestEmbedderSharedCallSurvivesCallerCancellation(t *testing.T) {
	next := newGatedEmbedder()
	e := NewEmbedder(next, NewNoOpCache(), testModel, time.Hour, 5*time.Second, logger.Discard())
	texts := []string{"नमस्ते", "स्वागत"}

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := e.EmbedBatch(ctxA, texts)
		errA <- err
	}()
	<-next.started

	type result struct {
		vecs []embeddings.Vector
		err  error
	}
	resB := make(chan result, 1)
	go func() {
		vecs, err := e.EmbedBatch(context.Background(), texts)
		resB <- result{vecs, err}
	}()
	// Let the second caller join the in-flight call.
	time.Sleep(50 * time.Millisecond)

	cancelA()
	select {
	case err := <-errA:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(next.release)
	select {
	case res := <-resB:
		require.NoError(t, res.err)
		assert.Equal(t, []embeddings.Vector{{1, 0}, {1, 1}}, res.vecs)
	case <-time.After(2 * time.Second):
		t.Fatal("second caller did not return")
	}
	assert.Equal(t, int32(1), next.calls.Load())
}

func TestEmbedderSharedCallIsBoundedByTimeout(t *testing.T) {
	next := newGatedEmbedder()
	e := NewEmbedder(next, NewNoOpCache(), testModel, time.Hour, 20*time.Millisecond, logger.Discard())

	_, err := e.EmbedBatch(context.Background(), []string{"नमस्ते"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
