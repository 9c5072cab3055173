package retrieval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/planqa/planqa/pkg/config"
)

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int     { return 2 }
func (f *fakeEmbedder) ModelName() string  { return "fake" }
func (f *fakeEmbedder) Close() error       { return nil }

type fakeStore struct {
	results   []Result
	errs      []error
	calls     int
	lastTopK  int
	exists    bool
}

func (f *fakeStore) Search(ctx context.Context, vector []float32, topK int) ([]Result, error) {
	f.calls++
	f.lastTopK = topK
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.results, nil
}

func (f *fakeStore) Upsert(ctx context.Context, chunks []Chunk, vectors [][]float32) error {
	return nil
}
func (f *fakeStore) EnsureCollection(ctx context.Context, dimension int) error   { return nil }
func (f *fakeStore) RecreateCollection(ctx context.Context, dimension int) error { return nil }
func (f *fakeStore) CollectionExists(ctx context.Context) (bool, error)          { return f.exists, nil }
func (f *fakeStore) Sample(ctx context.Context, limit int) ([]Chunk, error)      { return nil, nil }
func (f *fakeStore) Count(ctx context.Context) (uint64, error)                   { return 0, nil }
func (f *fakeStore) Close() error                                                { return nil }

func newTestEngine(store Store) *Engine {
	return NewEngine(store, &fakeEmbedder{}, config.RetrievalConfig{}, nil)
}

func TestClampTopK(t *testing.T) {
	e := newTestEngine(&fakeStore{})

	assert.Equal(t, 5, e.ClampTopK(0))
	assert.Equal(t, 1, e.ClampTopK(-3))
	assert.Equal(t, 20, e.ClampTopK(100))
	assert.Equal(t, 7, e.ClampTopK(7))
}

func TestRetrieve_ReturnsScoredResults(t *testing.T) {
	store := &fakeStore{results: []Result{
		{Document: "part_a.pdf", Snippet: "walls", Score: 0.91},
		{Document: "part_b.pdf", Snippet: "roofs", Score: 0.85},
	}}
	e := newTestEngine(store)

	results, err := e.Retrieve(context.Background(), "wall thickness", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "part_a.pdf", results[0].Document)
	assert.Equal(t, 2, store.lastTopK)
}

func TestRetrieve_BelowThresholdIsMiss(t *testing.T) {
	store := &fakeStore{results: []Result{
		{Document: "part_a.pdf", Score: 0.42},
		{Document: "part_b.pdf", Score: 0.40},
	}}
	e := newTestEngine(store)

	results, err := e.Retrieve(context.Background(), "unrelated question", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRetrieve_EmptyHitsIsMiss(t *testing.T) {
	e := newTestEngine(&fakeStore{})

	results, err := e.Retrieve(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRetrieve_RetriesTransientErrors(t *testing.T) {
	store := &fakeStore{
		results: []Result{{Document: "part_a.pdf", Score: 0.9}},
		errs: []error{
			status.Error(codes.Unavailable, "connection refused"),
			status.Error(codes.Unavailable, "connection refused"),
			nil,
		},
	}
	e := newTestEngine(store)

	start := time.Now()
	results, err := e.Retrieve(context.Background(), "q", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 3, store.calls)
	// Two backoffs: 100ms + 400ms.
	assert.GreaterOrEqual(t, time.Since(start), 500*time.Millisecond)
}

func TestRetrieve_ExhaustedRetriesReturnsUnavailable(t *testing.T) {
	store := &fakeStore{errs: []error{
		status.Error(codes.Unavailable, "down"),
		status.Error(codes.Unavailable, "down"),
		status.Error(codes.Unavailable, "down"),
	}}
	e := newTestEngine(store)

	_, err := e.Retrieve(context.Background(), "q", 5)
	require.Error(t, err)

	var unavailable *UnavailableError
	assert.ErrorAs(t, err, &unavailable)
	assert.Equal(t, 3, store.calls)
}

func TestRetrieve_NoRetryOnAuthError(t *testing.T) {
	store := &fakeStore{errs: []error{
		status.Error(codes.Unauthenticated, "bad api key"),
	}}
	e := newTestEngine(store)

	_, err := e.Retrieve(context.Background(), "q", 5)
	require.Error(t, err)

	var unavailable *UnavailableError
	assert.ErrorAs(t, err, &unavailable)
	assert.Equal(t, 1, store.calls)
}

func TestRetrieve_EmbedderFailureIsUnavailable(t *testing.T) {
	e := NewEngine(&fakeStore{}, &fakeEmbedder{err: errors.New("embed down")}, config.RetrievalConfig{}, nil)

	_, err := e.Retrieve(context.Background(), "q", 5)
	require.Error(t, err)

	var unavailable *UnavailableError
	assert.ErrorAs(t, err, &unavailable)
}

func TestSearchBackoff(t *testing.T) {
	assert.Equal(t, 100*time.Millisecond, searchBackoff(0))
	assert.Equal(t, 400*time.Millisecond, searchBackoff(1))
	assert.Equal(t, 1600*time.Millisecond, searchBackoff(2))
}
