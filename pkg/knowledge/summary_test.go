package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planqa/planqa/pkg/config"
	"github.com/planqa/planqa/pkg/llms"
	"github.com/planqa/planqa/pkg/retrieval"
)

type fakeStore struct {
	retrieval.Store
	chunks []retrieval.Chunk
	err    error
}

func (f *fakeStore) Sample(ctx context.Context, limit int) ([]retrieval.Chunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.chunks) > limit {
		return f.chunks[:limit], nil
	}
	return f.chunks, nil
}

type fakeProvider struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeProvider) Generate(ctx context.Context, messages []llms.Message, tools []llms.ToolDefinition, opts ...llms.GenerateOption) (*llms.Completion, error) {
	for _, m := range messages {
		if m.Role == llms.RoleUser {
			f.prompts = append(f.prompts, m.Content)
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llms.Completion{Text: f.response}, nil
}

func (f *fakeProvider) ModelName() string { return "fake" }
func (f *fakeProvider) Close() error      { return nil }

func newTestService(t *testing.T, store retrieval.Store, provider llms.Provider) *Service {
	t.Helper()
	path := filepath.Join(t.TempDir(), "knowledge_summary.json")
	return NewService(config.KnowledgeConfig{Path: path, SampleMin: 2, SampleMax: 3}, store, provider, 0, nil)
}

func sampleChunks() []retrieval.Chunk {
	return []retrieval.Chunk{
		{ID: "1", Document: "permitted_development.pdf", Page: 1, Text: "Extensions up to 4 metres."},
		{ID: "2", Document: "building_regs.pdf", Page: 7, Text: "Foundations must be adequate."},
	}
}

func TestFallback_HasDrawingQuestions(t *testing.T) {
	fb := Fallback()

	require.NotEmpty(t, fb.Overview)
	require.NotEmpty(t, fb.Topics)

	drawingOriented := 0
	for _, q := range fb.SuggestedQuestions {
		lower := strings.ToLower(q)
		if strings.Contains(lower, "drawing") || strings.Contains(lower, "comply") {
			drawingOriented++
		}
	}
	assert.GreaterOrEqual(t, drawingOriented, 3)
}

func TestCurrent_MissingFileServesFallback(t *testing.T) {
	svc := newTestService(t, &fakeStore{}, &fakeProvider{})

	summary := svc.Current()
	assert.Equal(t, Fallback().Overview, summary.Overview)
	assert.False(t, svc.Exists())
}

func TestCurrent_CorruptFileServesFallback(t *testing.T) {
	svc := newTestService(t, &fakeStore{}, &fakeProvider{})
	require.NoError(t, os.MkdirAll(filepath.Dir(svc.path), 0o755))
	require.NoError(t, os.WriteFile(svc.path, []byte("{not json"), 0o644))

	summary := svc.Current()
	assert.Equal(t, Fallback().Overview, summary.Overview)
}

func TestGenerate_WritesArtifact(t *testing.T) {
	provider := &fakeProvider{
		response: `{"overview": "Covers UK building regulations.", "topics": ["extensions"], "suggested_questions": ["What is the plot area of my drawing?"]}`,
	}
	svc := newTestService(t, &fakeStore{chunks: sampleChunks()}, provider)

	before := time.Now().UTC().Add(-time.Second)
	summary, err := svc.Generate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Covers UK building regulations.", summary.Overview)
	assert.Equal(t, 2, summary.ChunkCount)

	generatedAt, err := time.Parse(time.RFC3339, summary.GeneratedAt)
	require.NoError(t, err)
	assert.True(t, generatedAt.After(before))

	// Sampled excerpts feed the prompt.
	require.Len(t, provider.prompts, 1)
	assert.Contains(t, provider.prompts[0], "permitted_development.pdf")

	// Round trip through Current.
	require.True(t, svc.Exists())
	assert.Equal(t, "Covers UK building regulations.", svc.Current().Overview)
}

func TestGenerate_EmptyIndex(t *testing.T) {
	svc := newTestService(t, &fakeStore{}, &fakeProvider{response: "{}"})

	_, err := svc.Generate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestGenerate_InvalidModelJSON(t *testing.T) {
	svc := newTestService(t, &fakeStore{chunks: sampleChunks()}, &fakeProvider{response: "nope"})

	_, err := svc.Generate(context.Background())
	require.Error(t, err)
	assert.False(t, svc.Exists())
}

func TestDelete(t *testing.T) {
	provider := &fakeProvider{response: `{"overview": "x", "topics": [], "suggested_questions": []}`}
	svc := newTestService(t, &fakeStore{chunks: sampleChunks()}, provider)

	_, err := svc.Generate(context.Background())
	require.NoError(t, err)
	require.True(t, svc.Exists())

	require.NoError(t, svc.Delete())
	assert.False(t, svc.Exists())

	// Deleting an absent artifact is not an error.
	require.NoError(t, svc.Delete())
}
