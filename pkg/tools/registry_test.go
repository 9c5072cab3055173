package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewDefaultRegistry(&fakeRetriever{}, &fakeProvider{})
	require.NoError(t, err)
	return r
}

func TestRegistry_ListSorted(t *testing.T) {
	r := newTestRegistry(t)

	infos := r.List()
	require.Len(t, infos, 5)

	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name
	}
	assert.Equal(t, []string{
		ToolAnalyzeCompliance,
		ToolCalculateDimensions,
		ToolGenerateDesign,
		ToolRetrieveRegulations,
		ToolVerifyCompliance,
	}, names)
}

func TestRegistry_Definitions(t *testing.T) {
	r := newTestRegistry(t)

	defs := r.Definitions()
	require.Len(t, defs, 5)

	var retrieve map[string]interface{}
	for _, def := range defs {
		if def.Name == ToolRetrieveRegulations {
			retrieve = def.Parameters
		}
	}
	require.NotNil(t, retrieve)

	assert.Equal(t, "object", retrieve["type"])
	properties := retrieve["properties"].(map[string]interface{})
	query := properties["query"].(map[string]interface{})
	assert.Equal(t, "string", query["type"])
	assert.Equal(t, []string{"query"}, retrieve["required"])

	topK := properties["top_k"].(map[string]interface{})
	assert.Equal(t, 5, topK["default"])
}

func TestRegistry_DefinitionArrayItems(t *testing.T) {
	r := newTestRegistry(t)

	tool, ok := r.Get(ToolAnalyzeCompliance)
	require.True(t, ok)

	params := tool.GetInfo().Definition().Parameters
	properties := params["properties"].(map[string]interface{})
	regulations := properties["regulations"].(map[string]interface{})
	assert.Equal(t, "array", regulations["type"])
	assert.Equal(t, map[string]interface{}{"type": "string"}, regulations["items"])
}

func TestRegistry_ExecuteUnknownTool(t *testing.T) {
	r := newTestRegistry(t)

	result := r.Execute(context.Background(), "delete_everything", nil)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "unknown tool: delete_everything")
	assert.JSONEq(t, `{"success": false, "error": "unknown tool: delete_everything"}`, result.Content)
}

func TestRegistry_ExecuteDispatches(t *testing.T) {
	r := newTestRegistry(t)

	result := r.Execute(drawingCtx(t), ToolCalculateDimensions, map[string]interface{}{
		"dimension_type": "plot_area",
	})
	require.True(t, result.Success)
	assert.Equal(t, ToolCalculateDimensions, result.ToolName)
	assert.GreaterOrEqual(t, result.Duration.Nanoseconds(), int64(0))
}

func TestRegistry_DuplicateRegistration(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(NewCalculateDimensionsTool()))
	assert.Error(t, r.Register(NewCalculateDimensionsTool()))
}
