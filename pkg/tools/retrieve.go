package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/planqa/planqa/pkg/retrieval"
)

// missMessage is reported when nothing in the corpus clears the
// relevance threshold.
const missMessage = "No relevant regulations found"

// Retriever is the slice of the retrieval engine the tool needs.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]retrieval.Result, error)
}

// RetrieveRegulationsTool searches the regulation corpus.
type RetrieveRegulationsTool struct {
	engine Retriever
}

func NewRetrieveRegulationsTool(engine Retriever) *RetrieveRegulationsTool {
	return &RetrieveRegulationsTool{engine: engine}
}

func (t *RetrieveRegulationsTool) GetName() string { return ToolRetrieveRegulations }

func (t *RetrieveRegulationsTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        ToolRetrieveRegulations,
		Description: "Search building regulations and planning documents for rules relevant to a query",
		Parameters: []ToolParameter{
			{
				Name:        "query",
				Type:        "string",
				Description: "Search query describing the regulation topic",
				Required:    true,
			},
			{
				Name:        "top_k",
				Type:        "integer",
				Description: "Number of results to return (1-20)",
				Default:     5,
			},
		},
	}
}

type retrieveArgs struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

func (t *RetrieveRegulationsTool) Execute(ctx context.Context, args map[string]interface{}) ToolResult {
	var a retrieveArgs
	if err := decodeArgs(args, &a); err != nil {
		return fail(t.GetName(), fmt.Sprintf("invalid arguments: %v", err))
	}
	if strings.TrimSpace(a.Query) == "" {
		return fail(t.GetName(), "query is required")
	}

	results, err := t.engine.Retrieve(ctx, a.Query, a.TopK)
	if err != nil {
		return fail(t.GetName(), err.Error())
	}
	if len(results) == 0 {
		content, _ := json.Marshal(map[string]interface{}{
			"success": false,
			"count":   0,
			"message": missMessage,
		})
		return ToolResult{ToolName: t.GetName(), Content: string(content)}
	}

	if collector, ok := SourceCollectorFrom(ctx); ok {
		collector.Add(results)
	}

	regulations := make([]map[string]interface{}, 0, len(results))
	for _, r := range results {
		regulations = append(regulations, map[string]interface{}{
			"id":        r.ID,
			"document":  r.Document,
			"page":      r.Page,
			"content":   r.Snippet,
			"relevance": r.Score,
		})
	}

	return succeed(t.GetName(), map[string]interface{}{
		"count":       len(results),
		"regulations": regulations,
	})
}

var _ Tool = (*RetrieveRegulationsTool)(nil)
