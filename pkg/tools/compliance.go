package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/planqa/planqa/pkg/geometry"
	"github.com/planqa/planqa/pkg/llms"
)

const (
	regulationsExpertSystem = "You are a building regulations expert. Always respond with valid JSON."
	designExpertSystem      = "You are a building design expert. Always respond with valid JSON."

	// drawingPreviewLimit caps how much raw drawing JSON goes into a
	// sub-prompt that only needs the shape of the data.
	drawingPreviewLimit = 2000

	// generateMaxTokens leaves room for a full adjusted drawing in the
	// response.
	generateMaxTokens = 2000
)

// subLLM asks the model for a structured verdict and parses the JSON
// payload, unwrapping a ```json fence when present.
func subLLM(ctx context.Context, provider llms.Provider, system, user string, opts ...llms.GenerateOption) (map[string]interface{}, error) {
	completion, err := provider.Generate(ctx, []llms.Message{
		{Role: llms.RoleSystem, Content: system},
		{Role: llms.RoleUser, Content: user},
	}, nil, opts...)
	if err != nil {
		return nil, err
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(llms.ExtractJSON(completion.Text)), &parsed); err != nil {
		return nil, fmt.Errorf("model returned invalid JSON: %w", err)
	}
	return parsed, nil
}

func preview(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}

func parsedStrings(parsed map[string]interface{}, key string) []string {
	out := []string{}
	items, ok := parsed[key].([]interface{})
	if !ok {
		return out
	}
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func parsedString(parsed map[string]interface{}, key string) string {
	s, _ := parsed[key].(string)
	return s
}

func parsedBool(parsed map[string]interface{}, key string) bool {
	b, _ := parsed[key].(bool)
	return b
}

// AnalyzeComplianceTool checks the request drawing against supplied
// regulation texts via a model sub-prompt.
type AnalyzeComplianceTool struct {
	provider llms.Provider
}

func NewAnalyzeComplianceTool(provider llms.Provider) *AnalyzeComplianceTool {
	return &AnalyzeComplianceTool{provider: provider}
}

func (t *AnalyzeComplianceTool) GetName() string { return ToolAnalyzeCompliance }

func (t *AnalyzeComplianceTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        ToolAnalyzeCompliance,
		Description: "Analyze the user's building drawing for compliance with given regulation texts",
		Parameters: []ToolParameter{
			{
				Name:        "regulations",
				Type:        "array",
				Items:       "string",
				Description: "Regulation texts to check the drawing against",
				Required:    true,
			},
		},
	}
}

type analyzeArgs struct {
	Regulations []string `json:"regulations"`
}

func (t *AnalyzeComplianceTool) Execute(ctx context.Context, args map[string]interface{}) ToolResult {
	drawing, ok := DrawingFrom(ctx)
	if !ok {
		return fail(t.GetName(), "No drawing available in context")
	}

	var a analyzeArgs
	if err := decodeArgs(args, &a); err != nil {
		return fail(t.GetName(), fmt.Sprintf("invalid arguments: %v", err))
	}
	if len(a.Regulations) == 0 {
		return fail(t.GetName(), "regulations is required")
	}

	measurements := drawing.Analyze(geometry.DimensionAll)
	measurementsJSON, _ := json.Marshal(measurements)

	prompt := fmt.Sprintf(`Analyze this building drawing for compliance with the given regulations.

Drawing data: %s

Calculated measurements: %s

Regulations:
%s

Determine whether the drawing complies with each regulation. Format as JSON:
{"violations": ["specific violation"], "compliant": ["aspect that complies"], "measurements": {"plot_area_m2": 0}}`,
		preview(string(drawing.Raw()), drawingPreviewLimit),
		string(measurementsJSON),
		strings.Join(a.Regulations, "\n"))

	parsed, err := subLLM(ctx, t.provider, regulationsExpertSystem, prompt)
	if err != nil {
		return fail(t.GetName(), err.Error())
	}

	return succeed(t.GetName(), map[string]interface{}{
		"violations":   parsedStrings(parsed, "violations"),
		"compliant":    parsedStrings(parsed, "compliant"),
		"measurements": measurements,
	})
}

var _ Tool = (*AnalyzeComplianceTool)(nil)

// GenerateDesignTool asks the model for an adjusted drawing that
// resolves the listed violations.
type GenerateDesignTool struct {
	provider llms.Provider
}

func NewGenerateDesignTool(provider llms.Provider) *GenerateDesignTool {
	return &GenerateDesignTool{provider: provider}
}

func (t *GenerateDesignTool) GetName() string { return ToolGenerateDesign }

func (t *GenerateDesignTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        ToolGenerateDesign,
		Description: "Generate an adjusted building drawing that resolves compliance violations",
		Parameters: []ToolParameter{
			{
				Name:        "original_drawing",
				Type:        "object",
				Description: "The drawing to adjust; defaults to the user's current drawing",
			},
			{
				Name:        "violations",
				Type:        "array",
				Items:       "string",
				Description: "Violations the adjusted drawing must resolve",
			},
			{
				Name:        "regulations",
				Type:        "array",
				Items:       "string",
				Description: "Regulation texts the adjusted drawing must satisfy",
			},
		},
	}
}

type generateArgs struct {
	OriginalDrawing interface{} `json:"original_drawing"`
	Violations      []string    `json:"violations"`
	Regulations     []string    `json:"regulations"`
}

func (t *GenerateDesignTool) Execute(ctx context.Context, args map[string]interface{}) ToolResult {
	var a generateArgs
	if err := decodeArgs(args, &a); err != nil {
		return fail(t.GetName(), fmt.Sprintf("invalid arguments: %v", err))
	}

	drawing, err := t.resolveDrawing(ctx, a.OriginalDrawing)
	if err != nil {
		return fail(t.GetName(), err.Error())
	}

	prompt := fmt.Sprintf(`Generate an adjusted version of this building drawing that resolves the listed violations while staying as close as possible to the original design.

Original drawing: %s

Violations to fix:
%s

Regulations:
%s

Format as JSON:
{"adjusted_drawing": [], "changes_made": ["change"], "compliance_verification": "why the adjusted drawing complies"}`,
		string(drawing.Raw()),
		strings.Join(a.Violations, "\n"),
		strings.Join(a.Regulations, "\n"))

	parsed, err := subLLM(ctx, t.provider, designExpertSystem, prompt,
		llms.WithMaxTokens(generateMaxTokens))
	if err != nil {
		return fail(t.GetName(), err.Error())
	}

	return succeed(t.GetName(), map[string]interface{}{
		"adjusted_drawing":        parsed["adjusted_drawing"],
		"changes_made":            parsedStrings(parsed, "changes_made"),
		"compliance_verification": parsedString(parsed, "compliance_verification"),
	})
}

// resolveDrawing prefers an explicitly supplied drawing over the one in
// the request context.
func (t *GenerateDesignTool) resolveDrawing(ctx context.Context, supplied interface{}) (*geometry.Drawing, error) {
	if supplied != nil {
		raw, err := json.Marshal(supplied)
		if err != nil {
			return nil, fmt.Errorf("invalid original_drawing: %v", err)
		}
		drawing, err := geometry.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid original_drawing: %v", err)
		}
		return drawing, nil
	}
	if drawing, ok := DrawingFrom(ctx); ok {
		return drawing, nil
	}
	return nil, errors.New("No drawing available in context")
}

var _ Tool = (*GenerateDesignTool)(nil)

// VerifyComplianceTool re-measures the request drawing and asks the
// model whether it satisfies the supplied regulations.
type VerifyComplianceTool struct {
	provider llms.Provider
}

func NewVerifyComplianceTool(provider llms.Provider) *VerifyComplianceTool {
	return &VerifyComplianceTool{provider: provider}
}

func (t *VerifyComplianceTool) GetName() string { return ToolVerifyCompliance }

func (t *VerifyComplianceTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        ToolVerifyCompliance,
		Description: "Verify whether the user's building drawing complies with given regulation texts",
		Parameters: []ToolParameter{
			{
				Name:        "regulations",
				Type:        "array",
				Items:       "string",
				Description: "Regulation texts to verify the drawing against",
				Required:    true,
			},
		},
	}
}

type verifyArgs struct {
	Regulations []string `json:"regulations"`
}

func (t *VerifyComplianceTool) Execute(ctx context.Context, args map[string]interface{}) ToolResult {
	drawing, ok := DrawingFrom(ctx)
	if !ok {
		return fail(t.GetName(), "No drawing available in context")
	}

	var a verifyArgs
	if err := decodeArgs(args, &a); err != nil {
		return fail(t.GetName(), fmt.Sprintf("invalid arguments: %v", err))
	}
	if len(a.Regulations) == 0 {
		return fail(t.GetName(), "regulations is required")
	}

	measurements := drawing.Analyze(geometry.DimensionAll)
	measurementsJSON, _ := json.Marshal(measurements)

	prompt := fmt.Sprintf(`Verify whether this building design complies with the given regulations.

Drawing data: %s

Measured dimensions: %s

Regulations:
%s

Format as JSON:
{"compliant": true, "explanation": "why it does or does not comply", "remaining_issues": ["issue"]}`,
		preview(string(drawing.Raw()), drawingPreviewLimit),
		string(measurementsJSON),
		strings.Join(a.Regulations, "\n"))

	parsed, err := subLLM(ctx, t.provider, regulationsExpertSystem, prompt)
	if err != nil {
		return fail(t.GetName(), err.Error())
	}

	return succeed(t.GetName(), map[string]interface{}{
		"compliant":        parsedBool(parsed, "compliant"),
		"explanation":      parsedString(parsed, "explanation"),
		"remaining_issues": parsedStrings(parsed, "remaining_issues"),
	})
}

var _ Tool = (*VerifyComplianceTool)(nil)
