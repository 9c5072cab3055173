// Package tools implements the five callable tools exposed to the
// agentic loop and the registry that dispatches them. Tools never
// return Go errors to the caller: every internal failure becomes a
// {success:false, error} result so the loop always has a result turn
// to hand back to the model.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/planqa/planqa/pkg/llms"
)

// Wire-stable tool names. The model addresses tools by these names and
// clients may rely on them appearing in reasoning traces.
const (
	ToolRetrieveRegulations = "retrieve_regulations"
	ToolAnalyzeCompliance   = "analyze_drawing_compliance"
	ToolCalculateDimensions = "calculate_drawing_dimensions"
	ToolGenerateDesign      = "generate_compliant_design"
	ToolVerifyCompliance    = "verify_compliance"
)

// ToolParameter describes one argument of a tool.
type ToolParameter struct {
	Name        string
	Type        string
	Description string
	Required    bool
	Default     interface{}
	Enum        []string
	Items       string // element type for array parameters
}

// ToolInfo is the self-description a tool publishes to the registry.
type ToolInfo struct {
	Name        string
	Description string
	Parameters  []ToolParameter
}

// Definition renders the tool as a chat-completion function declaration.
func (info ToolInfo) Definition() llms.ToolDefinition {
	properties := make(map[string]interface{}, len(info.Parameters))
	var required []string

	for _, p := range info.Parameters {
		schema := map[string]interface{}{
			"type":        p.Type,
			"description": p.Description,
		}
		if len(p.Enum) > 0 {
			schema["enum"] = p.Enum
		}
		if p.Default != nil {
			schema["default"] = p.Default
		}
		if p.Type == "array" && p.Items != "" {
			schema["items"] = map[string]interface{}{"type": p.Items}
		}
		properties[p.Name] = schema

		if p.Required {
			required = append(required, p.Name)
		}
	}

	parameters := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		parameters["required"] = required
	}

	return llms.ToolDefinition{
		Name:        info.Name,
		Description: info.Description,
		Parameters:  parameters,
	}
}

// ToolResult is the outcome of one tool execution. Content is the JSON
// payload handed back to the model as the tool's result turn.
type ToolResult struct {
	ToolName string
	Success  bool
	Content  string
	Error    string
	Duration time.Duration
}

// Tool is a single callable exposed to the agentic loop.
type Tool interface {
	GetInfo() ToolInfo
	GetName() string
	Execute(ctx context.Context, args map[string]interface{}) ToolResult
}

// succeed builds a successful result from a payload map.
func succeed(name string, payload map[string]interface{}) ToolResult {
	payload["success"] = true
	content, err := json.Marshal(payload)
	if err != nil {
		return fail(name, fmt.Sprintf("failed to encode result: %v", err))
	}
	return ToolResult{ToolName: name, Success: true, Content: string(content)}
}

// fail builds a {success:false, error} result.
func fail(name, message string) ToolResult {
	content, _ := json.Marshal(map[string]interface{}{
		"success": false,
		"error":   message,
	})
	return ToolResult{ToolName: name, Content: string(content), Error: message}
}

// decodeArgs decodes model-supplied arguments into a typed args struct.
// Decoding is weakly typed so JSON numbers land in int fields.
func decodeArgs(args map[string]interface{}, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(args)
}
