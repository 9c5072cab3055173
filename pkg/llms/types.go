// Package llms provides the chat completion client used by the
// answering pipelines and the agentic loop.
package llms

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is a single conversation turn.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

// ToolCall is a model-emitted request to invoke a tool.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]interface{}
}

// ToolDefinition describes a callable tool to the model.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// Completion is the result of a generation request.
type Completion struct {
	Text             string
	ToolCalls        []ToolCall
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// GenerateOption adjusts a single generation request.
type GenerateOption func(*generateOptions)

type generateOptions struct {
	maxTokens  int
	jsonObject bool
}

// WithMaxTokens overrides the configured answer length limit for one
// request.
func WithMaxTokens(n int) GenerateOption {
	return func(o *generateOptions) {
		o.maxTokens = n
	}
}

// WithJSONObject requests a JSON object response format.
func WithJSONObject() GenerateOption {
	return func(o *generateOptions) {
		o.jsonObject = true
	}
}

// Provider abstracts the chat completion backend.
type Provider interface {
	Generate(ctx context.Context, messages []Message, tools []ToolDefinition, opts ...GenerateOption) (*Completion, error)
	ModelName() string
	Close() error
}

// Error is a non-retryable API failure (auth, bad request, quota).
type Error struct {
	StatusCode int
	Message    string
	Type       string
	Code       string
}

func (e *Error) Error() string {
	if e.Type != "" || e.Code != "" {
		return fmt.Sprintf("llm: API request failed with status %d: %s (type: %s, code: %s)",
			e.StatusCode, e.Message, e.Type, e.Code)
	}
	return fmt.Sprintf("llm: API request failed with status %d: %s", e.StatusCode, e.Message)
}

var jsonFencePattern = regexp.MustCompile("(?s)```json\\s*(.*?)```")

// ExtractJSON pulls a JSON payload out of a model answer: a fenced
// ```json block when present, otherwise the trimmed text.
func ExtractJSON(text string) string {
	if m := jsonFencePattern.FindStringSubmatch(text); len(m) == 2 {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(text)
}
