package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/planqa/planqa/pkg/llms"
	"github.com/planqa/planqa/pkg/observability"
	"github.com/planqa/planqa/pkg/registry"
)

// Registry holds the callable tools and dispatches executions.
type Registry struct {
	tools *registry.BaseRegistry[Tool]
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: registry.NewBaseRegistry[Tool](),
	}
}

// NewDefaultRegistry registers the five standard tools.
func NewDefaultRegistry(engine Retriever, provider llms.Provider) (*Registry, error) {
	r := NewRegistry()
	for _, tool := range []Tool{
		NewRetrieveRegulationsTool(engine),
		NewAnalyzeComplianceTool(provider),
		NewCalculateDimensionsTool(),
		NewGenerateDesignTool(provider),
		NewVerifyComplianceTool(provider),
	} {
		if err := r.Register(tool); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a tool under its own name.
func (r *Registry) Register(tool Tool) error {
	return r.tools.Register(tool.GetName(), tool)
}

// Get returns the named tool.
func (r *Registry) Get(name string) (Tool, bool) {
	return r.tools.Get(name)
}

// List returns the infos of all registered tools, sorted by name.
func (r *Registry) List() []ToolInfo {
	names := r.tools.Names()
	infos := make([]ToolInfo, 0, len(names))
	for _, name := range names {
		if tool, ok := r.tools.Get(name); ok {
			infos = append(infos, tool.GetInfo())
		}
	}
	return infos
}

// Definitions returns the function declarations for every registered
// tool, sorted by name, ready to hand to the model.
func (r *Registry) Definitions() []llms.ToolDefinition {
	infos := r.List()
	defs := make([]llms.ToolDefinition, 0, len(infos))
	for _, info := range infos {
		defs = append(defs, info.Definition())
	}
	return defs
}

// Execute dispatches one tool call. An unknown tool name is an argument
// failure reported to the model like any other tool failure.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]interface{}) ToolResult {
	tracer := observability.GetTracer("tools")
	ctx, span := tracer.Start(ctx, observability.SpanToolExecution,
		trace.WithAttributes(attribute.String(observability.AttrToolName, name)))
	defer span.End()

	start := time.Now()

	var result ToolResult
	if tool, ok := r.tools.Get(name); ok {
		result = tool.Execute(ctx, args)
	} else {
		result = fail(name, fmt.Sprintf("unknown tool: %s", name))
	}

	duration := time.Since(start)
	result.Duration = duration

	var execErr error
	if result.Error != "" {
		execErr = errors.New(result.Error)
	}

	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		metrics.RecordToolExecution(ctx, name, duration, execErr)
	}

	if execErr != nil {
		span.RecordError(execErr)
		span.SetStatus(codes.Error, result.Error)
	} else {
		span.SetStatus(codes.Ok, "success")
	}
	span.SetAttributes(
		attribute.Bool("tool.success", result.Success),
		attribute.Float64("tool.duration_ms", float64(duration.Milliseconds())),
	)

	return result
}
