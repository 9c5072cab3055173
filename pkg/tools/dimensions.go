package tools

import (
	"context"
	"fmt"

	"github.com/planqa/planqa/pkg/geometry"
)

// CalculateDimensionsTool derives measurements from the request drawing.
// It is pure geometry; no model call is involved.
type CalculateDimensionsTool struct{}

func NewCalculateDimensionsTool() *CalculateDimensionsTool {
	return &CalculateDimensionsTool{}
}

func (t *CalculateDimensionsTool) GetName() string { return ToolCalculateDimensions }

func (t *CalculateDimensionsTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        ToolCalculateDimensions,
		Description: "Calculate dimensions of the user's building drawing, such as plot area, extension depth and building height",
		Parameters: []ToolParameter{
			{
				Name:        "dimension_type",
				Type:        "string",
				Description: "Which dimension to calculate",
				Enum: []string{
					string(geometry.DimensionPlotArea),
					string(geometry.DimensionExtensionDepth),
					string(geometry.DimensionBuildingHeight),
					string(geometry.DimensionAll),
				},
				Default: string(geometry.DimensionAll),
			},
		},
	}
}

type calculateArgs struct {
	DimensionType string `json:"dimension_type"`
}

func (t *CalculateDimensionsTool) Execute(ctx context.Context, args map[string]interface{}) ToolResult {
	drawing, ok := DrawingFrom(ctx)
	if !ok {
		return fail(t.GetName(), "No drawing available in context")
	}

	var a calculateArgs
	if err := decodeArgs(args, &a); err != nil {
		return fail(t.GetName(), fmt.Sprintf("invalid arguments: %v", err))
	}
	if a.DimensionType == "" {
		a.DimensionType = string(geometry.DimensionAll)
	}
	if !geometry.ValidDimension(a.DimensionType) {
		return fail(t.GetName(), fmt.Sprintf("invalid dimension_type: %s", a.DimensionType))
	}

	dimensions := drawing.Analyze(geometry.Dimension(a.DimensionType))
	return succeed(t.GetName(), map[string]interface{}{
		"dimensions": dimensions,
	})
}

var _ Tool = (*CalculateDimensionsTool)(nil)
