// Package agent implements the tool-calling loop: the model decides
// which tools to invoke, the loop executes them serially and feeds the
// results back until the model produces a text answer or the iteration
// cap is reached.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/planqa/planqa/pkg/config"
	"github.com/planqa/planqa/pkg/geometry"
	"github.com/planqa/planqa/pkg/llms"
	"github.com/planqa/planqa/pkg/retrieval"
	"github.com/planqa/planqa/pkg/tools"
)

const defaultMaxIterations = 10

// exhaustionAnswer is returned when the iteration cap is reached
// without a final text response.
const exhaustionAnswer = "I've analyzed your question but need more iterations to provide a complete answer. Please try rephrasing or breaking down your question."

// emptyResponseAnswer is returned when the model produces neither tool
// calls nor text.
const emptyResponseAnswer = "I was unable to produce an answer. Please try rephrasing your question."

const systemPrompt = `You are an expert building regulations AI agent with access to tools.

Your capabilities:
- retrieve_regulations: Search for relevant building regulations
- analyze_drawing_compliance: Check if a drawing complies with regulations
- calculate_drawing_dimensions: Calculate measurements from drawings
- generate_compliant_design: Create adjusted, compliant designs
- verify_compliance: Verify if a design meets requirements

Your workflow:
1. Understand the user's question
2. Decide which tools you need to use
3. Call tools in the right order
4. Synthesize information from tool results
5. Provide a clear, comprehensive answer

Guidelines:
- Always retrieve regulations first if the question involves compliance
- Calculate dimensions when needed for analysis
- If asked to fix/adjust a design, use generate_compliant_design
- Verify your solutions with verify_compliance
- Be thorough but efficient - don't call unnecessary tools
- Provide clear explanations with your final answer

Remember: You can call multiple tools in sequence. Think step by step.`

// drawingPreviewLimit caps the drawing JSON preview in the opening user
// message. Tools read the full drawing from the request context.
const drawingPreviewLimit = 500

// Step records one tool invocation in the reasoning trace.
type Step struct {
	Step       int                    `json:"step"`
	Action     string                 `json:"action"`
	Arguments  map[string]interface{} `json:"arguments"`
	Result     json.RawMessage        `json:"result"`
	DurationMS int64                  `json:"duration_ms"`
}

// Request is one agentic run.
type Request struct {
	Question         string
	Drawing          *geometry.Drawing
	DrawingUpdatedAt string
	History          string
}

// Outcome is the result of an agentic run. On context cancellation the
// partial trace accumulated so far is still returned alongside the
// error.
type Outcome struct {
	Answer     string
	Steps      []Step
	Retrieved  []retrieval.Result
	Iterations int
	CapReached bool
}

// FailureError signals that the agentic workflow could not complete and
// the caller should fall back to the standard pipeline.
type FailureError struct {
	Err error
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("agentic workflow failed: %v", e.Err)
}

func (e *FailureError) Unwrap() error {
	return e.Err
}

// Runner drives the agentic loop.
type Runner struct {
	provider      llms.Provider
	registry      *tools.Registry
	maxIterations int
	logger        *slog.Logger
}

// NewRunner creates a runner with the configured iteration cap.
func NewRunner(provider llms.Provider, registry *tools.Registry, cfg config.AgentConfig, logger *slog.Logger) *Runner {
	maxIterations := cfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		provider:      provider,
		registry:      registry,
		maxIterations: maxIterations,
		logger:        logger,
	}
}

// Run executes the loop until the model answers, the iteration cap is
// reached, or the context is canceled. Tool calls within one response
// execute serially in emission order.
func (r *Runner) Run(ctx context.Context, req Request) (*Outcome, error) {
	collector := &tools.SourceCollector{}
	ctx = tools.WithSourceCollector(ctx, collector)
	if req.Drawing != nil {
		ctx = tools.WithDrawing(ctx, req.Drawing)
	}

	r.logger.Info("Agentic workflow started",
		"question_length", len(req.Question),
		"has_drawing", req.Drawing != nil && !req.Drawing.IsEmpty(),
		"max_iterations", r.maxIterations)

	messages := []llms.Message{
		{Role: llms.RoleSystem, Content: systemPrompt},
		{Role: llms.RoleUser, Content: formatUserQuery(req)},
	}
	definitions := r.registry.Definitions()

	var steps []Step

	for iteration := 0; iteration < r.maxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return r.outcome("", steps, collector, iteration, false), err
		}

		completion, err := r.provider.Generate(ctx, messages, definitions)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return r.outcome("", steps, collector, iteration, false), ctxErr
			}
			return r.outcome("", steps, collector, iteration, false), &FailureError{Err: err}
		}

		if len(completion.ToolCalls) > 0 {
			messages = append(messages, llms.Message{
				Role:      llms.RoleAssistant,
				ToolCalls: completion.ToolCalls,
			})

			for _, call := range completion.ToolCalls {
				r.logger.Info("Agent calling tool", "iteration", iteration+1, "tool", call.Name)

				result := r.registry.Execute(ctx, call.Name, call.Args)
				steps = append(steps, Step{
					Step:       iteration + 1,
					Action:     call.Name,
					Arguments:  call.Args,
					Result:     json.RawMessage(result.Content),
					DurationMS: result.Duration.Milliseconds(),
				})
				messages = append(messages, llms.Message{
					Role:       llms.RoleTool,
					Content:    result.Content,
					ToolCallID: call.ID,
				})
			}
			continue
		}

		answer := strings.TrimSpace(completion.Text)
		if answer == "" {
			answer = emptyResponseAnswer
		}

		r.logger.Info("Agentic workflow completed",
			"iterations", iteration+1,
			"tool_calls", len(steps))
		return r.outcome(answer, steps, collector, iteration+1, false), nil
	}

	r.logger.Warn("Agentic iteration cap reached", "max_iterations", r.maxIterations)
	return r.outcome(exhaustionAnswer, steps, collector, r.maxIterations, true), nil
}

func (r *Runner) outcome(answer string, steps []Step, collector *tools.SourceCollector, iterations int, capReached bool) *Outcome {
	return &Outcome{
		Answer:     answer,
		Steps:      steps,
		Retrieved:  collector.Results(),
		Iterations: iterations,
		CapReached: capReached,
	}
}

// formatUserQuery builds the opening user message: question, optional
// prior conversation, and a preview of the drawing.
func formatUserQuery(req Request) string {
	parts := []string{}
	if req.History != "" {
		parts = append(parts, req.History)
	}
	parts = append(parts, fmt.Sprintf("User Question: %s", req.Question))

	if req.Drawing != nil && !req.Drawing.IsEmpty() {
		timestampNote := ""
		if req.DrawingUpdatedAt != "" {
			timestampNote = fmt.Sprintf(" (Last updated: %s)", req.DrawingUpdatedAt)
		}
		parts = append(parts, fmt.Sprintf("\nBuilding Drawing Available%s: Yes", timestampNote))

		raw := string(req.Drawing.Raw())
		if len(raw) > drawingPreviewLimit {
			raw = raw[:drawingPreviewLimit]
		}
		parts = append(parts, fmt.Sprintf("Drawing Preview: %s...", raw))
	}

	return strings.Join(parts, "\n")
}
