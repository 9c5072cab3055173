package prompts

import (
	"fmt"
	"strings"

	"github.com/planqa/planqa/pkg/retrieval"
	"github.com/planqa/planqa/pkg/utils"
)

// DefaultContextBudget is the token budget for the retrieved context
// block of a prompt.
const DefaultContextBudget = 3000

// drawingJSONPreviewLimit caps raw drawing JSON in drawing-only prompts
// to prevent token overflow.
const drawingJSONPreviewLimit = 2000

// Prompt is a ready-to-send system and user message pair.
type Prompt struct {
	System string
	User   string
}

// Builder assembles prompts, fitting retrieved contexts into the token
// budget. The user's question is never truncated; whole low-relevance
// chunks are dropped instead.
type Builder struct {
	counter       *utils.TokenCounter
	contextBudget int
}

// NewBuilder creates a prompt builder for the given model. The token
// counter degrades to a character estimate when the encoding cannot be
// loaded.
func NewBuilder(model string, contextBudget int) *Builder {
	if contextBudget <= 0 {
		contextBudget = DefaultContextBudget
	}
	counter, _ := utils.NewTokenCounter(model)
	return &Builder{
		counter:       counter,
		contextBudget: contextBudget,
	}
}

// FitContexts keeps the highest-relevance whole chunks that fit the
// context token budget. Results are assumed sorted by descending score.
// The top chunk is always kept.
func (b *Builder) FitContexts(results []retrieval.Result) []retrieval.Result {
	if len(results) <= 1 {
		return results
	}

	fitted := results[:1]
	used := b.counter.Count(formatContext(1, results[0]))

	for _, r := range results[1:] {
		cost := b.counter.Count(formatContext(len(fitted)+1, r))
		if used+cost > b.contextBudget {
			continue
		}
		fitted = append(fitted, r)
		used += cost
	}

	return fitted
}

// FormatContexts renders results as numbered context blocks. selected
// marks a context with " [SELECTED]"; pass -1 for none.
func FormatContexts(results []retrieval.Result, selected int) string {
	blocks := make([]string, 0, len(results))
	for i, r := range results {
		block := formatContext(i+1, r)
		if i == selected {
			block = strings.Replace(block, ":\n", " [SELECTED]:\n", 1)
		}
		blocks = append(blocks, block)
	}
	return strings.Join(blocks, "\n\n")
}

func formatContext(n int, r retrieval.Result) string {
	return fmt.Sprintf("Context %d (Score: %.2f):\nSource: %s, Page %d\n%s",
		n, r.Score, r.Document, r.Page, r.Snippet)
}

// StandardQA builds the document-grounded prompt. With a single context
// it instructs an explicit refusal when the context does not answer; with
// several it asks the model to pick and cite the best one.
func (b *Builder) StandardQA(query string, results []retrieval.Result, drawingContext, timestamp string) Prompt {
	results = b.FitContexts(results)
	hasDrawing := drawingContext != ""
	drawingSection := formatDrawingSection(drawingContext)

	if len(results) == 1 {
		user := fmt.Sprintf(standardQASingleTemplate,
			results[0].Snippet,
			drawingSection,
			query,
			buildingSpecNote(hasDrawing),
			buildingSpecInstructions(hasDrawing, timestamp),
			timestampReminder(hasDrawing, timestamp),
		)

		system := SystemGeneral
		if hasDrawing && timestamp != "" {
			system = fmt.Sprintf("%s YOU MUST START YOUR ANSWER WITH: 'Based on the available regulations and your drawing from %s, ...'", system, timestamp)
		}
		return Prompt{System: system, User: user}
	}

	user := fmt.Sprintf(standardQAMultiTemplate,
		complianceInstruction(DetectComplianceQuestion(query), hasDrawing, timestamp),
		FormatContexts(results, -1),
		drawingSection,
		query,
		len(results),
		buildingSpecNote(hasDrawing),
		buildingSpecInstructions(hasDrawing, timestamp),
	)

	return Prompt{System: SystemGeneral, User: user}
}

// DrawingOnly builds the prompt for questions answered purely from the
// drawing, with no regulation context.
func (b *Builder) DrawingOnly(query, drawingContext, drawingJSON, timestamp string) Prompt {
	preview := drawingJSON
	if len(preview) > drawingJSONPreviewLimit {
		preview = preview[:drawingJSONPreviewLimit]
	}

	user := fmt.Sprintf(drawingOnlyTemplate,
		timestamp,
		drawingContext,
		preview,
		query,
		timestamp,
	)

	return Prompt{System: SystemDrawingAnalysis, User: user}
}

// ComplianceWithAdjustment builds the prompt that asks for a compliance
// verdict plus an adjusted, compliant drawing JSON. The full drawing
// JSON is included so the model can rewrite it.
func (b *Builder) ComplianceWithAdjustment(query string, results []retrieval.Result, drawingContext, drawingJSON, timestamp string) Prompt {
	results = b.FitContexts(results)

	user := fmt.Sprintf(complianceAdjustmentTemplate,
		FormatContexts(results, -1),
		timestamp,
		drawingContext,
		drawingJSON,
		query,
	)

	return Prompt{System: SystemComplianceAdjustment, User: user}
}

func formatDrawingSection(drawingContext string) string {
	if drawingContext == "" {
		return ""
	}
	return fmt.Sprintf("\n\nUser's Building Specifications:\n%s\n", drawingContext)
}

func buildingSpecNote(hasDrawing bool) string {
	if hasDrawing {
		return " and the user's building specifications"
	}
	return ""
}

func buildingSpecInstructions(hasDrawing bool, timestamp string) string {
	if !hasDrawing {
		return ""
	}

	var b strings.Builder
	b.WriteString("- When relevant, reference specific values from the building specifications (height, floors, area, etc.)\n")
	b.WriteString("- If the regulations mention limits or requirements, compare them to the building specifications\n")
	if timestamp != "" {
		b.WriteString("- CRITICAL REQUIREMENT: Since the user has provided a building drawing, you MUST include the drawing timestamp in your answer\n")
		fmt.Fprintf(&b, "- You MUST start your answer with: 'Based on the available regulations and your drawing from %s, ...'\n", timestamp)
		b.WriteString("- This is MANDATORY - not optional - whenever drawing data is present\n")
	}
	return b.String()
}

func timestampReminder(hasDrawing bool, timestamp string) string {
	if hasDrawing && timestamp != "" {
		return fmt.Sprintf("If drawing data is present, you MUST start with: 'Based on the available regulations and your drawing from %s, ...'", timestamp)
	}
	return "Provide your answer based on the available information."
}

func complianceInstruction(isCompliance, hasDrawing bool, timestamp string) string {
	if !isCompliance || !hasDrawing {
		return ""
	}
	return fmt.Sprintf(complianceQuestionInstruction, timestamp)
}
