// Package answer implements the tiered fallback ladder that turns
// retrieval results, the drawing, and model output into the final
// response: hybrid when both sources contribute, drawing-only or
// regulations-only when one is missing, and a knowledge-summary
// no-answer response when neither can answer.
package answer

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/planqa/planqa/pkg/geometry"
	"github.com/planqa/planqa/pkg/knowledge"
	"github.com/planqa/planqa/pkg/llms"
	"github.com/planqa/planqa/pkg/prompts"
	"github.com/planqa/planqa/pkg/retrieval"
)

// Answer classification tags.
const (
	TypeHybrid   = "hybrid"
	TypePDF      = "pdf"
	TypeDrawing  = "drawing"
	TypeNoAnswer = "no-answer"
)

const (
	defaultNoAnswerMessage = "No relevant answer found in the knowledge base."
	refusalNoAnswerMessage = "I couldn't find relevant information to answer your question. Please try rephrasing or asking a different question."
	llmFallbackAnswer      = "I found relevant information but couldn't generate a detailed answer. Please refer to the source snippet."
)

// refusalPhrases is the canonical refusal set. It is closed: near
// synonyms do not trigger the no-answer fallback.
var refusalPhrases = []string{
	"i cannot answer",
	"i can't answer",
	"cannot answer this question",
	"not enough information",
	"insufficient information",
	"doesn't contain",
}

// IsRefusal reports whether the model declined to answer.
func IsRefusal(answer string) bool {
	lower := strings.ToLower(answer)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

var (
	contextMarkerPattern = regexp.MustCompile(`\[Using Context (\d+)\]`)
	contextMarkerStrip   = regexp.MustCompile(`\[Using Context \d+\]\s*`)
)

// ParseContextSelection extracts the "[Using Context N]" marker the
// model was instructed to emit, strips it from the answer, and returns
// the zero-based index of the selected context. Defaults to the first
// context when the marker is missing or out of range.
func ParseContextSelection(answer string, numContexts int) (string, int) {
	best := 0
	if m := contextMarkerPattern.FindStringSubmatch(answer); len(m) == 2 {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= 1 && n <= numContexts {
			best = n - 1
		}
		answer = contextMarkerStrip.ReplaceAllString(answer, "")
	}
	return strings.TrimSpace(answer), best
}

// Source is one cited retrieval hit.
type Source struct {
	Type        string  `json:"type"`
	Document    string  `json:"document"`
	Page        int     `json:"page"`
	Paragraph   int     `json:"paragraph"`
	Snippet     string  `json:"snippet"`
	Relevance   float64 `json:"relevance"`
	Title       string  `json:"title,omitempty"`
	ContentType string  `json:"content_type"`
	Selected    bool    `json:"selected"`
}

// SourcesFromResults converts retrieval hits into cited sources,
// marking the selected one. Pass selected < 0 for no selection.
func SourcesFromResults(results []retrieval.Result, selected int) []Source {
	sources := make([]Source, 0, len(results))
	for i, r := range results {
		contentType := r.ContentType
		if contentType == "" {
			contentType = retrieval.ContentTypeText
		}
		sources = append(sources, Source{
			Type:        "pdf",
			Document:    r.Document,
			Page:        r.Page,
			Paragraph:   r.Paragraph,
			Snippet:     r.Snippet,
			Relevance:   r.Score,
			Title:       r.Title,
			ContentType: contentType,
			Selected:    i == selected,
		})
	}
	return sources
}

// Result is the ladder's outcome.
type Result struct {
	Answer             string
	Type               string
	Sources            []Source
	DrawingContextUsed bool
	KnowledgeSummary   *knowledge.Summary
}

// Generator applies the fallback ladder.
type Generator struct {
	provider  llms.Provider
	builder   *prompts.Builder
	summaries *knowledge.Service
	logger    *slog.Logger
}

// NewGenerator creates the ladder generator.
func NewGenerator(provider llms.Provider, builder *prompts.Builder, summaries *knowledge.Service, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		provider:  provider,
		builder:   builder,
		summaries: summaries,
		logger:    logger,
	}
}

// FromResults answers from retrieval hits, optionally combined with the
// drawing. Empty hits fall through to the drawing-only tier when a
// drawing is present, otherwise to the no-answer tier. A refusal from
// the model always ends in the no-answer tier.
func (g *Generator) FromResults(ctx context.Context, query string, results []retrieval.Result, drawing *geometry.Drawing, updatedAt string, intent prompts.Intent) (*Result, error) {
	hasDrawing := drawing != nil && !drawing.IsEmpty()

	fitted := g.builder.FitContexts(results)
	if len(fitted) == 0 {
		if hasDrawing {
			return g.DrawingOnly(ctx, query, drawing, updatedAt)
		}
		return g.NoAnswer(defaultNoAnswerMessage), nil
	}

	drawingContext := ""
	timestamp := ""
	if hasDrawing {
		drawingContext = drawing.FormatContext()
		timestamp = geometry.FormatTimestamp(updatedAt)
	}

	var prompt prompts.Prompt
	if intent == prompts.IntentComplianceAdjustment && hasDrawing {
		prompt = g.builder.ComplianceWithAdjustment(query, fitted, drawingContext, string(drawing.Raw()), timestamp)
	} else {
		prompt = g.builder.StandardQA(query, fitted, drawingContext, timestamp)
	}

	completion, err := g.provider.Generate(ctx, []llms.Message{
		{Role: llms.RoleSystem, Content: prompt.System},
		{Role: llms.RoleUser, Content: prompt.User},
	}, nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		g.logger.Warn("Answer generation failed, returning snippet fallback", "error", err)
		return g.resultFromResults(llmFallbackAnswer, fitted, 0, hasDrawing), nil
	}

	text, best := ParseContextSelection(completion.Text, len(fitted))
	if IsRefusal(text) {
		g.logger.Info("Model refused to answer, falling back to knowledge summary")
		return g.NoAnswer(refusalNoAnswerMessage), nil
	}

	return g.resultFromResults(text, fitted, best, hasDrawing), nil
}

func (g *Generator) resultFromResults(text string, results []retrieval.Result, best int, hasDrawing bool) *Result {
	answerType := TypePDF
	if hasDrawing {
		answerType = TypeHybrid
	}
	return &Result{
		Answer:             text,
		Type:               answerType,
		Sources:            SourcesFromResults(results, best),
		DrawingContextUsed: hasDrawing,
	}
}

// DrawingOnly answers from the drawing alone, with no regulation
// context. An empty drawing still gets a response: the prompt states
// that no geometry was provided.
func (g *Generator) DrawingOnly(ctx context.Context, query string, drawing *geometry.Drawing, updatedAt string) (*Result, error) {
	drawingContext := drawing.FormatContext()
	if drawingContext == "" {
		drawingContext = "User's Building Drawing:\n- No geometry provided"
	}
	timestamp := geometry.FormatTimestamp(updatedAt)

	prompt := g.builder.DrawingOnly(query, drawingContext, string(drawing.Raw()), timestamp)

	completion, err := g.provider.Generate(ctx, []llms.Message{
		{Role: llms.RoleSystem, Content: prompt.System},
		{Role: llms.RoleUser, Content: prompt.User},
	}, nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	return &Result{
		Answer: strings.TrimSpace(completion.Text),
		Type:   TypeDrawing,
		Sources: []Source{{
			Type:      "pdf",
			Document:  "[Drawing Analysis]",
			Snippet:   drawingContext,
			Relevance: 1.0,
			Title:     "Building Drawing Analysis",
			Selected:  true,
		}},
		DrawingContextUsed: true,
	}, nil
}

// NoAnswer builds the knowledge-summary tier response. It never fails:
// a missing artifact yields the hard-coded fallback summary.
func (g *Generator) NoAnswer(message string) *Result {
	var summary *knowledge.Summary
	if g.summaries != nil {
		summary = g.summaries.Current()
	} else {
		summary = knowledge.Fallback()
	}
	return &Result{
		Answer:           message,
		Type:             TypeNoAnswer,
		KnowledgeSummary: summary,
	}
}
