// Package orchestrator is the single entry point for answering a
// question. It validates the request, classifies intent, dispatches to
// the standard or agentic pipeline, and applies the fallback ladder.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/planqa/planqa/pkg/agent"
	"github.com/planqa/planqa/pkg/answer"
	"github.com/planqa/planqa/pkg/geometry"
	"github.com/planqa/planqa/pkg/knowledge"
	"github.com/planqa/planqa/pkg/observability"
	"github.com/planqa/planqa/pkg/prompts"
	"github.com/planqa/planqa/pkg/retrieval"
	"github.com/planqa/planqa/pkg/session"
)

// maxQuestionLength bounds the accepted question size in characters.
const maxQuestionLength = 4000

const defaultRequestDeadline = 120 * time.Second

// retrievalDownMessage fronts the knowledge-summary response when the
// vector database is unreachable and no drawing can answer instead.
const retrievalDownMessage = "The regulation knowledge base is temporarily unavailable. Please try again shortly."

// Request modes.
const (
	ModeAuto     = "auto"
	ModeStandard = "standard"
	ModeAgentic  = "agentic"
)

var (
	ErrInvalidQuestion = errors.New("question must not be empty")
	ErrQuestionTooLong = fmt.Errorf("question exceeds the maximum length of %d characters", maxQuestionLength)
	ErrInvalidDrawing  = errors.New("invalid drawing payload")
	ErrInvalidMode     = errors.New("mode must be one of auto, standard, agentic")
)

// TimeoutError signals the request deadline elapsed or the client went
// away. The partial reasoning trace is preserved for the response.
type TimeoutError struct {
	Steps []agent.Step
}

func (e *TimeoutError) Error() string {
	return "request timed out"
}

// Request is one question to answer.
type Request struct {
	Question         string          `json:"question"`
	Drawing          json.RawMessage `json:"drawing_json,omitempty"`
	DrawingUpdatedAt string          `json:"drawing_updated_at,omitempty"`
	TopK             int             `json:"top_k,omitempty"`
	Mode             string          `json:"mode,omitempty"`
	SessionID        string          `json:"session_id,omitempty"`
}

// Response is the externally visible answer.
type Response struct {
	Answer             string             `json:"answer"`
	AnswerType         string             `json:"answer_type"`
	Sources            []answer.Source    `json:"sources,omitempty"`
	DrawingContextUsed bool               `json:"drawing_context_used"`
	ReasoningSteps     []agent.Step       `json:"reasoning_steps,omitempty"`
	KnowledgeSummary   *knowledge.Summary `json:"knowledge_summary,omitempty"`
	TraceFlags         []string           `json:"trace_flags,omitempty"`
	SessionID          string             `json:"session_id"`
	Iterations         int                `json:"iterations,omitempty"`
}

// Retriever is the retrieval dependency.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]retrieval.Result, error)
}

// AgentRunner is the agentic loop dependency.
type AgentRunner interface {
	Run(ctx context.Context, req agent.Request) (*agent.Outcome, error)
}

// Generator is the fallback ladder dependency.
type Generator interface {
	FromResults(ctx context.Context, query string, results []retrieval.Result, drawing *geometry.Drawing, updatedAt string, intent prompts.Intent) (*answer.Result, error)
	DrawingOnly(ctx context.Context, query string, drawing *geometry.Drawing, updatedAt string) (*answer.Result, error)
	NoAnswer(message string) *answer.Result
}

// Orchestrator coordinates the answering pipelines.
type Orchestrator struct {
	retriever Retriever
	generator Generator
	runner    AgentRunner
	sessions  *session.Manager
	deadline  time.Duration
	logger    *slog.Logger
}

// New creates an orchestrator. deadlineSeconds <= 0 uses the default
// 120 second request deadline.
func New(retriever Retriever, generator Generator, runner AgentRunner, sessions *session.Manager, deadlineSeconds int, logger *slog.Logger) *Orchestrator {
	deadline := defaultRequestDeadline
	if deadlineSeconds > 0 {
		deadline = time.Duration(deadlineSeconds) * time.Second
	}
	if sessions == nil {
		sessions = session.NewManager()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		retriever: retriever,
		generator: generator,
		runner:    runner,
		sessions:  sessions,
		deadline:  deadline,
		logger:    logger,
	}
}

// Answer handles one request end to end.
func (o *Orchestrator) Answer(ctx context.Context, req Request) (*Response, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, ErrInvalidQuestion
	}
	if utf8.RuneCountInString(req.Question) > maxQuestionLength {
		return nil, ErrQuestionTooLong
	}

	mode := req.Mode
	if mode == "" {
		mode = ModeAuto
	}
	if mode != ModeAuto && mode != ModeStandard && mode != ModeAgentic {
		return nil, ErrInvalidMode
	}

	drawing, err := geometry.Parse(req.Drawing)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDrawing, err)
	}
	drawing.UpdatedAt = req.DrawingUpdatedAt
	hasDrawing := !drawing.IsEmpty()

	ctx, cancel := context.WithTimeout(ctx, o.deadline)
	defer cancel()

	sessionID := o.sessions.Ensure(req.SessionID)
	history := o.sessions.FormattedHistory(sessionID)
	intent := prompts.Classify(req.Question, hasDrawing)

	if mode == ModeAuto {
		mode = o.resolveAuto(intent, hasDrawing)
	}

	tracer := observability.GetTracer("orchestrator")
	ctx, span := tracer.Start(ctx, observability.SpanQuery,
		trace.WithAttributes(
			attribute.String("query.mode", mode),
			attribute.String("query.intent", string(intent)),
			attribute.Bool("query.has_drawing", hasDrawing),
		))
	defer span.End()

	start := time.Now()
	response, err := o.dispatch(ctx, mode, req.Question, history, drawing, intent, req.TopK)
	if m := observability.GetGlobalMetrics(); m != nil {
		m.RecordQuery(ctx, mode, time.Since(start), err)
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	response.SessionID = sessionID
	o.sessions.AddExchange(sessionID, req.Question, response.Answer)

	span.SetAttributes(attribute.String("query.answer_type", response.AnswerType))
	return response, nil
}

// resolveAuto picks the pipeline for auto mode: adjustment requests
// with a drawing benefit from the tool loop, everything else takes the
// cheaper standard path.
func (o *Orchestrator) resolveAuto(intent prompts.Intent, hasDrawing bool) string {
	if intent == prompts.IntentComplianceAdjustment && hasDrawing && o.runner != nil {
		return ModeAgentic
	}
	return ModeStandard
}

func (o *Orchestrator) dispatch(ctx context.Context, mode, question, history string, drawing *geometry.Drawing, intent prompts.Intent, topK int) (*Response, error) {
	if mode == ModeAgentic && o.runner != nil {
		response, err := o.agentic(ctx, question, history, drawing)
		var failure *agent.FailureError
		if errors.As(err, &failure) {
			o.logger.Warn("Agentic pipeline failed, falling back to standard mode", "error", failure.Err)
			fallback, stdErr := o.standard(ctx, question, history, drawing, intent, topK)
			if stdErr != nil {
				return nil, stdErr
			}
			fallback.TraceFlags = append(fallback.TraceFlags, "agentic fallback: "+failure.Err.Error())
			return fallback, nil
		}
		return response, err
	}
	return o.standard(ctx, question, history, drawing, intent, topK)
}

func (o *Orchestrator) agentic(ctx context.Context, question, history string, drawing *geometry.Drawing) (*Response, error) {
	agentDrawing := drawing
	if drawing.IsEmpty() {
		agentDrawing = nil
	}

	outcome, err := o.runner.Run(ctx, agent.Request{
		Question:         question,
		Drawing:          agentDrawing,
		DrawingUpdatedAt: drawing.UpdatedAt,
		History:          history,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			timeout := &TimeoutError{}
			if outcome != nil {
				timeout.Steps = outcome.Steps
			}
			return nil, timeout
		}
		return nil, err
	}

	hasDrawing := !drawing.IsEmpty()

	if answer.IsRefusal(outcome.Answer) {
		result := o.generator.NoAnswer(outcome.Answer)
		return o.responseFromResult(result, outcome), nil
	}

	response := &Response{
		Answer:             outcome.Answer,
		AnswerType:         agenticAnswerType(hasDrawing, len(outcome.Retrieved) > 0),
		Sources:            answer.SourcesFromResults(outcome.Retrieved, -1),
		DrawingContextUsed: hasDrawing,
		ReasoningSteps:     outcome.Steps,
		Iterations:         outcome.Iterations,
	}
	if outcome.CapReached {
		response.TraceFlags = append(response.TraceFlags, "iteration cap reached")
	}
	return response, nil
}

func agenticAnswerType(hasDrawing, hasSources bool) string {
	switch {
	case hasDrawing && hasSources:
		return answer.TypeHybrid
	case hasSources:
		return answer.TypePDF
	case hasDrawing:
		return answer.TypeDrawing
	default:
		return answer.TypePDF
	}
}

func (o *Orchestrator) standard(ctx context.Context, question, history string, drawing *geometry.Drawing, intent prompts.Intent, topK int) (*Response, error) {
	hasDrawing := !drawing.IsEmpty()

	// The prompt sees prior conversation; retrieval and intent work on
	// the bare question.
	promptQuery := question
	if history != "" {
		promptQuery = history + "\n\nCurrent question: " + question
	}

	if intent == prompts.IntentDrawingOnly && hasDrawing {
		result, err := o.generator.DrawingOnly(ctx, promptQuery, drawing, drawing.UpdatedAt)
		if err != nil {
			return nil, o.mapPipelineError(ctx, err)
		}
		return o.responseFromResult(result, nil), nil
	}

	results, err := o.retriever.Retrieve(ctx, question, topK)
	if err != nil {
		var unavailable *retrieval.UnavailableError
		if errors.As(err, &unavailable) {
			return o.demoteUnavailable(ctx, promptQuery, drawing, hasDrawing, unavailable)
		}
		return nil, o.mapPipelineError(ctx, err)
	}

	result, err := o.generator.FromResults(ctx, promptQuery, results, drawing, drawing.UpdatedAt, intent)
	if err != nil {
		return nil, o.mapPipelineError(ctx, err)
	}
	return o.responseFromResult(result, nil), nil
}

// demoteUnavailable answers without retrieval when the vector database
// is down: from the drawing when one is present, otherwise with the
// knowledge summary. Unavailability is never surfaced as an error from
// the standard pipeline.
func (o *Orchestrator) demoteUnavailable(ctx context.Context, promptQuery string, drawing *geometry.Drawing, hasDrawing bool, cause *retrieval.UnavailableError) (*Response, error) {
	o.logger.Warn("Retrieval unavailable, demoting", "error", cause.Err)

	if hasDrawing {
		result, err := o.generator.DrawingOnly(ctx, promptQuery, drawing, drawing.UpdatedAt)
		if err != nil {
			return nil, o.mapPipelineError(ctx, err)
		}
		response := o.responseFromResult(result, nil)
		response.TraceFlags = append(response.TraceFlags, "retrieval unavailable: answered from drawing")
		return response, nil
	}

	response := o.responseFromResult(o.generator.NoAnswer(retrievalDownMessage), nil)
	response.TraceFlags = append(response.TraceFlags, "retrieval unavailable: knowledge summary fallback")
	return response, nil
}

func (o *Orchestrator) mapPipelineError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return &TimeoutError{}
	}
	return err
}

func (o *Orchestrator) responseFromResult(result *answer.Result, outcome *agent.Outcome) *Response {
	response := &Response{
		Answer:             result.Answer,
		AnswerType:         result.Type,
		Sources:            result.Sources,
		DrawingContextUsed: result.DrawingContextUsed,
	}
	if result.KnowledgeSummary != nil {
		response.KnowledgeSummary = result.KnowledgeSummary
	}
	if outcome != nil {
		response.ReasoningSteps = outcome.Steps
		response.Iterations = outcome.Iterations
	}
	return response
}
