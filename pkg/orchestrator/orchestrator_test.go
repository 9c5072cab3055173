package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planqa/planqa/pkg/agent"
	"github.com/planqa/planqa/pkg/answer"
	"github.com/planqa/planqa/pkg/geometry"
	"github.com/planqa/planqa/pkg/knowledge"
	"github.com/planqa/planqa/pkg/prompts"
	"github.com/planqa/planqa/pkg/retrieval"
	"github.com/planqa/planqa/pkg/session"
)

type fakeRetriever struct {
	results []retrieval.Result
	err     error
	queries []string
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string, topK int) ([]retrieval.Result, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type fakeGenerator struct {
	fromResults  *answer.Result
	drawingOnly  *answer.Result
	err          error
	lastQuery    string
	lastIntent   prompts.Intent
	drawingCalls int
	resultCalls  int
}

func (f *fakeGenerator) FromResults(ctx context.Context, query string, results []retrieval.Result, drawing *geometry.Drawing, updatedAt string, intent prompts.Intent) (*answer.Result, error) {
	f.resultCalls++
	f.lastQuery = query
	f.lastIntent = intent
	if f.err != nil {
		return nil, f.err
	}
	return f.fromResults, nil
}

func (f *fakeGenerator) DrawingOnly(ctx context.Context, query string, drawing *geometry.Drawing, updatedAt string) (*answer.Result, error) {
	f.drawingCalls++
	f.lastQuery = query
	if f.err != nil {
		return nil, f.err
	}
	return f.drawingOnly, nil
}

func (f *fakeGenerator) NoAnswer(message string) *answer.Result {
	return &answer.Result{
		Answer:           message,
		Type:             answer.TypeNoAnswer,
		KnowledgeSummary: knowledge.Fallback(),
	}
}

type fakeRunner struct {
	outcome  *agent.Outcome
	err      error
	requests []agent.Request
}

func (f *fakeRunner) Run(ctx context.Context, req agent.Request) (*agent.Outcome, error) {
	f.requests = append(f.requests, req)
	return f.outcome, f.err
}

func drawingJSON() json.RawMessage {
	return json.RawMessage(`[{"type":"polyline","layer":"Plot Boundary","points":[[0,0],[10000,0],[10000,10000],[0,10000]],"closed":true}]`)
}

func hybridResult() *answer.Result {
	return &answer.Result{
		Answer:             "Extensions are capped at 4 metres.",
		Type:               answer.TypeHybrid,
		Sources:            []answer.Source{{Type: "pdf", Document: "regs.pdf", Selected: true}},
		DrawingContextUsed: true,
	}
}

func newOrchestrator(r *fakeRetriever, g *fakeGenerator, runner AgentRunner) *Orchestrator {
	return New(r, g, runner, session.NewManager(), 0, nil)
}

func TestAnswer_EmptyQuestion(t *testing.T) {
	o := newOrchestrator(&fakeRetriever{}, &fakeGenerator{}, nil)

	_, err := o.Answer(context.Background(), Request{Question: ""})
	assert.ErrorIs(t, err, ErrInvalidQuestion)
}

func TestAnswer_WhitespaceOnlyQuestion(t *testing.T) {
	o := newOrchestrator(&fakeRetriever{}, &fakeGenerator{}, nil)

	_, err := o.Answer(context.Background(), Request{Question: "  \n\t "})
	assert.ErrorIs(t, err, ErrInvalidQuestion)
}

func TestAnswer_QuestionTooLong(t *testing.T) {
	o := newOrchestrator(&fakeRetriever{}, &fakeGenerator{}, nil)

	_, err := o.Answer(context.Background(), Request{Question: strings.Repeat("a", 4001)})
	assert.ErrorIs(t, err, ErrQuestionTooLong)
}

func TestAnswer_QuestionAtLimit(t *testing.T) {
	g := &fakeGenerator{fromResults: hybridResult()}
	o := newOrchestrator(&fakeRetriever{}, g, nil)

	_, err := o.Answer(context.Background(), Request{Question: strings.Repeat("a", 4000)})
	assert.NoError(t, err)
}

func TestAnswer_InvalidDrawing(t *testing.T) {
	o := newOrchestrator(&fakeRetriever{}, &fakeGenerator{}, nil)

	_, err := o.Answer(context.Background(), Request{
		Question: "How deep can I extend?",
		Drawing:  json.RawMessage(`{not json`),
	})
	assert.ErrorIs(t, err, ErrInvalidDrawing)
}

func TestAnswer_InvalidMode(t *testing.T) {
	o := newOrchestrator(&fakeRetriever{}, &fakeGenerator{}, nil)

	_, err := o.Answer(context.Background(), Request{Question: "hello", Mode: "turbo"})
	assert.ErrorIs(t, err, ErrInvalidMode)
}

func TestAnswer_StandardPipeline(t *testing.T) {
	r := &fakeRetriever{results: []retrieval.Result{{Document: "regs.pdf"}}}
	g := &fakeGenerator{fromResults: hybridResult()}
	o := newOrchestrator(r, g, nil)

	resp, err := o.Answer(context.Background(), Request{
		Question: "What are the rules for rear extensions?",
		Drawing:  drawingJSON(),
	})
	require.NoError(t, err)

	assert.Equal(t, answer.TypeHybrid, resp.AnswerType)
	assert.Equal(t, "Extensions are capped at 4 metres.", resp.Answer)
	assert.True(t, resp.DrawingContextUsed)
	assert.NotEmpty(t, resp.SessionID)
	require.Len(t, r.queries, 1)
	assert.Equal(t, "What are the rules for rear extensions?", r.queries[0])
}

func TestAnswer_SessionHistoryFlowsIntoPrompt(t *testing.T) {
	r := &fakeRetriever{}
	g := &fakeGenerator{fromResults: hybridResult()}
	o := newOrchestrator(r, g, nil)

	first, err := o.Answer(context.Background(), Request{Question: "What are the extension rules?"})
	require.NoError(t, err)

	_, err = o.Answer(context.Background(), Request{
		Question:  "And what about height?",
		SessionID: first.SessionID,
	})
	require.NoError(t, err)

	assert.Contains(t, g.lastQuery, "Previous conversation:")
	assert.Contains(t, g.lastQuery, "What are the extension rules?")
	assert.Contains(t, g.lastQuery, "Current question: And what about height?")

	// Retrieval always sees the bare question.
	assert.Equal(t, "And what about height?", r.queries[1])
}

func TestAnswer_DrawingOnlyShortcutSkipsRetrieval(t *testing.T) {
	r := &fakeRetriever{}
	g := &fakeGenerator{drawingOnly: &answer.Result{
		Answer:             "Your plot is 100 square metres.",
		Type:               answer.TypeDrawing,
		DrawingContextUsed: true,
	}}
	o := newOrchestrator(r, g, nil)

	resp, err := o.Answer(context.Background(), Request{
		Question: "Describe my drawing",
		Drawing:  drawingJSON(),
	})
	require.NoError(t, err)

	assert.Equal(t, answer.TypeDrawing, resp.AnswerType)
	assert.Equal(t, 1, g.drawingCalls)
	assert.Empty(t, r.queries)
}

func TestAnswer_DrawingOnlyIntentWithoutDrawingIsGeneral(t *testing.T) {
	r := &fakeRetriever{}
	g := &fakeGenerator{fromResults: &answer.Result{Answer: "x", Type: answer.TypePDF}}
	o := newOrchestrator(r, g, nil)

	_, err := o.Answer(context.Background(), Request{Question: "Describe my drawing"})
	require.NoError(t, err)

	assert.Equal(t, 0, g.drawingCalls)
	assert.Len(t, r.queries, 1)
	assert.Equal(t, prompts.IntentGeneral, g.lastIntent)
}

func TestAnswer_AutoModeRoutesAdjustmentToAgentic(t *testing.T) {
	runner := &fakeRunner{outcome: &agent.Outcome{
		Answer:     "Adjusted your design to a 3 metre depth.",
		Steps:      []agent.Step{{Step: 1, Action: "analyze_drawing_compliance"}},
		Retrieved:  []retrieval.Result{{Document: "regs.pdf"}},
		Iterations: 3,
	}}
	o := newOrchestrator(&fakeRetriever{}, &fakeGenerator{}, runner)

	resp, err := o.Answer(context.Background(), Request{
		Question: "Adjust my design so it complies",
		Drawing:  drawingJSON(),
	})
	require.NoError(t, err)

	require.Len(t, runner.requests, 1)
	assert.Equal(t, answer.TypeHybrid, resp.AnswerType)
	assert.Len(t, resp.ReasoningSteps, 1)
	assert.Equal(t, 3, resp.Iterations)
	require.Len(t, resp.Sources, 1)
	assert.False(t, resp.Sources[0].Selected)
}

func TestAnswer_AutoModeWithoutDrawingStaysStandard(t *testing.T) {
	runner := &fakeRunner{}
	r := &fakeRetriever{}
	g := &fakeGenerator{fromResults: &answer.Result{Answer: "x", Type: answer.TypePDF}}
	o := newOrchestrator(r, g, runner)

	_, err := o.Answer(context.Background(), Request{Question: "Adjust the rules summary"})
	require.NoError(t, err)

	assert.Empty(t, runner.requests)
	assert.Len(t, r.queries, 1)
}

func TestAnswer_ExplicitAgenticMode(t *testing.T) {
	runner := &fakeRunner{outcome: &agent.Outcome{Answer: "Done.", Iterations: 1}}
	o := newOrchestrator(&fakeRetriever{}, &fakeGenerator{}, runner)

	resp, err := o.Answer(context.Background(), Request{
		Question: "What are the extension rules?",
		Mode:     ModeAgentic,
	})
	require.NoError(t, err)

	require.Len(t, runner.requests, 1)
	assert.Nil(t, runner.requests[0].Drawing)
	assert.Equal(t, answer.TypePDF, resp.AnswerType)
}

func TestAnswer_AgenticFailureFallsBackToStandard(t *testing.T) {
	runner := &fakeRunner{err: &agent.FailureError{Err: errors.New("model unavailable")}}
	r := &fakeRetriever{results: []retrieval.Result{{Document: "regs.pdf"}}}
	g := &fakeGenerator{fromResults: hybridResult()}
	o := newOrchestrator(r, g, runner)

	resp, err := o.Answer(context.Background(), Request{
		Question: "Adjust my design so it complies",
		Drawing:  drawingJSON(),
	})
	require.NoError(t, err)

	assert.Equal(t, "Extensions are capped at 4 metres.", resp.Answer)
	assert.Len(t, r.queries, 1)
	require.Len(t, resp.TraceFlags, 1)
	assert.Contains(t, resp.TraceFlags[0], "agentic fallback")
}

func TestAnswer_AgenticTimeoutPreservesPartialTrace(t *testing.T) {
	runner := &fakeRunner{
		outcome: &agent.Outcome{Steps: []agent.Step{
			{Step: 1, Action: "retrieve_regulations"},
			{Step: 2, Action: "analyze_drawing_compliance"},
		}},
		err: context.DeadlineExceeded,
	}
	o := newOrchestrator(&fakeRetriever{}, &fakeGenerator{}, runner)

	_, err := o.Answer(context.Background(), Request{
		Question: "Adjust my design so it complies",
		Drawing:  drawingJSON(),
	})

	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Len(t, timeout.Steps, 2)
}

func TestAnswer_AgenticRefusalServesKnowledgeSummary(t *testing.T) {
	runner := &fakeRunner{outcome: &agent.Outcome{
		Answer:     "I cannot answer this question with the available tools.",
		Iterations: 2,
	}}
	o := newOrchestrator(&fakeRetriever{}, &fakeGenerator{}, runner)

	resp, err := o.Answer(context.Background(), Request{
		Question: "Adjust my design so it complies",
		Drawing:  drawingJSON(),
	})
	require.NoError(t, err)

	assert.Equal(t, answer.TypeNoAnswer, resp.AnswerType)
	require.NotNil(t, resp.KnowledgeSummary)
	assert.NotEmpty(t, resp.KnowledgeSummary.SuggestedQuestions)
}

func TestAnswer_AgenticCapReachedFlagsTrace(t *testing.T) {
	runner := &fakeRunner{outcome: &agent.Outcome{
		Answer:     "Partial findings only.",
		Iterations: 10,
		CapReached: true,
	}}
	o := newOrchestrator(&fakeRetriever{}, &fakeGenerator{}, runner)

	resp, err := o.Answer(context.Background(), Request{
		Question: "Adjust my design so it complies",
		Drawing:  drawingJSON(),
	})
	require.NoError(t, err)

	require.Len(t, resp.TraceFlags, 1)
	assert.Contains(t, resp.TraceFlags[0], "iteration cap")
}

func TestAnswer_RetrievalUnavailableDemotesToDrawing(t *testing.T) {
	r := &fakeRetriever{err: &retrieval.UnavailableError{Err: errors.New("connection refused")}}
	g := &fakeGenerator{drawingOnly: &answer.Result{
		Answer:             "Your plot is 100 square metres.",
		Type:               answer.TypeDrawing,
		DrawingContextUsed: true,
	}}
	o := newOrchestrator(r, g, nil)

	resp, err := o.Answer(context.Background(), Request{
		Question: "What are the rules for rear extensions?",
		Drawing:  drawingJSON(),
	})
	require.NoError(t, err)

	assert.Equal(t, answer.TypeDrawing, resp.AnswerType)
	assert.Equal(t, 1, g.drawingCalls)
	assert.Equal(t, 0, g.resultCalls)
	require.Len(t, resp.TraceFlags, 1)
	assert.Contains(t, resp.TraceFlags[0], "retrieval unavailable")
}

func TestAnswer_RetrievalUnavailableWithoutDrawingServesKnowledgeSummary(t *testing.T) {
	r := &fakeRetriever{err: &retrieval.UnavailableError{Err: errors.New("connection refused")}}
	o := newOrchestrator(r, &fakeGenerator{}, nil)

	resp, err := o.Answer(context.Background(), Request{Question: "What are the extension rules?"})
	require.NoError(t, err)

	assert.Equal(t, answer.TypeNoAnswer, resp.AnswerType)
	require.NotNil(t, resp.KnowledgeSummary)
	require.Len(t, resp.TraceFlags, 1)
	assert.Contains(t, resp.TraceFlags[0], "knowledge summary fallback")
}

func TestAnswer_GeneratorTimeoutMapsToTimeoutError(t *testing.T) {
	g := &fakeGenerator{err: context.DeadlineExceeded}
	o := newOrchestrator(&fakeRetriever{}, g, nil)

	_, err := o.Answer(context.Background(), Request{Question: "What are the extension rules?"})

	var timeout *TimeoutError
	assert.ErrorAs(t, err, &timeout)
}

func TestAnswer_SessionExchangeRecorded(t *testing.T) {
	g := &fakeGenerator{fromResults: &answer.Result{Answer: "Four metres.", Type: answer.TypePDF}}
	sessions := session.NewManager()
	o := New(&fakeRetriever{}, g, nil, sessions, 0, nil)

	resp, err := o.Answer(context.Background(), Request{Question: "How deep can rear extensions be?"})
	require.NoError(t, err)

	history := sessions.FormattedHistory(resp.SessionID)
	assert.Contains(t, history, "How deep can rear extensions be?")
	assert.Contains(t, history, "Four metres.")
}
