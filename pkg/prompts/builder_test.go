package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planqa/planqa/pkg/retrieval"
)

func testResults() []retrieval.Result {
	return []retrieval.Result{
		{Document: "permitted_development.pdf", Page: 12, Snippet: "Rear extensions must not extend beyond 4 metres.", Score: 0.91},
		{Document: "building_regs_part_a.pdf", Page: 3, Snippet: "Structural walls require adequate foundations.", Score: 0.84},
	}
}

func TestFormatContexts(t *testing.T) {
	out := FormatContexts(testResults(), -1)

	assert.Contains(t, out, "Context 1 (Score: 0.91):")
	assert.Contains(t, out, "Source: permitted_development.pdf, Page 12")
	assert.Contains(t, out, "Context 2 (Score: 0.84):")
	assert.True(t, strings.Contains(out, "\n\n"))
}

func TestFormatContexts_SelectedMarker(t *testing.T) {
	out := FormatContexts(testResults(), 1)

	assert.Contains(t, out, "Context 2 (Score: 0.84) [SELECTED]:")
	assert.NotContains(t, out, "Context 1 (Score: 0.91) [SELECTED]")
}

func TestStandardQA_MultipleContexts(t *testing.T) {
	b := NewBuilder("gpt-4o-mini", 0)

	p := b.StandardQA("What is the maximum extension depth?", testResults(), "", "")

	assert.Equal(t, SystemGeneral, p.System)
	assert.Contains(t, p.User, "Context 1")
	assert.Contains(t, p.User, "Context 2")
	assert.Contains(t, p.User, "best context number (1-2)")
	assert.Contains(t, p.User, `Start with "[Using Context X]"`)
	assert.Contains(t, p.User, "Question: What is the maximum extension depth?")
}

func TestStandardQA_SingleContext(t *testing.T) {
	b := NewBuilder("gpt-4o-mini", 0)

	p := b.StandardQA("What about foundations?", testResults()[:1], "", "")

	assert.Contains(t, p.User, "I cannot answer this question based on the provided context.")
	assert.Contains(t, p.User, "Rear extensions must not extend beyond 4 metres.")
	assert.NotContains(t, p.User, "[Using Context X]")
}

func TestStandardQA_WithDrawing(t *testing.T) {
	b := NewBuilder("gpt-4o-mini", 0)

	p := b.StandardQA("Does my extension comply with the regulations?", testResults(),
		"User's Building Drawing:\n- Elements: 4", "15/03/2025, 14:30:05")

	assert.Contains(t, p.User, "User's Building Specifications:")
	assert.Contains(t, p.User, "and the user's building specifications")
	assert.Contains(t, p.User, "your drawing from 15/03/2025, 14:30:05")
	// Compliance question with a drawing triggers the structured answer
	// instructions.
	assert.Contains(t, p.User, "COMPLIANCE QUESTION INSTRUCTIONS")
}

func TestStandardQA_SingleContextDrawingSystemPrompt(t *testing.T) {
	b := NewBuilder("gpt-4o-mini", 0)

	p := b.StandardQA("How tall can my building be?", testResults()[:1],
		"drawing context", "15/03/2025, 14:30:05")

	assert.Contains(t, p.System, "YOU MUST START YOUR ANSWER WITH")
	assert.Contains(t, p.System, "15/03/2025, 14:30:05")
}

func TestFitContexts_DropsLowestRelevanceWholeChunks(t *testing.T) {
	// Tiny budget: only the top chunk fits.
	b := NewBuilder("gpt-4o-mini", 30)

	results := testResults()
	fitted := b.FitContexts(results)

	require.Len(t, fitted, 1)
	assert.Equal(t, "permitted_development.pdf", fitted[0].Document)
}

func TestFitContexts_KeepsAllWithinBudget(t *testing.T) {
	b := NewBuilder("gpt-4o-mini", 0)

	fitted := b.FitContexts(testResults())
	assert.Len(t, fitted, 2)
}

func TestDrawingOnly(t *testing.T) {
	b := NewBuilder("gpt-4o-mini", 0)

	p := b.DrawingOnly("Describe my drawing", "drawing context", `[{"layer":"Walls"}]`, "15/03/2025, 14:30:05")

	assert.Equal(t, SystemDrawingAnalysis, p.System)
	assert.Contains(t, p.User, "Based on the updated drawing from 15/03/2025, 14:30:05")
	assert.Contains(t, p.User, `[{"layer":"Walls"}]`)
	assert.Contains(t, p.User, "Do NOT make assumptions or reference external regulations")
}

func TestDrawingOnly_TruncatesJSONPreview(t *testing.T) {
	b := NewBuilder("gpt-4o-mini", 0)

	longJSON := strings.Repeat("x", 5000)
	p := b.DrawingOnly("q", "ctx", longJSON, "ts")

	assert.NotContains(t, p.User, strings.Repeat("x", 2001))
}

func TestComplianceWithAdjustment(t *testing.T) {
	b := NewBuilder("gpt-4o-mini", 0)

	p := b.ComplianceWithAdjustment("Make my drawing compliant", testResults(),
		"drawing context", `[{"layer":"Walls"}]`, "15/03/2025, 14:30:05")

	assert.Equal(t, SystemComplianceAdjustment, p.System)
	assert.Contains(t, p.User, "**COMPLIANCE ANALYSIS:**")
	assert.Contains(t, p.User, "**ADJUSTED COMPLIANT JSON:**")
	assert.Contains(t, p.User, "**VERIFICATION:**")
	// Full JSON, not the truncated preview.
	assert.Contains(t, p.User, `[{"layer":"Walls"}]`)
}

func TestQuestionNeverTruncated(t *testing.T) {
	b := NewBuilder("gpt-4o-mini", 20)

	question := "Is a rear extension of 3.5 metres allowed under permitted development rules for a detached house?"
	p := b.StandardQA(question, testResults(), "", "")

	assert.Contains(t, p.User, question)
}
