package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_DrawingOnly(t *testing.T) {
	queries := []string{
		"Describe my drawing please",
		"What are the dimensions of my plot?",
		"How big is my extension?",
		"What layers are in the design?",
	}
	for _, q := range queries {
		assert.Equal(t, IntentDrawingOnly, Classify(q, true), q)
	}
}

func TestClassify_ComplianceAdjustment(t *testing.T) {
	queries := []string{
		"Adjust my design to meet the rules",
		"Can you make it compliant?",
		"Give me a corrected json for my extension",
		"What should I change to get permission?",
	}
	for _, q := range queries {
		assert.Equal(t, IntentComplianceAdjustment, Classify(q, true), q)
	}
}

func TestClassify_General(t *testing.T) {
	assert.Equal(t, IntentGeneral, Classify("What is permitted development?", true))
	assert.Equal(t, IntentGeneral, Classify("Summarize fire safety requirements", true))
}

func TestClassify_NoDrawingAlwaysGeneral(t *testing.T) {
	assert.Equal(t, IntentGeneral, Classify("Describe my drawing", false))
	assert.Equal(t, IntentGeneral, Classify("Make it compliant", false))
}

func TestClassify_DrawingOnlyWinsOverAdjustment(t *testing.T) {
	// "what is the area" matches drawing-only; "change" matches adjustment.
	assert.Equal(t, IntentDrawingOnly, Classify("What is the area after the change?", true))
}

func TestClassify_CaseInsensitive(t *testing.T) {
	assert.Equal(t, IntentDrawingOnly, Classify("DESCRIBE MY DRAWING", true))
}

func TestDetectComplianceQuestion(t *testing.T) {
	assert.True(t, DetectComplianceQuestion("Does this comply with the regulation?"))
	assert.True(t, DetectComplianceQuestion("Is this allowed?"))
	assert.False(t, DetectComplianceQuestion("What is the weather today?"))
}

func TestDetectDrawingQuestion(t *testing.T) {
	assert.True(t, DetectDrawingQuestion("How high is my building?"))
	assert.False(t, DetectDrawingQuestion("Who enforces these codes?"))
}
