package prompts

import "strings"

// Intent is the routing decision for a question.
type Intent string

const (
	// IntentGeneral routes through retrieval plus standard answering.
	IntentGeneral Intent = "general"

	// IntentDrawingOnly skips retrieval and answers from the drawing.
	IntentDrawingOnly Intent = "drawing_only"

	// IntentComplianceAdjustment asks for a compliance verdict with an
	// adjusted drawing.
	IntentComplianceAdjustment Intent = "compliance_adjustment"
)

// Classification is keyword based and deterministic so routing is
// reproducible and testable without a model call.

var complianceKeywords = []string{
	"comply", "compliance", "permitted development",
	"allowed", "legal", "regulation", "requirement",
	"rule", "restriction", "permission",
}

var drawingKeywords = []string{
	"plot", "area", "dimension", "size", "building",
	"wall", "door", "window", "floor", "height",
	"width", "length", "room", "space", "layout",
	"my building", "my plot", "my property", "my extension",
	"my design", "my drawing",
}

var drawingOnlyKeywords = []string{
	"describe my drawing",
	"describe my building",
	"describe my design",
	"describe my plot",
	"describe my extension",
	"what does my drawing",
	"what is in my drawing",
	"what is my drawing",
	"show me my drawing",
	"tell me about my drawing",
	"tell me about my building",
	"tell me about my design",
	"analyze my drawing",
	"what are the dimensions",
	"what is the size",
	"what is the area",
	"how big is my",
	"how large is my",
	"what layers",
	"what elements",
}

var adjustmentKeywords = []string{
	"adjust", "fix", "correct", "modify", "change",
	"make it compliant", "make compliant", "how to make",
	"what should i change", "what changes", "how can i",
	"provide compliant", "give me compliant", "show me compliant",
	"adjusted json", "corrected json", "fixed json",
	"compliant version", "compliant design",
}

func containsAny(query string, keywords []string) bool {
	lower := strings.ToLower(query)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// DetectComplianceQuestion reports whether the question concerns
// regulations or compliance.
func DetectComplianceQuestion(query string) bool {
	return containsAny(query, complianceKeywords)
}

// DetectDrawingQuestion reports whether the question references the
// drawing or building specifications.
func DetectDrawingQuestion(query string) bool {
	return containsAny(query, drawingKeywords)
}

// DetectDrawingOnlyQuestion reports whether the question needs only the
// drawing, no retrieval.
func DetectDrawingOnlyQuestion(query string) bool {
	return containsAny(query, drawingOnlyKeywords)
}

// DetectAdjustmentRequest reports whether the user asks for a corrected,
// compliant version of the drawing.
func DetectAdjustmentRequest(query string) bool {
	return containsAny(query, adjustmentKeywords)
}

// Classify routes a question. Drawing-dependent intents require a
// drawing; without one every question is general.
func Classify(query string, hasDrawing bool) Intent {
	if !hasDrawing {
		return IntentGeneral
	}
	if DetectDrawingOnlyQuestion(query) {
		return IntentDrawingOnly
	}
	if DetectAdjustmentRequest(query) {
		return IntentComplianceAdjustment
	}
	return IntentGeneral
}
