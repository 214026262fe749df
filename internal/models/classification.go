package models

import "time"

// SelectionSource records why a tool ended up in a plan.
type SelectionSource string

const (
	// SourceClassifier marks a tool chosen by the router.
	SourceClassifier SelectionSource = "classifier"
	// SourceEntityFallback marks a tool added because entities were found in its domain.
	SourceEntityFallback SelectionSource = "entity_fallback"
)

// ToolSelection is one tool chosen for a query together with its sub-intention.
type ToolSelection struct {
	Tool       Tool            `json:"tool"`
	Intention  string          `json:"intention"`
	Confidence float64         `json:"confidence"`
	Source     SelectionSource `json:"source"`
}

// ClassificationResult is what a router backend produces for one query.
type ClassificationResult struct {
	ToolsNeeded     []ToolSelection  `json:"tools_needed"`
	ToolConfidences map[Tool]float64 `json:"tool_confidences"`
	Entities        []Entity         `json:"entities"`
	Backend         string           `json:"backend"`
	InferenceTime   time.Duration    `json:"inference_time"`
}

// NewClassificationResult returns an empty result with its containers allocated.
func NewClassificationResult(backend string) *ClassificationResult {
	return &ClassificationResult{
		ToolsNeeded:     make([]ToolSelection, 0),
		ToolConfidences: make(map[Tool]float64),
		Entities:        make([]Entity, 0),
		Backend:         backend,
	}
}

// HasTool reports whether t is among the selected tools.
func (c *ClassificationResult) HasTool(t Tool) bool {
	for _, s := range c.ToolsNeeded {
		if s.Tool == t {
			return true
		}
	}
	return false
}
