package models

// ToolPlan is the retrieval request for one tool.
type ToolPlan struct {
	Tool                Tool            `json:"tool"`
	Intention           string          `json:"intention"`
	Confidence          float64         `json:"confidence"`
	Source              SelectionSource `json:"source"`
	Entities            []string        `json:"entities"`
	AutoIncludeSections []string        `json:"auto_include_sections"`
}

// QueryPlan is the final per-tool retrieval plan for a query.
type QueryPlan struct {
	QueryID        string                          `json:"query_id"`
	Query          string                          `json:"query"`
	Steps          []ToolPlan                      `json:"steps"`
	Entities       []Entity                        `json:"entities"`
	EntityResults  map[string][]EntitySearchResult `json:"entity_results"`
	Classification *ClassificationResult           `json:"classification,omitempty"`
}

// NewQueryPlan returns an empty plan with its containers allocated.
func NewQueryPlan(id, query string) *QueryPlan {
	return &QueryPlan{
		QueryID:       id,
		Query:         query,
		Steps:         make([]ToolPlan, 0),
		Entities:      make([]Entity, 0),
		EntityResults: make(map[string][]EntitySearchResult),
	}
}

// Step returns the plan step for t, if any.
func (p *QueryPlan) Step(t Tool) (ToolPlan, bool) {
	for _, s := range p.Steps {
		if s.Tool == t {
			return s, true
		}
	}
	return ToolPlan{}, false
}

// Empty reports whether the plan selects no tool.
func (p *QueryPlan) Empty() bool {
	return len(p.Steps) == 0
}
