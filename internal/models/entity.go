package models

// Entity is a named thing recognised in query text. Offsets are byte offsets into
// the query that produced it and have no meaning outside that query.
type Entity struct {
	Text       string  `json:"text"`
	Canonical  string  `json:"name"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
}

// NewEntity builds an Entity with its confidence clamped to [0,1].
func NewEntity(text, canonical, typ string, confidence float64, start, end int) Entity {
	return Entity{
		Text:       text,
		Canonical:  canonical,
		Type:       typ,
		Confidence: ClampConfidence(confidence),
		Start:      start,
		End:        end,
	}
}

// Len returns the span length in bytes.
func (e Entity) Len() int {
	return e.End - e.Start
}

// Overlaps reports whether the spans of e and o share at least one byte.
func (e Entity) Overlaps(o Entity) bool {
	return e.Start < o.End && o.Start < e.End
}

// GazetteerEntry is one known name in the lexicon, keyed by its lowercased Name.
type GazetteerEntry struct {
	Name      string `json:"name" yaml:"name"`
	Canonical string `json:"canonical" yaml:"canonical"`
	Type      string `json:"type" yaml:"type"`
	Source    string `json:"source,omitempty" yaml:"-"`
}

// MatchStrategy names how an entity was matched against domain content.
type MatchStrategy string

const (
	// MatchExact is normalized string equality.
	MatchExact MatchStrategy = "exact"
	// MatchSubstring is containment in either direction.
	MatchSubstring MatchStrategy = "substring"
	// MatchFuzzy is similarity above the resolver threshold.
	MatchFuzzy MatchStrategy = "fuzzy"
)

// EntitySearchResult is one (entity, domain) hit.
type EntitySearchResult struct {
	EntityName      string        `json:"entity_name"`
	Tool            Tool          `json:"tool"`
	FoundInSections []string      `json:"found_in_sections"`
	MatchConfidence float64       `json:"match_confidence"`
	MatchedText     string        `json:"matched_text"`
	MatchStrategy   MatchStrategy `json:"match_strategy"`
}
