package models

import "strings"

// Tool names a knowledge-retrieval domain.
type Tool string

const (
	// ToolStructuredFacts is the character sheet: inventory, spells, features, narrative fields.
	ToolStructuredFacts Tool = "structured_facts"
	// ToolHistoricalNotes is the campaign session notes domain.
	ToolHistoricalNotes Tool = "historical_notes"
	// ToolRulesCorpus is the rulebook domain.
	ToolRulesCorpus Tool = "rules_corpus"
)

// AllTools returns every tool in the fixed order used for tie-breaking and plan output.
func AllTools() []Tool {
	return []Tool{ToolStructuredFacts, ToolHistoricalNotes, ToolRulesCorpus}
}

// Valid reports whether t is one of the known tools.
func (t Tool) Valid() bool {
	switch t {
	case ToolStructuredFacts, ToolHistoricalNotes, ToolRulesCorpus:
		return true
	default:
		return false
	}
}

// Rank returns the position of t in AllTools, or len(AllTools()) for unknown tools.
func (t Tool) Rank() int {
	for i, known := range AllTools() {
		if known == t {
			return i
		}
	}
	return len(AllTools())
}

// SectionTool maps a section id to the tool that owns it. Ids namespaced with
// "rules_corpus" or "historical_notes" belong to those tools; everything else is
// a character-sheet section.
func SectionTool(sectionID string) Tool {
	switch {
	case strings.HasPrefix(sectionID, string(ToolRulesCorpus)):
		return ToolRulesCorpus
	case strings.HasPrefix(sectionID, string(ToolHistoricalNotes)):
		return ToolHistoricalNotes
	default:
		return ToolStructuredFacts
	}
}

// RulesSectionID namespaces a rulebook section id.
func RulesSectionID(id string) string {
	return string(ToolRulesCorpus) + "." + id
}

// NotesSectionID namespaces a session-note id.
func NotesSectionID(id string) string {
	return string(ToolHistoricalNotes) + "." + id
}

// ClampConfidence forces c into [0,1].
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
