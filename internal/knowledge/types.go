// Package knowledge defines the three knowledge domains as typed records and the
// provider interfaces the resolver enumerates them through.
package knowledge

import (
	"context"
	"errors"

	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/models"
)

// ErrSourceUnavailable marks a knowledge domain that is not wired up or failed
// to answer. The resolver treats it as zero hits for that domain only.
var ErrSourceUnavailable = errors.New("knowledge source unavailable")

// Character-sheet section ids.
const (
	SectionInventory     = "inventory"
	SectionSpellList     = "spell_list"
	SectionFeatures      = "features_and_traits"
	SectionProficiencies = "proficiencies"
	SectionBackstory     = "backstory"
)

// Named-record kinds on the character sheet.
const (
	KindItem        = "ITEM"
	KindSpell       = "SPELL"
	KindFeature     = "FEATURE"
	KindProficiency = "PROFICIENCY"
	KindNPC         = "NPC"
	KindRule        = "RULE"
)

// NamedRecord is a named thing on the character sheet.
type NamedRecord struct {
	Name      string
	Kind      string
	SectionID string
}

// TextBlob is a free-text field whose title and body are scanned for names.
type TextBlob struct {
	SectionID string
	Title     string
	Body      string
}

// AliasedRecord is a named entity from the session notes.
type AliasedRecord struct {
	Name      string
	Aliases   []string
	SectionID string
}

// Section is one rulebook section.
type Section struct {
	SectionID string
	Title     string
	Body      string
}

// StructuredFactsProvider exposes the character sheet.
type StructuredFactsProvider interface {
	NamedRecords(ctx context.Context) ([]NamedRecord, error)
	Narratives(ctx context.Context) ([]TextBlob, error)
}

// HistoricalNotesProvider exposes named entities from the session notes.
type HistoricalNotesProvider interface {
	NoteEntities(ctx context.Context) ([]AliasedRecord, error)
}

// RulesCorpusProvider exposes the rulebook.
type RulesCorpusProvider interface {
	RulesSections(ctx context.Context) ([]Section, error)
}

// CandidateFilter ranks the rulebook sections most relevant to a name, best
// first. An empty result means "no opinion".
type CandidateFilter interface {
	CandidateSections(ctx context.Context, name string, limit int) ([]string, error)
}

// LexiconSource yields the gazetteer entries derived from stored knowledge.
type LexiconSource interface {
	GazetteerEntries(ctx context.Context) ([]models.GazetteerEntry, error)
}

// Providers groups one provider per domain. A nil field is an unwired domain.
type Providers struct {
	Facts StructuredFactsProvider
	Notes HistoricalNotesProvider
	Rules RulesCorpusProvider
}
