package knowledge

import (
	"context"

	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/models"
)

// MemoryStore serves all three domains from a Bundle held in memory.
// It is read-only after construction and safe for concurrent use.
type MemoryStore struct {
	records    []NamedRecord
	narratives []TextBlob
	notes      []AliasedRecord
	sections   []Section
	entries    []models.GazetteerEntry
}

// NewMemoryStore flattens b into provider records.
func NewMemoryStore(b *Bundle) *MemoryStore {
	s := &MemoryStore{
		records:    b.Character.namedRecords(),
		narratives: make([]TextBlob, 0, len(b.Character.Narratives)),
		notes:      make([]AliasedRecord, 0),
		sections:   make([]Section, 0, len(b.Rules)),
		entries:    b.GazetteerEntries(),
	}
	for _, n := range b.Character.Narratives {
		section := n.Section
		if section == "" {
			section = SectionBackstory
		}
		s.narratives = append(s.narratives, TextBlob{SectionID: section, Title: n.Title, Body: n.Body})
	}
	for _, note := range b.Notes {
		for _, e := range note.Entities {
			aliases := make([]string, len(e.Aliases))
			copy(aliases, e.Aliases)
			s.notes = append(s.notes, AliasedRecord{Name: e.Name, Aliases: aliases, SectionID: models.NotesSectionID(note.ID)})
		}
	}
	for _, r := range b.Rules {
		s.sections = append(s.sections, Section{SectionID: models.RulesSectionID(r.ID), Title: r.Title, Body: r.Body})
	}
	return s
}

// Providers returns s wired into every domain.
func (s *MemoryStore) Providers() Providers {
	return Providers{Facts: s, Notes: s, Rules: s}
}

// NamedRecords implements StructuredFactsProvider.
func (s *MemoryStore) NamedRecords(ctx context.Context) ([]NamedRecord, error) {
	return s.records, nil
}

// Narratives implements StructuredFactsProvider.
func (s *MemoryStore) Narratives(ctx context.Context) ([]TextBlob, error) {
	return s.narratives, nil
}

// NoteEntities implements HistoricalNotesProvider.
func (s *MemoryStore) NoteEntities(ctx context.Context) ([]AliasedRecord, error) {
	return s.notes, nil
}

// RulesSections implements RulesCorpusProvider.
func (s *MemoryStore) RulesSections(ctx context.Context) ([]Section, error) {
	return s.sections, nil
}

// GazetteerEntries implements LexiconSource.
func (s *MemoryStore) GazetteerEntries(ctx context.Context) ([]models.GazetteerEntry, error) {
	return s.entries, nil
}
