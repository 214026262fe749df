package knowledge

import (
	"fmt"
	"os"
	"strings"

	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/models"
	"gopkg.in/yaml.v3"
)

// Bundle is the canonical typed form of all knowledge content. Every source is
// normalized into it once at load time.
type Bundle struct {
	Character CharacterSheet `yaml:"character"`
	Notes     []SessionNote  `yaml:"notes"`
	Rules     []RulesSection `yaml:"rules"`
}

// CharacterSheet is the structured-facts domain.
type CharacterSheet struct {
	Name          string      `yaml:"name"`
	Inventory     []NamedItem `yaml:"inventory"`
	Spells        []NamedItem `yaml:"spells"`
	Features      []NamedItem `yaml:"features"`
	Proficiencies []NamedItem `yaml:"proficiencies"`
	Narratives    []Narrative `yaml:"narratives"`
}

// NamedItem is an item, spell, feature or proficiency.
type NamedItem struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
}

// Narrative is a free-text field such as the backstory. Section defaults to
// "backstory" when empty.
type Narrative struct {
	Section string `yaml:"section"`
	Title   string `yaml:"title"`
	Body    string `yaml:"body"`
}

// SessionNote is one session's notes and the entities it names.
type SessionNote struct {
	ID       string       `yaml:"id"`
	Title    string       `yaml:"title"`
	Summary  string       `yaml:"summary,omitempty"`
	Entities []NoteEntity `yaml:"entities"`
}

// NoteEntity is an NPC, place or item mentioned in a session.
type NoteEntity struct {
	Name    string   `yaml:"name"`
	Kind    string   `yaml:"kind,omitempty"`
	Aliases []string `yaml:"aliases,omitempty"`
}

// RulesSection is one rulebook section. Names lists the game terms the section
// defines; they feed the gazetteer.
type RulesSection struct {
	ID    string   `yaml:"id"`
	Title string   `yaml:"title"`
	Body  string   `yaml:"body"`
	Names []string `yaml:"names,omitempty"`
}

// NewBundle returns an empty bundle with all lists allocated.
func NewBundle() *Bundle {
	return &Bundle{
		Character: CharacterSheet{
			Inventory:     make([]NamedItem, 0),
			Spells:        make([]NamedItem, 0),
			Features:      make([]NamedItem, 0),
			Proficiencies: make([]NamedItem, 0),
			Narratives:    make([]Narrative, 0),
		},
		Notes: make([]SessionNote, 0),
		Rules: make([]RulesSection, 0),
	}
}

// LoadBundle reads and merges bundle files in order.
func LoadBundle(paths ...string) (*Bundle, error) {
	b := NewBundle()
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read knowledge file: %w", err)
		}
		var part Bundle
		if err := yaml.Unmarshal(data, &part); err != nil {
			return nil, fmt.Errorf("failed to parse knowledge file %s: %w", p, err)
		}
		b.Merge(&part)
	}
	return b, nil
}

// Merge appends other's content. A non-empty character name in other replaces b's.
func (b *Bundle) Merge(other *Bundle) {
	if other.Character.Name != "" {
		b.Character.Name = other.Character.Name
	}
	b.Character.Inventory = append(b.Character.Inventory, other.Character.Inventory...)
	b.Character.Spells = append(b.Character.Spells, other.Character.Spells...)
	b.Character.Features = append(b.Character.Features, other.Character.Features...)
	b.Character.Proficiencies = append(b.Character.Proficiencies, other.Character.Proficiencies...)
	for _, n := range other.Character.Narratives {
		if strings.TrimSpace(n.Section) == "" {
			n.Section = SectionBackstory
		}
		b.Character.Narratives = append(b.Character.Narratives, n)
	}
	b.Notes = append(b.Notes, other.Notes...)
	b.Rules = append(b.Rules, other.Rules...)
}

// GazetteerEntries derives lexicon entries from the bundle: sheet names, note
// entities with their aliases, and the terms rules sections define.
func (b *Bundle) GazetteerEntries() []models.GazetteerEntry {
	out := make([]models.GazetteerEntry, 0)
	add := func(name, canonical, typ, source string) {
		if strings.TrimSpace(name) == "" {
			return
		}
		out = append(out, models.GazetteerEntry{Name: name, Canonical: canonical, Type: typ, Source: source})
	}
	for _, r := range b.Character.namedRecords() {
		add(r.Name, r.Name, r.Kind, "character")
	}
	for _, n := range b.Notes {
		for _, e := range n.Entities {
			kind := e.Kind
			if kind == "" {
				kind = KindNPC
			}
			add(e.Name, e.Name, kind, "notes")
			for _, a := range e.Aliases {
				add(a, e.Name, kind, "notes")
			}
		}
	}
	for _, r := range b.Rules {
		for _, n := range r.Names {
			add(n, n, KindRule, "rules")
		}
	}
	return out
}

func (c *CharacterSheet) namedRecords() []NamedRecord {
	out := make([]NamedRecord, 0, len(c.Inventory)+len(c.Spells)+len(c.Features)+len(c.Proficiencies))
	groups := []struct {
		items   []NamedItem
		kind    string
		section string
	}{
		{c.Inventory, KindItem, SectionInventory},
		{c.Spells, KindSpell, SectionSpellList},
		{c.Features, KindFeature, SectionFeatures},
		{c.Proficiencies, KindProficiency, SectionProficiencies},
	}
	for _, g := range groups {
		for _, it := range g.items {
			if strings.TrimSpace(it.Name) == "" {
				continue
			}
			out = append(out, NamedRecord{Name: it.Name, Kind: g.kind, SectionID: g.section})
		}
	}
	return out
}
