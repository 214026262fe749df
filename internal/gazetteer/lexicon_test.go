package gazetteer

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/models"
)

type staticEntries struct {
	entries []models.GazetteerEntry
	err     error
}

func (s staticEntries) GazetteerEntries(ctx context.Context) ([]models.GazetteerEntry, error) {
	return s.entries, s.err
}

func TestLexicon_FilesOverrideKnowledge(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "items.yaml", `
type: ARTIFACT
names: ["Eldaryth of Regret"]
`)
	base := staticEntries{entries: []models.GazetteerEntry{
		{Name: "Eldaryth of Regret", Canonical: "Eldaryth of Regret", Type: "ITEM", Source: "character"},
		{Name: "Ghul'Vor", Canonical: "Ghul'Vor", Type: "NPC", Source: "notes"},
	}}

	l := NewLexicon(base, []string{path}, nil)
	if l.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", l.Size())
	}
	e, ok := l.Store().Matcher().Lookup("eldaryth of regret")
	if !ok || e.Type != "ARTIFACT" {
		t.Errorf("file entry should win: %+v", e)
	}
}

func TestLexicon_AddRemoveSource(t *testing.T) {
	dir := t.TempDir()
	npcs := writeFile(t, dir, "npcs.yaml", `
type: NPC
names: ["Ghul'Vor", "Sister Maelis"]
`)
	l := NewLexicon(nil, nil, nil)
	if l.Size() != 0 {
		t.Fatalf("empty lexicon Size() = %d", l.Size())
	}

	if err := l.AddSource(npcs); err != nil {
		t.Fatal(err)
	}
	if err := l.AddSource(npcs); err != nil {
		t.Fatal(err)
	}
	if got := l.Sources(); len(got) != 1 || got[0] != filepath.Clean(npcs) {
		t.Errorf("Sources() = %v", got)
	}
	if l.Size() != 2 {
		t.Errorf("after add Size() = %d, want 2", l.Size())
	}

	removed, err := l.RemoveSource(npcs)
	if err != nil || !removed {
		t.Fatalf("RemoveSource() = %v, %v", removed, err)
	}
	if l.Size() != 0 {
		t.Errorf("after remove Size() = %d, want 0", l.Size())
	}
	removed, err = l.RemoveSource(npcs)
	if err != nil || removed {
		t.Errorf("second RemoveSource() = %v, %v", removed, err)
	}
}

func TestLexicon_AddSourceRejectsUnreadable(t *testing.T) {
	l := NewLexicon(nil, nil, nil)
	if err := l.AddSource(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing source")
	}
	if len(l.Sources()) != 0 {
		t.Errorf("Sources() = %v", l.Sources())
	}
}

func TestLexicon_DegradedBaseKeepsFiles(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "npcs.yaml", `names: ["Ghul'Vor"]`)
	l := NewLexicon(staticEntries{err: errors.New("db down")}, []string{path}, nil)
	if l.Size() != 1 {
		t.Errorf("Size() = %d, want 1", l.Size())
	}
	if err := l.Reload(); !errors.Is(err, ErrExtractionUnavailable) {
		t.Errorf("Reload() error = %v, want ErrExtractionUnavailable", err)
	}
}
