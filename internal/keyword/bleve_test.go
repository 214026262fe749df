package keyword

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/knowledge"
)

var testSections = []knowledge.Section{
	{SectionID: "rules_corpus.smite", Title: "Divine Smite", Body: "When you hit with a melee weapon attack, you can expend a spell slot to deal radiant damage."},
	{SectionID: "rules_corpus.fireball", Title: "Fireball", Body: "A bright streak flashes from your pointing finger."},
	{SectionID: "rules_corpus.grapple", Title: "Grappling", Body: "When you want to grab a creature, you can use the Attack action."},
}

func contains(ids []string, id string) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func TestRulesIndex_CandidateSections(t *testing.T) {
	idx, err := NewRulesIndex("")
	if err != nil {
		t.Fatalf("NewRulesIndex: %v", err)
	}
	defer func() {
		_ = idx.Close()
	}()
	ctx := context.Background()
	if err := idx.IndexSections(ctx, testSections); err != nil {
		t.Fatalf("IndexSections: %v", err)
	}

	tests := []struct {
		name string
		want string
	}{
		{"Divine Smite", "rules_corpus.smite"},
		{"Devine Smit", "rules_corpus.smite"},
		{"fireball", "rules_corpus.fireball"},
		{"radiant", "rules_corpus.smite"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids, err := idx.CandidateSections(ctx, tt.name, 10)
			if err != nil {
				t.Fatalf("CandidateSections: %v", err)
			}
			if !contains(ids, tt.want) {
				t.Errorf("CandidateSections(%q) = %v, want it to contain %q", tt.name, ids, tt.want)
			}
		})
	}
}

func TestRulesIndex_NoMatch(t *testing.T) {
	idx, err := NewRulesIndex("")
	if err != nil {
		t.Fatalf("NewRulesIndex: %v", err)
	}
	defer func() {
		_ = idx.Close()
	}()
	ctx := context.Background()
	if err := idx.IndexSections(ctx, testSections); err != nil {
		t.Fatal(err)
	}
	ids, err := idx.CandidateSections(ctx, "xyzzyqwv", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Errorf("expected no candidates, got %v", ids)
	}
	ids, err = idx.CandidateSections(ctx, "   ", 10)
	if err != nil || len(ids) != 0 {
		t.Errorf("blank name: got %v, %v", ids, err)
	}
}

func TestRulesIndex_ReopenAndSync(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.bleve")
	idx, err := NewRulesIndex(path)
	if err != nil {
		t.Fatalf("NewRulesIndex: %v", err)
	}
	mem := knowledge.NewMemoryStore(&knowledge.Bundle{
		Rules: []knowledge.RulesSection{{ID: "smite", Title: "Divine Smite", Body: "radiant"}},
	})
	n, err := idx.Sync(context.Background(), mem)
	if err != nil || n != 1 {
		t.Fatalf("Sync() = %d, %v", n, err)
	}
	if err := idx.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewRulesIndex(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() {
		_ = reopened.Close()
	}()
	count, err := reopened.DocCount()
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("DocCount() = %d, want 1", count)
	}
}
