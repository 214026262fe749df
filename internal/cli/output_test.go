package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/models"
)

func samplePlan() *models.QueryPlan {
	plan := models.NewQueryPlan("q-1", "What does Eldaryth of Regret do?")
	plan.Classification = models.NewClassificationResult("neural")
	plan.Entities = []models.Entity{models.NewEntity("Eldaryth of Regret", "Eldaryth of Regret", "ITEM", 1, 10, 28)}
	plan.EntityResults["Eldaryth of Regret"] = []models.EntitySearchResult{{
		EntityName:      "Eldaryth of Regret",
		Tool:            models.ToolStructuredFacts,
		FoundInSections: []string{"inventory"},
		MatchConfidence: 1,
		MatchStrategy:   models.MatchExact,
	}}
	plan.Steps = []models.ToolPlan{{
		Tool:                models.ToolStructuredFacts,
		Intention:           "character_basics",
		Confidence:          0.75,
		Source:              models.SourceEntityFallback,
		Entities:            []string{"Eldaryth of Regret"},
		AutoIncludeSections: []string{"inventory"},
	}}
	return plan
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"text", OutputText, false},
		{"", OutputText, false},
		{"JSON", OutputJSON, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOutputFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseOutputFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestWritePlan_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePlan(&buf, samplePlan(), OutputJSON); err != nil {
		t.Fatalf("WritePlan(json): %v", err)
	}
	var decoded models.QueryPlan
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if decoded.QueryID != "q-1" || len(decoded.Steps) != 1 {
		t.Errorf("unexpected decoded plan: %+v", decoded)
	}
	if decoded.Steps[0].AutoIncludeSections[0] != "inventory" {
		t.Errorf("auto include sections lost: %+v", decoded.Steps[0])
	}
}

func TestWritePlan_text(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePlan(&buf, samplePlan(), OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"1 step(s)",
		"structured_facts / character_basics",
		"entity_fallback",
		"sections: inventory",
		"Eldaryth of Regret: structured_facts exact 1.00 in inventory",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}
}

func TestWritePlan_textEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePlan(&buf, models.NewQueryPlan("q-2", "hello"), OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No tools selected") {
		t.Errorf("got %q", buf.String())
	}
}

func TestWriteEntities(t *testing.T) {
	report := &EntityReport{
		Query:    "Who is Zarnok?",
		Entities: []models.Entity{models.NewEntity("Zarnok", "Zarnok", "NPC", 1, 7, 13)},
		EntityResults: map[string][]models.EntitySearchResult{
			"Zarnok": {},
		},
	}
	var buf bytes.Buffer
	if err := WriteEntities(&buf, report, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Zarnok: not found in any domain") {
		t.Errorf("got %q", buf.String())
	}

	buf.Reset()
	if err := WriteEntities(&buf, report, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded EntityReport
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Query != report.Query || len(decoded.Entities) != 1 {
		t.Errorf("decoded = %+v", decoded)
	}
}
