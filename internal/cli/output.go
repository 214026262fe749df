// Package cli provides output formatting for the scribe command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/models"
	"github.com/calvin-seamons/ShadowScribe2.0-sub001/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat maps a flag value to a format.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

// EntityReport is the output of the extract command.
type EntityReport struct {
	Query         string                                 `json:"query"`
	Entities      []models.Entity                        `json:"entities"`
	EntityResults map[string][]models.EntitySearchResult `json:"entity_results"`
}

// WritePlan writes a query plan to w in the given format.
func WritePlan(w io.Writer, plan *models.QueryPlan, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, plan)
	}
	writePlanText(w, plan)
	return nil
}

// WriteEntities writes an entity report to w in the given format.
func WriteEntities(w io.Writer, report *EntityReport, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, report)
	}
	writeEntitiesText(w, report.Entities, report.EntityResults)
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writePlanText(w io.Writer, plan *models.QueryPlan) {
	fmt.Fprintf(w, "\nQuery: %s\n", utils.Truncate(plan.Query, 120))
	if c := plan.Classification; c != nil {
		fmt.Fprintf(w, "Classified by %s in %s\n", c.Backend, c.InferenceTime)
	}
	if plan.Empty() {
		fmt.Fprintln(w, "\nNo tools selected and nothing recognised.")
		return
	}
	fmt.Fprintf(w, "\n%d step(s)\n", len(plan.Steps))
	for i, step := range plan.Steps {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "%d. %s / %s  (confidence %.2f, %s)\n", i+1, step.Tool, step.Intention, step.Confidence, step.Source)
		if len(step.Entities) > 0 {
			fmt.Fprintf(w, "   entities: %s\n", strings.Join(step.Entities, ", "))
		}
		if len(step.AutoIncludeSections) > 0 {
			fmt.Fprintf(w, "   sections: %s\n", strings.Join(step.AutoIncludeSections, ", "))
		}
	}
	if len(plan.Entities) > 0 {
		fmt.Fprintln(w)
		writeEntitiesText(w, plan.Entities, plan.EntityResults)
	}
}

func writeEntitiesText(w io.Writer, entities []models.Entity, results map[string][]models.EntitySearchResult) {
	if len(entities) == 0 {
		fmt.Fprintln(w, "No entities found.")
		return
	}
	fmt.Fprintf(w, "%d entit(ies)\n", len(entities))
	for _, e := range entities {
		fmt.Fprintf(w, "  %q -> %s [%s] %.2f @%d-%d\n", e.Text, e.Canonical, e.Type, e.Confidence, e.Start, e.End)
	}
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		hits := results[name]
		if len(hits) == 0 {
			fmt.Fprintf(w, "  %s: not found in any domain\n", name)
			continue
		}
		for _, r := range hits {
			fmt.Fprintf(w, "  %s: %s %s %.2f in %s\n", name, r.Tool, r.MatchStrategy, r.MatchConfidence,
				utils.Truncate(strings.Join(r.FoundInSections, ", "), 80))
		}
	}
}
