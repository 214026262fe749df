package router

import (
	"sort"

	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/models"
)

// DefaultMaxIntentionsPerTool keeps one selection per tool.
const DefaultMaxIntentionsPerTool = 1

// capSelections merges duplicate (tool, intention) pairs keeping the higher
// confidence, then keeps at most limit selections per tool, best first. Tools
// keep the order of their first appearance. A non-positive limit means no cap.
func capSelections(in []models.ToolSelection, limit int) []models.ToolSelection {
	order := make([]models.Tool, 0)
	byTool := make(map[models.Tool][]models.ToolSelection)
	for _, s := range in {
		group, seen := byTool[s.Tool]
		if !seen {
			order = append(order, s.Tool)
		}
		merged := false
		for i := range group {
			if group[i].Intention == s.Intention {
				if s.Confidence > group[i].Confidence {
					group[i].Confidence = s.Confidence
				}
				merged = true
				break
			}
		}
		if !merged {
			group = append(group, s)
		}
		byTool[s.Tool] = group
	}

	out := make([]models.ToolSelection, 0, len(in))
	for _, t := range order {
		group := byTool[t]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Confidence > group[j].Confidence
		})
		if limit > 0 && len(group) > limit {
			group = group[:limit]
		}
		out = append(out, group...)
	}
	return out
}
