package router

import "github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/models"

// Intention tables. The first intention of each tool is its default.
var intentions = map[models.Tool][]string{
	models.ToolStructuredFacts: {
		"character_basics",
		"combat_info",
		"abilities_info",
		"inventory_info",
		"magic_info",
		"story_info",
		"social_info",
		"progress_info",
		"full_character",
	},
	models.ToolHistoricalNotes: {
		"key_events",
		"npc_info",
		"location_details",
		"item_tracking",
		"combat_recap",
		"character_decisions",
		"quest_tracking",
		"party_dynamics",
		"world_lore",
	},
	models.ToolRulesCorpus: {
		"describe_entity",
		"explain_rule",
		"compare_entities",
		"level_progression",
		"action_options",
		"condition_effects",
		"calculate_values",
		"spell_details",
		"class_features",
	},
}

// Intentions returns a copy of the intention set of t in table order.
func Intentions(t models.Tool) []string {
	src := intentions[t]
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// DefaultIntention returns the default intention of t, or "" for an unknown tool.
func DefaultIntention(t models.Tool) string {
	if set := intentions[t]; len(set) > 0 {
		return set[0]
	}
	return ""
}

// ValidIntention reports whether intention belongs to t.
func ValidIntention(t models.Tool, intention string) bool {
	for _, i := range intentions[t] {
		if i == intention {
			return true
		}
	}
	return false
}

// IntentionLabels returns every (tool, intention) pair in model output order:
// tools in AllTools order, intentions in table order.
func IntentionLabels() []IntentionLabel {
	out := make([]IntentionLabel, 0)
	for _, t := range models.AllTools() {
		for _, i := range intentions[t] {
			out = append(out, IntentionLabel{Tool: t, Intention: i})
		}
	}
	return out
}

// IntentionLabel is one output slot of the intention head.
type IntentionLabel struct {
	Tool      models.Tool
	Intention string
}
