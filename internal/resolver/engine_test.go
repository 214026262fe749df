package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/keyword"
	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/knowledge"
	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/models"
)

func fixture() *knowledge.MemoryStore {
	b := knowledge.NewBundle()
	b.Merge(&knowledge.Bundle{
		Character: knowledge.CharacterSheet{
			Name:      "Duskryn",
			Inventory: []knowledge.NamedItem{{Name: "Eldaryth of Regret"}, {Name: "Bag of Holding"}},
			Spells:    []knowledge.NamedItem{{Name: "Shield of Faith"}},
			Features:  []knowledge.NamedItem{{Name: "Divine Smite"}},
			Narratives: []knowledge.Narrative{{
				Section: knowledge.SectionBackstory,
				Title:   "Oath",
				Body:    "Duskryn swore his oath the night Eldaryth of Regret first spoke.",
			}},
		},
		Notes: []knowledge.SessionNote{
			{ID: "session_04", Entities: []knowledge.NoteEntity{{Name: "Ghul'Vor", Aliases: []string{"The Hollow King"}}}},
			{ID: "session_07", Entities: []knowledge.NoteEntity{{Name: "Eldaryth of Regret", Kind: knowledge.KindItem}}},
		},
		Rules: []knowledge.RulesSection{
			{ID: "smite", Title: "Divine Smite", Body: "Expend a slot to deal **radiant damage**.\n## Improved Divine Smite\nAt 11th level..."},
			{ID: "firebolt", Title: "Fire Bolt", Body: "You hurl a mote of fire. __Cantrip__"},
		},
	})
	return knowledge.NewMemoryStore(b)
}

type failingNotes struct{}

func (failingNotes) NoteEntities(ctx context.Context) ([]knowledge.AliasedRecord, error) {
	return nil, errors.New("db down")
}

type countingRules struct {
	knowledge.RulesCorpusProvider
	calls int
}

func (c *countingRules) RulesSections(ctx context.Context) ([]knowledge.Section, error) {
	c.calls++
	return c.RulesCorpusProvider.RulesSections(ctx)
}

type stubFilter struct {
	ids []string
	err error
}

func (s stubFilter) CandidateSections(ctx context.Context, name string, limit int) ([]string, error) {
	return s.ids, s.err
}

func TestEngine_ExactAcrossDomains(t *testing.T) {
	e := NewEngine(fixture().Providers())
	got := e.Resolve(context.Background(), []string{"Eldaryth of Regret"}, models.AllTools())

	results := got["Eldaryth of Regret"]
	require.Len(t, results, 2)

	facts := results[0]
	assert.Equal(t, models.ToolStructuredFacts, facts.Tool)
	assert.Equal(t, 1.0, facts.MatchConfidence)
	assert.Equal(t, models.MatchExact, facts.MatchStrategy)
	assert.Equal(t, "Eldaryth of Regret", facts.MatchedText)
	assert.Equal(t, []string{"inventory", "backstory"}, facts.FoundInSections)

	notes := results[1]
	assert.Equal(t, models.ToolHistoricalNotes, notes.Tool)
	assert.Equal(t, []string{"historical_notes.session_07"}, notes.FoundInSections)
}

func TestEngine_Substring(t *testing.T) {
	e := NewEngine(fixture().Providers())
	got := e.Resolve(context.Background(), []string{"Smite"}, []models.Tool{models.ToolRulesCorpus})

	results := got["Smite"]
	require.Len(t, results, 1)
	r := results[0]
	assert.Equal(t, models.ToolRulesCorpus, r.Tool)
	assert.Equal(t, models.MatchSubstring, r.MatchStrategy)
	assert.Equal(t, 0.9, r.MatchConfidence)
	assert.Equal(t, "Divine Smite", r.MatchedText)
	assert.Equal(t, []string{"rules_corpus.smite"}, r.FoundInSections)
}

func TestEngine_Fuzzy(t *testing.T) {
	e := NewEngine(fixture().Providers())
	got := e.Resolve(context.Background(), []string{"Eldarith of Regret"}, []models.Tool{models.ToolStructuredFacts})

	results := got["Eldarith of Regret"]
	require.Len(t, results, 1)
	assert.Equal(t, models.MatchFuzzy, results[0].MatchStrategy)
	assert.Equal(t, fuzzyCeiling, results[0].MatchConfidence)
	assert.Equal(t, []string{"inventory"}, results[0].FoundInSections)
}

func TestEngine_ThresholdRejects(t *testing.T) {
	e := NewEngine(fixture().Providers(), WithFuzzyThreshold(0.99))
	got := e.Resolve(context.Background(), []string{"Eldarith of Regret"}, models.AllTools())
	assert.Empty(t, got["Eldarith of Regret"])
}

func TestEngine_ConfidenceOrdering(t *testing.T) {
	e := NewEngine(fixture().Providers())
	// exact in facts and rules; substring in rules ("Improved Divine Smite") does not
	// outrank the exact title.
	got := e.Resolve(context.Background(), []string{"Divine Smite"}, models.AllTools())
	results := got["Divine Smite"]
	require.Len(t, results, 2)
	assert.Equal(t, models.ToolStructuredFacts, results[0].Tool)
	assert.Equal(t, models.ToolRulesCorpus, results[1].Tool)
	assert.Equal(t, []string{"rules_corpus.smite"}, results[1].FoundInSections)
	for _, rs := range got {
		for i := 1; i < len(rs); i++ {
			assert.GreaterOrEqual(t, rs[i-1].MatchConfidence, rs[i].MatchConfidence)
		}
	}
}

func TestEngine_ScopedResolution(t *testing.T) {
	e := NewEngine(fixture().Providers())
	got := e.Resolve(context.Background(), []string{"Eldaryth of Regret", "Divine Smite"}, []models.Tool{models.ToolHistoricalNotes})
	for name, results := range got {
		for _, r := range results {
			assert.Equal(t, models.ToolHistoricalNotes, r.Tool, name)
		}
	}
	assert.Len(t, got["Eldaryth of Regret"], 1)
	assert.Empty(t, got["Divine Smite"])
}

func TestEngine_AliasMatch(t *testing.T) {
	e := NewEngine(fixture().Providers())
	got := e.Resolve(context.Background(), []string{"the hollow king"}, models.AllTools())
	results := got["the hollow king"]
	require.Len(t, results, 1)
	assert.Equal(t, "The Hollow King", results[0].MatchedText)
	assert.Equal(t, []string{"historical_notes.session_04"}, results[0].FoundInSections)
}

func TestEngine_MissingProviderDegrades(t *testing.T) {
	p := fixture().Providers()
	e := NewEngine(knowledge.Providers{Facts: p.Facts, Notes: failingNotes{}})
	got := e.Resolve(context.Background(), []string{"Eldaryth of Regret"}, models.AllTools())
	results := got["Eldaryth of Regret"]
	require.Len(t, results, 1)
	assert.Equal(t, models.ToolStructuredFacts, results[0].Tool)
}

func TestEngine_EveryNameHasSlice(t *testing.T) {
	e := NewEngine(knowledge.Providers{})
	got := e.Resolve(context.Background(), []string{"Nobody", "Nobody", ""}, models.AllTools())
	require.Len(t, got, 2)
	for name, results := range got {
		assert.NotNil(t, results, name)
		assert.Empty(t, results, name)
	}

	got = e.Resolve(context.Background(), []string{"Nobody"}, nil)
	assert.NotNil(t, got["Nobody"])
}

func TestEngine_RulesCache(t *testing.T) {
	rules := &countingRules{RulesCorpusProvider: fixture()}
	e := NewEngine(knowledge.Providers{Rules: rules})
	ctx := context.Background()
	tools := []models.Tool{models.ToolRulesCorpus}

	first := e.Resolve(ctx, []string{"Fire Bolt", "Nobody"}, tools)
	second := e.Resolve(ctx, []string{"fire bolt!", "nobody"}, tools)

	assert.Equal(t, 1, rules.calls)
	assert.Equal(t, 2, e.Cache().Len())
	require.Len(t, first["Fire Bolt"], 1)
	require.Len(t, second["fire bolt!"], 1)
	assert.Equal(t, "fire bolt!", second["fire bolt!"][0].EntityName)
	assert.Empty(t, second["nobody"])

	// cached results are copies
	second["fire bolt!"][0].FoundInSections[0] = "mutated"
	third := e.Resolve(ctx, []string{"Fire Bolt"}, tools)
	assert.Equal(t, []string{"rules_corpus.firebolt"}, third["Fire Bolt"][0].FoundInSections)
}

func TestEngine_CandidateFilterNeverChangesHits(t *testing.T) {
	tools := []models.Tool{models.ToolRulesCorpus}
	ctx := context.Background()
	want := NewEngine(fixture().Providers()).Resolve(ctx, []string{"Divine Smite"}, tools)["Divine Smite"]
	require.Len(t, want, 1)

	tests := []struct {
		name   string
		filter stubFilter
	}{
		{"ranks another section", stubFilter{ids: []string{"rules_corpus.firebolt"}}},
		{"ranks matching section", stubFilter{ids: []string{"rules_corpus.smite"}}},
		{"no opinion", stubFilter{ids: []string{}}},
		{"unknown ids", stubFilter{ids: []string{"rules_corpus.missing"}}},
		{"filter error", stubFilter{err: errors.New("index closed")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine(fixture().Providers(), WithCandidateFilter(tt.filter))
			got := e.Resolve(ctx, []string{"Divine Smite"}, tools)
			assert.Equal(t, want, got["Divine Smite"])
		})
	}
}

func rulesStore(sections ...knowledge.RulesSection) *knowledge.MemoryStore {
	b := knowledge.NewBundle()
	b.Merge(&knowledge.Bundle{Rules: sections})
	return knowledge.NewMemoryStore(b)
}

func TestEngine_CandidateFilterBreaksTies(t *testing.T) {
	store := rulesStore(
		knowledge.RulesSection{ID: "basics", Title: "Cantrip Basics"},
		knowledge.RulesSection{ID: "scaling", Title: "Cantrip Scaling"},
	)
	tools := []models.Tool{models.ToolRulesCorpus}
	ctx := context.Background()

	plain := NewEngine(store.Providers()).Resolve(ctx, []string{"Cantrip"}, tools)["Cantrip"]
	require.Len(t, plain, 1)
	assert.Equal(t, "Cantrip Basics", plain[0].MatchedText)

	ranked := NewEngine(store.Providers(), WithCandidateFilter(stubFilter{ids: []string{"rules_corpus.scaling"}})).
		Resolve(ctx, []string{"Cantrip"}, tools)["Cantrip"]
	require.Len(t, ranked, 1)
	assert.Equal(t, "Cantrip Scaling", ranked[0].MatchedText)
	assert.Equal(t, plain[0].FoundInSections, ranked[0].FoundInSections)
	assert.Equal(t, plain[0].MatchConfidence, ranked[0].MatchConfidence)
	assert.Equal(t, []string{"rules_corpus.basics", "rules_corpus.scaling"}, ranked[0].FoundInSections)
}

func TestEngine_RulesIndexKeepsFullScanHits(t *testing.T) {
	store := rulesStore(
		knowledge.RulesSection{ID: "thunderwave", Title: "Thunder-Wave", Body: "A wave of thunderous force sweeps out from you."},
		knowledge.RulesSection{ID: "cantrips", Title: "Cantrips", Body: "Cantrips are spells you can cast at will."},
	)
	ctx := context.Background()
	tools := []models.Tool{models.ToolRulesCorpus}

	idx, err := keyword.NewRulesIndex("")
	require.NoError(t, err)
	defer idx.Close()
	_, err = idx.Sync(ctx, store)
	require.NoError(t, err)

	want := NewEngine(store.Providers()).Resolve(ctx, []string{"Thunderwave cantrip"}, tools)["Thunderwave cantrip"]
	require.Len(t, want, 1)
	assert.Equal(t, models.MatchSubstring, want[0].MatchStrategy)
	assert.Equal(t, []string{"rules_corpus.thunderwave"}, want[0].FoundInSections)

	e := NewEngine(store.Providers(), WithCandidateFilter(idx))
	got := e.Resolve(ctx, []string{"Thunderwave cantrip"}, tools)["Thunderwave cantrip"]
	assert.Equal(t, want, got)

	// served from the cache the second time
	again := e.Resolve(ctx, []string{"Thunderwave cantrip"}, tools)["Thunderwave cantrip"]
	assert.Equal(t, want, again)
}
