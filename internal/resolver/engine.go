// Package resolver looks up extracted entity names in every knowledge domain and
// reports where each one was found.
package resolver

import (
	"context"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/fuzzy"
	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/knowledge"
	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/metrics"
	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/models"
)

const (
	// DefaultFuzzyThreshold is the minimum similarity for a fuzzy hit.
	DefaultFuzzyThreshold = 0.75

	exactScore     = 1.0
	substringScore = 0.9
	// Fuzzy hits always rank below substring hits.
	fuzzyCeiling = 0.89
	// Containment is only considered when the contained string has at least
	// this many runes after normalization.
	minSubstringLen = 3
	candidateLimit  = 50
)

// Engine resolves entity names against the three knowledge domains.
// It is safe for concurrent use.
type Engine struct {
	providers knowledge.Providers
	filter    knowledge.CandidateFilter
	threshold float64
	cache     *RulesCache
	logger    *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithFuzzyThreshold sets the minimum fuzzy similarity.
func WithFuzzyThreshold(t float64) Option {
	return func(e *Engine) {
		e.threshold = t
	}
}

// WithRulesCacheSize bounds the rules cache. Zero or less keeps every entry.
func WithRulesCacheSize(n int) Option {
	return func(e *Engine) {
		e.cache = NewRulesCache(n)
	}
}

// WithCandidateFilter ranks rules sections per name. The ranking picks the
// reported text among equally scored hits and never adds or removes hits.
func WithCandidateFilter(f knowledge.CandidateFilter) Option {
	return func(e *Engine) {
		e.filter = f
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// NewEngine creates an engine over the given providers. Nil providers are
// treated as unavailable domains.
func NewEngine(providers knowledge.Providers, opts ...Option) *Engine {
	e := &Engine{
		providers: providers,
		threshold: DefaultFuzzyThreshold,
		cache:     NewRulesCache(0),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

// Cache returns the rules cache.
func (e *Engine) Cache() *RulesCache {
	return e.cache
}

// hit is the best match of one name against one candidate.
type hit struct {
	sectionID  string
	text       string
	confidence float64
	strategy   models.MatchStrategy
}

// Resolve searches the domains implied by tools for each name. Every name in
// names gets a non-nil slice, ordered by confidence and then by tool order.
// Resolution never fails: an unavailable domain contributes no hits.
func (e *Engine) Resolve(ctx context.Context, names []string, tools []models.Tool) map[string][]models.EntitySearchResult {
	start := time.Now()
	out := make(map[string][]models.EntitySearchResult, len(names))
	queries := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := out[n]; ok {
			continue
		}
		out[n] = make([]models.EntitySearchResult, 0)
		queries = append(queries, n)
	}

	domains := make([]models.Tool, 0, len(tools))
	seen := make(map[models.Tool]bool)
	for _, t := range tools {
		if t.Valid() && !seen[t] {
			seen[t] = true
			domains = append(domains, t)
		}
	}
	if len(queries) == 0 || len(domains) == 0 {
		return out
	}

	perDomain := make([]map[string]models.EntitySearchResult, len(domains))
	var g errgroup.Group
	for i, tool := range domains {
		i, tool := i, tool
		g.Go(func() error {
			perDomain[i] = e.resolveDomain(ctx, tool, queries)
			return nil
		})
	}
	_ = g.Wait()

	for _, found := range perDomain {
		for name, r := range found {
			out[name] = append(out[name], r)
		}
	}
	for _, results := range out {
		sort.SliceStable(results, func(i, j int) bool {
			if results[i].MatchConfidence != results[j].MatchConfidence {
				return results[i].MatchConfidence > results[j].MatchConfidence
			}
			return results[i].Tool.Rank() < results[j].Tool.Rank()
		})
	}

	e.logger.Debug("entities resolved",
		zap.Int("names", len(queries)),
		zap.Int("domains", len(domains)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return out
}

func (e *Engine) resolveDomain(ctx context.Context, tool models.Tool, names []string) map[string]models.EntitySearchResult {
	switch tool {
	case models.ToolStructuredFacts:
		return e.resolveFacts(ctx, names)
	case models.ToolHistoricalNotes:
		return e.resolveNotes(ctx, names)
	case models.ToolRulesCorpus:
		return e.resolveRules(ctx, names)
	}
	return map[string]models.EntitySearchResult{}
}

func (e *Engine) unavailable(tool models.Tool, err error) map[string]models.EntitySearchResult {
	if err == nil {
		err = knowledge.ErrSourceUnavailable
	}
	metrics.SourceUnavailable.WithLabelValues(string(tool)).Inc()
	e.logger.Warn("knowledge source unavailable", zap.String("tool", string(tool)), zap.Error(err))
	return map[string]models.EntitySearchResult{}
}

func (e *Engine) resolveFacts(ctx context.Context, names []string) map[string]models.EntitySearchResult {
	p := e.providers.Facts
	if p == nil {
		return e.unavailable(models.ToolStructuredFacts, nil)
	}
	records, err := p.NamedRecords(ctx)
	if err != nil {
		return e.unavailable(models.ToolStructuredFacts, err)
	}
	blobs, err := p.Narratives(ctx)
	if err != nil {
		return e.unavailable(models.ToolStructuredFacts, err)
	}
	return e.matchAll(models.ToolStructuredFacts, names, factsCandidates(records, blobs))
}

func (e *Engine) resolveNotes(ctx context.Context, names []string) map[string]models.EntitySearchResult {
	p := e.providers.Notes
	if p == nil {
		return e.unavailable(models.ToolHistoricalNotes, nil)
	}
	records, err := p.NoteEntities(ctx)
	if err != nil {
		return e.unavailable(models.ToolHistoricalNotes, err)
	}
	return e.matchAll(models.ToolHistoricalNotes, names, notesCandidates(records))
}

func (e *Engine) resolveRules(ctx context.Context, names []string) map[string]models.EntitySearchResult {
	out := make(map[string]models.EntitySearchResult)
	misses := make([]string, 0, len(names))
	for _, name := range names {
		r, found, ok := e.cache.Get(fuzzy.Normalize(name))
		if !ok {
			metrics.RulesCacheLookups.WithLabelValues("miss").Inc()
			misses = append(misses, name)
			continue
		}
		metrics.RulesCacheLookups.WithLabelValues("hit").Inc()
		if found {
			r.EntityName = name
			out[name] = r
		}
	}
	if len(misses) == 0 {
		return out
	}

	p := e.providers.Rules
	if p == nil {
		e.unavailable(models.ToolRulesCorpus, nil)
		return out
	}
	sections, err := p.RulesSections(ctx)
	if err != nil {
		e.unavailable(models.ToolRulesCorpus, err)
		return out
	}
	all := make([]candidate, 0, len(sections))
	for _, s := range sections {
		all = append(all, rulesCandidates(s)...)
	}

	for _, name := range misses {
		r, found := e.match(models.ToolRulesCorpus, name, all, e.rank(ctx, name))
		e.cache.Set(fuzzy.Normalize(name), r, found)
		if found {
			out[name] = r
		}
	}
	return out
}

// rank asks the candidate filter which sections it considers most relevant to
// name. The ranking only breaks ties between equally scored hits; every section
// is still scored. It returns nil when there is no filter or the filter fails.
func (e *Engine) rank(ctx context.Context, name string) map[string]int {
	if e.filter == nil {
		return nil
	}
	ids, err := e.filter.CandidateSections(ctx, name, candidateLimit)
	if err != nil {
		e.logger.Debug("candidate filter failed", zap.String("name", name), zap.Error(err))
		return nil
	}
	out := make(map[string]int, len(ids))
	for i, id := range ids {
		if _, ok := out[id]; !ok {
			out[id] = i
		}
	}
	return out
}

func (e *Engine) matchAll(tool models.Tool, names []string, candidates []candidate) map[string]models.EntitySearchResult {
	out := make(map[string]models.EntitySearchResult)
	for _, name := range names {
		if r, ok := e.match(tool, name, candidates, nil); ok {
			out[name] = r
		}
	}
	return out
}

// match scores name against every candidate and folds the hits into one
// result for the domain. rank may be nil.
func (e *Engine) match(tool models.Tool, name string, candidates []candidate, rank map[string]int) (models.EntitySearchResult, bool) {
	norm := fuzzy.Normalize(name)
	if norm == "" {
		return models.EntitySearchResult{}, false
	}

	var best *hit
	sectionBest := make(map[string]float64)
	for _, c := range candidates {
		h, ok := e.score(norm, c)
		if !ok {
			continue
		}
		if prev, seen := sectionBest[h.sectionID]; !seen || h.confidence > prev {
			sectionBest[h.sectionID] = h.confidence
		}
		if best == nil || better(h, *best, rank) {
			best = &h
		}
	}
	if best == nil {
		return models.EntitySearchResult{}, false
	}

	sections := make([]string, 0, len(sectionBest))
	for id := range sectionBest {
		sections = append(sections, id)
	}
	sort.Slice(sections, func(i, j int) bool {
		ci, cj := sectionBest[sections[i]], sectionBest[sections[j]]
		if ci != cj {
			return ci > cj
		}
		return sections[i] < sections[j]
	})

	return models.EntitySearchResult{
		EntityName:      name,
		Tool:            tool,
		FoundInSections: sections,
		MatchConfidence: models.ClampConfidence(best.confidence),
		MatchedText:     best.text,
		MatchStrategy:   best.strategy,
	}, true
}

// better orders hits by confidence, then filter rank (ranked sections first),
// then section id and matched text, so the winner does not depend on scan order.
func better(a, b hit, rank map[string]int) bool {
	if a.confidence != b.confidence {
		return a.confidence > b.confidence
	}
	ra, aRanked := rank[a.sectionID]
	rb, bRanked := rank[b.sectionID]
	if aRanked != bRanked {
		return aRanked
	}
	if aRanked && ra != rb {
		return ra < rb
	}
	if a.sectionID != b.sectionID {
		return a.sectionID < b.sectionID
	}
	return a.text < b.text
}

// score applies the three strategies in order: exact, substring, fuzzy.
func (e *Engine) score(name string, c candidate) (hit, bool) {
	h := hit{sectionID: c.sectionID, text: c.text}
	if c.container {
		if runeLen(name) >= minSubstringLen && fuzzy.ContainsNormalized(c.norm, name) {
			h.confidence, h.strategy = substringScore, models.MatchSubstring
			return h, true
		}
		return h, false
	}
	if name == c.norm {
		h.confidence, h.strategy = exactScore, models.MatchExact
		return h, true
	}
	shorter := runeLen(name)
	if l := runeLen(c.norm); l < shorter {
		shorter = l
	}
	if shorter >= minSubstringLen && (fuzzy.ContainsNormalized(c.norm, name) || fuzzy.ContainsNormalized(name, c.norm)) {
		h.confidence, h.strategy = substringScore, models.MatchSubstring
		return h, true
	}
	if sim := fuzzy.Ratio(name, c.norm); sim >= e.threshold {
		h.confidence, h.strategy = math.Min(sim, fuzzyCeiling), models.MatchFuzzy
		return h, true
	}
	return h, false
}

func runeLen(s string) int {
	return len([]rune(s))
}
