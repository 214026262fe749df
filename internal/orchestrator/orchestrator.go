// Package orchestrator turns a query into a per-tool retrieval plan by joining
// the router's tool selection with the entities found in the query.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/metrics"
	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/models"
	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/router"
)

// DefaultFallbackConfidence is the confidence of a tool added on entity evidence alone.
const DefaultFallbackConfidence = 0.75

// EntityExtractor finds entities in query text.
type EntityExtractor interface {
	Extract(text string) []models.Entity
}

// EntityResolver finds entity names in knowledge domains.
type EntityResolver interface {
	Resolve(ctx context.Context, names []string, tools []models.Tool) map[string][]models.EntitySearchResult
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithFallbackConfidence overrides the fallback confidence.
func WithFallbackConfidence(c float64) Option {
	return func(o *Orchestrator) {
		o.fallbackConfidence = models.ClampConfidence(c)
	}
}

// WithFallbackIntentions overrides the default intention used for fallback
// tools. Intentions that do not belong to their tool are ignored.
func WithFallbackIntentions(m map[models.Tool]string) Option {
	return func(o *Orchestrator) {
		for t, i := range m {
			if router.ValidIntention(t, i) {
				o.fallbackIntentions[t] = i
			}
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// WithIDGenerator replaces the query id generator.
func WithIDGenerator(f func() string) Option {
	return func(o *Orchestrator) {
		o.newID = f
	}
}

// Orchestrator runs the planning pipeline. It holds no per-query state.
type Orchestrator struct {
	router             router.Router
	extractor          EntityExtractor
	resolver           EntityResolver
	fallbackConfidence float64
	fallbackIntentions map[models.Tool]string
	newID              func() string
	logger             *zap.Logger
}

// New creates an orchestrator.
func New(r router.Router, extractor EntityExtractor, resolver EntityResolver, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		router:             r,
		extractor:          extractor,
		resolver:           resolver,
		fallbackConfidence: DefaultFallbackConfidence,
		fallbackIntentions: make(map[models.Tool]string),
		newID:              func() string { return uuid.New().String() },
	}
	for _, t := range models.AllTools() {
		o.fallbackIntentions[t] = router.DefaultIntention(t)
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return o
}

// Plan classifies the query and extracts entities concurrently, resolves the
// entities against every domain, adds tools the classifier missed but entities
// point to, and emits one step per selected tool. A query with no tools and no
// entities yields an empty plan, not an error. Classification failures are
// returned as *router.ClassificationError.
func (o *Orchestrator) Plan(ctx context.Context, query string, qctx *router.QueryContext) (*models.QueryPlan, error) {
	start := time.Now()

	var classification *models.ClassificationResult
	var entities []models.Entity
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := o.router.Classify(gctx, query, qctx)
		if err != nil {
			return err
		}
		classification = res
		return nil
	})
	g.Go(func() error {
		entities = o.extract(query)
		return nil
	})
	if err := g.Wait(); err != nil {
		o.logger.Warn("classification failed", zap.String("query", query), zap.Error(err))
		return nil, err
	}
	if classification == nil {
		return nil, &router.ClassificationError{Backend: o.router.Backend(), Stage: "classify", Err: fmt.Errorf("no result")}
	}

	plan := models.NewQueryPlan(o.newID(), query)
	plan.Entities = entities
	plan.Classification = classification
	if len(classification.Entities) == 0 {
		classification.Entities = entities
	}
	if results := o.resolver.Resolve(ctx, entityNames(entities), models.AllTools()); results != nil {
		plan.EntityResults = results
	}

	dist := distribute(entities, plan.EntityResults)

	for _, t := range dist.tools {
		if classification.HasTool(t) {
			continue
		}
		classification.ToolsNeeded = append(classification.ToolsNeeded, models.ToolSelection{
			Tool:       t,
			Intention:  o.fallbackIntentions[t],
			Confidence: o.fallbackConfidence,
			Source:     models.SourceEntityFallback,
		})
		metrics.FallbackTools.WithLabelValues(string(t)).Inc()
		o.logger.Debug("tool added on entity evidence", zap.String("tool", string(t)))
	}

	for _, sel := range classification.ToolsNeeded {
		plan.Steps = append(plan.Steps, models.ToolPlan{
			Tool:                sel.Tool,
			Intention:           sel.Intention,
			Confidence:          sel.Confidence,
			Source:              sel.Source,
			Entities:            cloneStrings(dist.entities[sel.Tool]),
			AutoIncludeSections: cloneStrings(dist.sections[sel.Tool]),
		})
	}

	elapsed := time.Since(start)
	metrics.PlanLatency.Observe(elapsed.Seconds())
	o.logger.Debug("query planned",
		zap.String("query_id", plan.QueryID),
		zap.Int("steps", len(plan.Steps)),
		zap.Int("entities", len(plan.Entities)),
		zap.Duration("elapsed", elapsed),
	)
	return plan, nil
}

// ExtractEntities runs extraction and resolution only, for diagnostics.
func (o *Orchestrator) ExtractEntities(ctx context.Context, query string) ([]models.Entity, map[string][]models.EntitySearchResult) {
	entities := o.extract(query)
	return entities, o.resolver.Resolve(ctx, entityNames(entities), models.AllTools())
}

func (o *Orchestrator) extract(query string) []models.Entity {
	if o.extractor == nil {
		return make([]models.Entity, 0)
	}
	entities := o.extractor.Extract(query)
	if entities == nil {
		entities = make([]models.Entity, 0)
	}
	return entities
}

// distribution is the per-tool view of the resolved entities.
type distribution struct {
	tools    []models.Tool
	entities map[models.Tool][]string
	sections map[models.Tool][]string
}

// distribute inverts entity results into per-tool entity and section lists.
// Sections are assigned to tools by their id prefix. Entities keep extraction
// order; tools are listed in fixed tool order.
func distribute(entities []models.Entity, results map[string][]models.EntitySearchResult) distribution {
	d := distribution{
		tools:    make([]models.Tool, 0),
		entities: make(map[models.Tool][]string),
		sections: make(map[models.Tool][]string),
	}
	seenEntity := make(map[models.Tool]map[string]bool)
	seenSection := make(map[models.Tool]map[string]bool)

	for _, name := range entityNames(entities) {
		for _, r := range results[name] {
			for _, section := range r.FoundInSections {
				t := models.SectionTool(section)
				if seenEntity[t] == nil {
					seenEntity[t] = make(map[string]bool)
					seenSection[t] = make(map[string]bool)
				}
				if !seenEntity[t][name] {
					seenEntity[t][name] = true
					d.entities[t] = append(d.entities[t], name)
				}
				if !seenSection[t][section] {
					seenSection[t][section] = true
					d.sections[t] = append(d.sections[t], section)
				}
			}
		}
	}
	for _, t := range models.AllTools() {
		if len(d.entities[t]) > 0 {
			d.tools = append(d.tools, t)
		}
	}
	return d
}

// entityNames returns the distinct canonical names in extraction order.
func entityNames(entities []models.Entity) []string {
	names := make([]string, 0, len(entities))
	seen := make(map[string]bool, len(entities))
	for _, e := range entities {
		name := e.Canonical
		if name == "" {
			name = e.Text
		}
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
