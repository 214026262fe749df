package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/jsonrepair"
	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/metrics"
	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/models"
)

// DefaultLLMConfidence is used for selections the model gave no confidence for.
const DefaultLLMConfidence = 0.8

const maxRecentQueries = 3

// LLMClient sends a prompt and returns the raw text of a JSON-mode reply.
type LLMClient interface {
	GenerateJSONResponse(ctx context.Context, prompt string) (string, error)
}

// LLMOption configures an LLMBackend.
type LLMOption func(*LLMBackend)

// WithMaxIntentionsPerTool caps the selections kept per tool.
func WithMaxIntentionsPerTool(n int) LLMOption {
	return func(b *LLMBackend) {
		b.maxPerTool = n
	}
}

// WithLLMLogger sets the logger.
func WithLLMLogger(l *zap.Logger) LLMOption {
	return func(b *LLMBackend) {
		b.logger = l
	}
}

// LLMBackend classifies by prompting a language model.
type LLMBackend struct {
	client     LLMClient
	repairer   jsonrepair.Repairer
	maxPerTool int
	logger     *zap.Logger
}

// NewLLMBackend creates a backend over client.
func NewLLMBackend(client LLMClient, opts ...LLMOption) *LLMBackend {
	b := &LLMBackend{
		client:     client,
		repairer:   jsonrepair.DefaultRepairer,
		maxPerTool: DefaultMaxIntentionsPerTool,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	return b
}

// Backend implements Router.
func (b *LLMBackend) Backend() string {
	return BackendLLM
}

// Classify implements Router.
func (b *LLMBackend) Classify(ctx context.Context, query string, qctx *QueryContext) (*models.ClassificationResult, error) {
	start := time.Now()
	if b.client == nil {
		return nil, b.fail("generate", errors.New("no LLM client configured"))
	}

	raw, err := b.client.GenerateJSONResponse(ctx, BuildPrompt(query, qctx))
	if err != nil {
		return nil, b.fail("generate", err)
	}

	repaired, err := b.repairer.Repair(raw)
	if err != nil {
		metrics.JSONRepairs.WithLabelValues("failed").Inc()
		return nil, b.fail("repair", err)
	}
	if repaired.Repaired {
		metrics.JSONRepairs.WithLabelValues("repaired").Inc()
		b.logger.Debug("LLM response repaired", zap.Strings("fixes", repaired.Fixes))
	} else {
		metrics.JSONRepairs.WithLabelValues("clean").Inc()
	}

	env, err := jsonrepair.ValidateToolsNeeded(repaired.Value)
	if err != nil {
		return nil, b.fail("validate", err)
	}
	if env.Dropped > 0 {
		b.logger.Debug("malformed tool entries dropped", zap.Int("dropped", env.Dropped))
	}

	selections := make([]models.ToolSelection, 0, len(env.Tools))
	for _, entry := range env.Tools {
		tool := models.Tool(strings.ToLower(entry.Tool))
		if !tool.Valid() {
			b.logger.Debug("unknown tool dropped", zap.String("tool", entry.Tool))
			continue
		}
		intention := strings.ToLower(entry.Intention)
		if !ValidIntention(tool, intention) {
			intention = DefaultIntention(tool)
		}
		conf := DefaultLLMConfidence
		if entry.Confidence != nil {
			conf = *entry.Confidence
		}
		selections = append(selections, models.ToolSelection{
			Tool:       tool,
			Intention:  intention,
			Confidence: models.ClampConfidence(conf),
			Source:     models.SourceClassifier,
		})
	}

	res := models.NewClassificationResult(BackendLLM)
	res.ToolsNeeded = capSelections(selections, b.maxPerTool)
	for _, s := range res.ToolsNeeded {
		if s.Confidence > res.ToolConfidences[s.Tool] {
			res.ToolConfidences[s.Tool] = s.Confidence
		}
	}
	res.InferenceTime = time.Since(start)

	metrics.ClassifyLatency.WithLabelValues(BackendLLM).Observe(res.InferenceTime.Seconds())
	metrics.ClassifyTotal.WithLabelValues(BackendLLM, "success").Inc()
	b.logger.Debug("query classified",
		zap.String("backend", BackendLLM),
		zap.Int("tools", len(res.ToolsNeeded)),
		zap.Duration("elapsed", res.InferenceTime),
	)
	return res, nil
}

func (b *LLMBackend) fail(stage string, err error) error {
	metrics.ClassifyTotal.WithLabelValues(BackendLLM, "error").Inc()
	return &ClassificationError{Backend: BackendLLM, Stage: stage, Err: err}
}

// BuildPrompt renders the routing prompt: the tools with their intentions,
// optional conversation context, the query and the expected JSON shape.
func BuildPrompt(query string, qctx *QueryContext) string {
	var b strings.Builder
	b.WriteString("You route questions about a tabletop RPG character to knowledge tools.\n\n")
	b.WriteString("Tools and their intentions:\n")
	for _, t := range models.AllTools() {
		fmt.Fprintf(&b, "- %s: %s\n", t, strings.Join(intentions[t], ", "))
	}

	if qctx != nil {
		if qctx.CharacterName != "" {
			fmt.Fprintf(&b, "\nCharacter: %s\n", qctx.CharacterName)
		}
		recent := qctx.RecentQueries
		if len(recent) > maxRecentQueries {
			recent = recent[len(recent)-maxRecentQueries:]
		}
		if len(recent) > 0 {
			b.WriteString("\nRecent questions:\n")
			for _, q := range recent {
				fmt.Fprintf(&b, "- %s\n", q)
			}
		}
	}

	fmt.Fprintf(&b, "\nQuestion: %s\n\n", query)
	b.WriteString("Select every tool needed to answer, with one intention each and a confidence between 0 and 1.\n")
	b.WriteString(`Respond with JSON only: {"tools_needed": [{"tool": "...", "intention": "...", "confidence": 0.0}]}`)
	b.WriteString("\n")
	return b.String()
}
