package main

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/config"
	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/gazetteer"
	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/keyword"
	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/knowledge"
	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/models"
	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/orchestrator"
	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/resolver"
	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/router"
	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/storage"
)

// Components holds initialized services.
type Components struct {
	Store        *storage.SQLiteStore
	RulesIndex   *keyword.RulesIndex
	Resolver     *resolver.Engine
	Lexicon      *gazetteer.Lexicon
	Router       router.Router
	Orchestrator *orchestrator.Orchestrator
	closers      []io.Closer
}

func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		_ = c.closers[i].Close()
	}
}

// lexiconSource is what both knowledge stores offer the gazetteer.
type lexiconSource interface {
	GazetteerEntries(ctx context.Context) ([]models.GazetteerEntry, error)
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{}

	var providers knowledge.Providers
	var lexSource lexiconSource
	switch cfg.Knowledge.Store {
	case config.StoreSQLite:
		store, err := storage.NewSQLiteStore(cfg.Storage.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		c.Store = store
		c.closers = append(c.closers, store)
		providers = store.Providers()
		lexSource = store
	default:
		bundle, err := knowledge.LoadBundle(cfg.Knowledge.Files...)
		if err != nil {
			logger.Warn("knowledge files unavailable, starting empty", zap.Error(err))
			bundle = knowledge.NewBundle()
		}
		mem := knowledge.NewMemoryStore(bundle)
		providers = mem.Providers()
		lexSource = mem
	}

	rulesIndex, err := keyword.NewRulesIndex(cfg.Storage.RulesIndexPath)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize rules index: %w", err)
	}
	c.RulesIndex = rulesIndex
	c.closers = append(c.closers, rulesIndex)
	if n, err := rulesIndex.Sync(ctx, providers.Rules); err != nil {
		logger.Warn("rules index sync failed, resolver will scan", zap.Error(err))
	} else {
		logger.Info("rules index synced", zap.Int("sections", n))
	}

	c.Resolver = resolver.NewEngine(providers,
		resolver.WithFuzzyThreshold(cfg.Resolver.FuzzyThreshold),
		resolver.WithRulesCacheSize(cfg.Resolver.RulesCacheSize),
		resolver.WithCandidateFilter(rulesIndex),
		resolver.WithLogger(logger),
	)

	c.Lexicon = gazetteer.NewLexicon(lexSource, cfg.Gazetteer.Sources, logger,
		gazetteer.WithMinSimilarity(cfg.Gazetteer.MinSimilarity),
	)

	r, closer, err := buildRouter(cfg, logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Router = r
	if closer != nil {
		c.closers = append(c.closers, closer)
	}

	c.Orchestrator = orchestrator.New(r,
		c.Lexicon.Store().Extractor(cfg.Gazetteer.PipelineMinSimilarity),
		c.Resolver,
		orchestrator.WithFallbackConfidence(cfg.Router.FallbackConfidence),
		orchestrator.WithFallbackIntentions(fallbackIntentions(cfg.Router.FallbackIntentions)),
		orchestrator.WithLogger(logger),
	)
	return c, nil
}

func buildRouter(cfg *config.Config, logger *zap.Logger) (router.Router, io.Closer, error) {
	switch cfg.Router.Backend {
	case config.BackendLLM:
		client := router.NewHTTPClient(cfg.Router.LLM.BaseURL, cfg.Router.LLM.Model, cfg.Router.LLM.APIKey(), cfg.Router.LLM.Timeout)
		return router.NewLLMBackend(client,
			router.WithMaxIntentionsPerTool(cfg.Router.MaxIntentionsPerTool),
			router.WithLLMLogger(logger),
		), nil, nil
	case config.BackendNeural:
		modelPath, maxTokens := cfg.Router.Model.Path, cfg.Router.Model.MaxTokens
		loader := router.NewModelLoader(func() (router.Predictor, error) {
			return router.NewONNXPredictor(modelPath, maxTokens)
		}, cfg.Router.Model.SerializeOrDefault())
		return router.NewNeuralBackend(loader,
			router.WithToolThreshold(cfg.Router.ToolThreshold),
			router.WithTemperature(cfg.Router.ConfidenceTemperature),
			router.WithNeuralLogger(logger),
		), loader, nil
	default:
		return nil, nil, fmt.Errorf("unknown router backend %q", cfg.Router.Backend)
	}
}

func fallbackIntentions(raw map[string]string) map[models.Tool]string {
	out := make(map[models.Tool]string, len(raw))
	for tool, intention := range raw {
		out[models.Tool(tool)] = intention
	}
	return out
}
