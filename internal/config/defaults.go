package config

import (
	"errors"
	"fmt"
	"time"
)

// Router backends.
const (
	BackendNeural = "neural"
	BackendLLM    = "llm"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/scribe/data/db/knowledge.db"
	}
	if cfg.Knowledge.Store == "" {
		cfg.Knowledge.Store = StoreMemory
	}
	if cfg.Gazetteer.MinSimilarity == 0 {
		cfg.Gazetteer.MinSimilarity = 0.85
	}
	if cfg.Gazetteer.PipelineMinSimilarity == 0 {
		cfg.Gazetteer.PipelineMinSimilarity = 0.80
	}
	// Watch defaults to true when unset (nil).
	if len(cfg.Gazetteer.Sources) > 0 && cfg.Gazetteer.Watch == nil {
		t := true
		cfg.Gazetteer.Watch = &t
	}
	if cfg.Resolver.FuzzyThreshold == 0 {
		cfg.Resolver.FuzzyThreshold = 0.75
	}
	if cfg.Router.Backend == "" {
		cfg.Router.Backend = BackendNeural
	}
	if cfg.Router.ToolThreshold == 0 {
		cfg.Router.ToolThreshold = 0.5
	}
	if cfg.Router.ConfidenceTemperature == 0 {
		cfg.Router.ConfidenceTemperature = 5.0
	}
	if cfg.Router.MaxIntentionsPerTool == 0 {
		cfg.Router.MaxIntentionsPerTool = 1
	}
	if cfg.Router.FallbackConfidence == 0 {
		cfg.Router.FallbackConfidence = 0.75
	}
	if cfg.Router.Model.Path == "" {
		cfg.Router.Model.Path = "/usr/local/var/scribe/data/models/router.onnx"
	}
	if cfg.Router.Model.MaxTokens == 0 {
		cfg.Router.Model.MaxTokens = 64
	}
	if cfg.Router.LLM.BaseURL == "" {
		cfg.Router.LLM.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Router.LLM.Model == "" {
		cfg.Router.LLM.Model = "gpt-4o-mini"
	}
	if cfg.Router.LLM.APIKeyEnv == "" {
		cfg.Router.LLM.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Router.LLM.Timeout == 0 {
		cfg.Router.LLM.Timeout = 30 * time.Second
	}
}

// Validate rejects settings no component can run with. Call after ApplyDefaults.
func Validate(cfg *Config) error {
	switch cfg.Router.Backend {
	case BackendNeural, BackendLLM:
	default:
		return fmt.Errorf("%w: unknown router backend %q", ErrInvalidConfig, cfg.Router.Backend)
	}
	switch cfg.Knowledge.Store {
	case StoreMemory, StoreSQLite:
	default:
		return fmt.Errorf("%w: unknown knowledge store %q", ErrInvalidConfig, cfg.Knowledge.Store)
	}
	ratios := []struct {
		name  string
		value float64
	}{
		{"gazetteer.min_similarity", cfg.Gazetteer.MinSimilarity},
		{"gazetteer.pipeline_min_similarity", cfg.Gazetteer.PipelineMinSimilarity},
		{"resolver.fuzzy_threshold", cfg.Resolver.FuzzyThreshold},
		{"router.tool_threshold", cfg.Router.ToolThreshold},
		{"router.fallback_confidence", cfg.Router.FallbackConfidence},
	}
	for _, r := range ratios {
		if r.value < 0 || r.value > 1 {
			return fmt.Errorf("%w: %s must be within [0,1], got %v", ErrInvalidConfig, r.name, r.value)
		}
	}
	if cfg.Router.ConfidenceTemperature < 0 {
		return fmt.Errorf("%w: router.confidence_temperature must not be negative", ErrInvalidConfig)
	}
	if cfg.Router.MaxIntentionsPerTool < 0 {
		return fmt.Errorf("%w: router.max_intentions_per_tool must not be negative", ErrInvalidConfig)
	}
	return nil
}
