// Package config provides configuration loading and structs for the scribe planner.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Knowledge store kinds.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
	Gazetteer GazetteerConfig `yaml:"gazetteer"`
	Resolver  ResolverConfig  `yaml:"resolver"`
	Router    RouterConfig    `yaml:"router"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the knowledge database and the rules index.
// An empty RulesIndexPath keeps the index in memory.
type StorageConfig struct {
	DatabasePath   string `yaml:"database_path"`
	RulesIndexPath string `yaml:"rules_index_path"`
}

// KnowledgeConfig selects where knowledge providers read from. With the memory
// store Files are loaded on startup; with the sqlite store they are only read
// by the import command.
type KnowledgeConfig struct {
	Store string   `yaml:"store"`
	Files []string `yaml:"files"`
}

// GazetteerConfig holds lexicon settings.
type GazetteerConfig struct {
	Sources               []string `yaml:"sources"`
	MinSimilarity         float64  `yaml:"min_similarity"`
	PipelineMinSimilarity float64  `yaml:"pipeline_min_similarity"`
	Watch                 *bool    `yaml:"watch"`
}

// WatchOrDefault returns whether source files are watched; defaults to true when unset.
func (g *GazetteerConfig) WatchOrDefault() bool {
	if g.Watch != nil {
		return *g.Watch
	}
	return true
}

// ResolverConfig holds entity search settings. RulesCacheSize <= 0 keeps every
// rules lookup for the process lifetime.
type ResolverConfig struct {
	FuzzyThreshold float64 `yaml:"fuzzy_threshold"`
	RulesCacheSize int     `yaml:"rules_cache_size"`
}

// RouterConfig holds classifier settings.
type RouterConfig struct {
	Backend               string            `yaml:"backend"`
	ToolThreshold         float64           `yaml:"tool_threshold"`
	ConfidenceTemperature float64           `yaml:"confidence_temperature"`
	MaxIntentionsPerTool  int               `yaml:"max_intentions_per_tool"`
	FallbackConfidence    float64           `yaml:"fallback_confidence"`
	FallbackIntentions    map[string]string `yaml:"fallback_intentions"`
	Model                 ModelConfig       `yaml:"model"`
	LLM                   LLMConfig         `yaml:"llm"`
}

// ModelConfig holds ONNX classifier settings.
type ModelConfig struct {
	Path      string `yaml:"path"`
	MaxTokens int    `yaml:"max_tokens"`
	Serialize *bool  `yaml:"serialize"`
}

// SerializeOrDefault returns whether inference calls are always queued; defaults to true when unset.
// Predictors that are not safe for concurrent use are queued regardless.
func (m *ModelConfig) SerializeOrDefault() bool {
	if m.Serialize != nil {
		return *m.Serialize
	}
	return true
}

// LLMConfig holds chat-completions client settings. The API key is read from
// the environment variable named by APIKeyEnv.
type LLMConfig struct {
	BaseURL   string        `yaml:"base_url"`
	Model     string        `yaml:"model"`
	APIKeyEnv string        `yaml:"api_key_env"`
	Timeout   time.Duration `yaml:"timeout"`
}

// APIKey returns the key from the environment, or "" when unset.
func (l *LLMConfig) APIKey() string {
	if l.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(l.APIKeyEnv)
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read, parsed, or fails validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	if cfg.Storage.RulesIndexPath != "" {
		cfg.Storage.RulesIndexPath = expandPath(cfg.Storage.RulesIndexPath, configDir)
	}
	cfg.Router.Model.Path = expandPath(cfg.Router.Model.Path, configDir)
	for i := range cfg.Knowledge.Files {
		cfg.Knowledge.Files[i] = expandPath(cfg.Knowledge.Files[i], configDir)
	}
	for i := range cfg.Gazetteer.Sources {
		cfg.Gazetteer.Sources[i] = expandPath(cfg.Gazetteer.Sources[i], configDir)
	}

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
