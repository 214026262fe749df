package gazetteer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/models"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ErrExtractionUnavailable is returned when gazetteer data cannot be loaded.
// Callers keep the matcher they get back; it simply knows fewer names.
var ErrExtractionUnavailable = errors.New("gazetteer data unavailable")

// SourceFile is the on-disk format of a gazetteer source.
//
//	source: spells
//	type: SPELL
//	names: ["Fire Bolt", "Shield"]
//	entries:
//	  - name: "Eldaryth"
//	    canonical: "Eldaryth of Regret"
//	    type: ITEM
type SourceFile struct {
	Source  string                  `yaml:"source"`
	Type    string                  `yaml:"type"`
	Names   []string                `yaml:"names"`
	Entries []models.GazetteerEntry `yaml:"entries"`
}

// LoadSourceFile reads one gazetteer source. Names inherit the file's type;
// entries without a type inherit it as well.
func LoadSourceFile(path string) ([]models.GazetteerEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read gazetteer source: %w", err)
	}
	var sf SourceFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("failed to parse gazetteer source %s: %w", path, err)
	}
	source := sf.Source
	if source == "" {
		source = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	entries := make([]models.GazetteerEntry, 0, len(sf.Names)+len(sf.Entries))
	for _, name := range sf.Names {
		entries = append(entries, models.GazetteerEntry{Name: name, Canonical: name, Type: sf.Type, Source: source})
	}
	for _, e := range sf.Entries {
		if e.Type == "" {
			e.Type = sf.Type
		}
		e.Source = source
		entries = append(entries, e)
	}
	return entries, nil
}

// Builder accumulates entries from sources in priority order: a source added
// later replaces earlier entries with the same key.
type Builder struct {
	entries    map[string]models.GazetteerEntry
	collisions int
	logger     *zap.Logger
}

// NewBuilder creates an empty builder.
func NewBuilder(logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		entries: make(map[string]models.GazetteerEntry),
		logger:  logger,
	}
}

// Add merges entries into the builder.
func (b *Builder) Add(entries []models.GazetteerEntry) {
	for _, e := range entries {
		key := lexiconKey(e.Name)
		if key == "" {
			continue
		}
		if prev, ok := b.entries[key]; ok && (prev.Canonical != e.Canonical || prev.Type != e.Type) {
			b.collisions++
			b.logger.Debug("gazetteer entry overridden",
				zap.String("key", key),
				zap.String("previous_source", prev.Source),
				zap.String("previous_type", prev.Type),
				zap.String("source", e.Source),
				zap.String("type", e.Type),
			)
		}
		b.entries[key] = e
	}
}

// AddFiles loads and merges source files in the order given. Unreadable files
// are skipped; the joined error wraps ErrExtractionUnavailable.
func (b *Builder) AddFiles(paths []string) error {
	var errs []error
	for _, p := range paths {
		entries, err := LoadSourceFile(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		b.Add(entries)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrExtractionUnavailable, errors.Join(errs...))
	}
	return nil
}

// Collisions returns how many keys were overridden with a different meaning.
func (b *Builder) Collisions() int {
	return b.collisions
}

// Entries returns the merged entries ordered by key.
func (b *Builder) Entries() []models.GazetteerEntry {
	keys := make([]string, 0, len(b.entries))
	for k := range b.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]models.GazetteerEntry, 0, len(keys))
	for _, k := range keys {
		out = append(out, b.entries[k])
	}
	return out
}

// Build creates a matcher from the accumulated entries.
func (b *Builder) Build(opts ...MatcherOption) *Matcher {
	return NewMatcher(b.Entries(), append([]MatcherOption{WithLogger(b.logger)}, opts...)...)
}
