package gazetteer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/models"
)

// EntrySource yields entries derived from stored knowledge.
type EntrySource interface {
	GazetteerEntries(ctx context.Context) ([]models.GazetteerEntry, error)
}

// Lexicon owns the list of gazetteer source files and rebuilds its Store from
// the knowledge-derived entries followed by those files. File entries win on
// key collisions.
type Lexicon struct {
	mu      sync.Mutex
	sources []string
	base    EntrySource
	opts    []MatcherOption
	store   *Store
	logger  *zap.Logger
}

// NewLexicon builds the initial snapshot. base may be nil.
func NewLexicon(base EntrySource, sources []string, logger *zap.Logger, opts ...MatcherOption) *Lexicon {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Lexicon{
		sources: append([]string(nil), sources...),
		base:    base,
		opts:    opts,
		logger:  logger,
	}
	l.store = NewStore(l.build, logger)
	return l
}

func (l *Lexicon) build() (*Matcher, error) {
	l.mu.Lock()
	sources := append([]string(nil), l.sources...)
	l.mu.Unlock()

	b := NewBuilder(l.logger)
	var errs []error
	if l.base != nil {
		entries, err := l.base.GazetteerEntries(context.Background())
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", ErrExtractionUnavailable, err))
		} else {
			b.Add(entries)
		}
	}
	if err := b.AddFiles(sources); err != nil {
		errs = append(errs, err)
	}
	if n := b.Collisions(); n > 0 {
		l.logger.Debug("gazetteer collisions", zap.Int("count", n))
	}
	return b.Build(l.opts...), errors.Join(errs...)
}

// Store returns the snapshot store.
func (l *Lexicon) Store() *Store {
	return l.store
}

// Size returns the number of entries in the current snapshot.
func (l *Lexicon) Size() int {
	return l.store.Matcher().Size()
}

// Reload rebuilds the snapshot. A partial failure still installs what loaded.
func (l *Lexicon) Reload() error {
	return l.store.Reload()
}

// Sources returns the configured source files in priority order.
func (l *Lexicon) Sources() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.sources...)
}

// AddSource appends a source file after checking that it parses, then reloads.
// Adding a file that is already listed is a no-op.
func (l *Lexicon) AddSource(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if _, err := LoadSourceFile(abs); err != nil {
		return err
	}
	l.mu.Lock()
	for _, s := range l.sources {
		if filepath.Clean(s) == abs {
			l.mu.Unlock()
			return nil
		}
	}
	l.sources = append(l.sources, abs)
	l.mu.Unlock()
	return l.Reload()
}

// RemoveSource drops a source file and reloads. It reports whether the file was listed.
func (l *Lexicon) RemoveSource(path string) (bool, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false, err
	}
	l.mu.Lock()
	idx := -1
	for i, s := range l.sources {
		if filepath.Clean(s) == abs {
			idx = i
			break
		}
	}
	if idx < 0 {
		l.mu.Unlock()
		return false, nil
	}
	l.sources = append(l.sources[:idx], l.sources[idx+1:]...)
	l.mu.Unlock()
	return true, l.Reload()
}
