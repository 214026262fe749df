package gazetteer

import (
	"sync/atomic"

	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/metrics"
	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/models"
	"go.uber.org/zap"
)

// BuildFunc produces a fresh matcher. A non-nil matcher returned together with
// an error is still installed.
type BuildFunc func() (*Matcher, error)

// Store holds the current matcher snapshot. Readers never block; Reload swaps
// the snapshot atomically.
type Store struct {
	current atomic.Pointer[Matcher]
	build   BuildFunc
	logger  *zap.Logger
}

// NewStore builds the initial snapshot. Load failures are logged and the store
// starts with whatever the build produced, possibly an empty matcher.
func NewStore(build BuildFunc, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{build: build, logger: logger}
	if err := s.Reload(); err != nil {
		logger.Warn("gazetteer degraded", zap.Error(err))
	}
	return s
}

// Reload rebuilds the matcher and installs it.
func (s *Store) Reload() error {
	m, err := s.build()
	if m == nil {
		m = NewMatcher(nil)
	}
	s.current.Store(m)
	metrics.GazetteerEntries.Set(float64(m.Size()))
	s.logger.Info("gazetteer loaded", zap.Int("entries", m.Size()))
	return err
}

// Matcher returns the current snapshot.
func (s *Store) Matcher() *Matcher {
	return s.current.Load()
}

// Extract runs the current snapshot over text.
func (s *Store) Extract(text string) []models.Entity {
	return s.Matcher().Extract(text)
}

// Extractor returns an extractor that always reads the current snapshot with the
// given fuzzy threshold.
func (s *Store) Extractor(minSimilarity float64) *Extractor {
	return &Extractor{store: s, minSimilarity: minSimilarity}
}

// Extractor is a threshold-bound view over a Store.
type Extractor struct {
	store         *Store
	minSimilarity float64
}

// Extract runs the current snapshot over text with the bound threshold.
func (e *Extractor) Extract(text string) []models.Entity {
	return e.store.Matcher().WithMinSimilarity(e.minSimilarity).Extract(text)
}
