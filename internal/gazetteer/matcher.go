// Package gazetteer recognises known names in free text using an exact pass over
// a lexicon followed by a fuzzy pass over the words that remain.
package gazetteer

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/fuzzy"
	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/models"
	"go.uber.org/zap"
)

const (
	// DefaultMinSimilarity is the fuzzy acceptance threshold for standalone extraction.
	DefaultMinSimilarity = 0.85

	minWindowLen     = 4
	minSingleWordLen = 5
	maxWindowWords   = 3
	maxWordGap       = 2
	minLengthRatio   = 0.6
	maxLengthRatio   = 1.7
	exactConfidence  = 1.0
)

// fuzzyKey is a lexicon key prepared for fuzzy comparison.
type fuzzyKey struct {
	key    string
	norm   string
	length int
}

// Matcher is an immutable lexicon matcher. It is safe for concurrent use.
type Matcher struct {
	entries       map[string]models.GazetteerEntry
	exactKeys     []string
	fuzzyKeys     []fuzzyKey
	stopwords     map[string]struct{}
	minSimilarity float64
	logger        *zap.Logger
}

// MatcherOption is a functional option for configuring Matcher.
type MatcherOption func(*Matcher)

// WithMinSimilarity sets the fuzzy acceptance threshold.
func WithMinSimilarity(s float64) MatcherOption {
	return func(m *Matcher) {
		if s > 0 && s <= 1 {
			m.minSimilarity = s
		}
	}
}

// WithStopwords adds words that never take part in fuzzy windows.
func WithStopwords(words ...string) MatcherOption {
	return func(m *Matcher) {
		for _, w := range words {
			m.stopwords[strings.ToLower(w)] = struct{}{}
		}
	}
}

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) MatcherOption {
	return func(m *Matcher) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewMatcher builds a matcher over entries. Entries are keyed by lowercased name;
// a later entry replaces an earlier one with the same key.
func NewMatcher(entries []models.GazetteerEntry, opts ...MatcherOption) *Matcher {
	m := &Matcher{
		entries:       make(map[string]models.GazetteerEntry, len(entries)),
		stopwords:     defaultStopwords(),
		minSimilarity: DefaultMinSimilarity,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}

	for _, e := range entries {
		key := lexiconKey(e.Name)
		if key == "" {
			continue
		}
		if e.Canonical == "" {
			e.Canonical = strings.TrimSpace(e.Name)
		}
		m.entries[key] = e
	}

	m.exactKeys = make([]string, 0, len(m.entries))
	m.fuzzyKeys = make([]fuzzyKey, 0, len(m.entries))
	for key := range m.entries {
		m.exactKeys = append(m.exactKeys, key)
		m.fuzzyKeys = append(m.fuzzyKeys, fuzzyKey{
			key:    key,
			norm:   fuzzy.Normalize(key),
			length: utf8.RuneCountInString(key),
		})
	}
	sort.Slice(m.exactKeys, func(i, j int) bool {
		if len(m.exactKeys[i]) != len(m.exactKeys[j]) {
			return len(m.exactKeys[i]) > len(m.exactKeys[j])
		}
		return m.exactKeys[i] < m.exactKeys[j]
	})
	sort.Slice(m.fuzzyKeys, func(i, j int) bool {
		if m.fuzzyKeys[i].length != m.fuzzyKeys[j].length {
			return m.fuzzyKeys[i].length < m.fuzzyKeys[j].length
		}
		return m.fuzzyKeys[i].key < m.fuzzyKeys[j].key
	})
	return m
}

// WithMinSimilarity returns a view of m that shares its lexicon but uses a
// different fuzzy threshold.
func (m *Matcher) WithMinSimilarity(s float64) *Matcher {
	if m == nil || s <= 0 || s > 1 || s == m.minSimilarity {
		return m
	}
	view := *m
	view.minSimilarity = s
	return &view
}

// Size returns the number of lexicon entries.
func (m *Matcher) Size() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// MinSimilarity returns the fuzzy acceptance threshold.
func (m *Matcher) MinSimilarity() float64 {
	return m.minSimilarity
}

// Lookup returns the entry stored for name, case-insensitively.
func (m *Matcher) Lookup(name string) (models.GazetteerEntry, bool) {
	if m == nil {
		return models.GazetteerEntry{}, false
	}
	e, ok := m.entries[lexiconKey(name)]
	return e, ok
}

// Extract returns the non-overlapping entities found in text, ordered by start offset.
func (m *Matcher) Extract(text string) []models.Entity {
	out := make([]models.Entity, 0)
	if m == nil || len(m.entries) == 0 || strings.TrimSpace(text) == "" {
		return out
	}

	folded := foldSameWidth(text)
	exact := m.exactPhase(text, folded)
	candidates := append(exact, m.fuzzyPhase(text, exact)...)
	out = append(out, dedupe(candidates)...)

	m.logger.Debug("gazetteer extract",
		zap.Int("exact", len(exact)),
		zap.Int("candidates", len(candidates)),
		zap.Int("entities", len(out)),
	)
	return out
}

func (m *Matcher) exactPhase(text, folded string) []models.Entity {
	accepted := make([]models.Entity, 0)
	for _, key := range m.exactKeys {
		if len(key) > len(folded) {
			continue
		}
		for from := 0; from <= len(folded)-len(key); {
			idx := strings.Index(folded[from:], key)
			if idx < 0 {
				break
			}
			start := from + idx
			end := start + len(key)
			from = start + 1
			if !atWordBoundary(text, start, end) || overlapsAny(accepted, start, end) {
				continue
			}
			entry := m.entries[key]
			accepted = append(accepted, models.NewEntity(text[start:end], entry.Canonical, entry.Type, exactConfidence, start, end))
		}
	}
	return accepted
}

type token struct {
	start, end int
}

func (m *Matcher) fuzzyPhase(text string, exact []models.Entity) []models.Entity {
	tokens := make([]token, 0)
	for _, t := range wordTokens(text) {
		if overlapsAny(exact, t.start, t.end) {
			continue
		}
		word := strings.Trim(strings.ToLower(text[t.start:t.end]), "'")
		if _, stop := m.stopwords[word]; stop {
			continue
		}
		tokens = append(tokens, t)
	}

	found := make([]models.Entity, 0)
	for i := range tokens {
		for n := 1; n <= maxWindowWords && i+n <= len(tokens); n++ {
			j := i + n - 1
			if n > 1 && !adjacent(text, tokens[j-1], tokens[j]) {
				break
			}
			start, end := tokens[i].start, tokens[j].end
			window := text[start:end]
			length := utf8.RuneCountInString(window)
			if length < minWindowLen || (n == 1 && length < minSingleWordLen) {
				continue
			}
			key, score := m.bestFuzzyKey(window, length)
			if key == "" || score < m.minSimilarity {
				continue
			}
			entry := m.entries[key]
			found = append(found, models.NewEntity(window, entry.Canonical, entry.Type, score, start, end))
		}
	}
	return found
}

// bestFuzzyKey scores window against the keys whose length ratio is within bounds.
func (m *Matcher) bestFuzzyKey(window string, length int) (string, float64) {
	norm := fuzzy.Normalize(window)
	if norm == "" {
		return "", 0
	}
	lo := float64(length) / maxLengthRatio
	hi := float64(length) / minLengthRatio
	first := sort.Search(len(m.fuzzyKeys), func(i int) bool {
		return float64(m.fuzzyKeys[i].length) >= lo
	})

	bestKey, bestScore := "", 0.0
	for _, k := range m.fuzzyKeys[first:] {
		if float64(k.length) > hi {
			break
		}
		if score := fuzzy.Ratio(norm, k.norm); score > bestScore {
			bestKey, bestScore = k.key, score
		}
	}
	return bestKey, bestScore
}

// dedupe keeps the strongest non-overlapping candidates and orders them by position.
func dedupe(candidates []models.Entity) []models.Entity {
	sorted := make([]models.Entity, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.Len() != b.Len() {
			return a.Len() > b.Len()
		}
		return a.Start < b.Start
	})

	kept := make([]models.Entity, 0, len(sorted))
	for _, c := range sorted {
		if !overlapsAny(kept, c.Start, c.End) {
			kept = append(kept, c)
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].Start < kept[j].Start })
	return kept
}

func overlapsAny(spans []models.Entity, start, end int) bool {
	for _, s := range spans {
		if start < s.End && s.Start < end {
			return true
		}
	}
	return false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// atWordBoundary reports whether text[start:end] is not flanked by letters or digits.
func atWordBoundary(text string, start, end int) bool {
	if start > 0 {
		if r, _ := utf8.DecodeLastRuneInString(text[:start]); isWordRune(r) {
			return false
		}
	}
	if end < len(text) {
		if r, _ := utf8.DecodeRuneInString(text[end:]); isWordRune(r) {
			return false
		}
	}
	return true
}

// wordTokens returns the spans of runs of letters, digits and apostrophes.
func wordTokens(text string) []token {
	tokens := make([]token, 0)
	start := -1
	for i, r := range text {
		inWord := isWordRune(r) || r == '\''
		switch {
		case inWord && start < 0:
			start = i
		case !inWord && start >= 0:
			tokens = append(tokens, token{start: start, end: i})
			start = -1
		}
	}
	if start >= 0 {
		tokens = append(tokens, token{start: start, end: len(text)})
	}
	return tokens
}

// adjacent reports whether b follows a within maxWordGap characters of
// whitespace or punctuation.
func adjacent(text string, a, b token) bool {
	gap := text[a.end:b.start]
	if utf8.RuneCountInString(gap) > maxWordGap {
		return false
	}
	for _, r := range gap {
		if isWordRune(r) {
			return false
		}
	}
	return true
}

// lexiconKey is the map key for a name: trimmed and lowercased without changing
// byte width, so offsets found in folded text are valid in the original.
func lexiconKey(name string) string {
	return foldSameWidth(strings.TrimSpace(name))
}

// foldSameWidth lowercases runes whose lowercase form has the same UTF-8 width.
func foldSameWidth(s string) string {
	return strings.Map(func(r rune) rune {
		lr := unicode.ToLower(r)
		if utf8.RuneLen(lr) != utf8.RuneLen(r) {
			return r
		}
		return lr
	}, s)
}
