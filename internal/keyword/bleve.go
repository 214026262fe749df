// Package keyword indexes rulebook sections in Bleve so the resolver can
// rank the sections most relevant to a name.
package keyword

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/knowledge"
)

// DefaultFuzziness is the edit distance allowed per query term.
const DefaultFuzziness = 2

// sectionDoc is the indexed form of a rules section.
type sectionDoc struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// RulesIndex implements knowledge.CandidateFilter using Bleve.
type RulesIndex struct {
	index     bleve.Index
	fuzziness int
}

var _ knowledge.CandidateFilter = (*RulesIndex)(nil)

func newMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so fuzzy terms compare
	// against surface forms.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("title", textFieldMapping)
	docMapping.AddFieldMappingsAt("body", textFieldMapping)
	im.AddDocumentMapping("section", docMapping)
	im.DefaultType = "section"
	im.DefaultMapping = docMapping
	return im
}

// NewRulesIndex creates or opens a Bleve index at path. An empty path builds
// an in-memory index.
func NewRulesIndex(path string) (*RulesIndex, error) {
	im := newMapping()

	if path == "" {
		index, err := bleve.NewMemOnly(im)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory Bleve index: %w", err)
		}
		return &RulesIndex{index: index, fuzziness: DefaultFuzziness}, nil
	}

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &RulesIndex{index: index, fuzziness: DefaultFuzziness}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &RulesIndex{index: index, fuzziness: DefaultFuzziness}, nil
}

// IndexSections upserts sections by section id in one batch.
func (r *RulesIndex) IndexSections(ctx context.Context, sections []knowledge.Section) error {
	batch := r.index.NewBatch()
	for _, s := range sections {
		if err := batch.Index(s.SectionID, sectionDoc{Title: s.Title, Body: s.Body}); err != nil {
			return fmt.Errorf("failed to index section %s: %w", s.SectionID, err)
		}
	}
	if err := r.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to commit rules batch: %w", err)
	}
	return nil
}

// Sync indexes every section the provider currently returns.
func (r *RulesIndex) Sync(ctx context.Context, p knowledge.RulesCorpusProvider) (int, error) {
	sections, err := p.RulesSections(ctx)
	if err != nil {
		return 0, err
	}
	if err := r.IndexSections(ctx, sections); err != nil {
		return 0, err
	}
	return len(sections), nil
}

// CandidateSections returns ids of sections whose title or body fuzzily contains
// any term of name, best first.
func (r *RulesIndex) CandidateSections(ctx context.Context, name string, limit int) ([]string, error) {
	q := buildFuzzyQuery(name, r.fuzziness)
	if q == nil {
		return []string{}, nil
	}
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	results, err := r.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	ids := make([]string, len(results.Hits))
	for i, hit := range results.Hits {
		ids[i] = hit.ID
	}
	return ids, nil
}

// DocCount returns the total number of indexed sections.
func (r *RulesIndex) DocCount() (uint64, error) {
	return r.index.DocCount()
}

// Close closes the Bleve index.
func (r *RulesIndex) Close() error {
	return r.index.Close()
}

// tokenizeQuery splits query into lowercase terms, filtering out empty strings.
func tokenizeQuery(query string) []string {
	words := strings.Fields(strings.ToLower(query))
	terms := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.Trim(w, ".,;:!?\"()[]")
		if w != "" {
			terms = append(terms, w)
		}
	}
	return terms
}

// buildFuzzyQuery creates a disjunction of FuzzyQueries over title and body
// for each term. Terms shorter than the fuzziness are matched exactly.
func buildFuzzyQuery(queryStr string, fuzziness int) blevequery.Query {
	terms := tokenizeQuery(queryStr)
	if len(terms) == 0 {
		return nil
	}

	queries := make([]blevequery.Query, 0, len(terms)*2)
	for _, term := range terms {
		f := fuzziness
		if len([]rune(term)) <= f {
			f = 0
		}
		for _, field := range []string{"title", "body"} {
			fq := bleve.NewFuzzyQuery(term)
			fq.SetFuzziness(f)
			fq.SetField(field)
			queries = append(queries, fq)
		}
	}
	return bleve.NewDisjunctionQuery(queries...)
}
