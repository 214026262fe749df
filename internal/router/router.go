// Package router decides which knowledge tools a query needs and with which
// intention, using either a local neural model or an LLM.
package router

import (
	"context"
	"fmt"

	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/models"
)

// Backend names.
const (
	BackendNeural = "neural"
	BackendLLM    = "llm"
)

// Router classifies a query into tool selections.
type Router interface {
	Classify(ctx context.Context, query string, qctx *QueryContext) (*models.ClassificationResult, error)
	Backend() string
}

// QueryContext is optional conversational context. A nil *QueryContext means
// no context.
type QueryContext struct {
	CharacterName string   `json:"character_name,omitempty"`
	RecentQueries []string `json:"recent_queries,omitempty"`
}

// ClassificationError reports a backend failure. Stage is where it failed:
// load, predict, generate, repair or validate.
type ClassificationError struct {
	Backend string
	Stage   string
	Err     error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classification failed (%s/%s): %v", e.Backend, e.Stage, e.Err)
}

func (e *ClassificationError) Unwrap() error {
	return e.Err
}
