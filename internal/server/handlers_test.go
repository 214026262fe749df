package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/config"
	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/models"
	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/router"
)

type mockPlanner struct {
	err      error
	lastCtx  *router.QueryContext
	entities []models.Entity
}

func (m *mockPlanner) Plan(ctx context.Context, query string, qctx *router.QueryContext) (*models.QueryPlan, error) {
	m.lastCtx = qctx
	if m.err != nil {
		return nil, m.err
	}
	plan := models.NewQueryPlan("q-1", query)
	plan.Steps = append(plan.Steps, models.ToolPlan{
		Tool:       models.ToolRulesCorpus,
		Intention:  "describe_entity",
		Confidence: 0.9,
		Source:     models.SourceClassifier,
	})
	return plan, nil
}

func (m *mockPlanner) ExtractEntities(ctx context.Context, query string) ([]models.Entity, map[string][]models.EntitySearchResult) {
	return m.entities, map[string][]models.EntitySearchResult{}
}

type mockLexicon struct {
	sources []string
	addErr  error
}

func (m *mockLexicon) Size() int         { return len(m.sources) * 10 }
func (m *mockLexicon) Sources() []string { return append([]string(nil), m.sources...) }
func (m *mockLexicon) Reload() error     { return nil }

func (m *mockLexicon) AddSource(path string) error {
	if m.addErr != nil {
		return m.addErr
	}
	for _, s := range m.sources {
		if s == path {
			return nil
		}
	}
	m.sources = append(m.sources, path)
	return nil
}

func (m *mockLexicon) RemoveSource(path string) (bool, error) {
	for i, s := range m.sources {
		if s == path {
			m.sources = append(m.sources[:i], m.sources[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

type mockWatcher struct {
	files []string
}

func (m *mockWatcher) AddFile(path string) error {
	m.files = append(m.files, path)
	return nil
}

func (m *mockWatcher) RemoveFile(path string) error {
	for i, f := range m.files {
		if f == path {
			m.files = append(m.files[:i], m.files[i+1:]...)
		}
	}
	return nil
}

func newTestServer(planner Planner, lexicon LexiconService, watch FileWatcher, configPath string) *Server {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Storage.DatabasePath = ""
	return NewServer(planner, lexicon, watch, router.BackendNeural, cfg, configPath, zap.NewNop())
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, bytes.NewBufferString(body))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestHandlePlan(t *testing.T) {
	planner := &mockPlanner{}
	h := newTestServer(planner, nil, nil, "").Handler()

	w := do(t, h, http.MethodPost, "/api/v1/plan", `{"query":"What does Eldaryth do?","context":{"character_name":"Duskryn"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d body %s", w.Code, w.Body.String())
	}
	var plan models.QueryPlan
	if err := json.NewDecoder(w.Body).Decode(&plan); err != nil {
		t.Fatal(err)
	}
	if plan.QueryID != "q-1" || len(plan.Steps) != 1 || plan.Steps[0].Tool != models.ToolRulesCorpus {
		t.Errorf("unexpected plan: %+v", plan)
	}
	if planner.lastCtx == nil || planner.lastCtx.CharacterName != "Duskryn" {
		t.Errorf("query context not passed: %+v", planner.lastCtx)
	}
}

func TestHandlePlan_badRequests(t *testing.T) {
	h := newTestServer(&mockPlanner{}, nil, nil, "").Handler()
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"query":`},
		{"empty query", `{"query":"   "}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/api/v1/plan", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status: got %d", w.Code)
			}
		})
	}
}

func TestHandlePlan_classificationError(t *testing.T) {
	planner := &mockPlanner{err: &router.ClassificationError{Backend: "llm", Stage: "repair", Err: errors.New("bad json")}}
	h := newTestServer(planner, nil, nil, "").Handler()

	w := do(t, h, http.MethodPost, "/api/v1/plan", `{"query":"hi"}`)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status: got %d", w.Code)
	}
	var out map[string]string
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out["stage"] != "repair" || out["backend"] != "llm" {
		t.Errorf("unexpected body: %v", out)
	}
}

func TestHandleEntities(t *testing.T) {
	planner := &mockPlanner{entities: []models.Entity{models.NewEntity("Ghul'Vor", "Ghul'Vor", "NPC", 1, 8, 16)}}
	h := newTestServer(planner, nil, nil, "").Handler()

	w := do(t, h, http.MethodPost, "/api/v1/entities", `{"query":"Who was Ghul'Vor?"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out entitiesResponse
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Entities) != 1 || out.Entities[0].Canonical != "Ghul'Vor" {
		t.Errorf("unexpected entities: %+v", out.Entities)
	}
}

func TestHandleHealth(t *testing.T) {
	h := newTestServer(&mockPlanner{}, &mockLexicon{sources: []string{"/tmp/a.yaml"}}, nil, "").Handler()
	w := do(t, h, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out["status"] != "ok" || out["backend"] != router.BackendNeural {
		t.Errorf("unexpected health: %v", out)
	}
	if out["gazetteer_entries"] != float64(10) {
		t.Errorf("gazetteer_entries: got %v", out["gazetteer_entries"])
	}
}

func TestHandleMetrics(t *testing.T) {
	h := newTestServer(&mockPlanner{}, nil, nil, "").Handler()
	w := do(t, h, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "go_goroutines") {
		t.Error("expected runtime metrics in exposition")
	}
}

func TestGazetteerEndpoints_notEnabled(t *testing.T) {
	h := newTestServer(&mockPlanner{}, nil, nil, "").Handler()
	w := do(t, h, http.MethodGet, "/api/v1/gazetteer", "")
	if w.Code != http.StatusNotImplemented {
		t.Errorf("status: got %d", w.Code)
	}
}

func TestGazetteerSources_addRemovePersists(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "npcs.yaml")
	if err := os.WriteFile(source, []byte("names: [\"Ghul'Vor\"]\n"), 0600); err != nil {
		t.Fatal(err)
	}
	configPath := filepath.Join(dir, "config.yaml")

	lex := &mockLexicon{}
	watch := &mockWatcher{}
	h := newTestServer(&mockPlanner{}, lex, watch, configPath).Handler()

	w := do(t, h, http.MethodPost, "/api/v1/gazetteer/sources", `{"path":"`+source+`"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("add status: got %d body %s", w.Code, w.Body.String())
	}
	if len(watch.files) != 1 || watch.files[0] != source {
		t.Errorf("watcher files: %v", watch.files)
	}
	saved, err := config.Load(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(saved.Gazetteer.Sources) != 1 || saved.Gazetteer.Sources[0] != source {
		t.Errorf("persisted sources: %v", saved.Gazetteer.Sources)
	}

	w = do(t, h, http.MethodGet, "/api/v1/gazetteer", "")
	var status struct {
		Entries int      `json:"entries"`
		Sources []string `json:"sources"`
	}
	if err := json.NewDecoder(w.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if status.Entries != 10 || len(status.Sources) != 1 {
		t.Errorf("status: %+v", status)
	}

	w = do(t, h, http.MethodDelete, "/api/v1/gazetteer/sources?path="+source, "")
	if w.Code != http.StatusOK {
		t.Fatalf("remove status: got %d", w.Code)
	}
	if len(lex.sources) != 0 || len(watch.files) != 0 {
		t.Errorf("after remove: sources=%v files=%v", lex.sources, watch.files)
	}

	w = do(t, h, http.MethodDelete, "/api/v1/gazetteer/sources?path="+source, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("second remove status: got %d", w.Code)
	}
}

func TestGazetteerSources_addErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		body string
		lex  *mockLexicon
		want int
	}{
		{"missing path", `{}`, &mockLexicon{}, http.StatusBadRequest},
		{"not found", `{"path":"` + filepath.Join(dir, "nope.yaml") + `"}`, &mockLexicon{}, http.StatusNotFound},
		{"directory", `{"path":"` + dir + `"}`, &mockLexicon{}, http.StatusBadRequest},
		{"unparseable", `{"path":"` + bad + `"}`, &mockLexicon{addErr: errors.New("parse")}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(&mockPlanner{}, tt.lex, nil, "").Handler()
			w := do(t, h, http.MethodPost, "/api/v1/gazetteer/sources", tt.body)
			if w.Code != tt.want {
				t.Errorf("status: got %d, want %d", w.Code, tt.want)
			}
		})
	}
}
