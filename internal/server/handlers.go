package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/config"
	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/models"
	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/router"
	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/storage"
)

type planRequest struct {
	Query   string               `json:"query"`
	Context *router.QueryContext `json:"context,omitempty"`
}

type entitiesResponse struct {
	Entities      []models.Entity                        `json:"entities"`
	EntityResults map[string][]models.EntitySearchResult `json:"entity_results"`
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	s.logger.Debug("plan request", zap.String("query", req.Query))
	plan, err := s.planner.Plan(r.Context(), req.Query, req.Context)
	if err != nil {
		var cerr *router.ClassificationError
		if errors.As(err, &cerr) {
			s.logger.Error("classification failed", zap.String("stage", cerr.Stage), zap.Error(err))
			s.respondJSON(w, http.StatusBadGateway, map[string]string{
				"error":   err.Error(),
				"backend": cerr.Backend,
				"stage":   cerr.Stage,
			})
			return
		}
		s.logger.Error("plan failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, plan)
}

func (s *Server) handleEntities(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	entities, results := s.planner.ExtractEntities(r.Context(), req.Query)
	s.respondJSON(w, http.StatusOK, entitiesResponse{Entities: entities, EntityResults: results})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":  "ok",
		"backend": s.backend,
	}
	if s.lexicon != nil {
		resp["gazetteer_entries"] = s.lexicon.Size()
	}
	if s.cfg != nil {
		usage, err := storage.DiskUsage(s.cfg.Storage.DatabasePath, s.cfg.Storage.RulesIndexPath)
		if err == nil {
			resp["disk_usage_bytes"] = usage.Total()
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGazetteerStatus(w http.ResponseWriter, r *http.Request) {
	if s.lexicon == nil {
		s.respondError(w, http.StatusNotImplemented, "gazetteer management not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"entries": s.lexicon.Size(),
		"sources": s.lexicon.Sources(),
	})
}

func (s *Server) handleGazetteerReload(w http.ResponseWriter, r *http.Request) {
	if s.lexicon == nil {
		s.respondError(w, http.StatusNotImplemented, "gazetteer management not enabled")
		return
	}
	resp := map[string]interface{}{"status": "reloaded"}
	if err := s.lexicon.Reload(); err != nil {
		s.logger.Warn("gazetteer reload degraded", zap.Error(err))
		resp["status"] = "degraded"
		resp["error"] = err.Error()
	}
	resp["entries"] = s.lexicon.Size()
	s.respondJSON(w, http.StatusOK, resp)
}

type sourceRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleGazetteerSourcesAdd(w http.ResponseWriter, r *http.Request) {
	if s.lexicon == nil {
		s.respondError(w, http.StatusNotImplemented, "gazetteer management not enabled")
		return
	}
	var req sourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "file not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is a directory")
		return
	}
	s.logger.Debug("gazetteer add source request", zap.String("path", abs))
	if err := s.lexicon.AddSource(abs); err != nil {
		s.logger.Error("gazetteer add source failed", zap.Error(err))
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if s.watch != nil {
		if err := s.watch.AddFile(abs); err != nil {
			s.logger.Warn("failed to watch gazetteer source", zap.Error(err))
		}
	}
	s.persistSources()
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{"path": abs, "status": "added", "entries": s.lexicon.Size()})
}

func (s *Server) handleGazetteerSourcesRemove(w http.ResponseWriter, r *http.Request) {
	if s.lexicon == nil {
		s.respondError(w, http.StatusNotImplemented, "gazetteer management not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		var body sourceRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.Path != "" {
			path = body.Path
		}
	}
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required (query or body)")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	s.logger.Debug("gazetteer remove source request", zap.String("path", abs))
	removed, err := s.lexicon.RemoveSource(abs)
	if !removed {
		s.respondError(w, http.StatusNotFound, "source not configured")
		return
	}
	if err != nil {
		s.logger.Warn("gazetteer reload degraded", zap.Error(err))
	}
	if s.watch != nil {
		if err := s.watch.RemoveFile(abs); err != nil {
			s.logger.Warn("failed to unwatch gazetteer source", zap.Error(err))
		}
	}
	s.persistSources()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"path": abs, "status": "removed", "entries": s.lexicon.Size()})
}

func (s *Server) persistSources() {
	if s.configPath == "" || s.cfg == nil {
		return
	}
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	s.cfg.Gazetteer.Sources = s.lexicon.Sources()
	if err := config.Save(s.configPath, s.cfg); err != nil {
		s.logger.Warn("failed to persist gazetteer sources", zap.Error(err))
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
