package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/codelod/internal/keyword"
	"github.com/hyperjump/codelod/internal/models"
	"github.com/hyperjump/codelod/internal/pipeline"
	"github.com/hyperjump/codelod/internal/storage"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 100
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusResponse struct {
	Root           string              `json:"root"`
	Total          int64               `json:"total"`
	Stale          int64               `json:"stale"`
	Fresh          int64               `json:"fresh"`
	DiskUsageBytes int64               `json:"disk_usage_bytes"`
	Footprints     []storage.Footprint `json:"footprints,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	total, stale, err := s.store.Count(r.Context())
	if err != nil {
		s.logger.Error("status: count failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := statusResponse{Root: s.paths.Root, Total: total, Stale: stale, Fresh: total - stale}
	if s.paths.Dir != "" {
		footprints, bytes, err := storage.DiskUsage(map[string]string{
			"hash_db":      s.paths.HashDB,
			"lod_files":    s.paths.LodDir,
			"search_index": s.paths.SearchIndex,
		})
		if err != nil {
			s.logger.Warn("status: disk usage failed", zap.Error(err))
		} else {
			resp.Footprints, resp.DiskUsageBytes = footprints, bytes
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStale(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.ListStale(r.Context())
	if err != nil {
		s.logger.Error("stale: list failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []*models.DescriptionRecord{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"count": len(records), "records": records})
}

func (s *Server) handleGetDescription(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")
	rec, err := s.store.Get(r.Context(), hash)
	if errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "description not found")
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteDescription(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")
	if _, err := s.store.Get(r.Context(), hash); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "description not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Debug("delete description request", zap.String("hash", hash))
	if err := s.store.Delete(r.Context(), hash); err != nil {
		s.logger.Error("deletion failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"hash": hash, "status": "deleted"})
}

type generateRequest struct {
	Paths []string `json:"paths"`
	Force bool     `json:"force"`
}

type generateResponse struct {
	Files int `json:"files"`
	pipeline.Stats
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	targets, err := s.resolvePaths(req.Paths)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	files, err := pipeline.CollectFiles(targets, s.keep)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("generate request", zap.Int("files", len(files)), zap.Bool("force", req.Force))
	stats, err := s.runner.Run(r.Context(), files, req.Force)
	if err != nil {
		s.logger.Error("generate failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if s.suggester != nil {
		if err := s.suggester.Refresh(); err != nil {
			s.logger.Warn("generate: suggester refresh failed", zap.Error(err))
		}
	}
	s.respondJSON(w, http.StatusOK, generateResponse{Files: len(files), Stats: stats})
}

// resolvePaths maps request paths (relative to the project root) to absolute paths
// and rejects anything outside the root. No paths means the whole project.
func (s *Server) resolvePaths(paths []string) ([]string, error) {
	if len(paths) == 0 {
		return []string{s.paths.Root}, nil
	}
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		abs := p
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(s.paths.Root, p)
		}
		abs = filepath.Clean(abs)
		rel, err := filepath.Rel(s.paths.Root, abs)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil, fmt.Errorf("path %q is outside the project", p)
		}
		out = append(out, abs)
	}
	return out, nil
}

type searchResponse struct {
	Query      string            `json:"query"`
	Results    []*keyword.Result `json:"results"`
	Suggestion string            `json:"suggestion,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.searcher == nil {
		s.respondError(w, http.StatusNotImplemented, "search not enabled")
		return
	}
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	if query == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit := defaultSearchLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxSearchLimit)
	}
	opts := &keyword.SearchOptions{
		NameBoost:    3,
		FuzzyEnabled: q.Get("fuzzy") == "true",
		Scope:        q.Get("scope"),
		Language:     q.Get("language"),
	}
	results, err := s.searcher.Search(r.Context(), query, limit, opts)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := searchResponse{Query: query, Results: results}
	if resp.Results == nil {
		resp.Results = []*keyword.Result{}
	}
	if len(results) == 0 && s.suggester != nil {
		if corrected, ok := s.suggester.Correct(query); ok {
			resp.Suggestion = corrected
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
