package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"aiblog/internal/core"
	"aiblog/internal/persistence"
	"aiblog/internal/pipeline"
	"aiblog/internal/render"
)

// HealthResponse is the /health payload
type HealthResponse struct {
	Status string            `json:"status"`
	Uptime string            `json:"uptime"`
	Checks map[string]string `json:"checks"`
}

// CreateRunRequest is the optional body of POST /api/runs
type CreateRunRequest struct {
	Kind   core.PostKind `json:"kind"`
	DryRun bool          `json:"dry_run"`

	RefreshTrends bool `json:"refresh_trends"`
}

var serverStartTime = time.Now()

const healthCheckTimeout = 5 * time.Second

// handleHealth handles the /health endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status, code := "ok", http.StatusOK

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()
	if _, err := s.store.ListCategories(ctx); err != nil {
		s.log.Warn("Health check failed", "check", "store", "error", err.Error())
		checks["store"] = "error"
		status, code = "unhealthy", http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	if s.busy.Load() {
		checks["run"] = "in_progress"
	} else {
		checks["run"] = "idle"
	}

	s.respondJSON(w, code, HealthResponse{
		Status: status,
		Uptime: time.Since(serverStartTime).Round(time.Second).String(),
		Checks: checks,
	})
}

// handleCreateRun handles POST /api/runs. The run continues after the
// response; only one triggered run may be in flight.
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Kind == "" {
		req.Kind = core.KindGeneral
	}
	if req.Kind != core.KindGeneral && req.Kind != core.KindTool {
		s.respondError(w, http.StatusBadRequest, "kind must be general or tool")
		return
	}

	if !s.busy.CompareAndSwap(false, true) {
		s.respondError(w, http.StatusConflict, "A run is already in progress")
		return
	}

	opts := pipeline.RunOptions{RunID: uuid.NewString(), Kind: req.Kind, DryRun: req.DryRun, RefreshTrends: req.RefreshTrends}
	rec := s.runs.Begin(opts.RunID, opts)

	s.inFlight.Add(1)
	go func() {
		defer s.inFlight.Done()
		defer s.busy.Store(false)

		result, err := s.runner.Run(s.runCtx, opts)
		s.runs.Record(result, err)
	}()

	s.log.Info("Run triggered", "run_id", opts.RunID, "kind", string(opts.Kind), "dry_run", opts.DryRun)
	w.Header().Set("Location", "/api/runs/"+opts.RunID)
	s.respondJSON(w, http.StatusAccepted, rec)
}

// handleListRuns handles GET /api/runs
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs := s.runs.List()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"data":  runs,
		"count": len(runs),
	})
}

// handleGetRun handles GET /api/runs/{id}
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.runs.Get(chi.URLParam(r, "id"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "Run not found")
		return
	}
	s.respondJSON(w, http.StatusOK, rec)
}

// handleRunPreview handles GET /api/runs/{id}/preview
func (s *Server) handleRunPreview(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.runs.Get(chi.URLParam(r, "id"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "Run not found")
		return
	}
	if rec.Status == StatusRunning {
		s.respondError(w, http.StatusConflict, "Run is still in progress")
		return
	}
	if rec.Result == nil || rec.Result.Post == nil {
		s.respondError(w, http.StatusNotFound, "Run produced no post")
		return
	}

	page, err := render.PostHTML(*rec.Result.Post)
	if err != nil {
		s.log.Error("Failed to render preview", "run_id", rec.ID, "error", err.Error())
		s.respondError(w, http.StatusInternalServerError, "Failed to render preview")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, page)
}

// handleListPosts handles GET /api/posts?kind=general|tool&limit=N
func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	filter := persistence.PostFilter{Kind: core.PostKind(r.URL.Query().Get("kind"))}
	if filter.Kind != "" && filter.Kind != core.KindGeneral && filter.Kind != core.KindTool {
		s.respondError(w, http.StatusBadRequest, "kind must be general or tool")
		return
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}

	posts, err := s.store.ListPosts(r.Context(), filter)
	if err != nil {
		s.log.Error("Failed to list posts", "error", err.Error())
		s.respondError(w, http.StatusInternalServerError, "Failed to list posts")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"data":  posts,
		"count": len(posts),
	})
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("Failed to encode JSON response", "error", err)
	}
}

// respondError writes a JSON error response
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"status":  status,
			"message": message,
		},
	})
}
