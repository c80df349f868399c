package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mattjoyce/switchyard/internal/intent"
	"github.com/mattjoyce/switchyard/internal/pipeline"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	bh := s.deps.Bridge.Health()
	respondJSON(w, http.StatusOK, HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		PipelineTasks: len(s.deps.Pipeline.ListTasks()),
		BridgeEnabled: bh.BridgeEnabled,
		BridgeActive:  bh.ActiveTasks,
	})
}

// handlePipelineRun handles POST /pipeline/run. The run is synchronous and
// the response is the final snapshot, including failed runs.
func (s *Server) handlePipelineRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if !s.decodeBody(w, r, &req, true) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		s.writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	ctx := r.Context()
	if s.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RunTimeout)
		defer cancel()
	}

	snap := s.deps.Pipeline.Run(ctx, req.Query, req.Context)
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks := s.deps.Pipeline.ListTasks()
	respondJSON(w, http.StatusOK, TaskListResponse[pipeline.TaskSummary]{Tasks: tasks, Count: len(tasks)})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "taskID")
	snap, err := s.deps.Pipeline.GetTask(id)
	if errors.Is(err, pipeline.ErrTaskNotFound) {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to get task", "task_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get task")
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.deps.Pipeline.Capabilities())
}

// handleRoute handles POST /pipeline/route.
func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	var req RouteRequest
	if !s.decodeBody(w, r, &req, true) {
		return
	}

	resp := RouteResponse{TaskType: strings.ToLower(strings.TrimSpace(req.TaskType))}
	if resp.TaskType == "" {
		if strings.TrimSpace(req.Task) == "" {
			s.writeError(w, http.StatusBadRequest, "task_type or task is required")
			return
		}
		resp.TaskType = intent.TaskType(req.Task)
		resp.Inferred = true
	}
	resp.Target = s.deps.Pipeline.RouteTaskType(resp.TaskType)
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePolicySelect(w http.ResponseWriter, r *http.Request) {
	var req PolicySelectRequest
	if !s.decodeBody(w, r, &req, true) {
		return
	}
	respondJSON(w, http.StatusOK, s.deps.Policy.Select(req.Query, req.Metadata))
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, buildOpenAPIDoc())
}

// decodeBody decodes a JSON body into v and writes a 400 on failure. An
// empty body is accepted unless required is set.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any, required bool) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	switch {
	case err == nil:
		return true
	case errors.Is(err, io.EOF) && !required:
		return true
	case errors.Is(err, io.EOF):
		s.writeError(w, http.StatusBadRequest, "request body is required")
	default:
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
	}
	return false
}

func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
