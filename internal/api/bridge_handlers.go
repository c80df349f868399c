package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mattjoyce/switchyard/internal/bridge"
)

func (s *Server) handleBridgeHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.deps.Bridge.Health())
}

// handleBridgeDispatch handles POST /bridge/dispatch. It answers 202 once
// the task is queued; execution continues after the response.
func (s *Server) handleBridgeDispatch(w http.ResponseWriter, r *http.Request) {
	var req bridge.DispatchRequest
	if !s.decodeBody(w, r, &req, true) {
		return
	}
	resp, err := s.deps.Bridge.Dispatch(r.Context(), bridgeKey(r), req)
	if err != nil {
		s.writeBridgeError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, resp)
}

func (s *Server) handleBridgeStatus(w http.ResponseWriter, r *http.Request) {
	task, err := s.deps.Bridge.Status(bridgeKey(r), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeBridgeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, task)
}

func (s *Server) handleBridgeTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.deps.Bridge.List(bridgeKey(r))
	if err != nil {
		s.writeBridgeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, TaskListResponse[bridge.Task]{Tasks: tasks, Count: len(tasks)})
}

func (s *Server) handleBridgeHandshake(w http.ResponseWriter, r *http.Request) {
	var req bridge.HandshakeRequest
	if !s.decodeBody(w, r, &req, false) {
		return
	}
	resp, err := s.deps.Bridge.Handshake(bridgeKey(r), req)
	if err != nil {
		s.writeBridgeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// writeBridgeError maps bridge sentinels to status codes. Auth failures
// carry a generic message.
func (s *Server) writeBridgeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, bridge.ErrBridgeDisabled):
		s.writeError(w, http.StatusConflict, "bridge is disabled")
	case errors.Is(err, bridge.ErrUnauthorized):
		s.writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, bridge.ErrInvalidRequest):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, bridge.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, bridge.ErrClosed):
		s.writeError(w, http.StatusServiceUnavailable, "bridge is shutting down")
	default:
		s.logger.Error("bridge request failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}
