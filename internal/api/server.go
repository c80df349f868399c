package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/switchyard/internal/auth"
	"github.com/mattjoyce/switchyard/internal/bridge"
	"github.com/mattjoyce/switchyard/internal/capability"
	"github.com/mattjoyce/switchyard/internal/events"
	"github.com/mattjoyce/switchyard/internal/pipeline"
	"github.com/mattjoyce/switchyard/internal/policy"
)

// Pipeline is the orchestrator surface the API serves.
type Pipeline interface {
	Run(ctx context.Context, query string, taskCtx map[string]any) pipeline.TaskSnapshot
	GetTask(id string) (pipeline.TaskSnapshot, error)
	ListTasks() []pipeline.TaskSummary
	Capabilities() capability.Map
	RouteTaskType(taskType string) capability.Target
}

// Bridge is the dispatch surface the gateway calls.
type Bridge interface {
	Dispatch(ctx context.Context, key string, req bridge.DispatchRequest) (bridge.DispatchResponse, error)
	Status(key, sessionID string) (bridge.Task, error)
	List(key string) ([]bridge.Task, error)
	Handshake(key string, req bridge.HandshakeRequest) (bridge.HandshakeResponse, error)
	Health() bridge.HealthResponse
}

// EventSource backs the SSE stream. *events.Hub satisfies it.
type EventSource interface {
	SnapshotSince(lastID int64) []events.Event
	Subscribe() (<-chan events.Event, func())
}

// PolicySelector backs /policy/select.
type PolicySelector interface {
	Select(query string, metadata map[string]any) policy.Selection
}

// Config holds API server configuration
type Config struct {
	Listen string
	// APIKey is a single bearer token with full access.
	APIKey string
	// Tokens is an optional list of scoped bearer tokens.
	Tokens       []auth.TokenConfig
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// RunTimeout bounds POST /pipeline/run. Zero means the request context.
	RunTimeout time.Duration
}

// Deps are the services behind the routes. Pipeline, Bridge, Events and
// Policy are required; Metrics may be nil.
type Deps struct {
	Pipeline Pipeline
	Bridge   Bridge
	Events   EventSource
	Policy   PolicySelector
	Metrics  http.Handler
}

// Server represents the HTTP API server
type Server struct {
	config    Config
	deps      Deps
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
	keepAlive time.Duration
}

// New creates a new API server instance
func New(config Config, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config:    config,
		deps:      deps,
		logger:    logger.With("component", "api"),
		startedAt: time.Now(),
		keepAlive: 15 * time.Second,
	}
}

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      s.setupRoutes(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("API server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// setupRoutes configures the HTTP router
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// Unauthenticated ops endpoints.
	r.Get("/healthz", s.handleHealthz)
	r.Get("/openapi.json", s.handleOpenAPI)
	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.deps.Metrics)
	}

	// Bearer-protected API.
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.With(s.requireScopes(auth.ScopePipelineRW)).Post("/pipeline/run", s.handlePipelineRun)
		r.With(s.requireScopes(auth.ScopePipelineRO)).Get("/pipeline/tasks", s.handleListTasks)
		r.With(s.requireScopes(auth.ScopePipelineRO)).Get("/pipeline/tasks/{taskID}", s.handleGetTask)
		r.With(s.requireScopes(auth.ScopePipelineRO)).Get("/pipeline/capabilities", s.handleCapabilities)
		r.With(s.requireScopes(auth.ScopePipelineRO)).Post("/pipeline/route", s.handleRoute)
		r.With(s.requireScopes(auth.ScopePipelineRO)).Post("/policy/select", s.handlePolicySelect)
		r.With(s.requireScopes(auth.ScopeEventsRO)).Get("/events", s.handleEvents)
	})

	// Bridge endpoints authenticate with the shared secret inside the service.
	r.Route("/bridge", func(r chi.Router) {
		r.Get("/health", s.handleBridgeHealth)
		r.Post("/dispatch", s.handleBridgeDispatch)
		r.Post("/handshake", s.handleBridgeHandshake)
		r.Get("/tasks", s.handleBridgeTasks)
		r.Get("/session/{sessionID}/status", s.handleBridgeStatus)
	})

	return r
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
