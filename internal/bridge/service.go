package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/switchyard/internal/agent"
	"github.com/mattjoyce/switchyard/internal/auth"
	"github.com/mattjoyce/switchyard/internal/metrics"
	"github.com/mattjoyce/switchyard/internal/policy"
	"github.com/mattjoyce/switchyard/internal/workspace"
)

// Event types published by the bridge.
const (
	EventDispatched        = "bridge.dispatched"
	EventRunning           = "bridge.running"
	EventCompleted         = "bridge.completed"
	EventFailed            = "bridge.failed"
	EventCallbackDelivered = "bridge.callback.delivered"
	EventCallbackFailed    = "bridge.callback.failed"
)

const (
	DefaultAgentName = "switchyard-bridge"
	DefaultBotUserID = "switchyard-bridge-bot"
	DefaultSource    = "gateway"
	DefaultAgentType = "general"
)

// Publisher receives lifecycle events. *events.Hub satisfies it.
type Publisher interface {
	Publish(eventType string, data any)
}

// ModelResolver picks the model a task runs on. *agent.Mux and agent.Models
// satisfy it.
type ModelResolver interface {
	Resolve(hint string) (agent.Model, error)
}

// PromptBuilder produces the policy package for a task. *policy.Builder
// satisfies it.
type PromptBuilder interface {
	Build(query string, metadata map[string]any) (string, policy.PromptMeta)
}

type Config struct {
	Enabled      bool
	GatewayURL   string
	SharedSecret string
	BotUserID    string
	AgentName    string
	// Persona is prepended to the policy package in the system prompt.
	Persona string
}

// Deps are the collaborators a Service runs with. Registry, Sessions,
// Runner, Models and Notifier are required.
type Deps struct {
	Registry   Registry
	Sessions   SessionProvider
	Runner     agent.Runner
	Models     ModelResolver
	Workspaces workspace.Manager
	Prompts    PromptBuilder
	Notifier   Notifier
	Events     Publisher
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// Service implements dispatch, status polling and out-of-band execution.
type Service struct {
	cfg  Config
	deps Deps
	log  *slog.Logger

	// Executors run under this context, not the request's.
	baseCtx    context.Context
	cancelBase context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup

	now func() time.Time
}

func NewService(cfg Config, deps Deps) (*Service, error) {
	switch {
	case deps.Registry == nil:
		return nil, fmt.Errorf("bridge: registry is required")
	case deps.Sessions == nil:
		return nil, fmt.Errorf("bridge: session provider is required")
	case deps.Runner == nil:
		return nil, fmt.Errorf("bridge: agent runner is required")
	case deps.Models == nil:
		return nil, fmt.Errorf("bridge: model resolver is required")
	case deps.Notifier == nil:
		return nil, fmt.Errorf("bridge: notifier is required")
	}
	if cfg.AgentName == "" {
		cfg.AgentName = DefaultAgentName
	}
	if cfg.BotUserID == "" {
		cfg.BotUserID = DefaultBotUserID
	}
	if cfg.Persona == "" {
		cfg.Persona = DefaultPersona
	}
	cfg.GatewayURL = strings.TrimRight(cfg.GatewayURL, "/")

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		cfg:        cfg,
		deps:       deps,
		log:        logger.With("component", "bridge"),
		baseCtx:    ctx,
		cancelBase: cancel,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// Enabled reports whether dispatch is accepted.
func (s *Service) Enabled() bool {
	return s.cfg.Enabled
}

// gate rejects a request when the bridge is disabled or the key is wrong.
func (s *Service) gate(key string) error {
	if !s.cfg.Enabled {
		return ErrBridgeDisabled
	}
	if s.cfg.SharedSecret != "" && !auth.SecretMatches(key, s.cfg.SharedSecret) {
		return ErrUnauthorized
	}
	return nil
}

// Dispatch registers a task and starts executing it in the background. It
// returns as soon as the task is queued.
func (s *Service) Dispatch(ctx context.Context, key string, req DispatchRequest) (DispatchResponse, error) {
	if err := s.gate(key); err != nil {
		s.deps.Metrics.BridgeDispatch(dispatchResult(err))
		return DispatchResponse{}, err
	}
	if strings.TrimSpace(req.Task) == "" {
		s.deps.Metrics.BridgeDispatch("invalid")
		return DispatchResponse{}, fmt.Errorf("%w: task is required", ErrInvalidRequest)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.deps.Metrics.BridgeDispatch("closed")
		return DispatchResponse{}, ErrClosed
	}

	source := req.Source
	if source == "" {
		source = DefaultSource
	}
	agentType := req.AgentType
	if agentType == "" {
		agentType = DefaultAgentType
	}
	callback := req.CallbackURL
	if callback == "" {
		callback = s.cfg.GatewayURL
	}
	metadata := req.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	now := s.now()
	task := &Task{
		TaskID:      uuid.NewString(),
		SessionID:   uuid.NewString(),
		TaskText:    req.Task,
		Status:      StatusQueued,
		CallbackURL: callback,
		Source:      source,
		AgentType:   agentType,
		Metadata:    metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.deps.Registry.Put(task); err != nil {
		s.deps.Metrics.BridgeDispatch("error")
		return DispatchResponse{}, fmt.Errorf("register task: %w", err)
	}

	s.log.Info("task dispatched",
		"task_id", task.TaskID,
		"session_id", task.SessionID,
		"source", source,
		"task", truncate(req.Task, 80),
	)
	s.deps.Metrics.BridgeDispatch("accepted")
	s.publish(EventDispatched, map[string]any{
		"task_id":    task.TaskID,
		"session_id": task.SessionID,
		"source":     source,
	})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(s.baseCtx, task.TaskID, req.ModelID)
	}()

	return DispatchResponse{
		SessionID: task.SessionID,
		TaskID:    task.TaskID,
		Status:    StatusQueued,
		PollURL:   "/bridge/session/" + task.SessionID + "/status",
		Message:   "Task queued. The agent is on it.",
	}, nil
}

// Status returns the task registered for sessionID.
func (s *Service) Status(key, sessionID string) (Task, error) {
	if err := s.gate(key); err != nil {
		return Task{}, err
	}
	t, ok := s.deps.Registry.GetBySession(sessionID)
	if !ok {
		return Task{}, fmt.Errorf("%w: no bridge task for session %q", ErrNotFound, sessionID)
	}
	return *t, nil
}

// List returns every registered task, oldest first.
func (s *Service) List(key string) ([]Task, error) {
	if err := s.gate(key); err != nil {
		return nil, err
	}
	tasks := s.deps.Registry.List()
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, *t)
	}
	return out, nil
}

func (s *Service) Handshake(key string, req HandshakeRequest) (HandshakeResponse, error) {
	if err := s.gate(key); err != nil {
		return HandshakeResponse{}, err
	}
	return HandshakeResponse{
		Accepted: true,
		Agent:    s.cfg.AgentName,
		Source:   req.Source,
		Gateway:  s.cfg.GatewayURL,
		Time:     s.now(),
	}, nil
}

// Health needs no key.
func (s *Service) Health() HealthResponse {
	active := 0
	for _, t := range s.deps.Registry.List() {
		if !t.Status.Terminal() {
			active++
		}
	}
	return HealthResponse{
		Status:        "ok",
		Agent:         s.cfg.AgentName,
		BridgeEnabled: s.cfg.Enabled,
		GatewayURL:    s.cfg.GatewayURL,
		ActiveTasks:   active,
		Time:          s.now(),
	}
}

// Wait blocks until every started executor has returned.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Close stops accepting dispatches. In-flight executors keep running.
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// Shutdown closes the service and waits for in-flight executors until ctx
// is done. On timeout the executors' context is cancelled.
func (s *Service) Shutdown(ctx context.Context) error {
	s.Close()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancelBase()
		return nil
	case <-ctx.Done():
		s.cancelBase()
		<-done
		return fmt.Errorf("bridge shutdown: %w", ctx.Err())
	}
}

func (s *Service) publish(eventType string, data any) {
	if s.deps.Events == nil {
		return
	}
	s.deps.Events.Publish(eventType, data)
}

func dispatchResult(err error) string {
	switch err {
	case ErrBridgeDisabled:
		return "disabled"
	case ErrUnauthorized:
		return "unauthorized"
	default:
		return "error"
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
