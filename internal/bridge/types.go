package bridge

import (
	"maps"
	"time"

	"github.com/mattjoyce/switchyard/internal/policy"
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

func (s Status) rank() int {
	switch s {
	case StatusQueued:
		return 0
	case StatusRunning:
		return 1
	case StatusCompleted, StatusFailed:
		return 2
	default:
		return -1
	}
}

// Terminal reports whether s is completed or failed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// canTransition allows forward moves and non-terminal self moves.
func canTransition(from, to Status) bool {
	if to.rank() < 0 {
		return false
	}
	if from == to {
		return !from.Terminal()
	}
	return to.rank() > from.rank()
}

// Task is one dispatched unit of work.
type Task struct {
	TaskID      string             `json:"task_id"`
	SessionID   string             `json:"session_id"`
	TaskText    string             `json:"task_text"`
	Status      Status             `json:"status"`
	Output      string             `json:"output,omitempty"`
	Error       string             `json:"error,omitempty"`
	CallbackURL string             `json:"callback_url,omitempty"`
	Source      string             `json:"source"`
	Model       string             `json:"model,omitempty"`
	AgentType   string             `json:"agent_type,omitempty"`
	Metadata    map[string]any     `json:"metadata"`
	Policy      *policy.PromptMeta `json:"policy,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

func (t *Task) clone() *Task {
	c := *t
	c.Metadata = maps.Clone(t.Metadata)
	if c.Metadata == nil {
		c.Metadata = map[string]any{}
	}
	if t.Policy != nil {
		p := *t.Policy
		c.Policy = &p
	}
	return &c
}

// DispatchRequest is the body of POST /bridge/dispatch.
type DispatchRequest struct {
	Task        string         `json:"task"`
	Source      string         `json:"source,omitempty"`
	CallbackURL string         `json:"callback_url,omitempty"`
	ModelID     string         `json:"model_id,omitempty"`
	AgentType   string         `json:"agent_type,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type DispatchResponse struct {
	SessionID string `json:"session_id"`
	TaskID    string `json:"task_id"`
	Status    Status `json:"status"`
	PollURL   string `json:"poll_url"`
	Message   string `json:"message"`
}

type HandshakeRequest struct {
	Source   string         `json:"source,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type HandshakeResponse struct {
	Accepted bool      `json:"accepted"`
	Agent    string    `json:"agent"`
	Source   string    `json:"source"`
	Gateway  string    `json:"gateway"`
	Time     time.Time `json:"time"`
}

type HealthResponse struct {
	Status        string    `json:"status"`
	Agent         string    `json:"agent"`
	BridgeEnabled bool      `json:"bridge_enabled"`
	GatewayURL    string    `json:"gateway_url"`
	ActiveTasks   int       `json:"active_tasks"`
	Time          time.Time `json:"time"`
}

// CallbackPayload is posted to the callback URL once a task is terminal.
type CallbackPayload struct {
	TaskID      string         `json:"task_id"`
	SessionID   string         `json:"session_id"`
	Source      string         `json:"source"`
	Status      Status         `json:"status"`
	Output      string         `json:"output"`
	Error       string         `json:"error"`
	Metadata    map[string]any `json:"metadata"`
	CompletedAt time.Time      `json:"completed_at"`
	Agent       string         `json:"agent"`
}
