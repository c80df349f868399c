package api

import "github.com/mattjoyce/switchyard/internal/capability"

// RunRequest is the JSON body for POST /pipeline/run.
type RunRequest struct {
	Query   string         `json:"query"`
	Context map[string]any `json:"context,omitempty"`
}

// RouteRequest is the JSON body for POST /pipeline/route. TaskType wins
// when both fields are set; otherwise the type is inferred from Task.
type RouteRequest struct {
	TaskType string `json:"task_type,omitempty"`
	Task     string `json:"task,omitempty"`
}

// RouteResponse is returned by POST /pipeline/route.
type RouteResponse struct {
	TaskType string            `json:"task_type"`
	Target   capability.Target `json:"target"`
	Inferred bool              `json:"inferred"`
}

// PolicySelectRequest is the JSON body for POST /policy/select.
type PolicySelectRequest struct {
	Query    string         `json:"query"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// TaskListResponse wraps list endpoints.
type TaskListResponse[T any] struct {
	Tasks []T `json:"tasks"`
	Count int `json:"count"`
}

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	PipelineTasks int    `json:"pipeline_tasks"`
	BridgeEnabled bool   `json:"bridge_enabled"`
	BridgeActive  int    `json:"bridge_tasks_active"`
}
