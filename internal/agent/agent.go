// Package agent runs a single prompt against a configured model backend.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

//go:generate mockgen -destination=mocks/mock_runner.go -package=mocks github.com/mattjoyce/switchyard/internal/agent Runner

// ErrNoModelConfigured means there is no backend to run on.
var ErrNoModelConfigured = errors.New("no model configured")

// Provider names.
const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderExec      = "exec"
)

// Model is one configured execution backend.
type Model struct {
	Name       string
	Provider   string
	Model      string
	APIKey     string
	BaseURL    string
	Entrypoint string
	MaxTokens  int
	Timeout    time.Duration
}

// Request is one agent execution.
type Request struct {
	TaskID       string         `json:"task_id"`
	SessionID    string         `json:"session_id"`
	Model        string         `json:"model"`
	SystemPrompt string         `json:"system_prompt"`
	Prompt       string         `json:"prompt"`
	WorkspaceDir string         `json:"workspace_dir,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Result is what the agent produced. IsError marks a failure reported by the
// agent itself, as opposed to a transport or process error.
type Result struct {
	Output  string `json:"output"`
	IsError bool   `json:"is_error"`
}

// Runner executes a Request.
type Runner interface {
	Run(ctx context.Context, req Request) (Result, error)
}

// ResolveModel picks hint when it names a configured model, otherwise the
// first model by sorted name.
func ResolveModel(models map[string]Model, hint string) (Model, error) {
	if len(models) == 0 {
		return Model{}, ErrNoModelConfigured
	}
	if hint != "" {
		if m, ok := models[hint]; ok {
			return m, nil
		}
	}
	names := make([]string, 0, len(models))
	for name := range models {
		names = append(names, name)
	}
	sort.Strings(names)
	return models[names[0]], nil
}

func timeoutOr(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}

func unknownProvider(m Model) error {
	return fmt.Errorf("model %q: unknown provider %q", m.Name, m.Provider)
}

// Models is a static model table.
type Models map[string]Model

// Resolve applies ResolveModel to m.
func (m Models) Resolve(hint string) (Model, error) {
	return ResolveModel(m, hint)
}
