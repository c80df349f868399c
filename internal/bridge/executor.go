package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/mattjoyce/switchyard/internal/agent"
	"github.com/mattjoyce/switchyard/internal/policy"
	"github.com/mattjoyce/switchyard/internal/workspace"
)

// DefaultPersona is the system prompt preamble for bridge-dispatched runs.
const DefaultPersona = `You are the switchyard bridge agent, dispatched by a remote gateway to complete a specific task on behalf of a user.

Work decisively and ship a result rather than a plan. Keep output structured and easy to scan.

When you complete a task, close with a concise summary block:
---
TASK COMPLETE
Task: <original task one-liner>
Output: <brief description of what was produced>
Time: <timestamp>
---`

// execute runs one task to a terminal status and then attempts its callback
// exactly once.
func (s *Service) execute(ctx context.Context, taskID, modelHint string) {
	logger := s.log.With("task_id", taskID)

	task, err := s.deps.Registry.Update(taskID, func(t *Task) error {
		t.Status = StatusRunning
		return nil
	})
	if err != nil {
		logger.Error("cannot start task", "error", err)
		return
	}
	s.deps.Metrics.BridgeTaskStarted()
	s.publish(EventRunning, map[string]any{"task_id": taskID, "session_id": task.SessionID})

	res, meta, model, runErr := s.run(ctx, task, modelHint)
	s.deps.Metrics.BridgeTaskFinished()

	final, err := s.deps.Registry.Update(taskID, func(t *Task) error {
		t.Model = model
		t.Policy = meta
		switch {
		case runErr != nil:
			t.Status = StatusFailed
			t.Error = runErr.Error()
		case res.IsError:
			t.Status = StatusFailed
			t.Output = res.Output
			t.Error = "agent reported an error"
		default:
			t.Status = StatusCompleted
			t.Output = res.Output
		}
		return nil
	})
	if err != nil {
		logger.Error("cannot record task result", "error", err)
		return
	}

	if final.Status == StatusCompleted {
		logger.Info("task completed", "model", model, "output_chars", len(final.Output))
		s.publish(EventCompleted, map[string]any{"task_id": taskID, "session_id": final.SessionID})
	} else {
		logger.Warn("task failed", "model", model, "error", final.Error)
		s.publish(EventFailed, map[string]any{
			"task_id":    taskID,
			"session_id": final.SessionID,
			"error":      final.Error,
		})
	}

	s.callback(ctx, final)
}

// run performs the agent execution. meta and model are returned even on
// failure when they were resolved.
func (s *Service) run(ctx context.Context, task *Task, modelHint string) (agent.Result, *policy.PromptMeta, string, error) {
	if _, err := s.deps.Sessions.Create(ctx, task.SessionID, s.cfg.BotUserID); err != nil {
		return agent.Result{}, nil, "", fmt.Errorf("create session: %w", err)
	}

	model, err := s.deps.Models.Resolve(modelHint)
	if err != nil {
		if errors.Is(err, agent.ErrNoModelConfigured) {
			return agent.Result{}, nil, "", fmt.Errorf("no model configured for bridge tasks: %w", err)
		}
		return agent.Result{}, nil, "", fmt.Errorf("resolve model: %w", err)
	}

	var ws workspace.Workspace
	if s.deps.Workspaces != nil {
		ws, err = s.deps.Workspaces.Create(ctx, task.TaskID)
		if err != nil {
			return agent.Result{}, nil, model.Name, fmt.Errorf("create workspace: %w", err)
		}
		if err := ws.WriteArtifact("task.txt", []byte(task.TaskText)); err != nil {
			s.log.Warn("cannot write task artifact", "task_id", task.TaskID, "error", err)
		}
	}

	system := s.cfg.Persona
	var meta *policy.PromptMeta
	if s.deps.Prompts != nil {
		prompt, m := s.deps.Prompts.Build(task.TaskText, task.Metadata)
		meta = &m
		if prompt != "" {
			system += "\n\n" + prompt
		}
	}

	res, err := s.deps.Runner.Run(ctx, agent.Request{
		TaskID:       task.TaskID,
		SessionID:    task.SessionID,
		Model:        model.Name,
		SystemPrompt: system,
		Prompt:       task.TaskText,
		WorkspaceDir: ws.Dir,
		Metadata:     task.Metadata,
	})
	if err != nil {
		return agent.Result{}, meta, model.Name, fmt.Errorf("agent run: %w", err)
	}

	if ws.Dir != "" {
		if err := ws.WriteArtifact("output.txt", []byte(res.Output)); err != nil {
			s.log.Warn("cannot write output artifact", "task_id", task.TaskID, "error", err)
		}
	}
	return res, meta, model.Name, nil
}

// callback failures are logged and leave the task untouched.
func (s *Service) callback(ctx context.Context, t *Task) {
	if t.CallbackURL == "" {
		s.log.Debug("no callback url, skipping", "task_id", t.TaskID)
		return
	}

	payload := CallbackPayload{
		TaskID:      t.TaskID,
		SessionID:   t.SessionID,
		Source:      t.Source,
		Status:      t.Status,
		Output:      t.Output,
		Error:       t.Error,
		Metadata:    t.Metadata,
		CompletedAt: s.now(),
		Agent:       s.cfg.AgentName,
	}
	if err := s.deps.Notifier.Notify(ctx, t.CallbackURL, payload); err != nil {
		s.log.Error("callback failed", "task_id", t.TaskID, "callback_url", t.CallbackURL, "error", err)
		s.deps.Metrics.BridgeCallback("failed")
		s.publish(EventCallbackFailed, map[string]any{"task_id": t.TaskID, "error": err.Error()})
		return
	}
	s.log.Info("callback delivered", "task_id", t.TaskID, "callback_url", t.CallbackURL)
	s.deps.Metrics.BridgeCallback("delivered")
	s.publish(EventCallbackDelivered, map[string]any{"task_id": t.TaskID})
}
