// Command notes-agent is a minimal exec-provider agent. It reads one
// agent.Request from stdin, records the task in its workspace and writes an
// agent.Result to stdout. It is useful for wiring tests and as a template
// for real local agents.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/switchyard/internal/agent"
)

func main() {
	res := handle(os.Stdin)
	_ = json.NewEncoder(os.Stdout).Encode(res)
	if res.IsError {
		os.Exit(1)
	}
}

func handle(r io.Reader) agent.Result {
	var req agent.Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return errResult("invalid request JSON: %v", err)
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return errResult("request has no prompt")
	}

	noteID := uuid.NewString()
	if req.WorkspaceDir != "" {
		if err := writeNotes(req, noteID); err != nil {
			return errResult("write workspace notes: %v", err)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "note %s recorded for task %s\n", noteID, req.TaskID)
	fmt.Fprintf(&b, "model: %s\n", req.Model)
	fmt.Fprintf(&b, "prompt: %s\n", firstLine(req.Prompt))
	if req.SystemPrompt != "" {
		fmt.Fprintf(&b, "system prompt: %d bytes\n", len(req.SystemPrompt))
	}
	return agent.Result{Output: b.String()}
}

// writeNotes leaves context.md and plan.md in the task workspace.
func writeNotes(req agent.Request, noteID string) error {
	context := fmt.Sprintf("# Task %s\n\nsession: %s\nnote: %s\nreceived: %s\n\n## Prompt\n\n%s\n",
		req.TaskID, req.SessionID, noteID, time.Now().UTC().Format(time.RFC3339), req.Prompt)
	if req.SystemPrompt != "" {
		context += "\n## Policy\n\n" + req.SystemPrompt + "\n"
	}
	files := map[string]string{
		"context.md": context,
		"plan.md":    "# Plan\n\n1. " + firstLine(req.Prompt) + "\n",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(req.WorkspaceDir, name), []byte(body), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func errResult(format string, args ...any) agent.Result {
	return agent.Result{Output: fmt.Sprintf(format, args...), IsError: true}
}
