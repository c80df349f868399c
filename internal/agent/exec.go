package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

const (
	// maxStderrBytes caps the stderr kept from an agent process.
	maxStderrBytes = 64 * 1024
	// maxStdoutBytes caps the result document read from an agent process.
	maxStdoutBytes = 16 << 20

	// terminationGracePeriod is the wait after SIGTERM before SIGKILL.
	terminationGracePeriod = 5 * time.Second
)

// ExecRunner spawns a local executable per request. The request is written
// to stdin as JSON and a Result is read back from stdout.
type ExecRunner struct {
	entrypoint string
	timeout    time.Duration
	grace      time.Duration
	logger     *slog.Logger
}

func NewExecRunner(m Model, logger *slog.Logger) (*ExecRunner, error) {
	if strings.TrimSpace(m.Entrypoint) == "" {
		return nil, fmt.Errorf("model %q: exec entrypoint is empty", m.Name)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecRunner{
		entrypoint: m.Entrypoint,
		timeout:    timeoutOr(m.Timeout, 10*time.Minute),
		grace:      terminationGracePeriod,
		logger:     logger.With("entrypoint", m.Entrypoint),
	}, nil
}

// Run enforces the timeout with SIGTERM, then SIGKILL after the grace period.
// A non-zero exit with no decodable result is reported as an agent error
// carrying stderr.
func (r *ExecRunner) Run(ctx context.Context, req Request) (Result, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return Result{}, fmt.Errorf("encode request: %w", err)
	}

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	// Termination is managed here rather than through CommandContext.
	cmd := exec.Command(r.entrypoint)
	if req.WorkspaceDir != "" {
		cmd.Dir = req.WorkspaceDir
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return Result{}, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout := &cappedBuffer{limit: maxStdoutBytes}
	stderr := &cappedBuffer{limit: maxStderrBytes}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	logger := r.logger.With("task_id", req.TaskID)
	logger.Debug("spawning agent process", "timeout", r.timeout)

	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("start process: %w", err)
	}

	writeErr := make(chan error, 1)
	go func() {
		defer stdin.Close()
		_, err := stdin.Write(payload)
		writeErr <- err
	}()

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
	}()

	var abort error
	select {
	case <-timer.C:
		abort = context.DeadlineExceeded
	case <-ctx.Done():
		abort = ctx.Err()
	case err := <-waitErr:
		return r.finish(logger, err, <-writeErr, stdout.Bytes(), stderr.String())
	}

	logger.Warn("agent process aborted, sending SIGTERM", "reason", abort)
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		logger.Error("failed to send SIGTERM", "error", err)
	}
	grace := time.NewTimer(r.grace)
	defer grace.Stop()
	select {
	case <-waitErr:
	case <-grace.C:
		logger.Warn("agent process ignored SIGTERM, sending SIGKILL")
		if err := cmd.Process.Kill(); err != nil {
			logger.Error("failed to send SIGKILL", "error", err)
		}
		<-waitErr
	}
	return Result{}, fmt.Errorf("agent process: %w", abort)
}

func (r *ExecRunner) finish(logger *slog.Logger, waitErr, writeErr error, stdout []byte, stderr string) (Result, error) {
	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		return Result{}, fmt.Errorf("wait for process: %w", waitErr)
	}

	var res Result
	decodeErr := json.Unmarshal(bytes.TrimSpace(stdout), &res)

	if exitErr != nil {
		logger.Warn("agent process exited non-zero", "exit_code", exitErr.ExitCode())
		if decodeErr != nil {
			msg := strings.TrimSpace(stderr)
			if msg == "" {
				msg = fmt.Sprintf("agent process exited with status %d", exitErr.ExitCode())
			}
			return Result{Output: msg, IsError: true}, nil
		}
		res.IsError = true
		return res, nil
	}

	if decodeErr != nil {
		if writeErr != nil {
			return Result{}, fmt.Errorf("write request: %w", writeErr)
		}
		return Result{}, fmt.Errorf("decode response: %w", decodeErr)
	}
	return res, nil
}

// cappedBuffer keeps the first limit bytes written. Writes past the limit
// are discarded but still reported as complete.
type cappedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *cappedBuffer) Bytes() []byte  { return b.buf.Bytes() }
func (b *cappedBuffer) String() string { return b.buf.String() }
