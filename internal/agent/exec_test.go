package agent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "agent.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestExecRunnerSuccess(t *testing.T) {
	t.Parallel()

	script := writeScript(t, `
input=$(cat)
case "$input" in
  *'"task_id":"t-1"'*) echo '{"output":"handled t-1","is_error":false}' ;;
  *) echo '{"output":"wrong input","is_error":true}' ;;
esac
`)
	r, err := NewExecRunner(Model{Name: "local", Entrypoint: script}, nil)
	require.NoError(t, err)

	res, err := r.Run(context.Background(), Request{TaskID: "t-1", Prompt: "do it"})
	require.NoError(t, err)
	assert.Equal(t, "handled t-1", res.Output)
	assert.False(t, res.IsError)
}

func TestExecRunnerRunsInWorkspace(t *testing.T) {
	t.Parallel()

	script := writeScript(t, `cat >/dev/null
printf '{"output":"%s"}' "$(pwd)"
`)
	dir := t.TempDir()
	r, err := NewExecRunner(Model{Name: "local", Entrypoint: script}, nil)
	require.NoError(t, err)

	res, err := r.Run(context.Background(), Request{WorkspaceDir: dir})
	require.NoError(t, err)

	want, _ := filepath.EvalSymlinks(dir)
	got, _ := filepath.EvalSymlinks(res.Output)
	assert.Equal(t, want, got)
}

func TestExecRunnerNonZeroExit(t *testing.T) {
	t.Parallel()

	script := writeScript(t, `cat >/dev/null
echo "model quota exceeded" >&2
exit 3
`)
	r, err := NewExecRunner(Model{Name: "local", Entrypoint: script}, nil)
	require.NoError(t, err)

	res, err := r.Run(context.Background(), Request{})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "model quota exceeded", res.Output)
}

func TestExecRunnerBadOutput(t *testing.T) {
	t.Parallel()

	script := writeScript(t, `cat >/dev/null
echo "not json"
`)
	r, err := NewExecRunner(Model{Name: "local", Entrypoint: script}, nil)
	require.NoError(t, err)

	_, err = r.Run(context.Background(), Request{})
	assert.ErrorContains(t, err, "decode response")
}

func TestExecRunnerTimeout(t *testing.T) {
	t.Parallel()

	script := writeScript(t, `exec sleep 30
`)
	r, err := NewExecRunner(Model{Name: "local", Entrypoint: script, Timeout: 100 * time.Millisecond}, nil)
	require.NoError(t, err)

	start := time.Now()
	_, err = r.Run(context.Background(), Request{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestExecRunnerKillsAfterGrace(t *testing.T) {
	t.Parallel()

	script := writeScript(t, `trap '' TERM
while :; do sleep 0.05; done
`)
	r, err := NewExecRunner(Model{Name: "local", Entrypoint: script, Timeout: 100 * time.Millisecond}, nil)
	require.NoError(t, err)
	r.grace = 200 * time.Millisecond

	_, err = r.Run(context.Background(), Request{})
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestExecRunnerContextCancel(t *testing.T) {
	t.Parallel()

	script := writeScript(t, `exec sleep 30
`)
	r, err := NewExecRunner(Model{Name: "local", Entrypoint: script}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = r.Run(ctx, Request{})
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestNewExecRunnerRequiresEntrypoint(t *testing.T) {
	t.Parallel()

	_, err := NewExecRunner(Model{Name: "local"}, nil)
	assert.Error(t, err)
}

func TestExecRunnerCapsStderr(t *testing.T) {
	t.Parallel()

	script := writeScript(t, `cat >/dev/null
head -c 200000 /dev/zero | tr '\0' x >&2
exit 3
`)
	r, err := NewExecRunner(Model{Name: "local", Entrypoint: script}, nil)
	require.NoError(t, err)

	res, err := r.Run(context.Background(), Request{})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Len(t, res.Output, maxStderrBytes)
}

func TestCappedBuffer(t *testing.T) {
	t.Parallel()

	b := &cappedBuffer{limit: 5}
	n, err := b.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	n, err = b.Write([]byte("defgh"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	n, _ = b.Write([]byte("ij"))
	assert.Equal(t, 2, n)
	assert.Equal(t, "abcde", b.String())
}
