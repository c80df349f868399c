package policy

import (
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"
)

func writeLayer(t *testing.T, dir, file, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, file), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", file, err)
	}
}

func TestStoreLoadsLayers(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeLayer(t, dir, "brain.md", "  core rules \n")
	writeLayer(t, dir, "task.md", "")

	s, err := NewStore(dir, nil)
	require.NoError(t, err)

	brain, ok := s.Layer(LayerBrain)
	require.True(t, ok)
	assert.Equal(t, "core rules", brain.Content)

	sum := blake3.Sum256([]byte("core rules"))
	assert.Equal(t, hex.EncodeToString(sum[:]), brain.Digest)

	_, ok = s.Layer(LayerTask)
	assert.False(t, ok, "empty file should not count as loaded")

	_, ok = s.Layer(LayerSkills)
	assert.False(t, ok)
}

func TestStoreMissingDir(t *testing.T) {
	t.Parallel()

	s, err := NewStore(filepath.Join(t.TempDir(), "nope"), nil)
	require.NoError(t, err)
	_, ok := s.Layer(LayerBrain)
	assert.False(t, ok)
}

func TestBuildPromptOrdersLayers(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeLayer(t, dir, "brain.md", "BRAIN")
	writeLayer(t, dir, "task.md", "TASK")
	writeLayer(t, dir, "skills.md", "SKILLS")

	s, err := NewStore(dir, nil)
	require.NoError(t, err)

	prompt, meta := BuildPrompt(NewSelector(false), s, "fix the bug", nil)

	require.NotEmpty(t, prompt)
	assert.True(t, strings.HasPrefix(prompt, "<policy_package"))
	assert.Less(t, strings.Index(prompt, "BRAIN"), strings.Index(prompt, "TASK"))
	assert.NotContains(t, prompt, "SKILLS")
	assert.Contains(t, prompt, "Selection strategy: rules.")

	assert.Equal(t, []string{LayerTask}, meta.Selected)
	assert.Equal(t, []string{LayerBrain, LayerTask}, meta.Loaded)
	assert.Len(t, meta.Digests, 2)
	assert.Equal(t, StrategyRules, meta.Strategy)
}

func TestBuildPromptDisabledIsEmpty(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeLayer(t, dir, "brain.md", "BRAIN")
	s, err := NewStore(dir, nil)
	require.NoError(t, err)

	prompt, meta := BuildPrompt(NewSelector(true), s, "deploy it", nil)
	assert.Equal(t, "", prompt)
	assert.Empty(t, meta.Selected)
	assert.Empty(t, meta.Loaded)
	assert.Equal(t, StrategyDisabled, meta.Strategy)
}

func TestBuildPromptNoContent(t *testing.T) {
	t.Parallel()

	s, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)

	prompt, meta := BuildPrompt(NewSelector(false), s, "deploy", nil)
	assert.Equal(t, "", prompt)
	assert.Equal(t, []string{LayerTask}, meta.Selected)
}

func TestStoreWatchReloads(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeLayer(t, dir, "agent.md", "v1")

	s, err := NewStore(dir, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx) }()

	require.Eventually(t, func() bool {
		_ = os.WriteFile(filepath.Join(dir, "agent.md"), []byte("v2"), 0o644)
		l, ok := s.Layer(LayerAgent)
		return ok && l.Content == "v2"
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}
