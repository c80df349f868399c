package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/switchyard/internal/config"
	"github.com/mattjoyce/switchyard/internal/log"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	policyDir := filepath.Join(dir, "policy")
	require.NoError(t, os.MkdirAll(policyDir, 0o755))
	for _, f := range []string{"brain.md", "agent.md", "hooks.md", "task.md", "skills.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(policyDir, f), []byte("# "+f), 0o644))
	}
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const baseConfig = `service:
  log_level: info
policy:
  dir: ./policy
workspace:
  dir: ./data/workspaces
`

func TestVersionJSON(t *testing.T) {
	out, err := execute(t, "version", "--json")
	require.NoError(t, err)

	var info versionInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, version, info.Version)
}

func TestClassifyCommand(t *testing.T) {
	out, err := execute(t, "classify", "make", "me", "a", "slide", "deck")
	require.NoError(t, err)

	var got classifyOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "make me a slide deck", got.Query)
	assert.Equal(t, "slides", got.TaskType)
	assert.True(t, got.Classification.NeedsBuild)
}

func TestPolicySelectCommand(t *testing.T) {
	out, err := execute(t, "policy", "select", "--layers", "skills,hooks", "anything")
	require.NoError(t, err)

	var got struct {
		Layers   []string `json:"selected_layers"`
		Strategy string   `json:"strategy"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "metadata", got.Strategy)
	assert.ElementsMatch(t, []string{"hooks", "skills"}, got.Layers)

	out, err = execute(t, "policy", "select", "--disabled", "anything")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "disabled", got.Strategy)
	assert.Empty(t, got.Layers)
}

func TestConfigCheck(t *testing.T) {
	path := writeConfig(t, baseConfig+`api:
  auth:
    tokens:
      - token: reader-token
        scopes: ["pipeline:ro"]
`)
	out, err := execute(t, "config", "check", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration valid")
	assert.Contains(t, out, "Fingerprint:")
}

func TestConfigCheckInvalid(t *testing.T) {
	path := writeConfig(t, baseConfig+`api:
  auth:
    api_key: same-value
    tokens:
      - token: same-value
        scopes: ["*"]
`)
	out, err := execute(t, "config", "check", "--json", "--config", path)
	require.ErrorIs(t, err, errConfigInvalid)

	var result struct {
		Valid bool `json:"valid"`
	}
	require.NoError(t, json.Unmarshal([]byte(out[:bytes.LastIndexByte([]byte(out), '}')+1]), &result))
	assert.False(t, result.Valid)
}

func TestConfigCheckMissingFile(t *testing.T) {
	_, err := execute(t, "config", "check", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestWatchRequiresToken(t *testing.T) {
	t.Setenv("SWITCHYARD_TOKEN", "")
	_, err := execute(t, "watch", "--token", "")
	require.Error(t, err)
}

func testDaemonConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(writeConfig(t, baseConfig+`api:
  enabled: false
  auth:
    api_key: test-key
`))
	require.NoError(t, err)
	return cfg
}

func TestDaemonServesHealth(t *testing.T) {
	cfg := testDaemonConfig(t)
	d, err := newDaemon(context.Background(), cfg, log.WithComponent("test"))
	require.NoError(t, err)
	t.Cleanup(d.bridge.Close)

	srv := httptest.NewServer(d.api.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["bridge_enabled"])
}

func TestDaemonRunStopsOnCancel(t *testing.T) {
	cfg := testDaemonConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	d, err := newDaemon(ctx, cfg, log.WithComponent("test"))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- d.run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}
}

func TestAgentModelsCarriesName(t *testing.T) {
	models := agentModels(map[string]config.ModelConfig{
		"local": {Provider: "exec", Entrypoint: "/bin/true", Timeout: time.Minute},
	})
	require.Contains(t, models, "local")
	assert.Equal(t, "local", models["local"].Name)
	assert.Equal(t, time.Minute, models["local"].Timeout)
}
