package config

import (
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

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		env     map[string]string
		wantErr string
		checkFn func(t *testing.T, cfg *Config)
	}{
		{
			name: "empty file yields defaults",
			yaml: ``,
			checkFn: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "switchyard", cfg.Service.Name)
				assert.Equal(t, "json", cfg.Service.LogFormat)
				assert.False(t, cfg.Bridge.Enabled)
				assert.Equal(t, 30*time.Second, cfg.Bridge.CallbackTimeout)
				assert.Equal(t, "@every 1h", cfg.Workspace.Schedule)
				assert.True(t, filepath.IsAbs(cfg.Workspace.Dir))
				assert.True(t, filepath.IsAbs(cfg.Service.PIDFile))
				assert.Equal(t, "switchyard.lock", filepath.Base(cfg.Service.PIDFile))
			},
		},
		{
			name: "bridge section with env interpolation",
			yaml: `
bridge:
  enabled: true
  gateway_url: ${GW_URL}
  shared_secret: ${BRIDGE_SECRET}
  bot_user_id: bot-7
  callback_timeout: 5s
policy:
  disabled: true
`,
			env: map[string]string{
				"GW_URL":        "https://gw.example.com",
				"BRIDGE_SECRET": "s3cret",
			},
			checkFn: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.Bridge.Enabled)
				assert.Equal(t, "https://gw.example.com", cfg.Bridge.GatewayURL)
				assert.Equal(t, "s3cret", cfg.Bridge.SharedSecret)
				assert.Equal(t, "bot-7", cfg.Bridge.BotUserID)
				assert.Equal(t, 5*time.Second, cfg.Bridge.CallbackTimeout)
				assert.Equal(t, "switchyard-bridge", cfg.Bridge.AgentName, "unset fields keep defaults")
				assert.True(t, cfg.Policy.Disabled)
			},
		},
		{
			name: "models",
			yaml: `
models:
  claude:
    provider: anthropic
    model: claude-sonnet-4-5
    api_key: ${TEST_ANTHROPIC_KEY}
  local:
    provider: exec
    entrypoint: ./bin/agent
    timeout: 2m
`,
			env: map[string]string{"TEST_ANTHROPIC_KEY": "sk-test"},
			checkFn: func(t *testing.T, cfg *Config) {
				require.Len(t, cfg.Models, 2)
				assert.Equal(t, "sk-test", cfg.Models["claude"].APIKey)
				assert.True(t, filepath.IsAbs(cfg.Models["local"].Entrypoint))
				assert.Equal(t, 2*time.Minute, cfg.Models["local"].Timeout)
			},
		},
		{
			name:    "unset secret is reported by name",
			yaml:    "bridge:\n  shared_secret: ${SWITCHYARD_TEST_UNSET_SECRET}\n",
			wantErr: "${SWITCHYARD_TEST_UNSET_SECRET} is not set",
		},
		{
			name:    "invalid log level",
			yaml:    "service:\n  log_level: verbose\n",
			wantErr: "service.log_level",
		},
		{
			name:    "relative gateway url",
			yaml:    "bridge:\n  gateway_url: /gateway\n",
			wantErr: "bridge.gateway_url",
		},
		{
			name:    "unknown provider",
			yaml:    "models:\n  x:\n    provider: openai\n    model: gpt\n",
			wantErr: "models.x.provider",
		},
		{
			name:    "exec without entrypoint",
			yaml:    "models:\n  x:\n    provider: exec\n",
			wantErr: "models.x.entrypoint",
		},
		{
			name:    "token with unknown scope",
			yaml:    "api:\n  auth:\n    tokens:\n      - token: abc\n        scopes: [jobs:ro]\n",
			wantErr: "unknown scope",
		},
		{
			name:    "token without scopes",
			yaml:    "api:\n  auth:\n    tokens:\n      - token: abc\n",
			wantErr: "scopes must be non-empty",
		},
		{
			name:    "unknown key",
			yaml:    "bridge:\n  enable: true\n",
			wantErr: "field enable not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := writeFile(t, t.TempDir(), "config.yaml", tt.yaml)

			cfg, err := Load(path)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.checkFn(t, cfg)
		})
	}
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", "service:\n  name: from-dir\n")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "from-dir", cfg.Service.Name)
	assert.Equal(t, []string{filepath.Join(dir, "config.yaml")}, cfg.Sources)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoadIncludesMergeInOrder(t *testing.T) {
	dir := t.TempDir()
	root := writeFile(t, dir, "config.yaml", `
include:
  - conf.d/bridge.yaml
  - conf.d/models.yaml
service:
  name: root
bridge:
  bot_user_id: root-bot
models:
  a:
    provider: exec
    entrypoint: /bin/true
`)
	writeFile(t, dir, "conf.d/bridge.yaml", `
include:
  - nested.yaml
bridge:
  enabled: true
`)
	writeFile(t, dir, "conf.d/nested.yaml", "bridge:\n  agent_name: nested-agent\n")
	writeFile(t, dir, "conf.d/models.yaml", `
models:
  b:
    provider: gemini
    model: gemini-2.5-flash
`)

	cfg, err := Load(root)
	require.NoError(t, err)

	assert.Equal(t, "root", cfg.Service.Name)
	assert.True(t, cfg.Bridge.Enabled)
	assert.Equal(t, "root-bot", cfg.Bridge.BotUserID)
	assert.Equal(t, "nested-agent", cfg.Bridge.AgentName)
	assert.Len(t, cfg.Models, 2)
	assert.Equal(t, []string{"conf.d/bridge.yaml", "conf.d/models.yaml"}, cfg.Include)
	require.Len(t, cfg.Sources, 4)
	assert.Equal(t, root, cfg.Sources[0])
	assert.Equal(t, filepath.Join(dir, "conf.d", "nested.yaml"), cfg.Sources[2])
}

func TestLoadIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	root := writeFile(t, dir, "config.yaml", "include: [a.yaml]\n")
	writeFile(t, dir, "a.yaml", "include: [config.yaml]\n")

	_, err := Load(root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circular dependency")
}

func TestLoadIncludeMissing(t *testing.T) {
	dir := t.TempDir()
	root := writeFile(t, dir, "config.yaml", "include: [missing.yaml]\n")

	_, err := Load(root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file not found")
}

func TestFingerprint(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "service:\n  name: a\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	first, err := cfg.Fingerprint()
	require.NoError(t, err)
	assert.Len(t, first, 64)

	again, err := cfg.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, first, again)

	writeFile(t, dir, "config.yaml", "service:\n  name: b\n")
	changed, err := cfg.Fingerprint()
	require.NoError(t, err)
	assert.NotEqual(t, first, changed)

	empty, err := Defaults().Fingerprint()
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestComputeBlake3Hash(t *testing.T) {
	path := writeFile(t, t.TempDir(), "f", "hello")
	h, err := ComputeBlake3Hash(path)
	require.NoError(t, err)
	sum := blake3.Sum256([]byte("hello"))
	assert.Equal(t, hex.EncodeToString(sum[:]), h)
}

func TestDiscoverConfigPathEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", "")
	t.Setenv("SWITCHYARD_CONFIG", dir)

	got, err := DiscoverConfigPath()
	require.NoError(t, err)
	assert.Equal(t, dir, got)
}

func TestDiscoverConfigPathNothing(t *testing.T) {
	t.Setenv("SWITCHYARD_CONFIG", "")
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	if fileExists("/etc/switchyard/config.yaml") {
		t.Skip("system config present")
	}
	_, err := DiscoverConfigPath()
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "no config found"))
}
