package doctor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mattjoyce/switchyard/internal/config"
)

func validConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	policyDir := filepath.Join(dir, "policy")
	if err := os.MkdirAll(policyDir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, f := range []string{"brain.md", "agent.md", "hooks.md", "task.md", "skills.md"} {
		if err := os.WriteFile(filepath.Join(policyDir, f), []byte("rules for "+f), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	entry := filepath.Join(dir, "agent.sh")
	if err := os.WriteFile(entry, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	cfg := config.Defaults()
	cfg.API.Auth.Tokens = []config.APIToken{{Token: "t1", Scopes: []string{"pipeline:ro"}}}
	cfg.Bridge.Enabled = true
	cfg.Bridge.GatewayURL = "https://gw.example.com"
	cfg.Bridge.SharedSecret = "s3cret"
	cfg.Policy.Dir = policyDir
	cfg.Workspace.Dir = filepath.Join(dir, "workspaces")
	cfg.Models = map[string]config.ModelConfig{
		"local": {Provider: "exec", Entrypoint: entry},
	}
	return cfg
}

func newDoctor(cfg *config.Config, env map[string]string) *Doctor {
	d := New(cfg)
	d.getenv = func(k string) string { return env[k] }
	return d
}

func hasIssue(issues []Issue, field string) bool {
	for _, i := range issues {
		if i.Field == field {
			return true
		}
	}
	return false
}

func TestValidate_ValidConfig(t *testing.T) {
	t.Parallel()
	r := newDoctor(validConfig(t), nil).Validate()
	if !r.Valid {
		t.Fatalf("expected valid, got errors: %v", r.Errors)
	}
	if len(r.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", r.Warnings)
	}
}

func TestValidate_BridgeWithoutModels(t *testing.T) {
	t.Parallel()
	cfg := validConfig(t)
	cfg.Models = nil

	r := newDoctor(cfg, nil).Validate()
	if r.Valid {
		t.Fatal("expected invalid")
	}
	if !hasIssue(r.Errors, "models") {
		t.Fatalf("expected models error, got %v", r.Errors)
	}
}

func TestValidate_BridgeWarnings(t *testing.T) {
	t.Parallel()
	cfg := validConfig(t)
	cfg.Bridge.SharedSecret = ""
	cfg.Bridge.GatewayURL = ""

	r := newDoctor(cfg, nil).Validate()
	if !r.Valid {
		t.Fatalf("expected valid, got errors: %v", r.Errors)
	}
	if !hasIssue(r.Warnings, "bridge.shared_secret") || !hasIssue(r.Warnings, "bridge.gateway_url") {
		t.Fatalf("expected secret and gateway warnings, got %v", r.Warnings)
	}
}

func TestValidate_PlainHTTPGatewayWithSecret(t *testing.T) {
	t.Parallel()
	cfg := validConfig(t)
	cfg.Bridge.GatewayURL = "http://gw.example.com"
	r := newDoctor(cfg, nil).Validate()
	if !hasIssue(r.Warnings, "bridge.gateway_url") {
		t.Fatalf("expected non-TLS warning, got %v", r.Warnings)
	}

	cfg.Bridge.GatewayURL = "http://127.0.0.1:9000"
	r = newDoctor(cfg, nil).Validate()
	if hasIssue(r.Warnings, "bridge.gateway_url") {
		t.Fatalf("loopback gateway should not warn, got %v", r.Warnings)
	}
}

func TestValidate_ModelCredentials(t *testing.T) {
	t.Parallel()
	cfg := validConfig(t)
	cfg.Models["claude"] = config.ModelConfig{Provider: "anthropic", Model: "claude-sonnet-4-5"}
	cfg.Models["gem"] = config.ModelConfig{Provider: "gemini", Model: "gemini-2.5-flash"}

	r := newDoctor(cfg, nil).Validate()
	if !hasIssue(r.Warnings, "models.claude.api_key") || !hasIssue(r.Warnings, "models.gem.api_key") {
		t.Fatalf("expected credential warnings, got %v", r.Warnings)
	}

	r = newDoctor(cfg, map[string]string{"ANTHROPIC_API_KEY": "k", "GOOGLE_API_KEY": "g"}).Validate()
	if hasIssue(r.Warnings, "models.claude.api_key") || hasIssue(r.Warnings, "models.gem.api_key") {
		t.Fatalf("env keys should satisfy credentials, got %v", r.Warnings)
	}
}

func TestValidate_ExecEntrypoint(t *testing.T) {
	t.Parallel()
	cfg := validConfig(t)
	notExec := filepath.Join(t.TempDir(), "plain.txt")
	if err := os.WriteFile(notExec, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.Models["missing"] = config.ModelConfig{Provider: "exec", Entrypoint: "/definitely/not/here"}
	cfg.Models["plain"] = config.ModelConfig{Provider: "exec", Entrypoint: notExec}
	cfg.Models["path"] = config.ModelConfig{Provider: "exec", Entrypoint: "switchyard-no-such-binary"}

	r := newDoctor(cfg, nil).Validate()
	for _, field := range []string{"models.missing.entrypoint", "models.plain.entrypoint", "models.path.entrypoint"} {
		if !hasIssue(r.Errors, field) {
			t.Errorf("expected error for %s, got %v", field, r.Errors)
		}
	}
	if hasIssue(r.Errors, "models.local.entrypoint") {
		t.Errorf("valid entrypoint reported: %v", r.Errors)
	}
}

func TestValidate_Policy(t *testing.T) {
	t.Parallel()
	cfg := validConfig(t)
	if err := os.Remove(filepath.Join(cfg.Policy.Dir, "hooks.md")); err != nil {
		t.Fatal(err)
	}
	r := newDoctor(cfg, nil).Validate()
	if len(r.Warnings) != 1 || !strings.Contains(r.Warnings[0].Message, "hooks") {
		t.Fatalf("expected missing hooks warning, got %v", r.Warnings)
	}

	cfg.Policy.Dir = filepath.Join(t.TempDir(), "absent")
	r = newDoctor(cfg, nil).Validate()
	if !hasIssue(r.Warnings, "policy.dir") {
		t.Fatalf("expected policy dir warning, got %v", r.Warnings)
	}

	cfg.Policy.Disabled = true
	r = newDoctor(cfg, nil).Validate()
	if hasIssue(r.Warnings, "policy.dir") {
		t.Fatalf("disabled policy should not be checked, got %v", r.Warnings)
	}
}

func TestValidate_Schedule(t *testing.T) {
	t.Parallel()
	cfg := validConfig(t)
	cfg.Workspace.Schedule = "whenever"
	r := newDoctor(cfg, nil).Validate()
	if !hasIssue(r.Errors, "workspace.cleanup_schedule") {
		t.Fatalf("expected schedule error, got %v", r.Errors)
	}
}

func TestValidate_DuplicateTokens(t *testing.T) {
	t.Parallel()
	cfg := validConfig(t)
	cfg.API.Auth.Tokens = append(cfg.API.Auth.Tokens,
		config.APIToken{Token: "t1", Scopes: []string{"*"}},
		config.APIToken{Token: "s3cret", Scopes: []string{"*"}},
	)
	r := newDoctor(cfg, nil).Validate()
	if !hasIssue(r.Errors, "api.auth.tokens[1].token") || !hasIssue(r.Errors, "api.auth.tokens[2].token") {
		t.Fatalf("expected duplicate and shared-secret errors, got %v", r.Errors)
	}
}

func TestFormatHuman(t *testing.T) {
	t.Parallel()
	r := &Result{
		Valid:       false,
		Fingerprint: "abc",
		Errors:      []Issue{{Category: "bridge", Field: "models", Message: "none"}},
		Warnings:    []Issue{{Category: "policy", Message: "empty"}},
	}
	out := FormatHuman(r)
	for _, want := range []string{
		"Configuration invalid (1 error(s), 1 warning(s))",
		"ERROR [bridge] models: none",
		"WARN  [policy] empty",
		"Fingerprint: abc",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}

	if got := FormatHuman(&Result{Valid: true}); got != "Configuration valid.\n" {
		t.Errorf("unexpected output %q", got)
	}
}

func TestFormatJSON(t *testing.T) {
	t.Parallel()
	out, err := FormatJSON(&Result{Valid: true})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"valid": true`) {
		t.Errorf("unexpected json %s", out)
	}
}
