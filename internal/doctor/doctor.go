// Package doctor validates switchyard configuration beyond what Load
// enforces: cross-section consistency, model credentials, and files on disk.
package doctor

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mattjoyce/switchyard/internal/config"
	"github.com/mattjoyce/switchyard/internal/policy"
	"github.com/mattjoyce/switchyard/internal/scheduler"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid       bool    `json:"valid"`
	Fingerprint string  `json:"fingerprint,omitempty"`
	Errors      []Issue `json:"errors,omitempty"`
	Warnings    []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor validates a loaded configuration.
type Doctor struct {
	cfg    *config.Config
	getenv func(string) string
}

// New creates a Doctor from a loaded config.
func New(cfg *config.Config) *Doctor {
	return &Doctor{cfg: cfg, getenv: os.Getenv}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	if fp, err := d.cfg.Fingerprint(); err == nil {
		r.Fingerprint = fp
	} else {
		d.addWarning(r, "config", "", err.Error())
	}

	d.validateAPIConfig(r)
	d.validateBridge(r)
	d.validateModels(r)
	d.validatePolicy(r)
	d.validateWorkspace(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) validateAPIConfig(r *Result) {
	api := d.cfg.API
	if !api.Enabled {
		return
	}
	if api.Auth.APIKey == "" && len(api.Auth.Tokens) == 0 {
		d.addWarning(r, "api", "api.auth", "API enabled but no authentication configured; every bearer route will reject requests")
	}
	if api.Auth.APIKey != "" && len(api.Auth.Tokens) == 0 {
		d.addWarning(r, "api", "api.auth.api_key", "api_key grants full access; prefer scoped tokens")
	}

	seen := map[string]int{}
	for i, tok := range api.Auth.Tokens {
		field := fmt.Sprintf("api.auth.tokens[%d].token", i)
		if prev, ok := seen[tok.Token]; ok {
			d.addError(r, "api", field, fmt.Sprintf("duplicate of api.auth.tokens[%d]", prev))
			continue
		}
		seen[tok.Token] = i
		if tok.Token == api.Auth.APIKey {
			d.addError(r, "api", field, "token equals api.auth.api_key")
		}
		if tok.Token == d.cfg.Bridge.SharedSecret && tok.Token != "" {
			d.addError(r, "api", field, "token equals bridge.shared_secret")
		}
	}
}

func (d *Doctor) validateBridge(r *Result) {
	b := d.cfg.Bridge
	if !b.Enabled {
		if b.GatewayURL != "" {
			d.addWarning(r, "bridge", "bridge.enabled", "gateway_url is set but the bridge is disabled; deploy stages will not be added")
		}
		return
	}

	if b.SharedSecret == "" {
		d.addWarning(r, "bridge", "bridge.shared_secret", "bridge enabled without a shared secret; any caller can dispatch tasks")
	}
	if b.GatewayURL == "" {
		d.addWarning(r, "bridge", "bridge.gateway_url", "no gateway_url; tasks without callback_url get no callback and deploy stages report bridge_not_configured")
	} else if u, err := url.Parse(b.GatewayURL); err == nil && u.Scheme == "http" && b.SharedSecret != "" && !isLoopback(u.Hostname()) {
		d.addWarning(r, "bridge", "bridge.gateway_url", "shared secret is sent to a non-TLS gateway")
	}
	if len(d.cfg.Models) == 0 {
		d.addError(r, "bridge", "models", "bridge enabled but no models configured; every dispatched task will fail")
	}
}

func (d *Doctor) validateModels(r *Result) {
	names := make([]string, 0, len(d.cfg.Models))
	for name := range d.cfg.Models {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		m := d.cfg.Models[name]
		field := "models." + name
		switch m.Provider {
		case "anthropic":
			if m.APIKey == "" && d.getenv("ANTHROPIC_API_KEY") == "" {
				d.addWarning(r, "models", field+".api_key", "no api_key and ANTHROPIC_API_KEY is not set")
			}
		case "gemini":
			if m.APIKey == "" && d.getenv("GEMINI_API_KEY") == "" && d.getenv("GOOGLE_API_KEY") == "" {
				d.addWarning(r, "models", field+".api_key", "no api_key and neither GEMINI_API_KEY nor GOOGLE_API_KEY is set")
			}
		case "exec":
			if err := checkExecutable(m.Entrypoint); err != nil {
				d.addError(r, "models", field+".entrypoint", err.Error())
			}
		}
	}
}

func (d *Doctor) validatePolicy(r *Result) {
	p := d.cfg.Policy
	if p.Disabled {
		return
	}
	info, err := os.Stat(p.Dir)
	if err != nil || !info.IsDir() {
		d.addWarning(r, "policy", "policy.dir", fmt.Sprintf("%s is not a directory; prompts will carry no policy layers", p.Dir))
		return
	}

	store, err := policy.NewStore(p.Dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		d.addError(r, "policy", "policy.dir", err.Error())
		return
	}
	var missing []string
	for _, name := range []string{policy.LayerBrain, policy.LayerAgent, policy.LayerHooks, policy.LayerTask, policy.LayerSkills} {
		if _, ok := store.Layer(name); !ok {
			missing = append(missing, name)
		}
	}
	switch {
	case len(missing) == 5:
		d.addWarning(r, "policy", "policy.dir", "no policy layer files found")
	case len(missing) > 0:
		d.addWarning(r, "policy", "policy.dir", "missing or empty layers: "+strings.Join(missing, ", "))
	}
}

func (d *Doctor) validateWorkspace(r *Result) {
	w := d.cfg.Workspace
	if err := scheduler.ValidateSchedule(w.Schedule); err != nil {
		d.addError(r, "workspace", "workspace.cleanup_schedule", err.Error())
	}
	if info, err := os.Stat(w.Dir); err == nil && !info.IsDir() {
		d.addError(r, "workspace", "workspace.dir", fmt.Sprintf("%s exists and is not a directory", w.Dir))
	}
}

func checkExecutable(entrypoint string) error {
	if !strings.ContainsRune(entrypoint, filepath.Separator) {
		if _, err := exec.LookPath(entrypoint); err != nil {
			return fmt.Errorf("%s not found in PATH", entrypoint)
		}
		return nil
	}
	info, err := os.Stat(entrypoint)
	if err != nil {
		return fmt.Errorf("%s does not exist", entrypoint)
	}
	if info.IsDir() || info.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("%s is not executable", entrypoint)
	}
	return nil
}

func isLoopback(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	switch {
	case r.Valid && len(r.Warnings) == 0:
		b.WriteString("Configuration valid.\n")
	case r.Valid:
		fmt.Fprintf(&b, "Configuration valid (%d warning(s))\n", len(r.Warnings))
	default:
		fmt.Fprintf(&b, "Configuration invalid (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		if e.Field != "" {
			fmt.Fprintf(&b, "  ERROR [%s] %s: %s\n", e.Category, e.Field, e.Message)
		} else {
			fmt.Fprintf(&b, "  ERROR [%s] %s\n", e.Category, e.Message)
		}
	}
	for _, w := range r.Warnings {
		if w.Field != "" {
			fmt.Fprintf(&b, "  WARN  [%s] %s: %s\n", w.Category, w.Field, w.Message)
		} else {
			fmt.Fprintf(&b, "  WARN  [%s] %s\n", w.Category, w.Message)
		}
	}
	if r.Fingerprint != "" {
		fmt.Fprintf(&b, "Fingerprint: %s\n", r.Fingerprint)
	}
	return b.String()
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
