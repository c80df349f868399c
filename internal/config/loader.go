package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/switchyard/internal/auth"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads configuration from a file, or from config.yaml when configPath
// is a directory. Files listed under include are merged over the root in
// order; fields they leave out keep their earlier values.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, "config.yaml")
		if _, err := os.Stat(absPath); err != nil {
			return nil, fmt.Errorf("directory provided but config.yaml not found: %s", absPath)
		}
	}

	cfg := Defaults()
	visited := map[string]bool{absPath: true}
	if err := decodeFile(cfg, absPath); err != nil {
		return nil, err
	}
	cfg.Sources = []string{absPath}

	includes := cfg.Include
	if err := loadIncludes(cfg, includes, filepath.Dir(absPath), visited); err != nil {
		return nil, err
	}
	cfg.Include = includes

	resolvePaths(cfg, filepath.Dir(absPath))

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadIncludes merges each include over cfg, depth first. visited tracks
// loaded files to reject cycles.
func loadIncludes(cfg *Config, includes []string, baseDir string, visited map[string]bool) error {
	for i, includePath := range includes {
		includePath = interpolateEnv(includePath)

		resolved := includePath
		if !filepath.IsAbs(resolved) {
			resolved = filepath.Join(baseDir, includePath)
		}
		absPath, err := filepath.Abs(resolved)
		if err != nil {
			return fmt.Errorf("include[%d]: failed to resolve path %q: %w", i, includePath, err)
		}
		if visited[absPath] {
			return fmt.Errorf("include[%d]: circular dependency detected: %s", i, absPath)
		}
		if _, err := os.Stat(absPath); err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("include[%d]: file not found: %s\n"+
					"Referenced from: %s", i, absPath, baseDir)
			}
			return fmt.Errorf("include[%d]: failed to access file %s: %w", i, absPath, err)
		}
		visited[absPath] = true

		cfg.Include = nil
		if err := decodeFile(cfg, absPath); err != nil {
			return fmt.Errorf("include[%d] (%s): %w", i, includePath, err)
		}
		cfg.Sources = append(cfg.Sources, absPath)

		if nested := cfg.Include; len(nested) > 0 {
			if err := loadIncludes(cfg, nested, filepath.Dir(absPath), visited); err != nil {
				return err
			}
		}
	}
	return nil
}

// decodeFile interpolates ${VAR} references and decodes the file over cfg.
// Unknown keys are rejected.
func decodeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader([]byte(interpolateEnv(string(data)))))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse YAML %s: %w", path, err)
	}
	return nil
}

// resolvePaths makes relative paths relative to the root config file.
func resolvePaths(cfg *Config, baseDir string) {
	for _, p := range []*string{&cfg.Policy.Dir, &cfg.Workspace.Dir, &cfg.Service.PIDFile} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(baseDir, *p)
		}
	}
	for name, m := range cfg.Models {
		if m.Entrypoint != "" && !filepath.IsAbs(m.Entrypoint) && filepath.Base(m.Entrypoint) != m.Entrypoint {
			m.Entrypoint = filepath.Join(baseDir, m.Entrypoint)
			cfg.Models[name] = m
		}
	}
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is so validate can name them.
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, ok := os.LookupEnv(varName); ok {
			return value
		}
		return match
	})
}

// unresolved returns an error naming the first ${VAR} left in value.
func unresolved(field, value string) error {
	if m := envVarPattern.FindStringSubmatch(value); len(m) > 1 {
		return fmt.Errorf("%s: environment variable ${%s} is not set", field, m[1])
	}
	return nil
}

var (
	validLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validLogFormats = map[string]bool{"json": true, "text": true}
	validProviders  = map[string]bool{"anthropic": true, "gemini": true, "exec": true}
)

// validate performs structural validation. Reachability checks belong to
// the doctor.
func validate(cfg *Config) error {
	if !validLogLevels[cfg.Service.LogLevel] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}
	if !validLogFormats[cfg.Service.LogFormat] {
		return fmt.Errorf("service.log_format must be json or text (got %q)", cfg.Service.LogFormat)
	}

	if cfg.API.Enabled {
		if cfg.API.Listen == "" {
			return fmt.Errorf("api.listen is required when api is enabled")
		}
		if err := unresolved("api.auth.api_key", cfg.API.Auth.APIKey); err != nil {
			return err
		}
		for i, tok := range cfg.API.Auth.Tokens {
			field := fmt.Sprintf("api.auth.tokens[%d]", i)
			if tok.Token == "" {
				return fmt.Errorf("%s.token is required", field)
			}
			if err := unresolved(field+".token", tok.Token); err != nil {
				return err
			}
			if len(tok.Scopes) == 0 {
				return fmt.Errorf("%s.scopes must be non-empty", field)
			}
			for _, s := range tok.Scopes {
				if !auth.KnownScope(s) {
					return fmt.Errorf("%s.scopes: unknown scope %q", field, s)
				}
			}
		}
	}

	if err := unresolved("bridge.shared_secret", cfg.Bridge.SharedSecret); err != nil {
		return err
	}
	if cfg.Bridge.GatewayURL != "" {
		u, err := url.Parse(cfg.Bridge.GatewayURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("bridge.gateway_url must be an absolute http(s) URL (got %q)", cfg.Bridge.GatewayURL)
		}
	}
	if cfg.Bridge.CallbackTimeout <= 0 {
		return fmt.Errorf("bridge.callback_timeout must be positive")
	}
	if cfg.Bridge.ShutdownTimeout <= 0 {
		return fmt.Errorf("bridge.shutdown_timeout must be positive")
	}
	if cfg.Bridge.ProbeAttempts < 1 {
		return fmt.Errorf("bridge.probe_attempts must be at least 1")
	}

	for name, m := range cfg.Models {
		field := fmt.Sprintf("models.%s", name)
		if !validProviders[m.Provider] {
			return fmt.Errorf("%s.provider must be one of: anthropic, gemini, exec (got %q)", field, m.Provider)
		}
		if m.Provider == "exec" && m.Entrypoint == "" {
			return fmt.Errorf("%s.entrypoint is required for exec models", field)
		}
		if m.Provider != "exec" && m.Model == "" {
			return fmt.Errorf("%s.model is required for %s models", field, m.Provider)
		}
		if err := unresolved(field+".api_key", m.APIKey); err != nil {
			return err
		}
		if m.Timeout < 0 {
			return fmt.Errorf("%s.timeout must not be negative", field)
		}
	}

	if cfg.Workspace.Dir == "" {
		return fmt.Errorf("workspace.dir is required")
	}
	if cfg.Workspace.Retention <= 0 {
		return fmt.Errorf("workspace.retention must be positive")
	}
	if cfg.Workspace.Schedule == "" {
		return fmt.Errorf("workspace.cleanup_schedule is required")
	}
	if cfg.Pipeline.RunTimeout < 0 {
		return fmt.Errorf("pipeline.run_timeout must not be negative")
	}
	return nil
}

// DiscoverConfigPath finds the config by checking standard locations.
// Priority order: $SWITCHYARD_CONFIG, ~/.config/switchyard, /etc/switchyard,
// ./config.yaml.
func DiscoverConfigPath() (string, error) {
	if p := os.Getenv("SWITCHYARD_CONFIG"); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		dir := filepath.Join(home, ".config", "switchyard")
		if fileExists(filepath.Join(dir, "config.yaml")) {
			return dir, nil
		}
	}
	if fileExists("/etc/switchyard/config.yaml") {
		return "/etc/switchyard", nil
	}
	if fileExists("./config.yaml") {
		return "./config.yaml", nil
	}
	return "", fmt.Errorf("no config found (checked: $SWITCHYARD_CONFIG, ~/.config/switchyard, /etc/switchyard, ./config.yaml)")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
