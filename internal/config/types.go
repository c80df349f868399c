package config

import "time"

// Config represents the complete switchyard configuration.
type Config struct {
	// Include lists further YAML files merged over this one, in order.
	Include   []string               `yaml:"include,omitempty"`
	Service   ServiceConfig          `yaml:"service"`
	API       APIConfig              `yaml:"api"`
	Bridge    BridgeConfig           `yaml:"bridge"`
	Policy    PolicyConfig           `yaml:"policy"`
	Models    map[string]ModelConfig `yaml:"models,omitempty"`
	Workspace WorkspaceConfig        `yaml:"workspace"`
	Pipeline  PipelineConfig         `yaml:"pipeline"`

	// Sources are the absolute paths of every file that contributed, root
	// first. Set by Load.
	Sources []string `yaml:"-"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name        string `yaml:"name"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	EventBuffer int    `yaml:"event_buffer"`
	// PIDFile guards against two daemons sharing one config.
	PIDFile string `yaml:"pid_file"`
}

// APIConfig defines HTTP API server settings.
type APIConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Listen       string        `yaml:"listen"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	Auth         APIAuthConfig `yaml:"auth"`
}

// APIAuthConfig defines API authentication settings.
type APIAuthConfig struct {
	// APIKey is a single bearer token with full access. Prefer Tokens for
	// scoped access.
	APIKey string     `yaml:"api_key"`
	Tokens []APIToken `yaml:"tokens,omitempty"`
}

// APIToken defines a bearer token and its scopes.
type APIToken struct {
	Token  string   `yaml:"token"`
	Scopes []string `yaml:"scopes"`
}

// BridgeConfig controls the gateway bridge in both directions: inbound
// dispatch and the outbound deploy stage.
type BridgeConfig struct {
	Enabled         bool          `yaml:"enabled"`
	GatewayURL      string        `yaml:"gateway_url"`
	SharedSecret    string        `yaml:"shared_secret"`
	BotUserID       string        `yaml:"bot_user_id"`
	AgentName       string        `yaml:"agent_name"`
	Persona         string        `yaml:"persona,omitempty"`
	CallbackTimeout time.Duration `yaml:"callback_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	ProbeAttempts   int           `yaml:"probe_attempts"`
	ProbeInterval   time.Duration `yaml:"probe_interval"`
}

// PolicyConfig locates the policy layer files.
type PolicyConfig struct {
	Disabled bool   `yaml:"disabled"`
	Dir      string `yaml:"dir"`
	Watch    bool   `yaml:"watch"`
}

// ModelConfig defines one model the bridge executor can run tasks on.
type ModelConfig struct {
	Provider   string        `yaml:"provider"` // anthropic, gemini or exec
	Model      string        `yaml:"model,omitempty"`
	APIKey     string        `yaml:"api_key,omitempty"`
	BaseURL    string        `yaml:"base_url,omitempty"`
	Entrypoint string        `yaml:"entrypoint,omitempty"`
	MaxTokens  int           `yaml:"max_tokens,omitempty"`
	Timeout    time.Duration `yaml:"timeout,omitempty"`
}

// WorkspaceConfig defines per-task workspace storage and its janitor.
type WorkspaceConfig struct {
	Dir       string        `yaml:"dir"`
	Retention time.Duration `yaml:"retention"`
	Schedule  string        `yaml:"cleanup_schedule"`
}

// PipelineConfig defines stage pipeline settings.
type PipelineConfig struct {
	// RunTimeout bounds one pipeline run. Zero means no bound.
	RunTimeout time.Duration `yaml:"run_timeout"`
}

// Defaults returns a Config with the values used when a field is unset.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "switchyard",
			LogLevel:    "info",
			LogFormat:   "json",
			EventBuffer: 256,
			PIDFile:     "./data/switchyard.lock",
		},
		API: APIConfig{
			Enabled:      true,
			Listen:       "127.0.0.1:8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 10 * time.Minute,
		},
		Bridge: BridgeConfig{
			Enabled:         false,
			BotUserID:       "switchyard-bridge-bot",
			AgentName:       "switchyard-bridge",
			CallbackTimeout: 30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			ProbeAttempts:   5,
			ProbeInterval:   500 * time.Millisecond,
		},
		Policy: PolicyConfig{
			Dir:   "./policy",
			Watch: true,
		},
		Models: make(map[string]ModelConfig),
		Workspace: WorkspaceConfig{
			Dir:       "./data/workspaces",
			Retention: 7 * 24 * time.Hour,
			Schedule:  "@every 1h",
		},
	}
}
