package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mattjoyce/switchyard/internal/agent"
	"github.com/mattjoyce/switchyard/internal/api"
	"github.com/mattjoyce/switchyard/internal/auth"
	"github.com/mattjoyce/switchyard/internal/bridge"
	"github.com/mattjoyce/switchyard/internal/config"
	"github.com/mattjoyce/switchyard/internal/events"
	"github.com/mattjoyce/switchyard/internal/gateway"
	"github.com/mattjoyce/switchyard/internal/lock"
	"github.com/mattjoyce/switchyard/internal/log"
	"github.com/mattjoyce/switchyard/internal/metrics"
	"github.com/mattjoyce/switchyard/internal/pipeline"
	"github.com/mattjoyce/switchyard/internal/policy"
	"github.com/mattjoyce/switchyard/internal/scheduler"
	"github.com/mattjoyce/switchyard/internal/workspace"
)

func newStartCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Run the switchyard daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := loadConfig(cmd, *configPath)
			if err != nil {
				return err
			}

			log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
			logger := log.WithComponent("main")

			pidLock, err := lock.Acquire(cfg.Service.PIDFile)
			if err != nil {
				logger.Error("failed to acquire PID lock (another instance may be running)", "path", cfg.Service.PIDFile, "error", err)
				return err
			}
			defer pidLock.Release()

			fingerprint, _ := cfg.Fingerprint()
			logger.Info("switchyard starting", "version", version, "config", path, "fingerprint", fingerprint)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			d, err := newDaemon(ctx, cfg, logger)
			if err != nil {
				logger.Error("startup failed", "error", err)
				return err
			}
			return d.run(ctx)
		},
	}
}

// daemon holds the wired components of a running switchyard.
type daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	hub     *events.Hub
	metrics *metrics.Metrics
	policy  *policy.Store
	gateway *gateway.Client
	orch    *pipeline.Orchestrator
	bridge  *bridge.Service
	api     *api.Server
	janitor *scheduler.Janitor
}

func newDaemon(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*daemon, error) {
	d := &daemon{
		cfg:     cfg,
		logger:  logger,
		hub:     events.NewHub(cfg.Service.EventBuffer),
		metrics: metrics.New(),
	}

	store, err := policy.NewStore(cfg.Policy.Dir, log.WithComponent("policy"))
	if err != nil {
		return nil, fmt.Errorf("load policy layers: %w", err)
	}
	d.policy = store
	selector := policy.NewSelector(cfg.Policy.Disabled)

	d.gateway = gateway.New(gateway.Config{
		BaseURL:              cfg.Bridge.GatewayURL,
		SharedSecret:         cfg.Bridge.SharedSecret,
		Timeout:              cfg.Bridge.CallbackTimeout,
		ProbeAttempts:        cfg.Bridge.ProbeAttempts,
		ProbeInitialInterval: cfg.Bridge.ProbeInterval,
	}, log.WithComponent("gateway"))

	d.orch, err = pipeline.NewOrchestrator(
		pipeline.Config{BridgeEnabled: cfg.Bridge.Enabled},
		pipeline.DefaultHandlers(d.gateway),
		pipeline.NewMemoryTaskStore(),
		pipeline.WithEvents(d.hub),
		pipeline.WithMetrics(d.metrics),
		pipeline.WithLogger(log.WithComponent("pipeline")),
	)
	if err != nil {
		return nil, fmt.Errorf("create orchestrator: %w", err)
	}

	mux, err := agent.NewMux(ctx, agentModels(cfg.Models), log.WithComponent("agent"))
	if err != nil {
		return nil, fmt.Errorf("create model runners: %w", err)
	}

	workspaces, err := workspace.NewFSManager(cfg.Workspace.Dir)
	if err != nil {
		return nil, fmt.Errorf("create workspace manager: %w", err)
	}

	d.bridge, err = bridge.NewService(bridge.Config{
		Enabled:      cfg.Bridge.Enabled,
		GatewayURL:   cfg.Bridge.GatewayURL,
		SharedSecret: cfg.Bridge.SharedSecret,
		BotUserID:    cfg.Bridge.BotUserID,
		AgentName:    cfg.Bridge.AgentName,
		Persona:      cfg.Bridge.Persona,
	}, bridge.Deps{
		Registry:   bridge.NewMemoryRegistry(),
		Sessions:   bridge.NewMemorySessions(),
		Runner:     mux,
		Models:     mux,
		Workspaces: workspaces,
		Prompts:    &policy.Builder{Selector: selector, Store: store},
		Notifier:   bridge.NewHTTPNotifier(cfg.Bridge.SharedSecret, cfg.Bridge.CallbackTimeout, d.gateway),
		Events:     d.hub,
		Metrics:    d.metrics,
		Logger:     log.WithComponent("bridge"),
	})
	if err != nil {
		return nil, fmt.Errorf("create bridge: %w", err)
	}

	d.janitor, err = scheduler.NewJanitor(cfg.Workspace.Schedule, cfg.Workspace.Retention, workspaces, d.hub, log.WithComponent("janitor"))
	if err != nil {
		return nil, fmt.Errorf("create workspace janitor: %w", err)
	}

	d.api = api.New(api.Config{
		Listen:       cfg.API.Listen,
		APIKey:       cfg.API.Auth.APIKey,
		Tokens:       apiTokens(cfg.API.Auth.Tokens),
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
		RunTimeout:   cfg.Pipeline.RunTimeout,
	}, api.Deps{
		Pipeline: d.orch,
		Bridge:   d.bridge,
		Events:   d.hub,
		Policy:   selector,
		Metrics:  d.metrics.Handler(),
	}, log.WithComponent("api"))

	return d, nil
}

// run supervises the daemon's long-running parts until ctx is done or one
// of them fails, then drains the bridge.
func (d *daemon) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if d.cfg.API.Enabled {
		g.Go(func() error { return d.api.Start(gctx) })
		d.logger.Info("API server enabled", "listen", d.cfg.API.Listen)
	}
	g.Go(func() error { return d.janitor.Run(gctx) })
	if d.cfg.Policy.Watch {
		g.Go(func() error {
			if err := d.policy.Watch(gctx); err != nil {
				d.logger.Warn("policy hot reload unavailable", "dir", d.policy.Dir(), "error", err)
			}
			return nil
		})
	}
	if d.cfg.Bridge.Enabled && d.gateway.Configured() {
		g.Go(func() error {
			if err := d.gateway.Probe(gctx); err != nil && gctx.Err() == nil {
				d.logger.Warn("gateway unreachable at startup", "gateway", d.gateway.BaseURL(), "error", err)
			}
			return nil
		})
	}

	err := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), d.cfg.Bridge.ShutdownTimeout)
	defer cancel()
	if serr := d.bridge.Shutdown(shutdownCtx); serr != nil {
		d.logger.Warn("bridge shutdown incomplete", "error", serr)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		d.logger.Error("switchyard stopped with error", "error", err)
		return err
	}
	d.logger.Info("switchyard stopped")
	return nil
}

func agentModels(models map[string]config.ModelConfig) map[string]agent.Model {
	out := make(map[string]agent.Model, len(models))
	for name, m := range models {
		out[name] = agent.Model{
			Name:       name,
			Provider:   m.Provider,
			Model:      m.Model,
			APIKey:     m.APIKey,
			BaseURL:    m.BaseURL,
			Entrypoint: m.Entrypoint,
			MaxTokens:  m.MaxTokens,
			Timeout:    m.Timeout,
		}
	}
	return out
}

func apiTokens(tokens []config.APIToken) []auth.TokenConfig {
	out := make([]auth.TokenConfig, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, auth.TokenConfig{Token: t.Token, Scopes: t.Scopes})
	}
	return out
}
