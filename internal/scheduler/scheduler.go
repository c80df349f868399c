// Package scheduler runs the workspace janitor on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// EventCleanup is published after every sweep.
const EventCleanup = "workspace.cleanup"

// Janitor periodically deletes expired task workspaces.
type Janitor struct {
	cron      *cron.Cron
	cleaner   Cleaner
	retention time.Duration
	events    Publisher
	logger    *slog.Logger

	mu  sync.Mutex
	ctx context.Context
}

// NewJanitor schedules Cleanup(retention) on spec, which accepts standard
// five-field cron expressions and descriptors such as "@every 1h".
func NewJanitor(spec string, retention time.Duration, cleaner Cleaner, events Publisher, logger *slog.Logger) (*Janitor, error) {
	if cleaner == nil {
		return nil, fmt.Errorf("janitor: cleaner is required")
	}
	if retention <= 0 {
		return nil, fmt.Errorf("janitor: retention must be positive")
	}
	if logger == nil {
		logger = slog.Default()
	}

	j := &Janitor{
		cleaner:   cleaner,
		retention: retention,
		events:    events,
		logger:    logger.With("component", "janitor"),
		ctx:       context.Background(),
	}
	j.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := j.cron.AddFunc(spec, j.tick); err != nil {
		return nil, fmt.Errorf("janitor: invalid schedule %q: %w", spec, err)
	}
	return j, nil
}

// ValidateSchedule reports whether spec parses as a janitor schedule.
func ValidateSchedule(spec string) error {
	_, err := cron.ParseStandard(spec)
	return err
}

// Run starts the schedule and blocks until ctx is done, then waits for a
// running sweep to finish.
func (j *Janitor) Run(ctx context.Context) error {
	j.mu.Lock()
	j.ctx = ctx
	j.mu.Unlock()

	j.logger.Info("janitor started", "retention", j.retention.String())
	j.cron.Start()
	<-ctx.Done()
	<-j.cron.Stop().Done()
	j.logger.Info("janitor stopped")
	return nil
}

// Sweep performs one cleanup pass.
func (j *Janitor) Sweep(ctx context.Context) error {
	start := time.Now()
	report, err := j.cleaner.Cleanup(ctx, j.retention)
	if err != nil {
		j.logger.Error("workspace cleanup failed", "error", err)
		return fmt.Errorf("workspace cleanup: %w", err)
	}

	j.logger.Info("workspace cleanup complete",
		"deleted", report.DeletedDirs,
		"kept", report.KeptDirs,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	if j.events != nil {
		j.events.Publish(EventCleanup, map[string]any{
			"deleted": report.DeletedDirs,
			"kept":    report.KeptDirs,
		})
	}
	return nil
}

func (j *Janitor) tick() {
	j.mu.Lock()
	ctx := j.ctx
	j.mu.Unlock()
	_ = j.Sweep(ctx)
}
