// Package pipeline runs a classified task through its ordered stages.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/switchyard/internal/capability"
	"github.com/mattjoyce/switchyard/internal/intent"
	"github.com/mattjoyce/switchyard/internal/metrics"
)

var ErrTaskNotFound = errors.New("task not found")

// Event types published during a run.
const (
	EventStarted        = "pipeline.started"
	EventStageStarted   = "pipeline.stage.started"
	EventStageCompleted = "pipeline.stage.completed"
	EventStageFailed    = "pipeline.stage.failed"
	EventCompleted      = "pipeline.completed"
)

// Publisher receives lifecycle events. *events.Hub satisfies it.
type Publisher interface {
	Publish(eventType string, data any)
}

type Config struct {
	// BridgeEnabled adds the deploy stage to tasks that need it and exposes
	// the remote capability set.
	BridgeEnabled bool
}

type Orchestrator struct {
	cfg      Config
	handlers Handlers
	store    TaskStore
	router   *capability.Router
	events   Publisher
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Orchestrator)

func WithEvents(p Publisher) Option {
	return func(o *Orchestrator) { o.events = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func withClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator fails if any stage kind has no handler.
func NewOrchestrator(cfg Config, handlers Handlers, store TaskStore, opts ...Option) (*Orchestrator, error) {
	if err := handlers.validate(); err != nil {
		return nil, err
	}
	if store == nil {
		store = NewMemoryTaskStore()
	}
	o := &Orchestrator{
		cfg:      cfg,
		handlers: handlers,
		store:    store,
		router:   capability.NewRouter(),
		logger:   slog.Default(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With("component", "pipeline")
	return o, nil
}

// Run classifies query, executes its stages in order and returns the final
// snapshot. Stage failures are recorded on the task, not returned.
func (o *Orchestrator) Run(ctx context.Context, query string, taskCtx map[string]any) TaskSnapshot {
	c := intent.Classify(query)
	task := &Task{
		ID:             uuid.NewString(),
		Query:          query,
		Route:          c.Route,
		Classification: c,
		Stages:         BuildStages(c, o.cfg.BridgeEnabled),
		CreatedAt:      o.now(),
		Context:        taskCtx,
	}
	o.store.Put(task)

	logger := o.logger.With("task_id", task.ID)
	logger.Info("pipeline started", "route", c.Route, "stages", len(task.Stages))
	o.publish(EventStarted, map[string]any{
		"task_id": task.ID,
		"route":   c.Route,
		"stages":  stageNames(task.Stages),
	})

	outputs := make(map[Kind]any, len(task.Stages))
	for i := range task.Stages {
		stage := &task.Stages[i]
		handler := o.handlers.lookup(stage.Kind)

		stage.start(o.now())
		o.store.Put(task)
		logger.Debug("stage started", "stage", stage.Kind, "engine", stage.Engine)
		o.publish(EventStageStarted, map[string]any{"task_id": task.ID, "stage": stage.Kind})

		out, err := handler.Handle(ctx, StageInput{
			TaskID:         task.ID,
			Query:          task.Query,
			Classification: c,
			Context:        task.Context,
			Outputs:        outputs,
		})
		stage.finish(o.now(), out, err)
		o.store.Put(task)

		d, _ := stage.Duration()
		o.metrics.StageDuration(string(stage.Kind), string(stage.Status), d)

		if err != nil {
			logger.Warn("stage failed", "stage", stage.Kind, "error", err)
			o.publish(EventStageFailed, map[string]any{
				"task_id": task.ID,
				"stage":   stage.Kind,
				"error":   stage.Error,
			})
			break
		}
		outputs[stage.Kind] = out
		logger.Debug("stage complete", "stage", stage.Kind, "duration_ms", d.Milliseconds())
		o.publish(EventStageCompleted, map[string]any{
			"task_id":     task.ID,
			"stage":       stage.Kind,
			"duration_ms": d.Milliseconds(),
		})
	}

	done := o.now()
	task.CompletedAt = &done
	task.FinalOutput = make(map[string]StageSnapshot, len(task.Stages))
	for _, s := range task.Stages {
		task.FinalOutput[string(s.Kind)] = s.Snapshot()
	}
	o.store.Put(task)

	status := task.Status()
	o.metrics.PipelineRun(string(task.Route), status)
	logger.Info("pipeline finished", "status", status)
	o.publish(EventCompleted, map[string]any{
		"task_id": task.ID,
		"route":   task.Route,
		"status":  status,
	})

	return task.Snapshot()
}

func (o *Orchestrator) GetTask(id string) (TaskSnapshot, error) {
	t, ok := o.store.Get(id)
	if !ok {
		return TaskSnapshot{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return t.Snapshot(), nil
}

func (o *Orchestrator) ListTasks() []TaskSummary {
	tasks := o.store.List()
	out := make([]TaskSummary, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Summary())
	}
	return out
}

// Capabilities reports the local and remote task types.
func (o *Orchestrator) Capabilities() capability.Map {
	return o.router.Map(o.cfg.BridgeEnabled)
}

// RouteTaskType routes a task type through the capability router.
func (o *Orchestrator) RouteTaskType(taskType string) capability.Target {
	return o.router.Route(taskType, o.cfg.BridgeEnabled)
}

func (o *Orchestrator) publish(eventType string, data any) {
	if o.events == nil {
		return
	}
	o.events.Publish(eventType, data)
}

func stageNames(stages []Stage) []Kind {
	out := make([]Kind, 0, len(stages))
	for _, s := range stages {
		out = append(out, s.Kind)
	}
	return out
}
