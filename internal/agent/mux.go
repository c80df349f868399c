package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
)

// Mux routes requests to the runner built for the requested model.
type Mux struct {
	models  map[string]Model
	runners map[string]Runner
	logger  *slog.Logger
}

var _ Runner = (*Mux)(nil)

// NewMux builds one runner per model.
func NewMux(ctx context.Context, models map[string]Model, logger *slog.Logger) (*Mux, error) {
	if logger == nil {
		logger = slog.Default()
	}
	mux := &Mux{
		models:  make(map[string]Model, len(models)),
		runners: make(map[string]Runner, len(models)),
		logger:  logger,
	}
	for name, m := range models {
		m.Name = name
		var (
			r   Runner
			err error
		)
		switch m.Provider {
		case ProviderAnthropic:
			r, err = NewAnthropicRunner(m)
		case ProviderGemini:
			r, err = NewGeminiRunner(ctx, m)
		case ProviderExec:
			r, err = NewExecRunner(m, logger)
		default:
			err = unknownProvider(m)
		}
		if err != nil {
			return nil, err
		}
		mux.register(m, r)
	}
	return mux, nil
}

// register adds or replaces the runner for a model. It is not safe to call
// once the mux is serving requests.
func (x *Mux) register(m Model, r Runner) {
	x.models[m.Name] = m
	x.runners[m.Name] = r
}

// Models returns configured model names in sorted order.
func (x *Mux) Models() []string {
	names := make([]string, 0, len(x.models))
	for name := range x.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve applies ResolveModel over the configured models.
func (x *Mux) Resolve(hint string) (Model, error) {
	return ResolveModel(x.models, hint)
}

func (x *Mux) Run(ctx context.Context, req Request) (Result, error) {
	r, ok := x.runners[req.Model]
	if !ok {
		return Result{}, fmt.Errorf("model %q is not configured", req.Model)
	}
	x.logger.Debug("running agent", "model", req.Model, "provider", x.models[req.Model].Provider, "task_id", req.TaskID)
	return r.Run(ctx, req)
}
