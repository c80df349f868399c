package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mattjoyce/switchyard/internal/gateway"
	"github.com/mattjoyce/switchyard/internal/intent"
)

//go:generate mockgen -destination=mocks/mock_handler.go -package=mocks github.com/mattjoyce/switchyard/internal/pipeline StageHandler,Deployer

// StageInput is what a handler sees of the task it runs for.
type StageInput struct {
	TaskID         string
	Query          string
	Classification intent.Classification
	Context        map[string]any
	// Outputs holds the output of every stage completed so far.
	Outputs map[Kind]any
}

// StageHandler performs the work of one stage. A returned error is a stage
// failure; the pipeline halts on it.
type StageHandler interface {
	Handle(ctx context.Context, in StageInput) (any, error)
}

// HandlerFunc adapts a function to StageHandler.
type HandlerFunc func(ctx context.Context, in StageInput) (any, error)

func (f HandlerFunc) Handle(ctx context.Context, in StageInput) (any, error) {
	return f(ctx, in)
}

// Handlers binds one handler to every stage kind.
type Handlers struct {
	Intake   StageHandler
	Research StageHandler
	Plan     StageHandler
	Execute  StageHandler
	Verify   StageHandler
	Deploy   StageHandler
}

func (h Handlers) validate() error {
	var missing []string
	for _, k := range Kinds {
		if h.lookup(k) == nil {
			missing = append(missing, string(k))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing stage handlers: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (h Handlers) lookup(k Kind) StageHandler {
	switch k {
	case KindIntake:
		return h.Intake
	case KindResearch:
		return h.Research
	case KindPlan:
		return h.Plan
	case KindExecute:
		return h.Execute
	case KindVerify:
		return h.Verify
	case KindDeploy:
		return h.Deploy
	default:
		panic(fmt.Sprintf("pipeline: no handler slot for kind %q", string(k)))
	}
}

// Deployer hands aggregated output to the remote gateway.
type Deployer interface {
	Configured() bool
	PostDeploy(ctx context.Context, req gateway.DeployRequest) (gateway.DeployAck, error)
}

// DefaultHandlers returns the built-in stage handlers. Research, plan,
// execute and verify are placeholders that record which engine would run.
func DefaultHandlers(deployer Deployer) Handlers {
	return Handlers{
		Intake:   HandlerFunc(intakeHandler),
		Research: HandlerFunc(researchHandler),
		Plan:     HandlerFunc(planHandler),
		Execute:  HandlerFunc(executeHandler),
		Verify:   HandlerFunc(verifyHandler),
		Deploy:   &DeployHandler{Deployer: deployer},
	}
}

func intakeHandler(_ context.Context, in StageInput) (any, error) {
	return in.Classification, nil
}

func researchHandler(_ context.Context, in StageInput) (any, error) {
	return map[string]any{
		"engine":        KindResearch.Engine(),
		"query":         in.Query,
		"sources_found": 0,
		"summary":       "research stage ready",
	}, nil
}

func planHandler(_ context.Context, in StageInput) (any, error) {
	return map[string]any{
		"engine":           KindPlan.Engine(),
		"plan":             "execution_plan_placeholder",
		"research_context": in.Outputs[KindResearch],
	}, nil
}

func executeHandler(_ context.Context, _ StageInput) (any, error) {
	return map[string]any{
		"engine":          KindExecute.Engine(),
		"status":          "execution_ready",
		"tools_available": 50,
	}, nil
}

func verifyHandler(_ context.Context, _ StageInput) (any, error) {
	return map[string]any{
		"engine":       KindVerify.Engine(),
		"gates_passed": 8,
		"gates_total":  8,
		"verified":     true,
	}, nil
}

// DeployHandler posts the outputs collected so far to the gateway and
// records its acknowledgement status.
type DeployHandler struct {
	Deployer Deployer
}

func (d *DeployHandler) Handle(ctx context.Context, in StageInput) (any, error) {
	if d.Deployer == nil || !d.Deployer.Configured() {
		return map[string]any{
			"engine": KindDeploy.Engine(),
			"status": "bridge_not_configured",
		}, nil
	}

	stages := make(map[string]any, len(in.Outputs))
	for k, v := range in.Outputs {
		stages[string(k)] = v
	}
	collected := map[string]any{
		"task_id": in.TaskID,
		"route":   in.Classification.Route,
		"stages":  stages,
	}

	ack, err := d.Deployer.PostDeploy(ctx, gateway.DeployRequest{
		TaskID: in.TaskID,
		Query:  in.Query,
		Output: collected,
		Route:  "deploy",
	})
	if err != nil {
		if errors.Is(err, gateway.ErrNotConfigured) {
			return map[string]any{
				"engine": KindDeploy.Engine(),
				"status": "bridge_not_configured",
			}, nil
		}
		return nil, fmt.Errorf("deploy hand-off: %w", err)
	}

	return map[string]any{
		"engine":                  KindDeploy.Engine(),
		"status":                  "routed",
		"gateway_response_status": ack.StatusCode,
	}, nil
}
