package pipeline

import (
	"fmt"
	"maps"
	"time"

	"github.com/mattjoyce/switchyard/internal/intent"
)

// Kind identifies a stage. The set is closed.
type Kind string

const (
	KindIntake   Kind = "intake"
	KindResearch Kind = "research"
	KindPlan     Kind = "plan"
	KindExecute  Kind = "execute"
	KindVerify   Kind = "verify"
	KindDeploy   Kind = "deploy"
)

// Kinds lists every stage kind in execution order.
var Kinds = []Kind{KindIntake, KindResearch, KindPlan, KindExecute, KindVerify, KindDeploy}

// Engine returns the label of the subsystem that performs a stage kind.
func (k Kind) Engine() string {
	switch k {
	case KindIntake:
		return "NtNtN"
	case KindResearch:
		return "ii-researcher"
	case KindPlan:
		return "II-Commons"
	case KindExecute:
		return "ii-agent"
	case KindVerify:
		return "ORACLE"
	case KindDeploy:
		return "gateway"
	default:
		panic(fmt.Sprintf("pipeline: unknown stage kind %q", string(k)))
	}
}

// StageStatus is the lifecycle state of a single stage.
type StageStatus string

const (
	StageIdle     StageStatus = "idle"
	StageActive   StageStatus = "active"
	StageComplete StageStatus = "complete"
	StageSkipped  StageStatus = "skipped"
	StageError    StageStatus = "error"
)

// Terminal reports whether s can no longer change.
func (s StageStatus) Terminal() bool {
	return s == StageComplete || s == StageSkipped || s == StageError
}

// Task statuses derived from the stage list.
const (
	StatusPending   = "pending"
	StatusComplete  = "complete"
	StatusError     = "error"
	executingPrefix = "executing:"
)

const (
	snapshotQueryLen = 200
	summaryQueryLen  = 100
)

// Stage is one step of a pipeline run.
type Stage struct {
	Kind        Kind
	Engine      string
	Status      StageStatus
	StartedAt   *time.Time
	CompletedAt *time.Time
	Output      any
	Error       string
}

// Duration is defined only once both timestamps exist.
func (s Stage) Duration() (time.Duration, bool) {
	if s.StartedAt == nil || s.CompletedAt == nil {
		return 0, false
	}
	return s.CompletedAt.Sub(*s.StartedAt), true
}

func (s *Stage) start(now time.Time) {
	if s.Status != StageIdle {
		panic(fmt.Sprintf("pipeline: stage %s started from %s", s.Kind, s.Status))
	}
	s.Status = StageActive
	s.StartedAt = &now
}

func (s *Stage) finish(now time.Time, output any, err error) {
	if s.Status != StageActive {
		panic(fmt.Sprintf("pipeline: stage %s finished from %s", s.Kind, s.Status))
	}
	s.CompletedAt = &now
	if err != nil {
		s.Status = StageError
		s.Error = err.Error()
		return
	}
	s.Status = StageComplete
	s.Output = output
}

// Task is one pipeline run.
type Task struct {
	ID             string
	Query          string
	Route          intent.Route
	Classification intent.Classification
	Stages         []Stage
	CreatedAt      time.Time
	CompletedAt    *time.Time
	FinalOutput    map[string]StageSnapshot
	Context        map[string]any
}

// Status is computed from the stage list on every call.
func (t *Task) Status() string {
	for _, s := range t.Stages {
		if s.Status == StageActive {
			return executingPrefix + string(s.Kind)
		}
	}
	for _, s := range t.Stages {
		if s.Status == StageError {
			return StatusError
		}
	}
	if len(t.Stages) == 0 {
		return StatusPending
	}
	for _, s := range t.Stages {
		if s.Status != StageComplete && s.Status != StageSkipped {
			return StatusPending
		}
	}
	return StatusComplete
}

func (t *Task) clone() *Task {
	c := *t
	c.Stages = make([]Stage, len(t.Stages))
	copy(c.Stages, t.Stages)
	for i := range c.Stages {
		if ts := c.Stages[i].StartedAt; ts != nil {
			v := *ts
			c.Stages[i].StartedAt = &v
		}
		if ts := c.Stages[i].CompletedAt; ts != nil {
			v := *ts
			c.Stages[i].CompletedAt = &v
		}
	}
	if t.CompletedAt != nil {
		v := *t.CompletedAt
		c.CompletedAt = &v
	}
	c.FinalOutput = maps.Clone(t.FinalOutput)
	c.Context = maps.Clone(t.Context)
	return &c
}

// StageSnapshot is the serialized form of a Stage.
type StageSnapshot struct {
	Name        Kind        `json:"name"`
	Engine      string      `json:"engine"`
	Status      StageStatus `json:"status"`
	StartedAt   *time.Time  `json:"started_at"`
	CompletedAt *time.Time  `json:"completed_at"`
	DurationMS  *int64      `json:"duration_ms"`
	Output      any         `json:"output"`
	Error       string      `json:"error,omitempty"`
}

func (s Stage) Snapshot() StageSnapshot {
	snap := StageSnapshot{
		Name:        s.Kind,
		Engine:      s.Engine,
		Status:      s.Status,
		StartedAt:   s.StartedAt,
		CompletedAt: s.CompletedAt,
		Output:      s.Output,
		Error:       s.Error,
	}
	if d, ok := s.Duration(); ok {
		ms := d.Milliseconds()
		snap.DurationMS = &ms
	}
	return snap
}

// TaskSnapshot is the full serialized view of a task.
type TaskSnapshot struct {
	TaskID         string                   `json:"task_id"`
	Query          string                   `json:"query"`
	Route          intent.Route             `json:"route"`
	Status         string                   `json:"status"`
	Classification intent.Classification    `json:"classification"`
	Stages         []StageSnapshot          `json:"stages"`
	CreatedAt      time.Time                `json:"created_at"`
	CompletedAt    *time.Time               `json:"completed_at"`
	FinalOutput    map[string]StageSnapshot `json:"final_output,omitempty"`
	Context        map[string]any           `json:"context,omitempty"`
}

func (t *Task) Snapshot() TaskSnapshot {
	stages := make([]StageSnapshot, 0, len(t.Stages))
	for _, s := range t.Stages {
		stages = append(stages, s.Snapshot())
	}
	return TaskSnapshot{
		TaskID:         t.ID,
		Query:          truncate(t.Query, snapshotQueryLen),
		Route:          t.Route,
		Status:         t.Status(),
		Classification: t.Classification,
		Stages:         stages,
		CreatedAt:      t.CreatedAt,
		CompletedAt:    t.CompletedAt,
		FinalOutput:    t.FinalOutput,
		Context:        t.Context,
	}
}

// TaskSummary is the list view of a task.
type TaskSummary struct {
	TaskID    string       `json:"task_id"`
	Query     string       `json:"query"`
	Route     intent.Route `json:"route"`
	Status    string       `json:"status"`
	Stages    int          `json:"stages"`
	CreatedAt time.Time    `json:"created_at"`
}

func (t *Task) Summary() TaskSummary {
	return TaskSummary{
		TaskID:    t.ID,
		Query:     truncate(t.Query, summaryQueryLen),
		Route:     t.Route,
		Status:    t.Status(),
		Stages:    len(t.Stages),
		CreatedAt: t.CreatedAt,
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// BuildStages returns the ordered stage list for a classification.
// Research and deploy are included only when needed; omitted stages are not
// represented.
func BuildStages(c intent.Classification, bridgeEnabled bool) []Stage {
	kinds := []Kind{KindIntake}
	if c.NeedsResearch {
		kinds = append(kinds, KindResearch)
	}
	kinds = append(kinds, KindPlan, KindExecute, KindVerify)
	if c.NeedsDeploy && bridgeEnabled {
		kinds = append(kinds, KindDeploy)
	}

	stages := make([]Stage, 0, len(kinds))
	for _, k := range kinds {
		stages = append(stages, Stage{Kind: k, Engine: k.Engine(), Status: StageIdle})
	}
	return stages
}
