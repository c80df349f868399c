package pipeline

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mattjoyce/switchyard/internal/intent"
)

func kinds(stages []Stage) []Kind {
	out := make([]Kind, 0, len(stages))
	for _, s := range stages {
		out = append(out, s.Kind)
	}
	return out
}

func TestBuildStages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		query  string
		bridge bool
		want   []Kind
	}{
		{
			name:   "deploy without bridge",
			query:  "deploy the staging service",
			bridge: false,
			want:   []Kind{KindIntake, KindPlan, KindExecute, KindVerify},
		},
		{
			name:   "deploy with bridge",
			query:  "deploy the staging service",
			bridge: true,
			want:   []Kind{KindIntake, KindPlan, KindExecute, KindVerify, KindDeploy},
		},
		{
			name:   "research",
			query:  "research vector databases",
			bridge: true,
			want:   []Kind{KindIntake, KindResearch, KindPlan, KindExecute, KindVerify},
		},
		{
			name:   "plain",
			query:  "hello",
			bridge: true,
			want:   []Kind{KindIntake, KindPlan, KindExecute, KindVerify},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			stages := BuildStages(intent.Classify(tt.query), tt.bridge)
			assert.Equal(t, tt.want, kinds(stages))
			for _, s := range stages {
				assert.Equal(t, StageIdle, s.Status)
				assert.Equal(t, s.Kind.Engine(), s.Engine)
			}
		})
	}
}

func TestTaskStatusDerivation(t *testing.T) {
	t.Parallel()

	mk := func(statuses ...StageStatus) *Task {
		task := &Task{}
		for i, st := range statuses {
			task.Stages = append(task.Stages, Stage{Kind: Kinds[i], Status: st})
		}
		return task
	}

	assert.Equal(t, StatusPending, mk().Status())
	assert.Equal(t, StatusPending, mk(StageIdle, StageIdle).Status())
	assert.Equal(t, "executing:research", mk(StageComplete, StageActive, StageIdle).Status())
	assert.Equal(t, StatusError, mk(StageComplete, StageError, StageIdle).Status())
	assert.Equal(t, StatusComplete, mk(StageComplete, StageSkipped, StageComplete).Status())
	assert.Equal(t, StatusPending, mk(StageComplete, StageIdle).Status())
}

func TestStageTransitions(t *testing.T) {
	t.Parallel()

	s := Stage{Kind: KindPlan, Status: StageIdle}
	_, ok := s.Duration()
	assert.False(t, ok)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.start(start)
	assert.Equal(t, StageActive, s.Status)
	assert.Nil(t, s.CompletedAt)
	_, ok = s.Duration()
	assert.False(t, ok)

	s.finish(start.Add(1500*time.Millisecond), nil, errors.New("boom"))
	assert.Equal(t, StageError, s.Status)
	assert.Equal(t, "boom", s.Error)
	d, ok := s.Duration()
	assert.True(t, ok)
	assert.Equal(t, 1500*time.Millisecond, d)

	assert.Panics(t, func() { s.start(start) }, "terminal stage must not restart")
	assert.Panics(t, func() { s.finish(start, nil, nil) }, "terminal stage must not finish twice")
}

func TestSnapshotTruncatesQuery(t *testing.T) {
	t.Parallel()

	task := &Task{ID: "t", Query: strings.Repeat("x", 300)}
	assert.Len(t, task.Snapshot().Query, 200)
	assert.Len(t, task.Summary().Query, 100)
}

func TestCloneIsIndependent(t *testing.T) {
	t.Parallel()

	now := time.Now()
	task := &Task{
		ID:      "t",
		Stages:  []Stage{{Kind: KindIntake, Status: StageActive, StartedAt: &now}},
		Context: map[string]any{"k": "v"},
	}
	c := task.clone()
	c.Stages[0].Status = StageComplete
	*c.Stages[0].StartedAt = now.Add(time.Hour)
	c.Context["k"] = "changed"

	assert.Equal(t, StageActive, task.Stages[0].Status)
	assert.Equal(t, now, *task.Stages[0].StartedAt)
	assert.Equal(t, "v", task.Context["k"])
}

func TestHandlersValidate(t *testing.T) {
	t.Parallel()

	h := DefaultHandlers(nil)
	assert.NoError(t, h.validate())

	h.Verify = nil
	h.Deploy = nil
	err := h.validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "verify, deploy")
}
