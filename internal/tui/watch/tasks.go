package watch

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/charmbracelet/bubbles/table"

	"github.com/mattjoyce/switchyard/internal/events"
)

// Task kinds shown in the table.
const (
	kindPipeline = "pipeline"
	kindBridge   = "bridge"
)

// TaskState tracks one pipeline run or bridge task seen on the stream.
type TaskState struct {
	ID        string
	Kind      string
	Route     string
	Stage     string
	Status    string
	Detail    string
	StartTime time.Time
	EndTime   time.Time
}

// updateTaskState folds one event into tasks. Events without a task_id are
// ignored.
func updateTaskState(tasks map[string]*TaskState, e events.Event, now time.Time) {
	var data map[string]any
	_ = json.Unmarshal(e.Data, &data)

	id, _ := data["task_id"].(string)
	if id == "" {
		return
	}
	t, ok := tasks[id]
	if !ok {
		t = &TaskState{ID: id, StartTime: now}
		tasks[id] = t
	}

	str := func(k string) string {
		s, _ := data[k].(string)
		return s
	}

	switch e.Type {
	case "pipeline.started":
		t.Kind = kindPipeline
		t.Route = str("route")
		t.Status = "pending"
	case "pipeline.stage.started":
		t.Kind = kindPipeline
		t.Stage = str("stage")
		t.Status = "executing:" + t.Stage
	case "pipeline.stage.completed":
		t.Stage = str("stage")
	case "pipeline.stage.failed":
		t.Stage = str("stage")
		t.Detail = str("error")
	case "pipeline.completed":
		t.Status = str("status")
		t.EndTime = now
	case "bridge.dispatched":
		t.Kind = kindBridge
		t.Route = str("source")
		t.Status = "queued"
	case "bridge.running":
		t.Kind = kindBridge
		t.Status = "running"
	case "bridge.completed":
		t.Status = "completed"
		t.EndTime = now
	case "bridge.failed":
		t.Status = "failed"
		t.Detail = str("error")
		t.EndTime = now
	case "bridge.callback.delivered":
		t.Detail = "callback delivered"
	case "bridge.callback.failed":
		t.Detail = "callback failed: " + str("error")
	}
}

// sortedTasks orders tasks newest first.
func sortedTasks(tasks map[string]*TaskState) []*TaskState {
	out := make([]*TaskState, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.After(out[j].StartTime)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func taskColumns() []table.Column {
	return []table.Column{
		{Title: "Kind", Width: 8},
		{Title: "ID", Width: 8},
		{Title: "Route", Width: 8},
		{Title: "Status", Width: 20},
		{Title: "Duration", Width: 9},
		{Title: "Detail", Width: 30},
	}
}

func taskRows(tasks map[string]*TaskState, now time.Time) []table.Row {
	rows := make([]table.Row, 0, len(tasks))
	for _, t := range sortedTasks(tasks) {
		end := t.EndTime
		if end.IsZero() {
			end = now
		}
		id := t.ID
		if len(id) > 8 {
			id = id[:8]
		}
		rows = append(rows, table.Row{
			t.Kind,
			id,
			t.Route,
			t.Status,
			formatDuration(end.Sub(t.StartTime)),
			t.Detail,
		})
	}
	return rows
}
