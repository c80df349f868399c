package bridge

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Registry tracks dispatched tasks. Implementations return copies.
type Registry interface {
	Get(taskID string) (*Task, bool)
	GetBySession(sessionID string) (*Task, bool)
	Put(t *Task) error
	// Update applies fn to the stored task under the registry lock. The
	// change is discarded if fn fails or the status moves backwards.
	Update(taskID string, fn func(*Task) error) (*Task, error)
	List() []*Task
}

// MemoryRegistry is a Registry guarded by a single mutex.
type MemoryRegistry struct {
	mu        sync.Mutex
	tasks     map[string]*Task
	bySession map[string]string
	now       func() time.Time
}

var _ Registry = (*MemoryRegistry)(nil)

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		tasks:     make(map[string]*Task),
		bySession: make(map[string]string),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryRegistry) Get(taskID string) (*Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[taskID]
	if !ok {
		return nil, false
	}
	return t.clone(), true
}

func (r *MemoryRegistry) GetBySession(sessionID string) (*Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.bySession[sessionID]
	if !ok {
		return nil, false
	}
	t, ok := r.tasks[id]
	if !ok {
		return nil, false
	}
	return t.clone(), true
}

// Put inserts a new task. Task and session ids must be unused.
func (r *MemoryRegistry) Put(t *Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tasks[t.TaskID]; exists {
		return fmt.Errorf("task %s already registered", t.TaskID)
	}
	if _, exists := r.bySession[t.SessionID]; exists {
		return fmt.Errorf("session %s already registered", t.SessionID)
	}
	r.tasks[t.TaskID] = t.clone()
	r.bySession[t.SessionID] = t.TaskID
	return nil
}

func (r *MemoryRegistry) Update(taskID string, fn func(*Task) error) (*Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("%w: task %s", ErrNotFound, taskID)
	}

	next := cur.clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	if !canTransition(cur.Status, next.Status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur.Status, next.Status)
	}
	next.TaskID = cur.TaskID
	next.SessionID = cur.SessionID
	next.CreatedAt = cur.CreatedAt
	next.UpdatedAt = r.now()
	if !next.UpdatedAt.After(cur.UpdatedAt) {
		next.UpdatedAt = cur.UpdatedAt.Add(time.Nanosecond)
	}

	r.tasks[taskID] = next
	return next.clone(), nil
}

// List returns tasks oldest first.
func (r *MemoryRegistry) List() []*Task {
	r.mu.Lock()
	out := make([]*Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, t.clone())
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].TaskID < out[j].TaskID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
