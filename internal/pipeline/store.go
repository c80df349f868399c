package pipeline

import (
	"sort"
	"sync"
)

// TaskStore holds pipeline tasks. Implementations must return copies so
// callers never observe a record while it is being written.
type TaskStore interface {
	Get(id string) (*Task, bool)
	Put(t *Task)
	List() []*Task
}

// MemoryTaskStore is a TaskStore backed by a map. History is lost on restart.
type MemoryTaskStore struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

var _ TaskStore = (*MemoryTaskStore)(nil)

func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{tasks: make(map[string]*Task)}
}

func (s *MemoryTaskStore) Get(id string) (*Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, false
	}
	return t.clone(), true
}

func (s *MemoryTaskStore) Put(t *Task) {
	c := t.clone()
	s.mu.Lock()
	s.tasks[c.ID] = c
	s.mu.Unlock()
}

// List returns tasks oldest first.
func (s *MemoryTaskStore) List() []*Task {
	s.mu.RLock()
	out := make([]*Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
