package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Session is the agent conversation a bridge task runs in.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionProvider creates sessions owned by the bridge bot user.
type SessionProvider interface {
	Create(ctx context.Context, sessionID, userID string) (Session, error)
}

// MemorySessions keeps sessions in process memory.
type MemorySessions struct {
	mu       sync.Mutex
	sessions map[string]Session
}

var _ SessionProvider = (*MemorySessions)(nil)

func NewMemorySessions() *MemorySessions {
	return &MemorySessions{sessions: make(map[string]Session)}
}

func (m *MemorySessions) Create(ctx context.Context, sessionID, userID string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; ok {
		return Session{}, fmt.Errorf("session %s already exists", sessionID)
	}
	s := Session{ID: sessionID, UserID: userID, CreatedAt: time.Now().UTC()}
	m.sessions[sessionID] = s
	return s, nil
}

func (m *MemorySessions) Get(sessionID string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	return s, ok
}
