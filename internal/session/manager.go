package session

import (
	"sync"
	"time"
)

// Manager serializes request processing per conversation id, so two
// submissions for the same conversation never interleave while
// unrelated conversations run in parallel. Each conversation is owned
// by exactly one in-flight agent run at a time.
type Manager struct {
	mu    sync.Mutex
	locks map[string]*convLock
}

type convLock struct {
	mu       sync.Mutex
	lastUsed time.Time
}

func NewManager() *Manager {
	return &Manager{
		locks: make(map[string]*convLock),
	}
}

// WithLock executes fn while holding the per-conversation mutex.
func (m *Manager) WithLock(id string, fn func() error) error {
	m.mu.Lock()
	cl, ok := m.locks[id]
	if !ok {
		cl = &convLock{}
		m.locks[id] = cl
	}
	m.mu.Unlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	cl.lastUsed = time.Now()
	return fn()
}

// Cleanup removes locks not used within maxAge to prevent memory leaks.
func (m *Manager) Cleanup(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for id, cl := range m.locks {
		if now.Sub(cl.lastUsed) > maxAge {
			delete(m.locks, id)
		}
	}
}
