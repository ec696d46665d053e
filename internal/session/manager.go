package session

import (
	"sync"

	"github.com/google/uuid"
)

// Manager is the in-memory registry of live attempt sessions, keyed by
// attempt ID. One session exists per active attempt; closed sessions are
// removed and torn down.
type Manager struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

// NewManager creates an empty registry.
func NewManager() *Manager {
	return &Manager{sessions: make(map[uuid.UUID]*Session)}
}

// Put registers a session under its attempt ID, replacing and closing any
// previous session for the same attempt.
func (m *Manager) Put(s *Session) {
	m.mu.Lock()
	old := m.sessions[s.AttemptID()]
	m.sessions[s.AttemptID()] = s
	m.mu.Unlock()

	if old != nil && old != s {
		old.Close()
	}
}

// Get returns the live session for an attempt, if any.
func (m *Manager) Get(attemptID uuid.UUID) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[attemptID]
	return s, ok
}

// Remove unregisters and closes the session for an attempt.
func (m *Manager) Remove(attemptID uuid.UUID) {
	m.mu.Lock()
	s := m.sessions[attemptID]
	delete(m.sessions, attemptID)
	m.mu.Unlock()

	if s != nil {
		s.Close()
	}
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CloseAll tears down every live session, draining their outboxes. Used on
// shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[uuid.UUID]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
