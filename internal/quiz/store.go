package quiz

import (
	"context"
	"fmt"
	"sync"
)

// SessionStore persists quiz sessions between requests.
//
// Save is an optimistic write: it succeeds only when s.Version equals the
// stored version (0 for a new session), then increments s.Version. A stale
// write returns ErrSessionConflict and leaves the stored session untouched.
type SessionStore interface {
	Save(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}

// MemoryStore is an in-memory implementation of SessionStore.
// It stores copies, so callers never share a Session with the store.
type MemoryStore struct {
	sessions map[string]*Session
	mu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
	}
}

func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	if s == nil || s.ID == "" {
		return fmt.Errorf("session id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := 0
	if cur, ok := m.sessions[s.ID]; ok {
		stored = cur.Version
	}
	if s.Version != stored {
		return fmt.Errorf("%w: %s at version %d, have %d", ErrSessionConflict, s.ID, stored, s.Version)
	}
	s.Version++
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(m.sessions, id)
	return nil
}
