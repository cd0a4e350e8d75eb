package session

import (
	"context"
	"sync"
)

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu      sync.RWMutex
	session *Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Get(_ context.Context) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.session.Complete() {
		return nil, nil
	}
	cp := *m.session
	if cp.User != nil {
		user := *cp.User
		cp.User = &user
	}
	return &cp, nil
}

func (m *MemoryStore) Set(_ context.Context, s Session) error {
	if s.User != nil {
		user := *s.User
		s.User = &user
	}

	m.mu.Lock()
	m.session = &s
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	m.session = nil
	m.mu.Unlock()
	return nil
}
