package memory

import (
	"context"
	"sync"
	"time"

	"codemeet/internal/core/domain"
	"codemeet/internal/core/ports"
)

type MemorySessionStore struct {
	sessions map[domain.SessionKey]*domain.Session
	mu       sync.RWMutex
	now      func() time.Time
}

func NewMemorySessionStore() ports.SessionStore {
	return &MemorySessionStore{
		sessions: make(map[domain.SessionKey]*domain.Session),
		now:      time.Now,
	}
}

func (r *MemorySessionStore) FindSession(ctx context.Context, key domain.SessionKey) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, exists := r.sessions[key]
	if !exists {
		return nil, domain.ErrSessionNotFound
	}
	return session.Clone(), nil
}

func (r *MemorySessionStore) CreateSession(ctx context.Context, key domain.SessionKey) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if session, exists := r.sessions[key]; exists {
		return session.Clone(), nil
	}
	session := domain.NewSession(key, r.now())
	r.sessions[key] = session
	return session.Clone(), nil
}

func (r *MemorySessionStore) UpdateSession(ctx context.Context, key domain.SessionKey, update domain.SessionUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[key]
	if !exists {
		return domain.ErrSessionNotFound
	}
	session.Apply(update, r.now())
	return nil
}
