package repository

import (
	"context"
	"sync"

	"github.com/BrainstormWilly/yno-libero-vino-sub003/internal/domain"
)

// MemorySessionRepository implements SessionRepository with an in-process
// map. It backs the dev bypass mode and tests; semantics match the Redis
// store, including idempotent deletes, minus TTL eviction.
type MemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

// NewMemorySessionRepository creates a new MemorySessionRepository
func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{
		sessions: make(map[string]*domain.Session),
	}
}

// Create persists a new session
func (r *MemorySessionRepository) Create(_ context.Context, session *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *session
	r.sessions[session.ID] = &stored
	return nil
}

// GetByID retrieves a session, returning nil, nil on a miss
func (r *MemorySessionRepository) GetByID(_ context.Context, id string) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	out := *stored
	return &out, nil
}

// UpdateFields writes only the named fields onto the stored session
func (r *MemorySessionRepository) UpdateFields(_ context.Context, session *domain.Session, fields []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.sessions[session.ID]
	if !ok {
		return nil
	}
	for _, f := range fields {
		copyField(stored, session, f)
	}
	return nil
}

// Delete removes a session; deleting a missing session is not an error
func (r *MemorySessionRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, id)
	return nil
}
