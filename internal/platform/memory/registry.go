package memory

import (
	"context"
	"sync"

	"github.com/phrazzld/patentgate/internal/domain"
	"github.com/phrazzld/patentgate/internal/store"
)

// ChallengeRegistry keeps paused sessions in a map. Take deletes under the
// same lock it reads with, so a session is handed out at most once.
type ChallengeRegistry struct {
	mu       sync.Mutex
	sessions map[string]*domain.ChallengeSession
}

var _ store.ChallengeRegistry = (*ChallengeRegistry)(nil)

// NewChallengeRegistry creates an empty registry.
func NewChallengeRegistry() *ChallengeRegistry {
	return &ChallengeRegistry{sessions: make(map[string]*domain.ChallengeSession)}
}

// Put stores a copy of session, replacing any previous one for the task.
func (r *ChallengeRegistry) Put(_ context.Context, session *domain.ChallengeSession) error {
	if session == nil {
		return store.NewStoreError("challenge_session", "put", "session is nil", store.ErrInvalidEntity)
	}
	if err := session.Validate(); err != nil {
		return store.NewStoreError("challenge_session", "put", "invalid session", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.TaskID] = session.Clone()
	return nil
}

// Take removes and returns the session for taskID.
func (r *ChallengeRegistry) Take(_ context.Context, taskID string) (*domain.ChallengeSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[taskID]
	if !ok {
		return nil, store.ErrSessionNotFound
	}
	delete(r.sessions, taskID)
	return session, nil
}

// Delete removes the session for taskID if present.
func (r *ChallengeRegistry) Delete(_ context.Context, taskID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, taskID)
	return nil
}

// Len reports how many sessions are registered.
func (r *ChallengeRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
