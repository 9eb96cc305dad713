package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/phrazzld/patentgate/internal/domain"
	"github.com/phrazzld/patentgate/internal/store"
)

// ChallengeRegistry stores sessions as JSON strings. Take relies on GETDEL
// (Redis 6.2+), which reads and deletes in one command.
type ChallengeRegistry struct {
	rdb  redis.UniversalClient
	keys keys
	// ttl bounds how long an abandoned session lingers; zero keeps it.
	ttl time.Duration
}

var _ store.ChallengeRegistry = (*ChallengeRegistry)(nil)

// NewChallengeRegistry creates a registry using keys under prefix.
func NewChallengeRegistry(rdb redis.UniversalClient, prefix string, ttl time.Duration) *ChallengeRegistry {
	return &ChallengeRegistry{rdb: rdb, keys: keys{prefix: prefix}, ttl: ttl}
}

// Put stores session, replacing any previous one.
func (r *ChallengeRegistry) Put(ctx context.Context, session *domain.ChallengeSession) error {
	if session == nil {
		return store.NewStoreError("challenge_session", "put", "session is nil", store.ErrInvalidEntity)
	}
	if err := session.Validate(); err != nil {
		return store.NewStoreError("challenge_session", "put", "invalid session", err)
	}
	data, err := json.Marshal(session)
	if err != nil {
		return store.NewStoreError("challenge_session", "put", "failed to encode session", err)
	}
	if err := r.rdb.Set(ctx, r.keys.challenge(session.TaskID), data, r.ttl).Err(); err != nil {
		return store.NewStoreError("challenge_session", "put", "redis SET failed", err)
	}
	return nil
}

// Take atomically reads and removes the session.
func (r *ChallengeRegistry) Take(ctx context.Context, taskID string) (*domain.ChallengeSession, error) {
	data, err := r.rdb.GetDel(ctx, r.keys.challenge(taskID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrSessionNotFound
	}
	if err != nil {
		return nil, store.NewStoreError("challenge_session", "take", "redis GETDEL failed", err)
	}

	var session domain.ChallengeSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, store.NewStoreError("challenge_session", "take", "stored session is not valid JSON",
			domain.ErrStateCorruption)
	}
	return &session, nil
}

// Delete removes the session if present.
func (r *ChallengeRegistry) Delete(ctx context.Context, taskID string) error {
	if err := r.rdb.Del(ctx, r.keys.challenge(taskID)).Err(); err != nil {
		return store.NewStoreError("challenge_session", "delete", "redis DEL failed", err)
	}
	return nil
}
