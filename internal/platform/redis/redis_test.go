package redis

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/phrazzld/patentgate/internal/config"
	"github.com/phrazzld/patentgate/internal/domain"
	"github.com/phrazzld/patentgate/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClient connects to the Redis named by PATENTGATE_TEST_REDIS_ADDR and
// returns a unique key prefix that is cleaned up after the test.
func testClient(t *testing.T) (*redis.Client, string) {
	t.Helper()

	addr := os.Getenv("PATENTGATE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("PATENTGATE_TEST_REDIS_ADDR not set, skipping redis integration test")
	}

	ctx := context.Background()
	rdb, err := NewClient(ctx, config.RedisConfig{Addr: addr}, nil)
	require.NoError(t, err)

	prefix := "patentgate-test-" + uuid.NewString()
	t.Cleanup(func() {
		iter := rdb.Scan(ctx, 0, prefix+":*", 100).Iterator()
		for iter.Next(ctx) {
			_ = rdb.Del(ctx, iter.Val()).Err()
		}
		_ = rdb.Close()
	})
	return rdb, prefix
}

func TestTaskStore_Lifecycle(t *testing.T) {
	rdb, prefix := testClient(t)
	ctx := context.Background()
	s := NewTaskStore(rdb, prefix, nil)

	task, err := s.Create(ctx, "CN1234567A")
	require.NoError(t, err)

	got, err := s.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.FetchStatusPending, got.Status)

	updated, err := s.Update(ctx, task.ID, func(t *domain.FetchTask) error {
		if err := t.Start("starting"); err != nil {
			return err
		}
		return t.AwaitChallenge([]byte{1, 2, 3}, "image/png", "enter the code")
	})
	require.NoError(t, err)
	assert.Equal(t, domain.FetchStatusNeedsChallenge, updated.Status)

	got, err = s.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got.ChallengeImage)

	boom := errors.New("boom")
	_, err = s.Update(ctx, task.ID, func(*domain.FetchTask) error { return boom })
	assert.ErrorIs(t, err, boom)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}

func TestTaskStore_ConcurrentClaimHasSingleWinner(t *testing.T) {
	rdb, prefix := testClient(t)
	ctx := context.Background()
	s := NewTaskStore(rdb, prefix, nil)

	task, err := s.Create(ctx, "CN1234567A")
	require.NoError(t, err)
	_, err = s.Update(ctx, task.ID, func(t *domain.FetchTask) error {
		if err := t.Start("starting"); err != nil {
			return err
		}
		return t.AwaitChallenge([]byte{1}, "image/png", "enter the code")
	})
	require.NoError(t, err)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Update(ctx, task.ID, func(t *domain.FetchTask) error {
				return t.BeginResume("verifying")
			})
			if err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestTaskStore_ListAndEvict(t *testing.T) {
	rdb, prefix := testClient(t)
	ctx := context.Background()
	s := NewTaskStore(rdb, prefix, nil)

	first, err := s.Create(ctx, "CN1111111A")
	require.NoError(t, err)
	second, err := s.Create(ctx, "CN2222222A")
	require.NoError(t, err)

	tasks, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, second.ID, tasks[0].ID)

	_, err = s.Update(ctx, first.ID, func(t *domain.FetchTask) error { return t.Fail("resource not found") })
	require.NoError(t, err)

	removed, err := s.DeleteTerminalBefore(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	tasks, err = s.List(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, second.ID, tasks[0].ID)
}

func TestChallengeRegistry_TakeOnce(t *testing.T) {
	rdb, prefix := testClient(t)
	ctx := context.Background()
	r := NewChallengeRegistry(rdb, prefix, time.Hour)

	session := &domain.ChallengeSession{
		TaskID:      "t1",
		ResourceKey: "CN1234567A",
		Image:       []byte{1, 2},
		ImageMIME:   "image/png",
		State:       domain.SessionState{Cookies: []domain.Cookie{{Name: "sid", Value: "abc"}}},
	}
	require.NoError(t, r.Put(ctx, session))

	var hits atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := r.Take(ctx, "t1")
			if err == nil {
				hits.Add(1)
				assert.Equal(t, "abc", got.State.Cookies[0].Value)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), hits.Load())

	require.NoError(t, r.Delete(ctx, "t1"))
	_, err := r.Take(ctx, "t1")
	assert.ErrorIs(t, err, store.ErrSessionNotFound)
}
