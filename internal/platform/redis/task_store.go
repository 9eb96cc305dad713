package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/phrazzld/patentgate/internal/domain"
	"github.com/phrazzld/patentgate/internal/store"
)

const (
	maxCreateAttempts = 5
	maxUpdateAttempts = 10
)

// TaskStore keeps each task as a JSON string plus a sorted-set index ordered
// by creation time.
type TaskStore struct {
	rdb    redis.UniversalClient
	keys   keys
	now    func() time.Time
	logger *slog.Logger
}

var _ store.TaskStore = (*TaskStore)(nil)

// NewTaskStore creates a store using keys under prefix.
func NewTaskStore(rdb redis.UniversalClient, prefix string, logger *slog.Logger) *TaskStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskStore{
		rdb:    rdb,
		keys:   keys{prefix: prefix},
		now:    time.Now,
		logger: logger.With(slog.String("component", "redis_task_store")),
	}
}

// Create inserts a new pending task; SETNX rejects id collisions.
func (s *TaskStore) Create(ctx context.Context, resourceKey string) (*domain.FetchTask, error) {
	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		task, err := domain.NewFetchTask(resourceKey, s.now())
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(task)
		if err != nil {
			return nil, store.NewStoreError("task", "create", "failed to encode task", err)
		}

		ok, err := s.rdb.SetNX(ctx, s.keys.task(task.ID), data, 0).Result()
		if err != nil {
			return nil, store.NewStoreError("task", "create", "redis SETNX failed", err)
		}
		if !ok {
			continue
		}

		score := float64(task.CreatedAt.UnixNano())
		if err := s.rdb.ZAdd(ctx, s.keys.taskIndex(), &redis.Z{Score: score, Member: task.ID}).Err(); err != nil {
			_ = s.rdb.Del(ctx, s.keys.task(task.ID)).Err()
			return nil, store.NewStoreError("task", "create", "failed to index task", err)
		}
		return task, nil
	}
	return nil, store.NewStoreError("task", "create", "could not allocate a unique id", store.ErrDuplicate)
}

// Get loads one task.
func (s *TaskStore) Get(ctx context.Context, taskID string) (*domain.FetchTask, error) {
	data, err := s.rdb.Get(ctx, s.keys.task(taskID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrTaskNotFound
	}
	if err != nil {
		return nil, store.NewStoreError("task", "get", "redis GET failed", err)
	}
	return decodeTask(data)
}

// Update is a WATCH/MULTI compare-and-set. A concurrent writer aborts the
// transaction and the mutation is retried against the fresh value.
func (s *TaskStore) Update(
	ctx context.Context,
	taskID string,
	mutate store.TaskMutator,
) (*domain.FetchTask, error) {
	key := s.keys.task(taskID)
	var result *domain.FetchTask

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return store.ErrTaskNotFound
		}
		if err != nil {
			return store.NewStoreError("task", "update", "redis GET failed", err)
		}
		task, err := decodeTask(data)
		if err != nil {
			return err
		}
		if err := mutate(task); err != nil {
			return err
		}
		if err := task.Validate(); err != nil {
			return store.NewStoreError("task", "update", "mutation broke task invariants", err)
		}
		encoded, err := json.Marshal(task)
		if err != nil {
			return store.NewStoreError("task", "update", "failed to encode task", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, 0)
			return nil
		})
		if err != nil {
			return err
		}
		result = task
		return nil
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := s.rdb.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			s.logger.DebugContext(ctx, "task update raced, retrying",
				slog.String("task_id", taskID),
				slog.Int("attempt", attempt+1))
			continue
		}
		return nil, err
	}
	return nil, store.NewStoreError("task", "update", "too many concurrent writers", store.ErrUpdateFailed)
}

// List returns all indexed tasks, newest first.
func (s *TaskStore) List(ctx context.Context) ([]*domain.FetchTask, error) {
	ids, err := s.rdb.ZRevRange(ctx, s.keys.taskIndex(), 0, -1).Result()
	if err != nil {
		return nil, store.NewStoreError("task", "list", "redis ZREVRANGE failed", err)
	}
	if len(ids) == 0 {
		return []*domain.FetchTask{}, nil
	}

	taskKeys := make([]string, len(ids))
	for i, id := range ids {
		taskKeys[i] = s.keys.task(id)
	}
	values, err := s.rdb.MGet(ctx, taskKeys...).Result()
	if err != nil {
		return nil, store.NewStoreError("task", "list", "redis MGET failed", err)
	}

	tasks := make([]*domain.FetchTask, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// index entry without a task body; drop it
			_ = s.rdb.ZRem(ctx, s.keys.taskIndex(), ids[i]).Err()
			continue
		}
		task, err := decodeTask([]byte(raw))
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// DeleteTerminalBefore evicts finished tasks not updated since cutoff.
func (s *TaskStore) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tasks, err := s.List(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, candidate := range tasks {
		if !candidate.IsTerminal() || !candidate.UpdatedAt.Before(cutoff) {
			continue
		}
		key := s.keys.task(candidate.ID)
		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}
			task, err := decodeTask(data)
			if err != nil {
				return err
			}
			if !task.IsTerminal() || !task.UpdatedAt.Before(cutoff) {
				return nil
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				pipe.ZRem(ctx, s.keys.taskIndex(), task.ID)
				return nil
			})
			if err == nil {
				removed++
			}
			return err
		}, key)
		if err != nil && !errors.Is(err, redis.Nil) && !errors.Is(err, redis.TxFailedErr) {
			return removed, store.NewStoreError("task", "evict", "redis transaction failed", err)
		}
	}
	return removed, nil
}

func decodeTask(data []byte) (*domain.FetchTask, error) {
	var task domain.FetchTask
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, store.NewStoreError("task", "decode", "stored task is not valid JSON",
			fmt.Errorf("%w: %v", domain.ErrStateCorruption, err))
	}
	return &task, nil
}
