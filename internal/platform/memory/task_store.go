package memory

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/phrazzld/patentgate/internal/domain"
	"github.com/phrazzld/patentgate/internal/store"
)

// maxCreateAttempts bounds the retries on a task id collision.
const maxCreateAttempts = 5

// TaskStore is a mutex-guarded map of tasks. Every method copies on the way
// in and out, so callers never hold a pointer into the store.
type TaskStore struct {
	mu     sync.RWMutex
	tasks  map[string]*domain.FetchTask
	now    func() time.Time
	logger *slog.Logger
}

var _ store.TaskStore = (*TaskStore)(nil)

// NewTaskStore creates an empty store.
func NewTaskStore(logger *slog.Logger) *TaskStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskStore{
		tasks:  make(map[string]*domain.FetchTask),
		now:    time.Now,
		logger: logger.With(slog.String("component", "memory_task_store")),
	}
}

// Create inserts a new pending task with a fresh id.
func (s *TaskStore) Create(ctx context.Context, resourceKey string) (*domain.FetchTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		task, err := domain.NewFetchTask(resourceKey, s.now())
		if err != nil {
			return nil, err
		}
		if _, exists := s.tasks[task.ID]; exists {
			continue
		}
		s.tasks[task.ID] = task
		s.logger.DebugContext(ctx, "task created",
			slog.String("task_id", task.ID),
			slog.String("resource_key", resourceKey))
		return task.Clone(), nil
	}
	return nil, store.NewStoreError("task", "create", "could not allocate a unique id", store.ErrDuplicate)
}

// Get returns a copy of the task.
func (s *TaskStore) Get(_ context.Context, taskID string) (*domain.FetchTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return task.Clone(), nil
}

// Update runs mutate on a copy under the write lock and stores it only on success.
func (s *TaskStore) Update(
	_ context.Context,
	taskID string,
	mutate store.TaskMutator,
) (*domain.FetchTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.tasks[taskID]
	if !ok {
		return nil, store.ErrTaskNotFound
	}

	next := current.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	if err := next.Validate(); err != nil {
		return nil, store.NewStoreError("task", "update", "mutation broke task invariants", err)
	}
	s.tasks[taskID] = next
	return next.Clone(), nil
}

// List returns copies of all tasks, newest first.
func (s *TaskStore) List(_ context.Context) ([]*domain.FetchTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.FetchTask, 0, len(s.tasks))
	for _, task := range s.tasks {
		out = append(out, task.Clone())
	}
	sortNewestFirst(out)
	return out, nil
}

// DeleteTerminalBefore evicts finished tasks not updated since cutoff.
func (s *TaskStore) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, task := range s.tasks {
		if task.IsTerminal() && task.UpdatedAt.Before(cutoff) {
			delete(s.tasks, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.DebugContext(ctx, "evicted terminal tasks", slog.Int("count", removed))
	}
	return removed, nil
}

func sortNewestFirst(tasks []*domain.FetchTask) {
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].ID > tasks[j].ID
		}
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
}
