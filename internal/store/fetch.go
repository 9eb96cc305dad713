package store

import (
	"context"
	"time"

	"github.com/phrazzld/patentgate/internal/domain"
)

// TaskMutator applies one transition to a task. Returning an error aborts the
// update and leaves the stored task untouched.
type TaskMutator func(task *domain.FetchTask) error

// TaskStore is the single source of truth for fetch task status.
// Implementations must be safe for concurrent use; every read returns a copy.
// Version: 1.0
type TaskStore interface {
	// Create generates an id for resourceKey, inserts a pending task and returns it.
	Create(ctx context.Context, resourceKey string) (*domain.FetchTask, error)

	// Get returns the task or ErrTaskNotFound.
	Get(ctx context.Context, taskID string) (*domain.FetchTask, error)

	// Update applies mutate atomically. The change is visible to subsequent
	// Get calls as soon as Update returns. Errors from mutate are returned as is.
	Update(ctx context.Context, taskID string, mutate TaskMutator) (*domain.FetchTask, error)

	// List returns all live tasks, newest first.
	List(ctx context.Context) ([]*domain.FetchTask, error)

	// DeleteTerminalBefore evicts completed and failed tasks last updated
	// before cutoff and returns how many were removed.
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// ChallengeRegistry holds paused external sessions keyed by task id.
// Version: 1.0
type ChallengeRegistry interface {
	// Put stores (or replaces) the session for its task.
	Put(ctx context.Context, session *domain.ChallengeSession) error

	// Take atomically fetches and removes the session. Of several concurrent
	// callers for the same task at most one receives it; the rest get
	// ErrSessionNotFound.
	Take(ctx context.Context, taskID string) (*domain.ChallengeSession, error)

	// Delete drops the session if present. Missing entries are not an error.
	Delete(ctx context.Context, taskID string) error
}

// ArtifactCatalog records fetched documents.
// Version: 1.0
type ArtifactCatalog interface {
	// Record stores metadata for a freshly fetched artifact.
	Record(ctx context.Context, artifact domain.Artifact) error

	// List returns known artifacts, most recently fetched first.
	List(ctx context.Context) ([]domain.Artifact, error)
}
