package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/patentgate/internal/domain"
)

// Event type prefix; the full type is "task." + status, e.g. "task.completed".
const typePrefix = "task."

// TaskEvent describes one committed task transition.
type TaskEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type is "task." followed by the new status
	Type string `json:"type"`

	TaskID       string             `json:"task_id"`
	ResourceKey  string             `json:"resource_key"`
	Status       domain.FetchStatus `json:"status"`
	Message      string             `json:"message"`
	ArtifactPath string             `json:"artifact_path,omitempty"`
	ArtifactName string             `json:"artifact_name,omitempty"`

	// OccurredAt is the timestamp when the event was created
	OccurredAt time.Time `json:"occurred_at"`
}

// NewTaskEvent snapshots task into an event.
func NewTaskEvent(task *domain.FetchTask) *TaskEvent {
	return &TaskEvent{
		ID:           uuid.New(),
		Type:         TypeFor(task.Status),
		TaskID:       task.ID,
		ResourceKey:  task.ResourceKey,
		Status:       task.Status,
		Message:      task.Message,
		ArtifactPath: task.ArtifactPath,
		ArtifactName: task.ArtifactName,
		OccurredAt:   time.Now().UTC(),
	}
}

// TypeFor returns the event type for a status.
func TypeFor(status domain.FetchStatus) string {
	return typePrefix + string(status)
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	HandleEvent(ctx context.Context, event *TaskEvent) error
}

// HandlerFunc adapts a function to EventHandler.
type HandlerFunc func(ctx context.Context, event *TaskEvent) error

// HandleEvent implements EventHandler.
func (f HandlerFunc) HandleEvent(ctx context.Context, event *TaskEvent) error {
	return f(ctx, event)
}

// EventEmitter defines an interface for components that can emit events.
// This allows services to publish events without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *TaskEvent) error
}
