package events

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/patentgate/internal/domain"
	"github.com/phrazzld/patentgate/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingHandler is a test implementation of EventHandler.
type recordingHandler struct {
	mu           sync.Mutex
	handled      []*TaskEvent
	handlerError error
}

func (h *recordingHandler) HandleEvent(_ context.Context, event *TaskEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, event)
	return h.handlerError
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

func completedTask() *domain.FetchTask {
	return &domain.FetchTask{
		ID:           "download_CN1234567A_1",
		ResourceKey:  "CN1234567A",
		Status:       domain.FetchStatusCompleted,
		Message:      "download complete",
		ArtifactPath: "/tmp/CN1234567A.pdf",
		ArtifactName: "CN1234567A.pdf",
	}
}

func TestNewTaskEvent(t *testing.T) {
	t.Parallel()

	event := NewTaskEvent(completedTask())

	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, "task.completed", event.Type)
	assert.Equal(t, "download_CN1234567A_1", event.TaskID)
	assert.Equal(t, "CN1234567A", event.ResourceKey)
	assert.Equal(t, "CN1234567A.pdf", event.ArtifactName)
	assert.False(t, event.OccurredAt.IsZero())
	assert.Equal(t, "task.needs_challenge", TypeFor(domain.FetchStatusNeedsChallenge))
}

func TestInMemoryEventEmitter_EmitToAllHandlers(t *testing.T) {
	t.Parallel()

	emitter := NewInMemoryEventEmitter(logger.DiscardLogger())
	first := &recordingHandler{}
	second := &recordingHandler{}
	emitter.RegisterHandler(first)
	emitter.RegisterHandler(second)

	event := NewTaskEvent(completedTask())
	require.NoError(t, emitter.EmitEvent(context.Background(), event))

	assert.Equal(t, 1, first.count())
	assert.Equal(t, 1, second.count())
	assert.Same(t, event, first.handled[0])
}

func TestInMemoryEventEmitter_ReturnsFirstErrorButCallsEveryHandler(t *testing.T) {
	t.Parallel()

	emitter := NewInMemoryEventEmitter(logger.DiscardLogger())
	failing := &recordingHandler{handlerError: errors.New("boom")}
	after := &recordingHandler{}
	emitter.RegisterHandler(failing)
	emitter.RegisterHandler(after)

	err := emitter.EmitEvent(context.Background(), NewTaskEvent(completedTask()))

	require.Error(t, err)
	assert.Equal(t, "boom", err.Error())
	assert.Equal(t, 1, after.count())
}

func TestInMemoryEventEmitter_RecoversHandlerPanic(t *testing.T) {
	t.Parallel()

	emitter := NewInMemoryEventEmitter(logger.DiscardLogger())
	emitter.RegisterHandler(HandlerFunc(func(context.Context, *TaskEvent) error {
		panic("handler exploded")
	}))
	after := &recordingHandler{}
	emitter.RegisterHandler(after)

	err := emitter.EmitEvent(context.Background(), NewTaskEvent(completedTask()))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "handler exploded")
	assert.Equal(t, 1, after.count())
}

func TestInMemoryEventEmitter_NoHandlers(t *testing.T) {
	t.Parallel()

	emitter := NewInMemoryEventEmitter(logger.DiscardLogger())
	assert.NoError(t, emitter.EmitEvent(context.Background(), NewTaskEvent(completedTask())))
}
