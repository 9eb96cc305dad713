package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/phrazzld/patentgate/internal/domain"
	"github.com/phrazzld/patentgate/internal/events"
	"github.com/phrazzld/patentgate/internal/resource"
	"github.com/phrazzld/patentgate/internal/store"
	"github.com/phrazzld/patentgate/internal/task"
)

// Job kinds submitted to the runner. The job subject is always the task id.
const (
	JobKindStart  = "fetch.start"
	JobKindResume = "fetch.resume"
)

// Task messages shown to pollers.
const (
	msgStarting          = "starting"
	msgChallengeRequired = "challenge required: enter the code shown in the image"
	msgVerifying         = "verifying answer"
	msgWrongAnswer       = "wrong answer, please try again"
	msgCompleted         = "download complete"
	msgLocalCopy         = "already available locally"
	msgResourceNotFound  = "resource not found"
	msgSessionMissing    = "challenge session missing"
	msgSessionMismatch   = "challenge session does not belong to task"
	msgChallengeExpired  = "challenge expired"
	msgBusy              = "server busy, try again later"
	msgShuttingDown      = "cancelled: server shutting down"
	msgTimedOut          = "timed out waiting for the document source"
	msgInternal          = "internal error"
)

// failTimeout bounds the status write made after a job has already failed,
// when the job's own context may be gone.
const failTimeout = 5 * time.Second

// WrongAnswerPolicy decides which challenge a task waits on after a rejected answer.
type WrongAnswerPolicy string

const (
	// PolicyReuse keeps the image already shown, with the refreshed session.
	PolicyReuse WrongAnswerPolicy = "reuse"
	// PolicyReissue asks the source for a new image.
	PolicyReissue WrongAnswerPolicy = "reissue"
)

// Config tunes the orchestrator.
type Config struct {
	WrongAnswerPolicy WrongAnswerPolicy
	// Retention is how long terminal tasks stay visible. Zero keeps them forever.
	Retention time.Duration
	// ChallengeTTL fails tasks left waiting for an answer longer than this.
	// Zero waits forever.
	ChallengeTTL time.Duration
}

// JobRunner accepts background jobs.
type JobRunner interface {
	Submit(job task.Job) error
}

// LocalFiles is the view of the artifact directory the orchestrator needs.
type LocalFiles interface {
	Lookup(resourceKey string) (string, bool)
	Path(name string) (string, error)
}

// Dependencies are the collaborators of the orchestrator. Solver and Events
// are optional.
type Dependencies struct {
	Tasks    store.TaskStore
	Sessions store.ChallengeRegistry
	Client   resource.Client
	Solver   resource.Solver
	Files    LocalFiles
	Catalog  store.ArtifactCatalog
	Runner   JobRunner
	Events   events.EventEmitter
}

// Orchestrator drives fetch tasks through their lifecycle.
type Orchestrator struct {
	tasks    store.TaskStore
	sessions store.ChallengeRegistry
	client   resource.Client
	solver   resource.Solver
	files    LocalFiles
	catalog  store.ArtifactCatalog
	runner   JobRunner
	events   events.EventEmitter
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
}

// New creates an Orchestrator.
// It returns an error if any of the required dependencies are nil.
func New(deps Dependencies, cfg Config, logger *slog.Logger) (*Orchestrator, error) {
	switch {
	case deps.Tasks == nil:
		return nil, fmt.Errorf("%w: task store cannot be nil", ErrInvalidDependency)
	case deps.Sessions == nil:
		return nil, fmt.Errorf("%w: challenge registry cannot be nil", ErrInvalidDependency)
	case deps.Client == nil:
		return nil, fmt.Errorf("%w: resource client cannot be nil", ErrInvalidDependency)
	case deps.Files == nil:
		return nil, fmt.Errorf("%w: local files cannot be nil", ErrInvalidDependency)
	case deps.Catalog == nil:
		return nil, fmt.Errorf("%w: artifact catalog cannot be nil", ErrInvalidDependency)
	case deps.Runner == nil:
		return nil, fmt.Errorf("%w: job runner cannot be nil", ErrInvalidDependency)
	}

	switch cfg.WrongAnswerPolicy {
	case "":
		cfg.WrongAnswerPolicy = PolicyReuse
	case PolicyReuse, PolicyReissue:
	default:
		return nil, fmt.Errorf("%w: unknown wrong answer policy %q", ErrInvalidDependency, cfg.WrongAnswerPolicy)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		tasks:    deps.Tasks,
		sessions: deps.Sessions,
		client:   deps.Client,
		solver:   deps.Solver,
		files:    deps.Files,
		catalog:  deps.Catalog,
		runner:   deps.Runner,
		events:   deps.Events,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "fetch_orchestrator")),
		now:      time.Now,
	}, nil
}

// ValidateKey normalises raw and checks its format.
func (o *Orchestrator) ValidateKey(raw string) (string, error) {
	key := domain.NormalizeResourceKey(raw)
	if err := domain.ValidateResourceKey(key); err != nil {
		return key, err
	}
	return key, nil
}

// StartFetch creates a task for the resource and queues the start job.
// When the document is already stored locally the returned task is
// completed and no job runs.
func (o *Orchestrator) StartFetch(ctx context.Context, rawKey string) (*domain.FetchTask, error) {
	key, err := o.ValidateKey(rawKey)
	if err != nil {
		return nil, err
	}

	if name, ok := o.files.Lookup(key); ok {
		return o.completeFromLocal(ctx, key, name)
	}

	t, err := o.tasks.Create(ctx, key)
	if err != nil {
		return nil, NewServiceError("start_fetch", "failed to create task", err)
	}

	taskID := t.ID
	job := task.NewFunc(JobKindStart, taskID, func(ctx context.Context) error {
		return o.runStart(ctx, taskID, key)
	})
	if err := o.runner.Submit(job); err != nil {
		o.logger.WarnContext(ctx, "could not queue start job",
			slog.String("task_id", taskID),
			slog.String("error", err.Error()))
		o.failTask(ctx, taskID, msgBusy)
		return nil, fmt.Errorf("%w: %v", ErrBusy, err)
	}

	o.logger.InfoContext(ctx, "fetch task created",
		slog.String("task_id", taskID),
		slog.String("resource_key", key))
	return t, nil
}

func (o *Orchestrator) completeFromLocal(ctx context.Context, key, name string) (*domain.FetchTask, error) {
	path, err := o.files.Path(name)
	if err != nil {
		return nil, NewServiceError("start_fetch", "invalid local artifact", err)
	}

	t, err := o.tasks.Create(ctx, key)
	if err != nil {
		return nil, NewServiceError("start_fetch", "failed to create task", err)
	}
	t, err = o.tasks.Update(ctx, t.ID, func(t *domain.FetchTask) error {
		return t.Complete(path, name, msgLocalCopy)
	})
	if err != nil {
		return nil, NewServiceError("start_fetch", "failed to complete local task", err)
	}

	o.logger.InfoContext(ctx, "served from local copy",
		slog.String("task_id", t.ID),
		slog.String("artifact", name))
	return t, nil
}

// SubmitAnswer hands answer to the task waiting for it. It returns once the
// resume job is queued; the outcome is observed by polling.
//
// Of concurrent submissions for one task exactly one claims it; the others
// get domain.ErrAlreadyProcessing. Tasks in any other state are rejected with
// domain.ErrNotAwaitingChallenge and left untouched.
func (o *Orchestrator) SubmitAnswer(ctx context.Context, taskID, answer string) error {
	answer = strings.TrimSpace(answer)
	if taskID == "" {
		return domain.ErrEmptyTaskID
	}
	if answer == "" {
		return domain.ErrEmptyAnswer
	}

	claimed, err := o.tasks.Update(ctx, taskID, func(t *domain.FetchTask) error {
		return t.BeginResume(msgVerifying)
	})
	if err != nil {
		return NewServiceError("submit_answer", "failed to claim task", err)
	}
	o.emit(ctx, claimed)

	session, err := o.sessions.Take(ctx, taskID)
	if err != nil {
		if store.IsNotFoundError(err) {
			o.logger.ErrorContext(ctx, "claimed task has no challenge session",
				slog.String("task_id", taskID))
			o.failTask(ctx, taskID, msgSessionMissing)
			return domain.ErrChallengeSessionMissing
		}
		o.failTask(ctx, taskID, msgSessionMissing)
		return NewServiceError("submit_answer", "failed to take challenge session", err)
	}

	if !session.BelongsTo(claimed) {
		o.logger.ErrorContext(ctx, "challenge session does not match task",
			slog.String("task_id", taskID),
			slog.String("session_task_id", session.TaskID),
			slog.String("session_resource_key", session.ResourceKey))
		o.failTask(ctx, taskID, msgSessionMismatch)
		return fmt.Errorf("%w: session issued for %s", domain.ErrStateCorruption, session.TaskID)
	}

	job := task.NewFunc(JobKindResume, taskID, func(ctx context.Context) error {
		return o.runResume(ctx, session, answer)
	})
	if err := o.runner.Submit(job); err != nil {
		o.logger.WarnContext(ctx, "could not queue resume job",
			slog.String("task_id", taskID),
			slog.String("error", err.Error()))
		o.releaseClaim(ctx, session)
		return fmt.Errorf("%w: %v", ErrBusy, err)
	}

	o.logger.InfoContext(ctx, "challenge answer accepted",
		slog.String("task_id", taskID),
		slog.Int("attempt", claimed.Attempts))
	return nil
}

// releaseClaim puts a claimed task back to waiting with its session intact.
func (o *Orchestrator) releaseClaim(ctx context.Context, session *domain.ChallengeSession) {
	if err := o.sessions.Put(ctx, session); err != nil {
		o.logger.ErrorContext(ctx, "failed to restore challenge session",
			slog.String("task_id", session.TaskID),
			slog.String("error", err.Error()))
		o.failTask(ctx, session.TaskID, msgSessionMissing)
		return
	}
	t, err := o.tasks.Update(ctx, session.TaskID, func(t *domain.FetchTask) error {
		if err := t.AwaitChallenge(session.Image, session.ImageMIME, msgBusy); err != nil {
			return err
		}
		t.Attempts--
		return nil
	})
	if err != nil {
		o.logger.ErrorContext(ctx, "failed to release task claim",
			slog.String("task_id", session.TaskID),
			slog.String("error", err.Error()))
		o.failTask(ctx, session.TaskID, msgBusy)
		return
	}
	o.emit(ctx, t)
}

// GetTask returns the current state of a task.
func (o *Orchestrator) GetTask(ctx context.Context, taskID string) (*domain.FetchTask, error) {
	t, err := o.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, NewServiceError("get_task", "failed to load task", err)
	}
	return t, nil
}

// ListTasks returns all live tasks, newest first.
func (o *Orchestrator) ListTasks(ctx context.Context) ([]*domain.FetchTask, error) {
	tasks, err := o.tasks.List(ctx)
	if err != nil {
		return nil, NewServiceError("list_tasks", "failed to list tasks", err)
	}
	return tasks, nil
}

// Artifact returns a completed task. Tasks in any other state yield
// domain.ErrArtifactNotReady.
func (o *Orchestrator) Artifact(ctx context.Context, taskID string) (*domain.FetchTask, error) {
	t, err := o.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.Status != domain.FetchStatusCompleted || t.ArtifactName == "" {
		return nil, domain.ErrArtifactNotReady
	}
	return t, nil
}

// LocalStatus reports whether the document for rawKey is stored locally.
func (o *Orchestrator) LocalStatus(rawKey string) (key, name string, exists bool, err error) {
	key, err = o.ValidateKey(rawKey)
	if err != nil {
		return key, "", false, err
	}
	name, exists = o.files.Lookup(key)
	return key, name, exists, nil
}

// ListFiles returns the artifact catalog, most recent first.
func (o *Orchestrator) ListFiles(ctx context.Context) ([]domain.Artifact, error) {
	artifacts, err := o.catalog.List(ctx)
	if err != nil {
		return nil, NewServiceError("list_files", "failed to list artifacts", err)
	}
	return artifacts, nil
}

// update applies mutate and emits the resulting task.
func (o *Orchestrator) update(ctx context.Context, taskID string, mutate store.TaskMutator) (*domain.FetchTask, error) {
	t, err := o.tasks.Update(ctx, taskID, mutate)
	if err != nil {
		return nil, err
	}
	o.emit(ctx, t)
	return t, nil
}

// failTask moves a live task to failed and drops its challenge session.
// Terminal tasks are left alone.
func (o *Orchestrator) failTask(ctx context.Context, taskID, message string) {
	_, err := o.update(ctx, taskID, func(t *domain.FetchTask) error {
		if t.IsTerminal() {
			return errSkip
		}
		return t.Fail(message)
	})
	switch {
	case err == nil:
		o.logger.WarnContext(ctx, "task failed",
			slog.String("task_id", taskID),
			slog.String("reason", message))
	case errors.Is(err, errSkip):
	default:
		o.logger.ErrorContext(ctx, "failed to mark task failed",
			slog.String("task_id", taskID),
			slog.String("error", err.Error()))
	}

	if err := o.sessions.Delete(ctx, taskID); err != nil {
		o.logger.ErrorContext(ctx, "failed to drop challenge session",
			slog.String("task_id", taskID),
			slog.String("error", err.Error()))
	}
}

func (o *Orchestrator) emit(ctx context.Context, t *domain.FetchTask) {
	if o.events == nil || t == nil {
		return
	}
	if err := o.events.EmitEvent(ctx, events.NewTaskEvent(t)); err != nil {
		o.logger.WarnContext(ctx, "task event handler failed",
			slog.String("task_id", t.ID),
			slog.String("status", string(t.Status)),
			slog.String("error", err.Error()))
	}
}
