package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/patentgate/internal/domain"
	"github.com/phrazzld/patentgate/internal/platform/logger"
	"github.com/phrazzld/patentgate/internal/redact"
	"github.com/phrazzld/patentgate/internal/resource"
	"github.com/phrazzld/patentgate/internal/task"
)

// runStart moves a pending task into downloading and asks the source for the
// document. A returned error is turned into a failed task by HandleJobError.
func (o *Orchestrator) runStart(ctx context.Context, taskID, key string) error {
	log := logger.FromContextOrDefault(ctx, o.logger).With(
		slog.String("task_id", taskID),
		slog.String("resource_key", key))

	if _, err := o.update(ctx, taskID, func(t *domain.FetchTask) error {
		return t.Start(msgStarting)
	}); err != nil {
		return fmt.Errorf("failed to start task: %w", err)
	}

	outcome, err := o.client.Initiate(ctx, key)
	if err != nil {
		return err
	}

	switch {
	case outcome.Direct != nil:
		log.InfoContext(ctx, "document available without challenge")
		return o.materialize(ctx, taskID, domain.SessionState{}, *outcome.Direct)

	case outcome.Challenge != nil:
		session := &domain.ChallengeSession{
			TaskID:      taskID,
			ResourceKey: key,
			Image:       outcome.Challenge.Image,
			ImageMIME:   outcome.Challenge.ImageMIME,
			State:       outcome.Challenge.State,
			IssuedAt:    o.now().UTC(),
		}
		if err := o.awaitChallenge(ctx, session, msgChallengeRequired); err != nil {
			return err
		}
		log.InfoContext(ctx, "waiting for challenge answer",
			slog.Any("session", session.State))
		o.suggest(ctx, session)
		return nil

	default:
		return fmt.Errorf("%w: source returned neither a document nor a challenge", domain.ErrTransientExternal)
	}
}

// runResume submits answer with the session taken from the registry.
func (o *Orchestrator) runResume(ctx context.Context, session *domain.ChallengeSession, answer string) error {
	log := logger.FromContextOrDefault(ctx, o.logger).With(
		slog.String("task_id", session.TaskID),
		slog.String("resource_key", session.ResourceKey))

	outcome, err := o.client.Resume(ctx, session.State, session.ResourceKey, answer)
	if err != nil {
		return err
	}
	log.InfoContext(ctx, "challenge answer verified", slog.String("outcome", outcome.Kind.String()))

	switch outcome.Kind {
	case resource.ResumeResolved:
		if outcome.Artifact == nil {
			return fmt.Errorf("%w: resolved without an artifact", domain.ErrTransientExternal)
		}
		state := outcome.State
		if len(state.Cookies) == 0 {
			state = session.State
		}
		return o.materialize(ctx, session.TaskID, state, *outcome.Artifact)

	case resource.ResumeWrongAnswer:
		return o.retryChallenge(ctx, session, outcome.State)

	case resource.ResumeNotFound:
		o.failTask(ctx, session.TaskID, msgResourceNotFound)
		return nil

	default:
		return fmt.Errorf("%w: unexpected resume outcome %s", domain.ErrTransientExternal, outcome.Kind)
	}
}

// retryChallenge parks the task again after a rejected answer.
func (o *Orchestrator) retryChallenge(ctx context.Context, previous *domain.ChallengeSession, state domain.SessionState) error {
	next := previous.Clone()
	if len(state.Cookies) > 0 {
		next.State = state.Clone()
	}

	if o.cfg.WrongAnswerPolicy == PolicyReissue {
		challenge, err := o.client.RefreshChallenge(ctx, next.State)
		if err != nil {
			return fmt.Errorf("failed to reissue challenge: %w", err)
		}
		next.Image = challenge.Image
		next.ImageMIME = challenge.ImageMIME
		if len(challenge.State.Cookies) > 0 {
			next.State = challenge.State
		}
	}
	next.IssuedAt = o.now().UTC()

	if err := o.awaitChallenge(ctx, next, msgWrongAnswer); err != nil {
		return err
	}
	if o.cfg.WrongAnswerPolicy == PolicyReissue {
		o.suggest(ctx, next)
	}
	return nil
}

// awaitChallenge registers the session before the task is observable as
// waiting, so an answer never finds a waiting task without its session.
func (o *Orchestrator) awaitChallenge(ctx context.Context, session *domain.ChallengeSession, message string) error {
	if err := o.sessions.Put(ctx, session); err != nil {
		return fmt.Errorf("failed to register challenge session: %w", err)
	}
	if _, err := o.update(ctx, session.TaskID, func(t *domain.FetchTask) error {
		return t.AwaitChallenge(session.Image, session.ImageMIME, message)
	}); err != nil {
		if delErr := o.sessions.Delete(ctx, session.TaskID); delErr != nil {
			o.logger.ErrorContext(ctx, "failed to drop orphaned challenge session",
				slog.String("task_id", session.TaskID),
				slog.String("error", delErr.Error()))
		}
		return fmt.Errorf("failed to park task for challenge: %w", err)
	}
	return nil
}

// suggest stores a solver hint on the waiting task. Failures only log.
func (o *Orchestrator) suggest(ctx context.Context, session *domain.ChallengeSession) {
	if o.solver == nil {
		return
	}
	answer, err := o.solver.Suggest(ctx, session.Image, session.ImageMIME)
	if err != nil {
		o.logger.WarnContext(ctx, "captcha solver gave no suggestion",
			slog.String("task_id", session.TaskID),
			slog.String("error", redact.Error(err)))
		return
	}
	_, err = o.tasks.Update(ctx, session.TaskID, func(t *domain.FetchTask) error {
		return t.SetSuggestion(session.Image, answer)
	})
	if errors.Is(err, domain.ErrStaleChallenge) {
		o.logger.DebugContext(ctx, "dropped suggestion for replaced challenge",
			slog.String("task_id", session.TaskID))
		return
	}
	if err != nil && !errors.Is(err, domain.ErrNotAwaitingChallenge) {
		o.logger.WarnContext(ctx, "failed to store suggestion",
			slog.String("task_id", session.TaskID),
			slog.String("error", err.Error()))
	}
}

func (o *Orchestrator) materialize(ctx context.Context, taskID string, state domain.SessionState, ref resource.ArtifactRef) error {
	path, err := o.client.Materialize(ctx, state, ref)
	if err != nil {
		return fmt.Errorf("failed to download document: %w", err)
	}
	if _, err := o.update(ctx, taskID, func(t *domain.FetchTask) error {
		return t.Complete(path, ref.FileName, msgCompleted)
	}); err != nil {
		return fmt.Errorf("failed to complete task: %w", err)
	}
	return nil
}

// HandleJobError is the runner's error handler. Every job failure, including
// panics, timeouts and jobs dropped at shutdown, ends in a failed task.
func (o *Orchestrator) HandleJobError(job task.Job, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), failTimeout)
	defer cancel()

	o.logger.Error("fetch job failed",
		slog.String("task_id", job.Subject()),
		slog.String("job_kind", job.Kind()),
		slog.String("job_id", job.ID().String()),
		slog.String("error", redact.Error(err)))

	o.failTask(ctx, job.Subject(), failureMessage(err))
}

// failureMessage is the text pollers see for a failed job.
func failureMessage(err error) string {
	switch {
	case errors.Is(err, task.ErrRunnerStopped), errors.Is(err, context.Canceled):
		return msgShuttingDown
	case errors.Is(err, task.ErrJobTimeout), errors.Is(err, context.DeadlineExceeded):
		return msgTimedOut
	case errors.Is(err, task.ErrJobPanicked), errors.Is(err, domain.ErrStateCorruption):
		return msgInternal
	}
	return redact.Error(err)
}
