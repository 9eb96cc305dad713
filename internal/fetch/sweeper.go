package fetch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/phrazzld/patentgate/internal/domain"
)

// SweepResult counts what one sweep did.
type SweepResult struct {
	Evicted int
	Expired int
}

// Sweep evicts terminal tasks older than the retention window and fails
// tasks that have waited for an answer longer than the challenge TTL.
// Expired tasks stay visible for a full retention window. It runs
// periodically on the task runner.
func (o *Orchestrator) Sweep(ctx context.Context) SweepResult {
	var result SweepResult
	now := o.now()

	if o.cfg.Retention > 0 {
		n, err := o.tasks.DeleteTerminalBefore(ctx, now.Add(-o.cfg.Retention))
		if err != nil {
			o.logger.ErrorContext(ctx, "failed to evict finished tasks", slog.String("error", err.Error()))
		}
		result.Evicted = n
	}

	if o.cfg.ChallengeTTL > 0 {
		result.Expired = o.expireChallenges(ctx, now.Add(-o.cfg.ChallengeTTL))
	}

	if result.Evicted > 0 || result.Expired > 0 {
		o.logger.InfoContext(ctx, "task sweep finished",
			slog.Int("evicted", result.Evicted),
			slog.Int("expired", result.Expired))
	}
	return result
}

func (o *Orchestrator) expireChallenges(ctx context.Context, cutoff time.Time) int {
	tasks, err := o.tasks.List(ctx)
	if err != nil {
		o.logger.ErrorContext(ctx, "failed to list tasks for expiry", slog.String("error", err.Error()))
		return 0
	}

	expired := 0
	for _, t := range tasks {
		if !isStale(t, cutoff) {
			continue
		}
		// Re-checked inside the update: an answer may have claimed the task.
		_, err := o.update(ctx, t.ID, func(t *domain.FetchTask) error {
			if !isStale(t, cutoff) {
				return errSkip
			}
			return t.Fail(msgChallengeExpired)
		})
		switch {
		case err == nil:
			expired++
			if err := o.sessions.Delete(ctx, t.ID); err != nil {
				o.logger.ErrorContext(ctx, "failed to drop expired challenge session",
					slog.String("task_id", t.ID),
					slog.String("error", err.Error()))
			}
		case errors.Is(err, errSkip), errors.Is(err, domain.ErrNotFound):
		default:
			o.logger.ErrorContext(ctx, "failed to expire challenge",
				slog.String("task_id", t.ID),
				slog.String("error", err.Error()))
		}
	}
	return expired
}

// isStale reports whether t still waits on a challenge parked before cutoff.
func isStale(t *domain.FetchTask, cutoff time.Time) bool {
	return t.Status == domain.FetchStatusNeedsChallenge && t.UpdatedAt.Before(cutoff)
}
