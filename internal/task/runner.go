package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/phrazzld/patentgate/internal/platform/logger"
)

// Errors passed to the error handler.
var (
	ErrJobPanicked   = errors.New("job panicked")
	ErrJobTimeout    = errors.New("job timed out")
	ErrRunnerStopped = errors.New("runner stopped before job ran")
)

// RunnerConfig holds configuration for the runner
type RunnerConfig struct {
	// WorkerCount determines how many concurrent workers process jobs
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory job queue
	QueueSize int

	// JobTimeout bounds each job's execution. Zero disables the timeout.
	JobTimeout time.Duration
}

// DefaultRunnerConfig returns a RunnerConfig with reasonable defaults
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		WorkerCount: 8,
		QueueSize:   100,
		JobTimeout:  3 * time.Minute,
	}
}

// ErrorHandler receives every job failure, including panics, timeouts and
// jobs dropped at shutdown.
type ErrorHandler func(job Job, err error)

// Runner manages background job processing
type Runner struct {
	queue      *Queue
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	config     RunnerConfig
	logger     *slog.Logger
	errHandler ErrorHandler
	startOnce  sync.Once
	stopOnce   sync.Once
}

// NewRunner creates a Runner. Call Start to launch the workers.
func NewRunner(config RunnerConfig, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	if config.WorkerCount <= 0 {
		log.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", 1)
		config.WorkerCount = 1
	}
	log = log.With(slog.String("component", "task_runner"))

	ctx, cancel := context.WithCancel(context.Background())

	return &Runner{
		queue:      NewQueue(config.QueueSize, log),
		ctx:        ctx,
		cancelFunc: cancel,
		config:     config,
		logger:     log,
		errHandler: func(job Job, err error) {
			log.Error("job execution failed",
				"job_id", job.ID(),
				"job_kind", job.Kind(),
				"subject", job.Subject(),
				"error", err)
		},
	}
}

// SetErrorHandler replaces the default logging error handler.
// It must be called before Start.
func (r *Runner) SetErrorHandler(handler ErrorHandler) {
	r.errHandler = handler
}

// Submit queues job without blocking. It fails with ErrQueueFull or
// ErrQueueClosed; the job is then not run and the handler is not called.
func (r *Runner) Submit(job Job) error {
	return r.queue.Enqueue(job)
}

// Start launches the worker goroutines.
func (r *Runner) Start() {
	r.startOnce.Do(func() {
		for i := 0; i < r.config.WorkerCount; i++ {
			r.wg.Add(1)
			go r.worker(i)
		}
		r.logger.Info("task runner started",
			"worker_count", r.config.WorkerCount,
			"queue_size", cap(r.queue.jobs),
			"job_timeout", r.config.JobTimeout.String())
	})
}

// Every runs fn on a ticker until the runner stops.
func (r *Runner) Every(name string, interval time.Duration, fn func(ctx context.Context)) {
	if interval <= 0 {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-r.ctx.Done():
				return
			case <-ticker.C:
				func() {
					defer func() {
						if p := recover(); p != nil {
							r.logger.Error("periodic job panicked",
								"name", name,
								"panic", fmt.Sprint(p))
						}
					}()
					fn(r.ctx)
				}()
			}
		}
	}()
}

// Stop cancels running jobs, fails queued ones and waits for all goroutines.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		r.cancelFunc()
		r.queue.Close()
		r.wg.Wait()
		// Jobs queued but never picked up, e.g. when Start was not called.
		r.drain()
		r.logger.Info("task runner stopped")
	})
}

func (r *Runner) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-r.ctx.Done():
			r.drain()
			r.logger.Debug("stopping worker", "worker_id", id)
			return

		case job, ok := <-r.queue.Channel():
			if !ok {
				r.logger.Debug("job channel closed, stopping worker", "worker_id", id)
				return
			}
			r.process(job, id)
		}
	}
}

// drain hands every queued job to the error handler without running it.
func (r *Runner) drain() {
	for {
		select {
		case job, ok := <-r.queue.Channel():
			if !ok {
				return
			}
			r.errHandler(job, ErrRunnerStopped)
		default:
			return
		}
	}
}

func (r *Runner) process(job Job, workerID int) {
	jobLogger := r.logger.With(
		"job_id", job.ID(),
		"job_kind", job.Kind(),
		"subject", job.Subject(),
		"worker_id", workerID,
	)

	ctx, cancel := r.jobContext()
	defer cancel()
	ctx = logger.WithLogger(ctx, jobLogger)

	start := time.Now()
	jobLogger.Debug("processing job")

	if err := r.execute(ctx, job); err != nil {
		jobLogger.Error("job failed",
			"error", err,
			"duration", time.Since(start).String())
		r.errHandler(job, err)
		return
	}
	jobLogger.Info("job finished", "duration", time.Since(start).String())
}

func (r *Runner) jobContext() (context.Context, context.CancelFunc) {
	if r.config.JobTimeout > 0 {
		return context.WithTimeout(r.ctx, r.config.JobTimeout)
	}
	return context.WithCancel(r.ctx)
}

// execute runs the job, turning a panic into ErrJobPanicked.
func (r *Runner) execute(ctx context.Context, job Job) (err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("job panicked",
				"job_id", job.ID(),
				"panic", fmt.Sprint(p),
				"stack", string(debug.Stack()))
			err = fmt.Errorf("%w: %v", ErrJobPanicked, p)
		}
	}()

	err = job.Execute(ctx)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w after %s: %w", ErrJobTimeout, r.config.JobTimeout, err)
	}
	return err
}
