package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	goredis "github.com/go-redis/redis/v8"
	"github.com/phrazzld/patentgate/internal/config"
	"github.com/phrazzld/patentgate/internal/events"
	"github.com/phrazzld/patentgate/internal/fetch"
	"github.com/phrazzld/patentgate/internal/platform/artifacts"
	"github.com/phrazzld/patentgate/internal/platform/gemini"
	"github.com/phrazzld/patentgate/internal/platform/memory"
	"github.com/phrazzld/patentgate/internal/platform/patentsite"
	"github.com/phrazzld/patentgate/internal/platform/postgres"
	"github.com/phrazzld/patentgate/internal/platform/redis"
	"github.com/phrazzld/patentgate/internal/resource"
	"github.com/phrazzld/patentgate/internal/sharelink"
	"github.com/phrazzld/patentgate/internal/store"
	"github.com/phrazzld/patentgate/internal/task"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	// Optional external connections, closed on shutdown.
	db  *sql.DB
	rdb *goredis.Client

	files    *artifacts.LocalStore
	tasks    store.TaskStore
	sessions store.ChallengeRegistry
	catalog  store.ArtifactCatalog

	orchestrator *fetch.Orchestrator
	signer       *sharelink.Signer
	eventEmitter *events.InMemoryEventEmitter
	taskRunner   *task.Runner
}

// newApplication creates a new application instance with all dependencies
// initialized and the task runner started.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
	}

	var err error
	app.files, err = artifacts.NewLocalStore(cfg.Storage.Dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact directory: %w", err)
	}

	if err := app.setupBackend(ctx); err != nil {
		app.cleanup()
		return nil, err
	}

	if err := app.setupCatalog(ctx); err != nil {
		app.cleanup()
		return nil, err
	}

	app.signer, err = sharelink.NewSigner(cfg.Share, cfg.Server.PublicBaseURL)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to initialize share link signer: %w", err)
	}

	var solver resource.Solver
	if cfg.Solver.Enabled() {
		solver, err = gemini.NewCaptchaSolver(ctx, cfg.Solver, logger.With("component", "captcha_solver"))
		if err != nil {
			app.cleanup()
			return nil, fmt.Errorf("failed to initialize captcha solver: %w", err)
		}
		logger.Info("captcha solver initialized", "model", cfg.Solver.ModelName)
	}

	app.eventEmitter = events.NewInMemoryEventEmitter(logger)
	app.eventEmitter.RegisterHandler(events.NewCatalogRecorder(app.files, app.catalog, logger))

	app.taskRunner = task.NewRunner(task.RunnerConfig{
		WorkerCount: cfg.Task.WorkerCount,
		QueueSize:   cfg.Task.QueueSize,
		JobTimeout:  cfg.Task.JobTimeout(),
	}, logger)

	app.orchestrator, err = fetch.New(fetch.Dependencies{
		Tasks:    app.tasks,
		Sessions: app.sessions,
		Client:   patentsite.NewClient(cfg.Site, app.files, nil, logger),
		Solver:   solver,
		Files:    app.files,
		Catalog:  app.catalog,
		Runner:   app.taskRunner,
		Events:   app.eventEmitter,
	}, fetch.Config{
		WrongAnswerPolicy: fetch.WrongAnswerPolicy(cfg.Task.WrongAnswerPolicy),
		Retention:         cfg.Task.Retention(),
		ChallengeTTL:      cfg.Task.ChallengeTTL(),
	}, logger)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	app.taskRunner.SetErrorHandler(app.orchestrator.HandleJobError)
	app.taskRunner.Every("sweep", cfg.Task.SweepInterval(), func(ctx context.Context) {
		result := app.orchestrator.Sweep(ctx)
		if result.Evicted > 0 || result.Expired > 0 {
			logger.Info("sweep finished", "evicted", result.Evicted, "expired", result.Expired)
		}
	})
	app.taskRunner.Start()

	logger.Info("Application initialized successfully")
	return app, nil
}

// setupBackend chooses where task state and challenge sessions live.
func (app *application) setupBackend(ctx context.Context) error {
	cfg := app.config
	switch cfg.Backend.Kind {
	case config.BackendRedis:
		rdb, err := redis.NewClient(ctx, cfg.Redis, app.logger)
		if err != nil {
			return err
		}
		app.rdb = rdb
		app.tasks = redis.NewTaskStore(rdb, cfg.Redis.KeyPrefix, app.logger)
		app.sessions = redis.NewChallengeRegistry(rdb, cfg.Redis.KeyPrefix, cfg.Task.ChallengeTTL())
	default:
		app.tasks = memory.NewTaskStore(app.logger)
		app.sessions = memory.NewChallengeRegistry()
	}
	app.logger.Info("task backend ready", "kind", cfg.Backend.Kind)
	return nil
}

// setupCatalog uses Postgres when a database is configured and the artifact
// directory otherwise.
func (app *application) setupCatalog(ctx context.Context) error {
	if app.config.Database.URL == "" {
		app.catalog = artifacts.NewDirCatalog(app.files)
		return nil
	}

	db, err := postgres.Open(ctx, app.config.Database.URL, app.logger)
	if err != nil {
		return err
	}
	app.db = db

	if err := postgres.Migrate(db, "up", app.logger); err != nil {
		return fmt.Errorf("failed to migrate catalog: %w", err)
	}
	app.catalog = postgres.NewCatalogStore(db)
	return nil
}

// Run starts the application server, handling lifecycle and cleanup.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources. Stopping the
// runner first lets in-flight jobs record their failure before the stores go away.
func (app *application) cleanup() {
	if app.taskRunner != nil {
		app.taskRunner.Stop()
	}

	if app.rdb != nil {
		if err := app.rdb.Close(); err != nil {
			app.logger.Error("Error closing redis connection", "error", err)
		}
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
