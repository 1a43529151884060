package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/quickserve/dispatch-api/internal/config"
	"github.com/quickserve/dispatch-api/internal/events"
	"github.com/quickserve/dispatch-api/internal/platform/filestore"
	"github.com/quickserve/dispatch-api/internal/platform/gemini"
	"github.com/quickserve/dispatch-api/internal/platform/opencage"
	"github.com/quickserve/dispatch-api/internal/platform/postgres"
	"github.com/quickserve/dispatch-api/internal/service"
	"github.com/quickserve/dispatch-api/internal/service/auth"
	"github.com/quickserve/dispatch-api/internal/store"
	"github.com/quickserve/dispatch-api/internal/task"
)

// services groups the dispatch services the handlers depend on.
type services struct {
	requests service.RequestService
	presence service.PresenceService
	matching service.MatchingService
	admin    service.AdminService
}

// application holds the long-lived dependencies of the server process.
type application struct {
	config     *config.Config
	logger     *slog.Logger
	db         *sql.DB
	store      store.TxRunner
	jwtService auth.JWTService
	emitter    *events.InMemoryEventEmitter
	services   services
	taskRunner *task.TaskRunner
}

// newApplication wires the services on top of db. The expiry task is only
// created when pending expiry is enabled in the matching config.
func newApplication(cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT service: %w", err)
	}

	emitter := events.NewInMemoryEventEmitter(logger)
	emitter.RegisterHandler(events.NewLogHandler(logger))

	txStore := postgres.NewStore(db, logger)
	deps := service.Deps{
		Store:    txStore,
		Matching: cfg.Matching,
		Events:   emitter,
		Logger:   logger,
	}
	if err := addCollaborators(&deps, cfg, logger); err != nil {
		return nil, err
	}

	app := &application{
		config:     cfg,
		logger:     logger,
		db:         db,
		store:      txStore,
		jwtService: jwtService,
		emitter:    emitter,
	}
	if app.services, err = newServices(deps); err != nil {
		return nil, err
	}
	if app.taskRunner, err = app.setupTaskRunner(); err != nil {
		return nil, err
	}
	return app, nil
}

// addCollaborators sets the optional geocoder, document storage and image
// analyzer when they are configured.
func addCollaborators(deps *service.Deps, cfg *config.Config, logger *slog.Logger) error {
	if cfg.Geocoding.APIKey != "" {
		geocoder, err := opencage.NewGeocoder(cfg.Geocoding, logger)
		if err != nil {
			return fmt.Errorf("failed to create geocoder: %w", err)
		}
		deps.Geocoder = geocoder
	}
	if cfg.Documents.Dir != "" {
		documents, err := filestore.NewStore(cfg.Documents, logger)
		if err != nil {
			return fmt.Errorf("failed to create document store: %w", err)
		}
		deps.Documents = documents
	}
	if cfg.AI.APIKey != "" {
		analyzer, err := gemini.NewAnalyzer(context.Background(), cfg.AI, logger)
		if err != nil {
			return fmt.Errorf("failed to create image analyzer: %w", err)
		}
		deps.Analyzer = analyzer
	}
	return nil
}

func newServices(deps service.Deps) (services, error) {
	var (
		s   services
		err error
	)
	if s.requests, err = service.NewRequestService(deps); err != nil {
		return s, fmt.Errorf("failed to create request service: %w", err)
	}
	if s.presence, err = service.NewPresenceService(deps); err != nil {
		return s, fmt.Errorf("failed to create presence service: %w", err)
	}
	if s.matching, err = service.NewMatchingService(deps); err != nil {
		return s, fmt.Errorf("failed to create matching service: %w", err)
	}
	if s.admin, err = service.NewAdminService(deps); err != nil {
		return s, fmt.Errorf("failed to create admin service: %w", err)
	}
	return s, nil
}

// setupTaskRunner returns nil when pending expiry is disabled.
func (app *application) setupTaskRunner() (*task.TaskRunner, error) {
	m := app.config.Matching
	if m.PendingExpiryMinutes <= 0 {
		return nil, nil
	}

	runner, err := task.NewTaskRunner(task.TaskRunnerConfig{
		Interval: time.Duration(m.ExpirySweepIntervalSeconds) * time.Second,
	}, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create task runner: %w", err)
	}

	expiry, err := task.NewExpiryTask(
		app.services.requests,
		time.Duration(m.PendingExpiryMinutes)*time.Minute,
		task.DefaultExpiryBatchSize,
		app.logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create expiry task: %w", err)
	}
	if err := runner.Register(expiry); err != nil {
		return nil, fmt.Errorf("failed to register expiry task: %w", err)
	}
	return runner, nil
}

// Run starts the background tasks and serves HTTP until ctx ends or the
// process is signalled.
func (app *application) Run(ctx context.Context) error {
	if app.taskRunner != nil {
		if err := app.taskRunner.Start(); err != nil {
			app.cleanup()
			return fmt.Errorf("failed to start task runner: %w", err)
		}
	}
	return app.startHTTPServer(ctx, app.setupRouter())
}

// cleanup stops the task runner and closes the database.
func (app *application) cleanup() {
	if app.taskRunner != nil {
		app.taskRunner.Stop()
		app.taskRunner = nil
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("failed to close database connection", "error", err)
		}
		app.db = nil
	}
}
