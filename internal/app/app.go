package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"dirwatch/internal/config"
	"dirwatch/internal/log"
	"dirwatch/internal/scanner"
	"dirwatch/internal/storage/sqlite"
	"dirwatch/internal/telemetry"
	"dirwatch/internal/tracker"
)

// App ties together configuration, the snapshot store and the tracker for a
// single invocation. It owns the store connection until Close.
type App struct {
	cfg      config.Config
	store    *sqlite.Store
	tracker  *tracker.Tracker
	logger   *slog.Logger
	runID    string
	shutdown func(context.Context) error
}

// New constructs an App using the provided, already normalized configuration.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	runID := uuid.NewString()
	logger := log.With("run_id", runID)

	shutdown, err := telemetry.Init(ctx, telemetry.Config{UseStdout: cfg.Trace})
	if err != nil {
		return nil, fmt.Errorf("initialize tracing: %w", err)
	}

	storePath := sqlite.PathFor(cfg.Dir, cfg.StoreName)
	store, err := sqlite.Open(ctx, storePath)
	if err != nil {
		_ = shutdown(ctx)
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}
	logger.Info("snapshot store opened", "path", storePath)

	sc := scanner.New(scanner.Config{
		Root:        cfg.Dir,
		ExcludeName: cfg.StoreName,
		Logger:      logger.With("component", "scanner"),
	})

	return &App{
		cfg:      cfg,
		store:    store,
		tracker:  tracker.New(store, sc, logger.With("component", "tracker")),
		logger:   logger,
		runID:    runID,
		shutdown: shutdown,
	}, nil
}

// Run performs one scan-and-compare cycle.
func (a *App) Run(ctx context.Context) (tracker.Report, error) {
	a.logger.Info("tracking directory", "dir", a.cfg.Dir)
	report, err := a.tracker.Run(ctx)
	if err != nil {
		return tracker.Report{}, fmt.Errorf("track %s: %w", a.cfg.Dir, err)
	}
	return report, nil
}

// RunID identifies this invocation in logs and traces.
func (a *App) RunID() string {
	return a.runID
}

// Close releases the store and flushes pending spans.
func (a *App) Close() error {
	var errs []error
	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close snapshot store: %w", err))
	}
	if a.shutdown != nil {
		if err := a.shutdown(context.Background()); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracing: %w", err))
		}
	}
	return errors.Join(errs...)
}
