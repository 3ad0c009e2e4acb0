package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"PopWatcher/internal/catalog"
	"PopWatcher/internal/config"
	"PopWatcher/internal/infrastructure/bluesky"
	"PopWatcher/internal/infrastructure/funko"
	"PopWatcher/internal/infrastructure/images"
	"PopWatcher/internal/infrastructure/scheduler"
	"PopWatcher/internal/infrastructure/storage"
	"PopWatcher/internal/logging"
	"PopWatcher/internal/normalize"
	"PopWatcher/internal/usecase"
)

const (
	startupTimeout = 10 * time.Second
	// stopGrace bounds how long shutdown waits for the in-flight cycle.
	stopGrace = 5 * time.Minute
)

// Options carries command-line overrides.
type Options struct {
	DryRun bool
	Once   bool
}

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	db        *sql.DB
	ledger    *storage.PostgresLedger
	pipeline  *usecase.Pipeline
	scheduler *usecase.Scheduler
	quit      chan struct{}
	once      bool
}

// New builds a runnable application instance. The ledger connection is
// opened here but only verified in Run.
func New(cfg config.Config, baseLogger *slog.Logger, opts Options) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	db, err := storage.Open(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open ledger store: %w", err)
	}
	ledger := storage.NewPostgresLedger(db)

	registry := catalog.NewRegistry()
	registry.Register(funko.NewScraper(nil, cfg.Source.BaseURL))

	source, err := registry.Resolve(cfg.Source.Scanner)
	if err != nil {
		return nil, fmt.Errorf("resolve catalog source: %w", err)
	}

	normalizer := normalize.New(normalize.Config{
		Region:   cfg.Source.Region,
		Fandoms:  cfg.Filter.Fandoms,
		DenyList: cfg.Filter.DenyList,
	})

	quit := make(chan struct{})

	announcer := usecase.NewAnnouncer(usecase.AnnouncerDeps{
		Images:    images.NewFetcher(nil),
		Publisher: bluesky.NewPublisher(cfg.Bluesky),
		Ledger:    ledger,
		Logger:    baseLogger.With("component", "announcer"),
		DryRun:    opts.DryRun || cfg.Posting.DryRun,
		PostDelay: cfg.Posting.PostDelay(),
		Quit:      quit,
	})

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Catalog:          source,
		Normalizer:       normalizer,
		Ledger:           ledger,
		Announcer:        announcer,
		Logger:           baseLogger.With("component", "pipeline"),
		Pages:            cfg.Source.Pages,
		Region:           cfg.Source.Region,
		FetchConcurrency: cfg.Source.FetchConcurrency,
		MaxPosts:         cfg.Posting.MaxPostsPerCheck,
	})

	driver := scheduler.New(cfg.Scheduler.Interval())

	return &Application{
		cfg:       cfg,
		logger:    baseLogger.With("component", "app"),
		db:        db,
		ledger:    ledger,
		pipeline:  pipeline,
		scheduler: usecase.NewScheduler(driver, pipeline),
		quit:      quit,
		once:      opts.Once,
	}, nil
}

// Run verifies the ledger, then drives recurring cycles until a shutdown
// signal arrives. A ledger unreachable at startup is fatal: running without
// durable dedup state risks unbounded duplicate announcements.
func (a *Application) Run(ctx context.Context) error {
	defer a.db.Close()

	startupCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	if err := a.ledger.Ping(startupCtx); err != nil {
		return fmt.Errorf("ledger store unreachable: %w", err)
	}
	if err := a.ledger.EnsureSchema(startupCtx); err != nil {
		return fmt.Errorf("prepare ledger store: %w", err)
	}

	a.logger.Info("starting",
		"interval", a.cfg.Scheduler.Interval().String(),
		"region", a.cfg.Source.Region,
		"pages", a.cfg.Source.Pages,
		"max_posts_per_check", a.cfg.Posting.MaxPostsPerCheck,
		"dry_run", a.cfg.Posting.DryRun,
		"once", a.once,
	)

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	if a.once {
		a.pipeline.RunCycle(runCtx, time.Now())
		return nil
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if err := a.scheduler.Start(runCtx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	select {
	case sig := <-sigCh:
		a.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
	}

	close(a.quit)

	stopCtx, cancelStop := context.WithTimeout(context.Background(), stopGrace)
	defer cancelStop()
	go func() {
		// A second signal aborts the in-flight cycle instead of waiting
		// for it.
		select {
		case <-sigCh:
			a.logger.Warn("second signal received, aborting in-flight cycle")
			cancelRun()
		case <-stopCtx.Done():
		}
	}()

	if err := a.scheduler.Stop(stopCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	a.logger.Info("stopped gracefully")
	return nil
}
