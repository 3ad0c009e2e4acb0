package main

import (
	"context"
	"flag"
	"os"

	"github.com/joho/godotenv"

	"PopWatcher/internal/app"
	"PopWatcher/internal/config"
	"PopWatcher/internal/logging"
)

func main() {
	_ = godotenv.Load()

	dryRun := flag.Bool("dry-run", false, "run the full pipeline without publishing or ledger writes")
	once := flag.Bool("once", false, "run a single cycle and exit")
	flag.Parse()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	application, err := app.New(cfg, logger, app.Options{DryRun: *dryRun, Once: *once})
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}

	if err := application.Run(context.Background()); err != nil {
		logger.Error("application stopped", "error", err)
		os.Exit(1)
	}
}
