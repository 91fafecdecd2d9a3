package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"hirefire-scraper/internal/app"
	"hirefire-scraper/internal/config"
	"hirefire-scraper/internal/gate"
	"hirefire-scraper/internal/logging"

	"github.com/gofrs/flock"
)

func main() {
	os.Exit(run())
}

func run() int {
	//load config
	cfg, err := config.Load()
	if err != nil {
		logging.New(os.Getenv("LOG_LEVEL")).Error("❌ Failed to load config", "error", err)
		return 1
	}
	logger := logging.New(cfg.LogLevel)
	cfg.LogWarnings(logger)
	logger.Info("🔧 Config loaded", "accounts", len(cfg.EnabledAccounts()), "backend", cfg.SessionBackend)

	//working hours first: outside them nothing is touched
	window, err := gate.New(cfg.Timezone, cfg.WorkStartHour, cfg.WorkEndHour)
	if err != nil {
		logger.Error("❌ Invalid working window", "error", err)
		return 1
	}
	if !window.Allows(time.Now()) {
		logger.Info("⏰ Outside working hours, nothing to do", "window", window.String())
		return 0
	}

	//one run at a time per seen file
	if dir := filepath.Dir(cfg.SeenFile); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Error("❌ Failed to create state directory", "dir", dir, "error", err)
			return 1
		}
	}
	lock := flock.New(cfg.SeenFile + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		logger.Error("❌ Failed to take run lock", "path", lock.Path(), "error", err)
		return 1
	}
	if !locked {
		logger.Info("ℹ️ Another run is in progress, exiting", "lock", lock.Path())
		return 0
	}
	defer lock.Unlock()

	//setup context with timeout = 10 mins
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	logger.Info("🚀 Starting HireFire scraper...")

	application, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("❌ Failed to start", "error", err)
		return 1
	}
	defer application.Close()

	report, err := application.Runner.Run(ctx)
	if err != nil {
		logger.Error("❌ Run failed", "error", err)
		return 1
	}
	if report.Skipped {
		return 0
	}

	logger.Info("🏁 Execution finished.", "new", report.New, "sent", report.Sent, "failed", report.Failed)
	return 0
}
