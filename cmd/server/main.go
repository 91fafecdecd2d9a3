package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hirefire-scraper/internal/app"
	"hirefire-scraper/internal/config"
	"hirefire-scraper/internal/logging"
	"hirefire-scraper/internal/server"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		logging.New(os.Getenv("LOG_LEVEL")).Error("❌ Failed to load config", "error", err)
		return 1
	}
	logger := logging.New(cfg.LogLevel)
	cfg.LogWarnings(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("❌ Failed to start", "error", err)
		return 1
	}
	defer application.Close()

	srv := server.New(application.Runner, cfg.RunToken, 10*time.Minute, logger)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("Server listening", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Failed to start server", "error", err)
		return 1
	}
	srv.Wait()
	return 0
}
