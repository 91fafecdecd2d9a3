package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"hirefire-scraper/internal/browser"
	"hirefire-scraper/internal/config"
	"hirefire-scraper/internal/database"
	"hirefire-scraper/internal/dedup"
	"hirefire-scraper/internal/extract"
	"hirefire-scraper/internal/gate"
	"hirefire-scraper/internal/pipeline"
	"hirefire-scraper/internal/portal"
	"hirefire-scraper/internal/reporter"
	"hirefire-scraper/internal/telegram"
)

// App is a runner built from config plus the resources it holds open.
type App struct {
	Runner  *pipeline.Runner
	closers []func()
}

// Build connects everything the runner needs. Telegram and the session
// backend are required; the archive is dropped with a warning when the
// database cannot be reached.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{}

	window, err := gate.New(cfg.Timezone, cfg.WorkStartHour, cfg.WorkEndHour)
	if err != nil {
		return nil, err
	}

	api, err := telegram.NewBotAPI(cfg.TelegramToken, cfg.TelegramAPI)
	if err != nil {
		return nil, err
	}
	logger.Info("🤖 Telegram Bot initialized.", "destinations", len(cfg.Destinations))
	bot := telegram.NewBot(api, cfg.Destinations, telegram.Options{
		Delay:   cfg.SendDelay,
		Rate:    cfg.SendRate,
		Workers: cfg.SendWorkers,
	}, logger)

	opener, fetchWorkers, err := a.opener(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	runner := &pipeline.Runner{
		Window:       window,
		Accounts:     cfg.EnabledAccounts(),
		Opener:       opener,
		StartURL:     cfg.BaseURL,
		LinkStrategy: cfg.LinkStrategy,
		FetchWorkers: fetchWorkers,
		Extractor:    extract.New(extract.PhoneStrategy(cfg.PhoneStrategy), logger),
		Store:        dedup.NewStore(cfg.SeenFile),
		Notifier:     bot,
		RunLog:       reporter.NewRunLog(cfg.LogDir, logger),
		Logger:       logger,
	}

	if cfg.DatabaseURL != "" {
		repo, err := database.ConnectDB(ctx, cfg.DatabaseURL)
		if err == nil {
			err = repo.EnsureSchema(ctx)
			if err != nil {
				repo.Close()
			}
		}
		if err != nil {
			logger.Warn("⚠️ Candidate archive disabled", "error", err)
		} else {
			a.closers = append(a.closers, repo.Close)
			runner.Archive = repo
			archived, err := repo.CountCandidates(ctx)
			if err != nil {
				logger.Warn("⚠️ Failed to count archived candidates", "error", err)
			}
			logger.Info("🗄️ Candidate archive connected", "archived", archived)
		}
	}

	a.Runner = runner
	return a, nil
}

func (a *App) opener(ctx context.Context, cfg *config.Config, logger *slog.Logger) (portal.Opener, int, error) {
	switch cfg.SessionBackend {
	case config.BackendBrowser:
		pm, err := browser.NewPlaywright(ctx)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to init playwright: %w", err)
		}
		a.closers = append(a.closers, func() {
			if err := pm.Close(); err != nil {
				logger.Warn("⚠️ Failed to close browser", "error", err)
			}
		})
		shots := browser.NewScreenShotDebugger(filepath.Join(cfg.LogDir, "screenshots"), logger)
		opener, err := browser.NewOpener(pm, cfg.BaseURL, cfg.RequestTimeout, shots, logger)
		if err != nil {
			return nil, 0, err
		}
		logger.Info("✅ Browser initialized successfully!")
		// One page per account, so fetches are sequential.
		return opener, 1, nil
	default:
		client, err := portal.NewClient(cfg.BaseURL, cfg.RequestTimeout)
		if err != nil {
			return nil, 0, err
		}
		return client, cfg.FetchWorkers, nil
	}
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
