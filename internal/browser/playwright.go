package browser

import (
	"context"
	"fmt"

	"hirefire-scraper/internal/portal"

	"github.com/playwright-community/playwright-go"
)

// PlaywrightManager owns the Playwright driver and one headless Chromium.
type PlaywrightManager struct {
	pw      *playwright.Playwright
	browser playwright.Browser
}

func NewPlaywright(ctx context.Context) (*PlaywrightManager, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("could not start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
		Args:     []string{"--no-sandbox", "--disable-dev-shm-usage"},
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("could not launch chromium: %w", err)
	}

	return &PlaywrightManager{pw: pw, browser: browser}, nil
}

// NewContext opens an isolated browser context, so every account gets its
// own cookies.
func (pm *PlaywrightManager) NewContext() (playwright.BrowserContext, error) {
	return pm.browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: playwright.String(portal.UserAgent),
		Locale:    playwright.String("uk-UA"),
	})
}

func (pm *PlaywrightManager) Close() error {
	if pm.browser != nil {
		if err := pm.browser.Close(); err != nil {
			return fmt.Errorf("close browser: %w", err)
		}
	}
	if pm.pw != nil {
		if err := pm.pw.Stop(); err != nil {
			return fmt.Errorf("stop playwright: %w", err)
		}
	}
	return nil
}
