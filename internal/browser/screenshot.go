package browser

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/playwright-community/playwright-go"
)

// ScreenShotDebugger saves full-page screenshots of failed logins.
type ScreenShotDebugger struct {
	outputDir string
	logger    *slog.Logger
}

func NewScreenShotDebugger(dir string, logger *slog.Logger) *ScreenShotDebugger {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScreenShotDebugger{outputDir: dir, logger: logger}
}

// Path is where a screenshot named name taken at t is written.
func (s *ScreenShotDebugger) Path(name string, t time.Time) string {
	return filepath.Join(s.outputDir, fmt.Sprintf("%s_%s.png", name, t.Format("2006-01-02_15-04-05")))
}

func (s *ScreenShotDebugger) CaptureAndLog(page playwright.Page, name, message string) error {
	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", s.outputDir, err)
	}
	path := s.Path(name, time.Now())
	s.logger.Info("📸 "+message, "path", path)

	_, err := page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	})
	if err != nil {
		s.logger.Warn("⚠️ Failed to capture screenshot", "error", err)
		return err
	}
	return nil
}
