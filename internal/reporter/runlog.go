package reporter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"hirefire-scraper/internal/models"
)

// RunLog writes each run's new candidates to a timestamped JSON file.
type RunLog struct {
	dir    string
	logger *slog.Logger
}

func NewRunLog(dir string, logger *slog.Logger) *RunLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunLog{dir: dir, logger: logger}
}

// FileName is the run log name for a run started at t.
func FileName(t time.Time) string {
	return fmt.Sprintf("candidates-%s.json", t.Format("2006-01-02_15-04-05"))
}

// Save writes candidates to dir/candidates-YYYY-MM-DD_HH-MM-SS.json and
// returns the path. Nothing is written for an empty list.
func (r *RunLog) Save(candidates []models.Candidate, startedAt time.Time) (string, error) {
	if len(candidates) == 0 {
		r.logger.Info("ℹ️ No candidates to save.")
		return "", nil
	}

	//create logs directory if not exists
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", r.dir, err)
	}

	filePath := filepath.Join(r.dir, FileName(startedAt))
	data, err := json.MarshalIndent(candidates, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal candidates: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", filePath, err)
	}

	r.logger.Info("📁 Results saved", "path", filePath, "count", len(candidates))
	return filePath, nil
}
