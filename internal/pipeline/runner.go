// Gate on working hours
// Load seen ids, scrape every account, notify new candidates
// Archive, write the run log and persist seen ids

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"hirefire-scraper/internal/extract"
	"hirefire-scraper/internal/gate"
	"hirefire-scraper/internal/models"
	"hirefire-scraper/internal/portal"
	"hirefire-scraper/internal/telegram"

	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/sync/errgroup"
)

// SeenStore loads and saves the ids that were already notified.
type SeenStore interface {
	Load() (mapset.Set[string], error)
	Save(seen mapset.Set[string]) error
}

type Notifier interface {
	NotifyAll(ctx context.Context, candidates []models.Candidate) telegram.Result
}

// Archive keeps a copy of notified candidates.
type Archive interface {
	SaveCandidates(ctx context.Context, candidates []models.Candidate) (int, error)
}

type RunLog interface {
	Save(candidates []models.Candidate, startedAt time.Time) (string, error)
}

// Runner executes one scrape-and-diff pass. Archive and RunLog are optional.
type Runner struct {
	Window       gate.Window
	Accounts     []models.Account
	Opener       portal.Opener
	StartURL     string
	LinkStrategy string
	FetchWorkers int
	Extractor    *extract.Extractor
	Store        SeenStore
	Notifier     Notifier
	Archive      Archive
	RunLog       RunLog
	Now          func() time.Time
	Logger       *slog.Logger
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Run gates on the working window, scrapes every enabled account, notifies
// new candidates and persists the seen-set. Per-account and per-page
// failures are logged and skipped; seen-set load or save failures are returned.
func (r *Runner) Run(ctx context.Context) (models.Report, error) {
	log := r.logger()
	report := models.Report{Started: r.now()}

	if !r.Window.Allows(report.Started) {
		log.Info("⏰ Outside working hours, nothing to do", "window", r.Window.String())
		report.Skipped = true
		report.Finished = r.now()
		return report, nil
	}

	seen, err := r.Store.Load()
	if err != nil {
		return report, fmt.Errorf("load seen candidates: %w", err)
	}
	log.Debug("Loaded seen candidates", "count", seen.Cardinality())

	var fresh []models.Candidate
	for _, acc := range r.Accounts {
		if !acc.Enabled() {
			log.Debug("Skipping disabled account", "account", acc.Label)
			continue
		}
		report.Accounts++

		candidates, vacancies := r.scrapeAccount(ctx, acc, seen)
		report.Vacancies += vacancies
		fresh = append(fresh, candidates...)
	}
	report.New = len(fresh)
	log.Info("🔍 New candidates found", "count", len(fresh))

	if len(fresh) > 0 {
		res := r.Notifier.NotifyAll(ctx, fresh)
		report.Sent, report.Failed = res.Sent, res.Failed

		if r.Archive != nil {
			if n, err := r.Archive.SaveCandidates(ctx, fresh); err != nil {
				log.Error("❌ Failed to archive candidates", "error", err)
			} else {
				log.Info("🗄️ Candidates archived", "inserted", n)
			}
		}
	}

	if r.RunLog != nil {
		if _, err := r.RunLog.Save(fresh, report.Started); err != nil {
			log.Warn("⚠️ Failed to write run log", "error", err)
		}
	}

	if err := r.Store.Save(seen); err != nil {
		return report, fmt.Errorf("save seen candidates: %w", err)
	}
	log.Debug("Stored seen candidates", "count", seen.Cardinality())

	report.Finished = r.now()
	log.Info("🏁 Run finished",
		"accounts", report.Accounts,
		"vacancies", report.Vacancies,
		"new", report.New,
		"sent", report.Sent,
		"failed", report.Failed,
		"took", report.Finished.Sub(report.Started).Round(time.Millisecond))
	return report, nil
}

// scrapeAccount returns the account's unseen candidates and the number of
// vacancy pages read. Any failure here only affects this account.
func (r *Runner) scrapeAccount(ctx context.Context, acc models.Account, seen mapset.Set[string]) ([]models.Candidate, int) {
	log := r.logger().With("account", acc.Label)

	s, err := r.Opener.Open(ctx, acc)
	if err != nil {
		log.Warn("⚠️ Login failed, skipping account", "error", err)
		return nil, 0
	}
	defer s.Close()
	log.Info("🔐 Logged in")

	links, err := portal.CollectLinks(ctx, s, r.StartURL, r.LinkStrategy, log)
	if err != nil {
		log.Warn("⚠️ Could not collect vacancies, skipping account", "error", err)
		return nil, 0
	}
	sorted := portal.Sorted(links)
	log.Info("📋 Total vacancies found", "count", len(sorted))

	pages := r.fetchPages(ctx, s, sorted, log)

	var out []models.Candidate
	vacancies := 0
	for i, link := range sorted {
		page := pages[i]
		if page == nil {
			continue
		}
		doc, err := extract.Parse(page.Body)
		if err != nil {
			log.Warn("⚠️ Failed to parse vacancy page", "link", link, "error", err)
			continue
		}
		vacancies++

		name := extract.VacancyName(doc, link)
		candidates := r.Extractor.Candidates(doc, name, acc.Label, seen)
		if len(candidates) > 0 {
			log.Info("✨ New candidates in vacancy", "vacancy", name, "count", len(candidates))
		}
		out = append(out, candidates...)
	}
	return out, vacancies
}

// fetchPages loads every link with up to FetchWorkers requests in flight.
// The result is index-aligned with links; failed fetches are nil.
func (r *Runner) fetchPages(ctx context.Context, s portal.Session, links []string, log *slog.Logger) []*portal.Page {
	pages := make([]*portal.Page, len(links))

	workers := r.FetchWorkers
	if workers < 1 {
		workers = 1
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i, link := range links {
		g.Go(func() error {
			page, err := s.Get(ctx, link)
			if err != nil {
				log.Warn("⚠️ Failed to load vacancy", "link", link, "error", err)
				return nil
			}
			if !page.OK() {
				log.Warn("⚠️ Failed to load vacancy", "link", link, "status", page.StatusCode)
				return nil
			}
			pages[i] = page
			return nil
		})
	}
	_ = g.Wait()

	return pages
}
