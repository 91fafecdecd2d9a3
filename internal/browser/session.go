package browser

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"hirefire-scraper/internal/models"
	"hirefire-scraper/internal/portal"

	"github.com/playwright-community/playwright-go"
)

// Opener logs accounts in through a real browser. It satisfies portal.Opener.
type Opener struct {
	pm      *PlaywrightManager
	base    *url.URL
	timeout time.Duration
	shots   *ScreenShotDebugger
	logger  *slog.Logger
}

func NewOpener(pm *PlaywrightManager, baseURL string, timeout time.Duration, shots *ScreenShotDebugger, logger *slog.Logger) (*Opener, error) {
	base, err := portal.ParseBase(baseURL)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Opener{pm: pm, base: base, timeout: timeout, shots: shots, logger: logger}, nil
}

// Open fills and submits the login form in a fresh browser context.
func (o *Opener) Open(ctx context.Context, acc models.Account) (portal.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bctx, err := o.pm.NewContext()
	if err != nil {
		return nil, fmt.Errorf("create browser context: %w", err)
	}
	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("create page: %w", err)
	}
	page.SetDefaultTimeout(float64(o.timeout.Milliseconds()))
	s := &session{bctx: bctx, page: page, base: o.base}

	if err := o.login(page, acc); err != nil {
		if o.shots != nil {
			_ = o.shots.CaptureAndLog(page, "login_"+slug(acc.Email), "Login failed for "+acc.Label)
		}
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (o *Opener) login(page playwright.Page, acc models.Account) error {
	if _, err := page.Goto(portal.Resolve(o.base, portal.LoginPath), playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return fmt.Errorf("get login page: %w", err)
	}

	if n, err := page.Locator(portal.TokenField).Count(); err != nil || n == 0 {
		return portal.ErrTokenMissing
	}
	if err := page.Locator(portal.EmailField).First().Fill(acc.Email); err != nil {
		return fmt.Errorf("fill email: %w", err)
	}
	if err := page.Locator(portal.PasswordField).First().Fill(acc.Password); err != nil {
		return fmt.Errorf("fill password: %w", err)
	}
	if err := page.Locator(portal.SubmitButton).First().Click(); err != nil {
		return fmt.Errorf("submit login: %w", err)
	}
	if err := page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State: playwright.LoadStateNetworkidle,
	}); err != nil {
		o.logger.Warn("⚠️ Page did not settle after login", "account", acc.Label, "error", err)
	}

	content, err := page.Content()
	if err != nil {
		return fmt.Errorf("read page after login: %w", err)
	}
	if portal.LooksLikeLoginForm([]byte(content)) {
		return portal.ErrNotAuthenticated
	}
	return nil
}

type session struct {
	bctx playwright.BrowserContext
	page playwright.Page
	base *url.URL
}

func (s *session) Get(ctx context.Context, ref string) (*portal.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp, err := s.page.Goto(portal.Resolve(s.base, ref), playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return nil, err
	}
	status := 200
	if resp != nil {
		status = resp.Status()
	}

	content, err := s.page.Content()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ref, err)
	}
	return &portal.Page{URL: s.page.URL(), StatusCode: status, Body: []byte(content)}, nil
}

func (s *session) Close() error {
	return s.bctx.Close()
}

// slug keeps ASCII letters and digits of s for use in file names.
func slug(s string) string {
	out := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, s)
	if out == "" {
		return "account"
	}
	return out
}
