// Authenticate against the portal
// Fetch pages with the authenticated session

package portal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"hirefire-scraper/internal/models"

	"github.com/PuerkitoBio/goquery"
)

// Login form markup.
const (
	LoginPath     = "/login"
	TokenField    = `input[name="authenticity_token"]`
	EmailField    = `input[name="user[email]"]`
	PasswordField = `input[name="user[password]"]`
	SubmitButton  = `input[name="commit"], button[type="submit"]`
)

const (
	UserAgent       = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	maxPageBodySize = 10 << 20
)

var (
	// ErrTokenMissing means the login page had no anti-forgery token field.
	ErrTokenMissing = errors.New("login page has no authenticity_token")
	// ErrNotAuthenticated means the portal answered the login with the login form again.
	ErrNotAuthenticated = errors.New("login rejected: still on login form")
)

// Page is one fetched document.
type Page struct {
	URL        string
	StatusCode int
	Body       []byte
}

// OK reports a 2xx response.
func (p *Page) OK() bool {
	return p.StatusCode >= 200 && p.StatusCode < 300
}

// Session is an authenticated view of the portal. ref may be absolute or
// relative to the portal base URL.
type Session interface {
	Get(ctx context.Context, ref string) (*Page, error)
	Close() error
}

// Opener logs an account in and returns its session.
type Opener interface {
	Open(ctx context.Context, acc models.Account) (Session, error)
}

// Client opens cookie-backed HTTP sessions. Each request has its own timeout.
type Client struct {
	base    *url.URL
	timeout time.Duration
}

func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := ParseBase(baseURL)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{base: u, timeout: timeout}, nil
}

// ParseBase validates the portal base URL.
func ParseBase(baseURL string) (*url.URL, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", baseURL)
	}
	return u, nil
}

// Open fetches the login form, posts the credentials with its token and
// checks that the portal did not answer with the login form again.
func (c *Client) Open(ctx context.Context, acc models.Account) (Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	s := &httpSession{
		base: c.base,
		hc:   &http.Client{Jar: jar, Timeout: c.timeout},
	}

	loginURL := s.resolve(LoginPath)
	page, err := s.Get(ctx, loginURL)
	if err != nil {
		return nil, fmt.Errorf("get login page: %w", err)
	}
	token, err := LoginToken(page.Body)
	if err != nil {
		return nil, err
	}

	form := url.Values{
		"utf8":               {"✓"},
		"authenticity_token": {token},
		"user[email]":        {acc.Email},
		"user[password]":     {acc.Password},
		"commit":             {"Увійти"},
	}
	resp, err := s.post(ctx, loginURL, form)
	if err != nil {
		return nil, fmt.Errorf("submit login: %w", err)
	}
	if LooksLikeLoginForm(resp.Body) {
		return nil, ErrNotAuthenticated
	}
	return s, nil
}

// LoginToken reads the authenticity_token value from a login page.
func LoginToken(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse login page: %w", err)
	}
	token, ok := doc.Find(TokenField).First().Attr("value")
	if !ok || token == "" {
		return "", ErrTokenMissing
	}
	return token, nil
}

// LooksLikeLoginForm reports whether a page still asks for a password.
func LooksLikeLoginForm(body []byte) bool {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return false
	}
	return doc.Find(PasswordField).Length() > 0
}

type httpSession struct {
	base *url.URL
	hc   *http.Client
}

func (s *httpSession) resolve(ref string) string {
	return Resolve(s.base, ref)
}

// Resolve turns ref into an absolute URL against base.
func Resolve(base *url.URL, ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return base.String() + ref
	}
	return base.ResolveReference(u).String()
}

func (s *httpSession) Get(ctx context.Context, ref string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.resolve(ref), nil)
	if err != nil {
		return nil, err
	}
	return s.do(req)
}

func (s *httpSession) post(ctx context.Context, target string, form url.Values) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.do(req)
}

func (s *httpSession) do(req *http.Request) (*Page, error) {
	req.Header.Set("User-Agent", UserAgent)

	res, err := s.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxPageBodySize))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", req.URL, err)
	}
	return &Page{URL: res.Request.URL.String(), StatusCode: res.StatusCode, Body: body}, nil
}

func (s *httpSession) Close() error {
	s.hc.CloseIdleConnections()
	return nil
}
