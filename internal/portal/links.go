package portal

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	mapset "github.com/deckarep/golang-set/v2"
)

// VacancyPrefix marks links to a vacancy's candidate listing.
const VacancyPrefix = "/vacancies/"

// Link collection strategies.
const (
	StrategySingle    = "single"
	StrategyPaginated = "paginated"
)

// CollectLinks reads the vacancy links reachable from startURL with the given strategy.
func CollectLinks(ctx context.Context, s Session, startURL, strategy string, logger *slog.Logger) (mapset.Set[string], error) {
	lc := &LinkCollector{StartURL: startURL, Paginate: strategy != StrategySingle, Logger: logger}
	return lc.Collect(ctx, s)
}

// LinkCollector discovers vacancy links starting from a listing page.
type LinkCollector struct {
	StartURL string
	// Paginate follows rel="next" links; otherwise only StartURL is read.
	Paginate bool
	Logger   *slog.Logger
}

// Collect returns the vacancy links visible to the session. A failed first
// page is an error; a failed later page ends pagination with what was found.
func (lc *LinkCollector) Collect(ctx context.Context, s Session) (mapset.Set[string], error) {
	logger := lc.Logger
	if logger == nil {
		logger = slog.Default()
	}

	links := mapset.NewThreadUnsafeSet[string]()
	visited := mapset.NewThreadUnsafeSet[string]()
	next := canonical(lc.StartURL)

	for next != "" {
		if visited.Contains(next) {
			logger.Warn("⚠️ Pagination loop detected, stopping", "url", next)
			break
		}
		visited.Add(next)
		logger.Debug("Loading vacancies page", "url", next)

		page, err := s.Get(ctx, next)
		if err != nil {
			if visited.Cardinality() == 1 {
				return nil, fmt.Errorf("get %s: %w", next, err)
			}
			logger.Warn("⚠️ Failed to load vacancies page", "url", next, "error", err)
			break
		}
		if !page.OK() {
			if visited.Cardinality() == 1 {
				return nil, fmt.Errorf("get %s: status %d", next, page.StatusCode)
			}
			logger.Warn("⚠️ Failed to load vacancies page", "url", next, "status", page.StatusCode)
			break
		}

		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", next, err)
		}
		for _, href := range VacancyLinks(doc) {
			links.Add(href)
		}

		next = ""
		if lc.Paginate {
			next = nextPage(doc, page.URL)
		}
	}

	return links, nil
}

// VacancyLinks returns hrefs on the page that point at vacancy listings.
func VacancyLinks(doc *goquery.Document) []string {
	var out []string
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if strings.HasPrefix(href, VacancyPrefix) {
			out = append(out, href)
		}
	})
	return out
}

// nextPage resolves the rel="next" link against the current page URL.
// rel is matched as a token, so rel="next nofollow" counts.
func nextPage(doc *goquery.Document, current string) string {
	href, ok := doc.Find(`a[rel~="next"]`).First().Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" {
		return ""
	}
	base, err := url.Parse(current)
	if err != nil {
		return canonical(href)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return canonical(base.ResolveReference(ref).String())
}

// canonical makes equal pages compare equal: an empty path becomes "/"
// and the fragment is dropped.
func canonical(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if u.Path == "" && u.Opaque == "" && u.Host != "" {
		u.Path = "/"
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

// Sorted returns the set's members in lexical order.
func Sorted(links mapset.Set[string]) []string {
	out := links.ToSlice()
	sort.Strings(out)
	return out
}
