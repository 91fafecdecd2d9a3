package extract

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"hirefire-scraper/internal/models"

	"github.com/PuerkitoBio/goquery"
	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/text/unicode/norm"
)

// PhoneStrategy selects how the phone number is located inside the .form-info block.
type PhoneStrategy string

const (
	// PhoneByPosition takes the second div verbatim.
	PhoneByPosition PhoneStrategy = "position"
	// PhoneDigits takes the first div whose text is only digits.
	PhoneDigits PhoneStrategy = "digits"
)

// Markup of a candidate listing page.
const (
	rowSelector  = `tr[data-controller="candidate-line"]`
	rowIDAttr    = "data-candidate"
	nameSelector = ".form-name"
	infoSelector = ".form-info"
)

// Extractor turns a vacancy page into candidate records.
type Extractor struct {
	Phone  PhoneStrategy
	Logger *slog.Logger
}

func New(phone PhoneStrategy, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{Phone: phone, Logger: logger}
}

// Parse builds a goquery document from raw page bytes.
func Parse(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// VacancyName is the first <h1> of the page, or fallback when there is none.
func VacancyName(doc *goquery.Document, fallback string) string {
	if name := CleanText(doc.Find("h1").First().Text()); name != "" {
		return name
	}
	return fallback
}

// Candidates returns one record per row whose id is not in seen, and adds
// each returned id to seen before moving on to the next row.
func (e *Extractor) Candidates(doc *goquery.Document, vacancy, account string, seen mapset.Set[string]) []models.Candidate {
	var out []models.Candidate

	doc.Find(rowSelector).Each(func(_ int, row *goquery.Selection) {
		id, _ := row.Attr(rowIDAttr)
		id = strings.TrimSpace(id)
		if id == "" || seen.Contains(id) {
			e.Logger.Debug("Skipping already seen candidate or missing id", "candidate", id, "vacancy", vacancy)
			return
		}

		c := models.Candidate{
			ID:               id,
			Account:          account,
			VacancyName:      vacancy,
			Name:             textOf(row.Find(nameSelector)),
			Phone:            Phone(row.Find(infoSelector).First(), e.Phone),
			CreatedAt:        textOf(row.Find(".divTableCellTime")),
			Age:              textOf(row.Find(".divTableCellAge")),
			Rank:             textOf(row.Find(".divTableCellRank")),
			CombatExperience: textOf(row.Find(".divTableCellCombatExperience")),
			AWOL:             textOf(row.Find(".divTableCellAbsentWithoutPermission")),
			MilitaryTraining: textOf(row.Find(".divTableCellMilitaryTraining")),
			Source:           textOf(row.Find(".divTableCellSourse")),
		}

		seen.Add(id)
		out = append(out, c)
	})

	return out
}

// Phone reads the phone number from a .form-info block. This is the only place
// that knows which div holds it.
func Phone(info *goquery.Selection, strategy PhoneStrategy) *string {
	divs := info.Find("div")

	switch strategy {
	case PhoneByPosition:
		if divs.Length() > 1 {
			return textOf(divs.Eq(1))
		}
		return nil
	default:
		var phone *string
		divs.EachWithBreak(func(_ int, d *goquery.Selection) bool {
			t := CleanText(d.Text())
			if isDigits(t) {
				phone = &t
				return false
			}
			return true
		})
		return phone
	}
}

// CleanText collapses whitespace (including NBSP) and normalizes to NFC.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.Join(strings.Fields(s), " ")
	return norm.NFC.String(s)
}

func textOf(sel *goquery.Selection) *string {
	if sel.Length() == 0 {
		return nil
	}
	t := CleanText(sel.First().Text())
	return &t
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
