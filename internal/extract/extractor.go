// Package extract turns raw listing pages into tender records.
//
// Extraction is pure: it performs no I/O and keeps no state between calls, so
// identical input always yields an identical record sequence.
package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"tenderscan/internal/tender"

	"github.com/PuerkitoBio/goquery"
)

// DefaultCompany is used when a row names no procuring entity.
const DefaultCompany = "Не указана"

const (
	titleSelector       = "a.search-results-title"
	descriptionSelector = "div.search-results-title-desc"
	emptyMarkerSelector = ".search-results-empty, .no-results, .nothing-found"
	minCells            = 4
)

// Extractor maps a listing page onto tender records.
type Extractor struct {
	origin *url.URL
}

// New returns an Extractor resolving relative tender links against origin
// (e.g. "https://www.b2b-center.ru").
func New(origin string) (*Extractor, error) {
	u, err := url.Parse(strings.TrimSpace(origin))
	if err != nil {
		return nil, fmt.Errorf("invalid origin %q: %w", origin, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid origin %q: scheme and host are required", origin)
	}
	return &Extractor{origin: &url.URL{Scheme: u.Scheme, Host: u.Host}}, nil
}

// Extract parses raw page content into records in document order.
//
// A page with listing scaffolding but no tender rows is a valid empty result.
// Content without any scaffolding yields tender.ErrMalformedPage.
func (e *Extractor) Extract(raw []byte) ([]tender.Record, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: empty body", tender.ErrMalformedPage)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", tender.ErrMalformedPage, err)
	}

	if doc.Find("table").Length() == 0 {
		if doc.Find(emptyMarkerSelector).Length() > 0 {
			return []tender.Record{}, nil
		}
		return nil, fmt.Errorf("%w: no listing table", tender.ErrMalformedPage)
	}

	records := make([]tender.Record, 0)
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		if r, ok := e.parseRow(row); ok {
			records = append(records, r)
		}
	})
	return records, nil
}

func (e *Extractor) parseRow(row *goquery.Selection) (tender.Record, bool) {
	cells := row.ChildrenFiltered("td")
	if cells.Length() < minCells {
		return tender.Record{}, false
	}

	first := cells.Eq(0)
	titleElem := first.Find(titleSelector).First()
	if titleElem.Length() == 0 {
		return tender.Record{}, false
	}

	r := tender.Record{
		Title:        clean(titleElem.Text()),
		Company:      DefaultCompany,
		DateCreated:  clean(cells.Eq(2).Text()),
		DateDeadline: clean(cells.Eq(3).Text()),
	}

	if href, ok := titleElem.Attr("href"); ok && strings.TrimSpace(href) != "" {
		r.URL = e.absolute(href)
	}
	if small := first.Find("small").First(); small.Length() > 0 {
		r.Category = optional(small.Text())
	}
	if desc := first.Find(descriptionSelector).First(); desc.Length() > 0 {
		r.Description = optional(desc.Text())
	}
	if company := cells.Eq(1).Find("a").First(); company.Length() > 0 {
		if name := clean(company.Text()); name != "" {
			r.Company = name
		}
	}
	return r, true
}

func (e *Extractor) absolute(href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return e.origin.String() + strings.TrimSpace(href)
	}
	ref.Fragment = ""
	return e.origin.ResolveReference(ref).String()
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func optional(s string) *string {
	v := clean(s)
	return &v
}
