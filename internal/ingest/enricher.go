package ingest

import (
	"context"
	"log"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

// stripPolicy removes every tag, leaving plain text. Scraped fragments
// occasionally carry markup through meta tags and CMS quirks.
var stripPolicy = bluemonday.StrictPolicy()

// Enricher visits candidate detail pages to fill in the fields a
// listing page rarely shows: a proper description, the dollar amount
// and the closing date.
type Enricher struct {
	Fetcher     Fetcher
	MaxDetails  int           // cap on detail fetches per source
	Delay       time.Duration // pause between detail fetches
	PDFDeadline bool          // also scan linked PDF guidelines for dates
}

func NewEnricher(f Fetcher, maxDetails int) *Enricher {
	if maxDetails <= 0 {
		maxDetails = 25
	}
	return &Enricher{
		Fetcher:    f,
		MaxDetails: maxDetails,
		Delay:      300 * time.Millisecond,
	}
}

// Enrich visits up to MaxDetails candidate links and merges what the
// detail pages offer. Candidates beyond the cap pass through untouched,
// as does any candidate whose detail page cannot be fetched.
func (e *Enricher) Enrich(ctx context.Context, cands []Candidate) []Candidate {
	out := make([]Candidate, len(cands))
	copy(out, cands)

	for i := range out {
		if i >= e.MaxDetails {
			break
		}
		if err := ctx.Err(); err != nil {
			break
		}

		detail, err := e.fetchDetail(ctx, out[i].Link)
		if err != nil {
			log.Printf("[enrich] %s: %v", out[i].Link, err)
			continue
		}
		mergeDetail(&out[i], detail)

		if e.Delay > 0 && i < len(out)-1 {
			select {
			case <-ctx.Done():
				return out
			case <-time.After(e.Delay):
			}
		}
	}
	return out
}

// DetailPage holds what was extracted from one opportunity page.
type DetailPage struct {
	Title       string
	Description string
	Amount      string
	Deadline    string
	PDFLinks    []string
}

func (e *Enricher) fetchDetail(ctx context.Context, url string) (*DetailPage, error) {
	doc, err := e.Fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	defer doc.Body.Close()

	page, err := goquery.NewDocumentFromReader(doc.Body)
	if err != nil {
		return nil, err
	}
	d := ParseDetailPage(page, doc.URL)

	if e.PDFDeadline && d.Deadline == "" {
		for _, pdf := range d.PDFLinks {
			if iso, ok := e.pdfDeadline(ctx, pdf); ok {
				d.Deadline = iso
				break
			}
		}
	}
	return d, nil
}

// ParseDetailPage applies the detail heuristics to an already parsed
// page. Split out so tests can feed static HTML.
func ParseDetailPage(page *goquery.Document, baseURL string) *DetailPage {
	d := &DetailPage{}

	if h := page.Find("h1").First(); h.Length() > 0 {
		d.Title = cleanText(h.Text())
	} else if h := page.Find("h2").First(); h.Length() > 0 {
		d.Title = cleanText(h.Text())
	}

	if meta, ok := page.Find(`meta[name="description"]`).Attr("content"); ok && cleanText(meta) != "" {
		d.Description = cleanText(stripPolicy.Sanitize(meta))
	} else if og, ok := page.Find(`meta[property="og:description"]`).Attr("content"); ok && cleanText(og) != "" {
		d.Description = cleanText(stripPolicy.Sanitize(og))
	} else {
		for _, sel := range []string{"article p", "main p", ".content p", ".rich-text p"} {
			if p := page.Find(sel).First(); p.Length() > 0 {
				if text := cleanText(p.Text()); text != "" {
					d.Description = text
					break
				}
			}
		}
	}
	d.Description = truncate(d.Description, descriptionCap)

	body := page.Find("body").Text()
	d.Amount = ExtractAmount(body)
	if frag := ExtractDeadlineText(body); frag != "" {
		if iso, ok := NormalizeDeadline(frag); ok {
			d.Deadline = iso
		} else {
			d.Deadline = frag
		}
	}

	page.Find(`a[href$=".pdf"], a[href*=".pdf?"]`).Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			d.PDFLinks = append(d.PDFLinks, resolveURL(baseURL, href))
		}
	})

	return d
}

// mergeDetail folds detail-page fields into the candidate. Detail data
// wins for description, amount and deadline; the listing title is kept
// unless the page has a longer one, since anchors often truncate.
func mergeDetail(c *Candidate, d *DetailPage) {
	if len(d.Title) > len(c.Title) {
		c.Title = d.Title
	}
	if d.Description != "" {
		c.Description = d.Description
	}
	if d.Amount != "" {
		c.Amount = d.Amount
	}
	if d.Deadline != "" {
		c.Deadline = d.Deadline
	}
}
