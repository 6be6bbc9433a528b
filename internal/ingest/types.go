package ingest

import (
	"context"
	"io"
	"time"
)

// Candidate is one raw funding lead pulled off a listing page, before
// normalization or enrichment. Fields hold whatever the page offered.
type Candidate struct {
	Title       string
	Description string
	Link        string // absolute URL
	Amount      string
	Deadline    string // raw text, needs normalization
	Source      string
}

// FetchedDocument represents the raw result of a fetch operation.
type FetchedDocument struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        io.ReadCloser
	FetchedAt   time.Time
	Headers     map[string][]string
}

// Fetcher retrieves raw content from a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*FetchedDocument, error)
}
