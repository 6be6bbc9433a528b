package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	rpdf "rsc.io/pdf"
)

// pdfBodyLimit caps how much of a guidelines PDF we download.
const pdfBodyLimit = 8 * 1024 * 1024

func extractPDFText(content []byte) (text string, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("pdf parser panic: %v", recovered)
			text = ""
		}
	}()

	reader, err := rpdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	for pageIndex := 1; pageIndex <= reader.NumPage(); pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}
		for _, fragment := range page.Content().Text {
			builder.WriteString(fragment.S)
			builder.WriteString(" ")
		}
		builder.WriteString("\n")
	}

	return builder.String(), nil
}

// pdfDeadline downloads a guidelines PDF and scans its text for a
// labelled closing date. Councils often publish the real deadline only
// in the PDF, so this is worth one extra request per opportunity.
func (e *Enricher) pdfDeadline(ctx context.Context, pdfURL string) (string, bool) {
	doc, err := e.Fetcher.Fetch(ctx, pdfURL)
	if err != nil {
		log.Printf("[enrich] pdf %s: %v", pdfURL, err)
		return "", false
	}
	defer doc.Body.Close()

	content, err := io.ReadAll(io.LimitReader(doc.Body, pdfBodyLimit))
	if err != nil {
		return "", false
	}

	text, err := extractPDFText(content)
	if err != nil {
		log.Printf("[enrich] pdf %s: %v", pdfURL, err)
		return "", false
	}

	if frag := ExtractDeadlineText(text); frag != "" {
		if iso, ok := NormalizeDeadline(frag); ok {
			return iso, true
		}
	}
	// No labelled deadline; fall back to any single date in the text.
	if iso, ok := NormalizeDeadline(text); ok {
		return iso, true
	}
	return "", false
}
