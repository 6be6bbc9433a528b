// Package export renders grant views for humans: CSV downloads and the
// weekly email preview.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/councilworks/grantscout/internal/rank"
)

var csvHeader = []string{"score", "title", "amount", "deadline", "link", "source", "summary", "found"}

// WriteCSV writes ranked records as CSV, highest score first (the input
// order is preserved, so callers pass rank.Rank output).
func WriteCSV(w io.Writer, records []rank.Scored) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, rec := range records {
		row := []string{
			strconv.Itoa(rec.Score),
			rec.Title,
			rec.Amount,
			rec.Deadline,
			rec.Link,
			rec.Source,
			rec.Summary,
			rec.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
