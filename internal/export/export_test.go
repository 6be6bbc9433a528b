package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/councilworks/grantscout/internal/models"
	"github.com/councilworks/grantscout/internal/rank"
)

func scored(id, title, deadline string, score int) rank.Scored {
	return rank.Scored{
		GrantRecord: models.GrantRecord{
			ID:        id,
			Title:     title,
			Amount:    "$5,000",
			Deadline:  deadline,
			Link:      "https://example.org/" + id,
			Source:    "test",
			CreatedAt: time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
		},
		Score: score,
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	records := []rank.Scored{
		scored("a", "Youth Grants, Round 2", "2026-03-05", 3),
		scored("b", "Arts Grants", "2026-04-01", 1),
	}
	if err := WriteCSV(&buf, records); err != nil {
		t.Fatal(err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header plus 2", len(rows))
	}
	if rows[0][0] != "score" || rows[0][1] != "title" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][0] != "3" || rows[1][1] != "Youth Grants, Round 2" {
		t.Errorf("first data row = %v", rows[1])
	}
	if rows[2][3] != "2026-04-01" {
		t.Errorf("second row deadline = %q", rows[2][3])
	}
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, nil); err != nil {
		t.Fatal(err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil || len(rows) != 1 {
		t.Fatalf("empty export should still carry the header: rows=%v err=%v", rows, err)
	}
}

func TestWeeklyEmail(t *testing.T) {
	profile := models.CouncilProfile{Name: "Testville Council"}
	asOf := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	var ranked []rank.Scored
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		ranked = append(ranked, scored(id, "Grant "+id, "2026-03-20", 1))
	}

	preview := WeeklyEmail(profile, ranked, asOf)
	if preview.Count != 5 {
		t.Fatalf("count = %d, want top 5", preview.Count)
	}
	if !strings.Contains(preview.Subject, "Testville Council") {
		t.Errorf("subject = %q", preview.Subject)
	}
	if !strings.Contains(preview.Body, "Grant a") || strings.Contains(preview.Body, "Grant f") {
		t.Errorf("body should contain only the top 5:\n%s", preview.Body)
	}
	if !strings.Contains(preview.Body, "https://example.org/a") {
		t.Errorf("body missing links:\n%s", preview.Body)
	}
}

func TestWeeklyEmail_NoMatches(t *testing.T) {
	preview := WeeklyEmail(models.CouncilProfile{Name: "Testville Council"}, nil, time.Now())
	if preview.Count != 0 {
		t.Fatalf("count = %d", preview.Count)
	}
	if !strings.Contains(preview.Body, "No open grant opportunities") {
		t.Errorf("body = %q", preview.Body)
	}
}
