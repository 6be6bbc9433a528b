package ingest

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/councilworks/grantscout/internal/models"
)

const isoDate = "2006-01-02"

var (
	// ISO date: 2026-03-15
	isoDateRx = regexp.MustCompile(`\b(20\d{2})-(\d{2})-(\d{2})\b`)
	// Slash date, day first: 15/03/2026 or 15-3-2026
	slashDateRx = regexp.MustCompile(`\b(\d{1,2})[/-](\d{1,2})[/-](20\d{2})\b`)
	// Written month, either order: 3 March 2026 / March 3, 2026
	dayMonthRx = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+(January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\.?,?\s+(20\d{2})\b`)
	monthDayRx = regexp.MustCompile(`(?i)\b(January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(20\d{2})\b`)
)

// NormalizeDeadline scans free text for a date and returns it as an ISO
// date string. Council pages are Australian, so ambiguous slash dates
// are read day-first. The second return is false when no date was found,
// which covers "TBC", "ongoing" and plain prose.
func NormalizeDeadline(text string) (string, bool) {
	text = cleanText(text)
	if text == "" {
		return "", false
	}

	if m := isoDateRx.FindString(text); m != "" {
		if t, err := time.Parse(isoDate, m); err == nil {
			return t.Format(isoDate), true
		}
	}

	if m := slashDateRx.FindStringSubmatch(text); len(m) == 4 {
		if t, err := time.Parse("2/1/2006", fmt.Sprintf("%s/%s/%s", m[1], m[2], m[3])); err == nil {
			return t.Format(isoDate), true
		}
	}

	if m := dayMonthRx.FindStringSubmatch(text); len(m) == 4 {
		if t, err := parseWrittenDate(m[1], m[2], m[3]); err == nil {
			return t.Format(isoDate), true
		}
	}

	if m := monthDayRx.FindStringSubmatch(text); len(m) == 4 {
		if t, err := parseWrittenDate(m[2], m[1], m[3]); err == nil {
			return t.Format(isoDate), true
		}
	}

	return "", false
}

func parseWrittenDate(day, month, year string) (time.Time, error) {
	s := fmt.Sprintf("%s %s %s", day, month, year)
	if t, err := time.Parse("2 January 2006", s); err == nil {
		return t, nil
	}
	return time.Parse("2 Jan 2006", s)
}

// DaysUntil returns the number of whole days from asOf (a calendar day)
// to the ISO deadline. Negative means the deadline has passed.
func DaysUntil(deadlineISO string, asOf time.Time) (int, bool) {
	t, err := time.Parse(isoDate, deadlineISO)
	if err != nil {
		return 0, false
	}
	day := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)
	return int(t.Sub(day).Hours() / 24), true
}

// Normalize converts a raw Candidate into a canonical GrantRecord for a
// tenant. The deadline keeps its raw text when no date was parseable so
// users still see "applications open mid 2026" style hints.
func Normalize(c Candidate, tenant string, now time.Time) models.GrantRecord {
	title := cleanText(c.Title)
	link := strings.TrimSpace(c.Link)

	deadline := cleanText(c.Deadline)
	if iso, ok := NormalizeDeadline(deadline); ok {
		deadline = iso
	}

	return models.GrantRecord{
		ID:          models.GrantID(title, link),
		TenantID:    tenant,
		Title:       title,
		Description: truncate(cleanText(c.Description), descriptionCap),
		Amount:      cleanText(c.Amount),
		Deadline:    deadline,
		Link:        link,
		Source:      c.Source,
		CreatedAt:   now.UTC(),
	}
}
