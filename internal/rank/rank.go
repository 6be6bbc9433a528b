// Package rank orders grant records by how well they match a council's
// priorities and how soon they close. Scoring is deliberately a fixed,
// explainable policy rather than a model: one point per matched
// priority keyword plus an urgency bonus.
package rank

import (
	"sort"
	"strings"
	"time"

	"github.com/councilworks/grantscout/internal/models"
)

const isoDate = "2006-01-02"

// Config tunes scoring. Zero values fall back to the defaults, so an
// empty Config behaves like DefaultConfig().
type Config struct {
	UrgentWithinDays int  // deadline within this many days earns +2
	SoonWithinDays   int  // deadline within this many days earns +1
	IncludeSummary   bool // also match keywords against the AI summary
}

func DefaultConfig() Config {
	return Config{UrgentWithinDays: 14, SoonWithinDays: 30}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.UrgentWithinDays <= 0 {
		c.UrgentWithinDays = d.UrgentWithinDays
	}
	if c.SoonWithinDays <= 0 {
		c.SoonWithinDays = d.SoonWithinDays
	}
	return c
}

// Scored pairs a record with its relevance score.
type Scored struct {
	models.GrantRecord
	Score int `json:"score"`
}

// Score computes the relevance of one record for a profile as of a
// given day. Passed deadlines earn no urgency bonus but still score on
// keywords; expiry is the pipeline's job, not ranking's.
func Score(rec models.GrantRecord, profile models.CouncilProfile, cfg Config, asOf time.Time) int {
	cfg = cfg.withDefaults()

	blob := rec.Title + " " + rec.Description
	if cfg.IncludeSummary {
		blob += " " + rec.Summary
	}
	blob = strings.ToLower(blob)

	score := 0
	for _, kw := range profile.Priorities {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(blob, kw) {
			score++
		}
	}

	if days, ok := daysUntil(rec.Deadline, asOf); ok && days >= 0 {
		switch {
		case days <= cfg.UrgentWithinDays:
			score += 2
		case days <= cfg.SoonWithinDays:
			score++
		}
	}
	return score
}

// Rank scores and sorts records: score descending, then deadline
// ascending with unknown deadlines last, then id for a stable total
// order.
func Rank(records []models.GrantRecord, profile models.CouncilProfile, cfg Config, asOf time.Time) []Scored {
	out := make([]Scored, 0, len(records))
	for _, rec := range records {
		out = append(out, Scored{GrantRecord: rec, Score: Score(rec, profile, cfg, asOf)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		di, iOK := isoDeadline(out[i].Deadline)
		dj, jOK := isoDeadline(out[j].Deadline)
		if iOK != jOK {
			return iOK
		}
		if iOK && di != dj {
			return di < dj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func isoDeadline(deadline string) (string, bool) {
	if _, err := time.Parse(isoDate, deadline); err != nil {
		return "", false
	}
	return deadline, true
}

func daysUntil(deadline string, asOf time.Time) (int, bool) {
	t, err := time.Parse(isoDate, deadline)
	if err != nil {
		return 0, false
	}
	day := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)
	return int(t.Sub(day).Hours() / 24), true
}
