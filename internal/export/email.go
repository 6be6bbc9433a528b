package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/councilworks/grantscout/internal/models"
	"github.com/councilworks/grantscout/internal/rank"
)

// emailTopN is how many opportunities the weekly digest shows.
const emailTopN = 5

// EmailPreview is a rendered weekly digest. Nothing is sent anywhere;
// the caller shows it or pipes it into whatever mailer the council has.
type EmailPreview struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Count   int    `json:"count"`
}

// WeeklyEmail renders the top ranked opportunities as a plain-text
// digest for a council officer.
func WeeklyEmail(profile models.CouncilProfile, ranked []rank.Scored, asOf time.Time) EmailPreview {
	top := ranked
	if len(top) > emailTopN {
		top = top[:emailTopN]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s team,\n\n", profile.Name)
	if len(top) == 0 {
		b.WriteString("No open grant opportunities matched your priorities this week.\n")
	} else {
		fmt.Fprintf(&b, "Top grant opportunities for the week of %s:\n\n", asOf.Format("2 January 2006"))
		for i, rec := range top {
			fmt.Fprintf(&b, "%d. %s\n", i+1, rec.Title)
			if rec.Amount != "" {
				fmt.Fprintf(&b, "   Amount: %s\n", rec.Amount)
			}
			if rec.Deadline != "" {
				fmt.Fprintf(&b, "   Closes: %s\n", rec.Deadline)
			}
			if rec.Summary != "" {
				fmt.Fprintf(&b, "   %s\n", rec.Summary)
			} else if rec.Description != "" {
				fmt.Fprintf(&b, "   %s\n", shorten(rec.Description, 160))
			}
			fmt.Fprintf(&b, "   %s\n\n", rec.Link)
		}
	}
	b.WriteString("This digest was generated automatically from published grant listings.\n")

	return EmailPreview{
		Subject: fmt.Sprintf("Grant opportunities for %s, week of %s", profile.Name, asOf.Format("2 Jan 2006")),
		Body:    b.String(),
		Count:   len(top),
	}
}

func shorten(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := strings.LastIndex(s[:n], " ")
	if cut <= 0 {
		cut = n
	}
	return s[:cut] + "…"
}
