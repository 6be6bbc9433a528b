package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/councilworks/grantscout/internal/models"
)

// Drafter produces first-pass application text for a grant. When the
// LLM is unavailable it falls back to a deterministic template so the
// endpoint always returns something an officer can start from.
type Drafter struct {
	client *OllamaClient
}

func NewDrafter(client *OllamaClient) *Drafter {
	return &Drafter{client: client}
}

// Draft returns the draft text and whether the LLM produced it.
func (d *Drafter) Draft(ctx context.Context, rec models.GrantRecord, profile models.CouncilProfile) (string, bool) {
	if d.client != nil {
		prompt := fmt.Sprintf(`Write a first draft of a grant application on behalf of %s (%s, population %d). Local priorities: %s.

Grant: %s
Description: %s
Amount: %s
Deadline: %s

Write three short paragraphs: the need, the proposed use of funds, and expected community benefit. Plain language, no headings, no placeholders for facts you were given.`,
			profile.Name, profile.State, profile.Population,
			strings.Join(profile.Priorities, ", "),
			rec.Title, rec.Description, orUnknown(rec.Amount), orUnknown(rec.Deadline))

		if out, err := d.client.GenerateCompletion(ctx, prompt, false); err == nil {
			if text := strings.TrimSpace(out); text != "" {
				return text, true
			}
		}
	}
	return localDraft(rec, profile), false
}

// localDraft is the template fallback. It only restates facts already
// on the record.
func localDraft(rec models.GrantRecord, profile models.CouncilProfile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s seeks support under %s.\n\n", profile.Name, rec.Title)
	if rec.Description != "" {
		fmt.Fprintf(&b, "This opportunity: %s\n\n", rec.Description)
	}
	if len(profile.Priorities) > 0 {
		fmt.Fprintf(&b, "The proposed project aligns with our community priorities of %s.\n\n",
			strings.Join(profile.Priorities, ", "))
	}
	if rec.Amount != "" {
		fmt.Fprintf(&b, "Funding sought: %s.\n", rec.Amount)
	}
	if rec.Deadline != "" {
		fmt.Fprintf(&b, "Applications close: %s.\n", rec.Deadline)
	}
	fmt.Fprintf(&b, "\nMore information: %s\n", rec.Link)
	return b.String()
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "not stated"
	}
	return s
}
