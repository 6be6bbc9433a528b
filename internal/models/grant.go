package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// SharedTenant is the distinguished tenant slug whose records are unioned
// into every council's view (statewide and federal listings).
const SharedTenant = "statewide"

// GrantRecord is one discovered funding opportunity. The link is the
// record's natural key within a tenant; the id is derived from
// (title, link) and never changes for the same pair.
type GrantRecord struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Amount      string    `json:"amount"`   // free text, best-effort extraction
	Deadline    string    `json:"deadline"` // ISO date if parseable, else original text or empty
	Link        string    `json:"link"`
	Source      string    `json:"source"`
	CreatedAt   time.Time `json:"created_at"`
	Summary     string    `json:"summary,omitempty"`
}

// GrantID derives the stable record id from title and link. Identical
// inputs always yield the identical id, which makes upserts idempotent.
func GrantID(title, link string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s", title, link)))
	return hex.EncodeToString(sum[:])[:16]
}

// CouncilProfile is the read-only matching input for a tenant. It is
// built from the tenant registry per request and has no persisted
// lifecycle of its own.
type CouncilProfile struct {
	Slug       string   `json:"slug"`
	Name       string   `json:"name"`
	State      string   `json:"state"`
	Population int      `json:"population"`
	Priorities []string `json:"priorities"`
}
