package models

import "time"

// Run outcome classifications. A source that answered but produced no
// candidates is "empty", not an error.
const (
	RunOK          = "ok"
	RunEmpty       = "empty"
	RunUnreachable = "unreachable"
)

// SourceResult records what happened for one source during a refresh.
type SourceResult struct {
	Source  string `json:"source"`
	Status  string `json:"status"` // RunOK, RunEmpty or RunUnreachable
	Found   int    `json:"found"`
	Reason  string `json:"reason,omitempty"` // populated when unreachable
}

// RefreshRun summarizes one refresh of one tenant.
type RefreshRun struct {
	ID         string         `json:"id"`
	TenantID   string         `json:"tenant_id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Inserted   int            `json:"inserted"`
	Expired    int            `json:"expired"`
	Total      int            `json:"total"`
	Sources    []SourceResult `json:"sources,omitempty"`
	Error      string         `json:"error,omitempty"`
}
