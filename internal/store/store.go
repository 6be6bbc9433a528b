package store

import (
	"context"
	"time"

	"github.com/councilworks/grantscout/internal/models"
)

// Store persists grant records per tenant. Implementations must make
// Upsert idempotent: inserting a record whose (tenant, link) already
// exists is a no-op that reports inserted=false, and the stored record
// keeps its original fields (first seen wins).
type Store interface {
	// List returns the records belonging to exactly this tenant.
	// Callers union in the shared tenant themselves.
	List(ctx context.Context, tenant string) ([]models.GrantRecord, error)

	// Upsert inserts rec unless its link is already present for the
	// tenant. Returns whether a new record was written.
	Upsert(ctx context.Context, rec models.GrantRecord) (bool, error)

	// Delete removes the given record ids for a tenant. Unknown ids
	// are ignored.
	Delete(ctx context.Context, tenant string, ids []string) error

	// LastRefresh reports when the tenant was last refreshed; ok is
	// false when it never was.
	LastRefresh(ctx context.Context, tenant string) (time.Time, bool, error)
	SetLastRefresh(ctx context.Context, tenant string, at time.Time) error

	// RecordRun appends a refresh run to the tenant's history.
	RecordRun(ctx context.Context, run models.RefreshRun) error
	ListRuns(ctx context.Context, tenant string, limit int) ([]models.RefreshRun, error)

	Close()
}
