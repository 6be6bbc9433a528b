package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/councilworks/grantscout/internal/models"
)

// Store is the Postgres-backed record store. Uniqueness is enforced by
// the (tenant_id, link) constraint; ON CONFLICT DO NOTHING gives the
// first-seen-wins merge behaviour.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool exposes the underlying pool for components that need their own
// queries (auth).
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

const grantCols = `id, tenant_id, title, description, amount, deadline, link, source, created_at, summary`

func (s *Store) List(ctx context.Context, tenant string) ([]models.GrantRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+grantCols+` FROM grants WHERE tenant_id = $1 ORDER BY created_at, id`, tenant)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	defer rows.Close()

	var out []models.GrantRecord
	for rows.Next() {
		var rec models.GrantRecord
		if err := rows.Scan(&rec.ID, &rec.TenantID, &rec.Title, &rec.Description, &rec.Amount,
			&rec.Deadline, &rec.Link, &rec.Source, &rec.CreatedAt, &rec.Summary); err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) Upsert(ctx context.Context, rec models.GrantRecord) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO grants (id, tenant_id, title, description, amount, deadline, link, source, created_at, summary)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (tenant_id, link) DO NOTHING`,
		rec.ID, rec.TenantID, rec.Title, rec.Description, rec.Amount,
		rec.Deadline, rec.Link, rec.Source, rec.CreatedAt, rec.Summary)
	if err != nil {
		return false, fmt.Errorf("insert grant: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) Delete(ctx context.Context, tenant string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`DELETE FROM grants WHERE tenant_id = $1 AND id = ANY($2)`, tenant, ids)
	if err != nil {
		return fmt.Errorf("delete grants: %w", err)
	}
	return nil
}

func (s *Store) LastRefresh(ctx context.Context, tenant string) (time.Time, bool, error) {
	var at time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT last_refresh FROM tenant_meta WHERE tenant_id = $1`, tenant).Scan(&at)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("get last refresh: %w", err)
	}
	return at, true, nil
}

func (s *Store) SetLastRefresh(ctx context.Context, tenant string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tenant_meta (tenant_id, last_refresh) VALUES ($1, $2)
		ON CONFLICT (tenant_id) DO UPDATE SET last_refresh = EXCLUDED.last_refresh`,
		tenant, at)
	if err != nil {
		return fmt.Errorf("set last refresh: %w", err)
	}
	return nil
}

func (s *Store) RecordRun(ctx context.Context, run models.RefreshRun) error {
	sources, err := json.Marshal(run.Sources)
	if err != nil {
		return fmt.Errorf("marshal run sources: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO refresh_runs (id, tenant_id, started_at, finished_at, inserted, expired, total, sources, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		run.ID, run.TenantID, run.StartedAt, run.FinishedAt,
		run.Inserted, run.Expired, run.Total, sources, run.Error)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (s *Store) ListRuns(ctx context.Context, tenant string, limit int) ([]models.RefreshRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, started_at, finished_at, inserted, expired, total, sources, error
		FROM refresh_runs WHERE tenant_id = $1
		ORDER BY started_at DESC LIMIT $2`, tenant, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []models.RefreshRun
	for rows.Next() {
		var run models.RefreshRun
		var sources []byte
		if err := rows.Scan(&run.ID, &run.TenantID, &run.StartedAt, &run.FinishedAt,
			&run.Inserted, &run.Expired, &run.Total, &sources, &run.Error); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if len(sources) > 0 {
			_ = json.Unmarshal(sources, &run.Sources)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *Store) Close() {
	s.pool.Close()
}
