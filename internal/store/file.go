package store

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/councilworks/grantscout/internal/models"
)

var grantColumns = []string{"id", "title", "description", "amount", "deadline", "link", "source", "created_at", "summary"}

// FileStore keeps each tenant's records in <root>/<tenant>/grants.csv.
// Every write rewrites the whole file through a temp file and rename,
// so readers never observe a half-written CSV. A single mutex serializes
// writers; refreshes are sequential so contention is not a concern.
type FileStore struct {
	root string
	mu   sync.Mutex
}

func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileStore{root: root}, nil
}

func (s *FileStore) tenantDir(tenant string) string {
	// Tenant slugs come from the registry, but guard against path
	// separators anyway since they end up in file paths.
	safe := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == '.' {
			return '-'
		}
		return r
	}, tenant)
	return filepath.Join(s.root, safe)
}

func (s *FileStore) grantsPath(tenant string) string {
	return filepath.Join(s.tenantDir(tenant), "grants.csv")
}

func (s *FileStore) List(ctx context.Context, tenant string) ([]models.GrantRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readAll(tenant)
}

func (s *FileStore) readAll(tenant string) ([]models.GrantRecord, error) {
	f, err := os.Open(s.grantsPath(tenant))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(grantColumns)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.grantsPath(tenant), err)
	}

	var out []models.GrantRecord
	for i, row := range rows {
		if i == 0 && row[0] == "id" {
			continue // header
		}
		created, _ := time.Parse(time.RFC3339, row[7])
		out = append(out, models.GrantRecord{
			ID:          row[0],
			TenantID:    tenant,
			Title:       row[1],
			Description: row[2],
			Amount:      row[3],
			Deadline:    row[4],
			Link:        row[5],
			Source:      row[6],
			CreatedAt:   created,
			Summary:     row[8],
		})
	}
	return out, nil
}

// writeAll atomically replaces the tenant's CSV with records.
func (s *FileStore) writeAll(tenant string, records []models.GrantRecord) error {
	dir := s.tenantDir(tenant)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "grants-*.csv.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(grantColumns); err != nil {
		tmp.Close()
		return err
	}
	for _, rec := range records {
		row := []string{
			rec.ID, rec.Title, rec.Description, rec.Amount, rec.Deadline,
			rec.Link, rec.Source, rec.CreatedAt.UTC().Format(time.RFC3339), rec.Summary,
		}
		if err := w.Write(row); err != nil {
			tmp.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.grantsPath(tenant))
}

func (s *FileStore) Upsert(ctx context.Context, rec models.GrantRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readAll(rec.TenantID)
	if err != nil {
		return false, err
	}
	for _, existing := range records {
		if existing.Link == rec.Link {
			return false, nil
		}
	}
	records = append(records, rec)
	if err := s.writeAll(rec.TenantID, records); err != nil {
		return false, err
	}
	return true, nil
}

func (s *FileStore) Delete(ctx context.Context, tenant string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readAll(tenant)
	if err != nil {
		return err
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := records[:0]
	for _, rec := range records {
		if !drop[rec.ID] {
			kept = append(kept, rec)
		}
	}
	if len(kept) == len(records) {
		return nil
	}
	return s.writeAll(tenant, kept)
}

func (s *FileStore) lastRefreshPath(tenant string) string {
	return filepath.Join(s.tenantDir(tenant), "last_refresh")
}

func (s *FileStore) LastRefresh(ctx context.Context, tenant string) (time.Time, bool, error) {
	data, err := os.ReadFile(s.lastRefreshPath(tenant))
	if os.IsNotExist(err) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(string(data)))
	if err != nil {
		return time.Time{}, false, nil
	}
	return t, true, nil
}

func (s *FileStore) SetLastRefresh(ctx context.Context, tenant string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.tenantDir(tenant)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "last_refresh-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(at.UTC().Format(time.RFC3339) + "\n"); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.lastRefreshPath(tenant))
}

func (s *FileStore) runsPath(tenant string) string {
	return filepath.Join(s.tenantDir(tenant), "runs.jsonl")
}

// RecordRun appends one JSON line per run. Append keeps the history
// cheap; ListRuns reads it back newest first.
func (s *FileStore) RecordRun(ctx context.Context, run models.RefreshRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.tenantDir(run.TenantID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(s.runsPath(run.TenantID), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	line, err := json.Marshal(run)
	if err != nil {
		return err
	}
	_, err = f.Write(append(line, '\n'))
	return err
}

func (s *FileStore) ListRuns(ctx context.Context, tenant string, limit int) ([]models.RefreshRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.runsPath(tenant))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var runs []models.RefreshRun
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var run models.RefreshRun
		if err := json.Unmarshal([]byte(line), &run); err != nil {
			continue // tolerate a torn trailing line
		}
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (s *FileStore) Close() {}
