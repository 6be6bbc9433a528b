package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/councilworks/grantscout/internal/models"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	st, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return st
}

func sampleRecord(id, link string) models.GrantRecord {
	return models.GrantRecord{
		ID:          id,
		TenantID:    "testville",
		Title:       "Community Grant Round",
		Description: "Apply now, with a comma and \"quotes\" to exercise CSV quoting.",
		Amount:      "$5,000",
		Deadline:    "2099-03-03",
		Link:        link,
		Source:      "test",
		CreatedAt:   time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
		Summary:     "Short summary.",
	}
}

func TestFileStore_UpsertAndList(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	rec := sampleRecord("id1", "https://example.org/grants/x")
	inserted, err := st.Upsert(ctx, rec)
	if err != nil {
		t.Fatal(err)
	}
	if !inserted {
		t.Fatal("first upsert should insert")
	}

	records, err := st.List(ctx, "testville")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0] != rec {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", records[0], rec)
	}
}

func TestFileStore_UpsertIsIdempotentByLink(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	first := sampleRecord("id1", "https://example.org/grants/x")
	if _, err := st.Upsert(ctx, first); err != nil {
		t.Fatal(err)
	}

	// Same link, different title: the stored record must not change.
	dup := sampleRecord("id2", "https://example.org/grants/x")
	dup.Title = "Renamed Grant Round"
	inserted, err := st.Upsert(ctx, dup)
	if err != nil {
		t.Fatal(err)
	}
	if inserted {
		t.Fatal("duplicate link must not insert")
	}

	records, err := st.List(ctx, "testville")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Title != "Community Grant Round" {
		t.Errorf("first-seen record should win, got %+v", records)
	}
}

func TestFileStore_Delete(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	for i, link := range []string{"https://a.example/1", "https://a.example/2", "https://a.example/3"} {
		rec := sampleRecord(string(rune('a'+i)), link)
		if _, err := st.Upsert(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	if err := st.Delete(ctx, "testville", []string{"a", "c", "missing"}); err != nil {
		t.Fatal(err)
	}

	records, err := st.List(ctx, "testville")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].ID != "b" {
		t.Errorf("got %+v, want only record b", records)
	}
}

func TestFileStore_TenantsAreIsolated(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	recA := sampleRecord("id1", "https://example.org/grants/x")
	recB := sampleRecord("id2", "https://example.org/grants/y")
	recB.TenantID = "othertown"

	if _, err := st.Upsert(ctx, recA); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Upsert(ctx, recB); err != nil {
		t.Fatal(err)
	}

	records, err := st.List(ctx, "testville")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].ID != "id1" {
		t.Errorf("testville sees %+v", records)
	}
}

func TestFileStore_LastRefresh(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if _, ok, err := st.LastRefresh(ctx, "testville"); err != nil || ok {
		t.Fatalf("fresh store: ok=%v err=%v", ok, err)
	}

	at := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	if err := st.SetLastRefresh(ctx, "testville", at); err != nil {
		t.Fatal(err)
	}

	got, ok, err := st.LastRefresh(ctx, "testville")
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if !got.Equal(at) {
		t.Errorf("got %v, want %v", got, at)
	}
}

func TestFileStore_RunHistoryNewestFirst(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		run := models.RefreshRun{
			ID:        string(rune('a' + i)),
			TenantID:  "testville",
			StartedAt: time.Date(2026, 2, 1+i, 10, 0, 0, 0, time.UTC),
			Inserted:  i,
		}
		if err := st.RecordRun(ctx, run); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := st.ListRuns(ctx, "testville", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].ID != "c" || runs[1].ID != "b" {
		t.Errorf("order = %s, %s; want c, b", runs[0].ID, runs[1].ID)
	}
}

func TestFileStore_NoTempFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	st, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if _, err := st.Upsert(ctx, sampleRecord("id1", "https://example.org/x")); err != nil {
		t.Fatal(err)
	}
	if err := st.SetLastRefresh(ctx, "testville", time.Now()); err != nil {
		t.Fatal(err)
	}

	var leftovers []string
	filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() && filepath.Ext(path) == ".tmp" {
			leftovers = append(leftovers, path)
		}
		return nil
	})
	if len(leftovers) != 0 {
		t.Errorf("temp files left behind: %v", leftovers)
	}
}
