package ingest

import (
	"testing"
	"time"

	"github.com/councilworks/grantscout/internal/models"
)

func TestExpire(t *testing.T) {
	asOf := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	records := []models.GrantRecord{
		{ID: "past", Deadline: "2026-03-09"},
		{ID: "today", Deadline: "2026-03-10"},
		{ID: "future", Deadline: "2026-04-01"},
		{ID: "tbc", Deadline: "TBC"},
		{ID: "none", Deadline: ""},
	}

	retained, expired := Expire(records, asOf)

	if len(expired) != 1 || expired[0] != "past" {
		t.Fatalf("expired = %v, want [past]", expired)
	}
	if len(retained) != 4 {
		t.Fatalf("retained %d records, want 4", len(retained))
	}
	for _, rec := range retained {
		if rec.ID == "past" {
			t.Error("expired record still retained")
		}
	}
}

func TestExpire_DeadlineTodayIsKept(t *testing.T) {
	asOf := time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC)
	retained, expired := Expire([]models.GrantRecord{{ID: "today", Deadline: "2026-03-10"}}, asOf)
	if len(expired) != 0 || len(retained) != 1 {
		t.Fatalf("boundary deadline should be kept: retained=%d expired=%d", len(retained), len(expired))
	}
}

func TestExpire_Idempotent(t *testing.T) {
	asOf := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	records := []models.GrantRecord{
		{ID: "past", Deadline: "2026-01-01"},
		{ID: "future", Deadline: "2026-12-01"},
		{ID: "text", Deadline: "ongoing"},
	}

	once, expired := Expire(records, asOf)
	if len(expired) != 1 {
		t.Fatalf("first pass expired %d, want 1", len(expired))
	}
	twice, expiredAgain := Expire(once, asOf)
	if len(expiredAgain) != 0 {
		t.Fatalf("second pass expired %d, want 0", len(expiredAgain))
	}
	if len(twice) != len(once) {
		t.Fatalf("second pass changed retained count: %d vs %d", len(twice), len(once))
	}
}
