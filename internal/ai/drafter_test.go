package ai

import (
	"context"
	"strings"
	"testing"

	"github.com/councilworks/grantscout/internal/models"
)

var testRecord = models.GrantRecord{
	ID:          "abc123",
	Title:       "Community Infrastructure Grants",
	Description: "Funding for shared community facilities.",
	Amount:      "$50,000",
	Deadline:    "2026-06-30",
	Link:        "https://example.org/grants/infra",
}

var testProfile = models.CouncilProfile{
	Name:       "Testville Council",
	State:      "VIC",
	Population: 50000,
	Priorities: []string{"youth", "sport"},
}

func TestDraft_FallsBackWithoutClient(t *testing.T) {
	d := NewDrafter(nil)
	text, aiUsed := d.Draft(context.Background(), testRecord, testProfile)
	if aiUsed {
		t.Fatal("ai_used must be false without a client")
	}
	for _, want := range []string{
		"Testville Council",
		"Community Infrastructure Grants",
		"$50,000",
		"2026-06-30",
		"https://example.org/grants/infra",
		"youth, sport",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("draft missing %q:\n%s", want, text)
		}
	}
}

func TestLocalDraft_OmitsUnknownFields(t *testing.T) {
	rec := testRecord
	rec.Amount = ""
	rec.Deadline = ""
	text := localDraft(rec, models.CouncilProfile{Name: "Testville Council"})
	if strings.Contains(text, "Funding sought") || strings.Contains(text, "Applications close") {
		t.Errorf("draft invents missing facts:\n%s", text)
	}
}

func TestSummarize_EmptyDescription(t *testing.T) {
	s := NewSummarizer(NewOllamaClient("http://localhost:1", ""))
	out, err := s.Summarize(context.Background(), "Title", "   ")
	if err != nil || out != "" {
		t.Errorf("got %q, %v; want empty and nil", out, err)
	}
}

func TestSummarize_DegradesWhenOllamaUnavailable(t *testing.T) {
	// Port 1 refuses connections; the summarizer must degrade to "".
	s := NewSummarizer(NewOllamaClient("http://127.0.0.1:1", ""))
	out, err := s.Summarize(context.Background(), "Title", "A description.")
	if err != nil {
		t.Fatalf("summarizer must not surface errors, got %v", err)
	}
	if out != "" {
		t.Errorf("got %q, want empty", out)
	}
}
