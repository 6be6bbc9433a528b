package ingest

import (
	"strings"
	"testing"
)

func TestExtractListing_BasicCandidate(t *testing.T) {
	html := `<html><body>
	<a href="/grants/x">Community Grant Round</a>
	<p>Apply now.</p>
	</body></html>`

	cands, err := ExtractListing(strings.NewReader(html), "https://example.org/grants", "test")
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(cands))
	}
	c := cands[0]
	if c.Link != "https://example.org/grants/x" {
		t.Errorf("link = %q", c.Link)
	}
	if c.Title != "Community Grant Round" {
		t.Errorf("title = %q", c.Title)
	}
	if c.Description != "Apply now." {
		t.Errorf("description = %q", c.Description)
	}
	if c.Source != "test" {
		t.Errorf("source = %q", c.Source)
	}
}

func TestExtractListing_KeywordMatching(t *testing.T) {
	tests := []struct {
		name string
		html string
		want int
	}{
		{
			name: "anchor text keyword",
			html: `<a href="/a">Youth Funding Program</a>`,
			want: 1,
		},
		{
			name: "href fallback when text has no keyword",
			html: `<a href="/community-grants/open">Open opportunities</a>`,
			want: 1,
		},
		{
			name: "no keyword anywhere",
			html: `<a href="/contact">Contact the council</a>`,
			want: 0,
		},
		{
			name: "short anchor text skipped",
			html: `<a href="/grants/x">Go</a>`,
			want: 0,
		},
		{
			name: "fragment and javascript links skipped",
			html: `<a href="#main">Grant program</a><a href="javascript:void(0)">Grant round</a>`,
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cands, err := ExtractListing(strings.NewReader(tt.html), "https://example.org/", "test")
			if err != nil {
				t.Fatal(err)
			}
			if len(cands) != tt.want {
				t.Fatalf("expected %d candidates, got %d: %+v", tt.want, len(cands), cands)
			}
		})
	}
}

func TestExtractListing_DeduplicatesByResolvedLink(t *testing.T) {
	html := `
	<a href="/grants/x">Community Grant Round</a>
	<a href="https://example.org/grants/x">Community grant round, again</a>`

	cands, err := ExtractListing(strings.NewReader(html), "https://example.org/", "test")
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 1 {
		t.Fatalf("expected duplicate link collapsed to 1 candidate, got %d", len(cands))
	}
	if cands[0].Title != "Community Grant Round" {
		t.Errorf("first mention should win, got title %q", cands[0].Title)
	}
}

func TestExtractListing_DescriptionFromNestedParagraph(t *testing.T) {
	html := `<div>
	<h3><a href="/grants/arts">Arts Grants</a></h3>
	</div>
	<div><div><p>Support for local artists and cultural projects.</p></div></div>`

	cands, err := ExtractListing(strings.NewReader(html), "https://example.org/", "test")
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(cands))
	}
	if cands[0].Description != "Support for local artists and cultural projects." {
		t.Errorf("description = %q", cands[0].Description)
	}
}

func TestExtractListing_ListItemFallback(t *testing.T) {
	html := `<ul>
	<li><a href="/grants/sport">Sports Club Grants</a></li>
	<li>Up to $5,000 for local clubs</li>
	</ul>`

	cands, err := ExtractListing(strings.NewReader(html), "https://example.org/", "test")
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(cands))
	}
	if cands[0].Description != "Up to $5,000 for local clubs" {
		t.Errorf("description = %q", cands[0].Description)
	}
}

func TestExtractListing_DescriptionNeverFromOwnSubtree(t *testing.T) {
	html := `<a href="/grants/x"><p>Heritage Grant Round</p></a><p>Closes soon.</p>`

	cands, err := ExtractListing(strings.NewReader(html), "https://example.org/", "test")
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(cands))
	}
	if cands[0].Description != "Closes soon." {
		t.Errorf("description should come from the following paragraph, got %q", cands[0].Description)
	}
}

func TestExtractListing_DescriptionCapped(t *testing.T) {
	long := strings.Repeat("funding details ", 100)
	html := `<a href="/grants/x">Big Grant Program</a><p>` + long + `</p>`

	cands, err := ExtractListing(strings.NewReader(html), "https://example.org/", "test")
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(cands))
	}
	if len(cands[0].Description) > descriptionCap {
		t.Errorf("description length %d exceeds cap %d", len(cands[0].Description), descriptionCap)
	}
}
