package ingest

import "testing"

func TestExtractAmount(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"thousands with commas", "Grants of up to $1,500,000 are available", "$1,500,000"},
		{"cents", "Funding of $5,000.00 per project", "$5,000.00"},
		{"k suffix", "Apply for up to $50K in support", "$50K"},
		{"m suffix lowercase", "a $2m program", "$2m"},
		{"space after sign", "up to $ 10,000 available", "$ 10,000"},
		{"no amount", "contact us for funding details", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractAmount(tt.text); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractDeadlineText(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"deadline label", "Deadline: 3 March 2026", "3 March 2026"},
		{"closes label", "Applications close 15 April 2026 at 5pm", "15 April 2026 at 5pm"},
		{"apply by", "Apply by 30 June 2026 to be considered", "30 June 2026 to be considered"},
		{"unlabelled date ignored", "The program launched on 1 January 2026", ""},
		{"no date at all", "Grants for community groups", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractDeadlineText(tt.text); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
