package ingest

import "regexp"

// Dollar figures in forms like "$1,500,000", "$5,000.00", "$50K", "$2m".
var amountRx = regexp.MustCompile(`\$\s?\d{1,3}(?:,\d{3})+(?:\.\d{2})?|\$\s?\d+(?:\.\d{2})?[KkMm]?`)

// Deadline phrases anchored to a label so we do not mistake event dates
// for closing dates.
var deadlineLabelRx = regexp.MustCompile(`(?i)(?:deadline|close[sd]?|closing date|applications? close|apply by|submissions? due)[:\s]*((?:[^.\n]){4,80})`)

// ExtractAmount returns the first dollar figure found in text, as
// written (a display string, not a parsed number).
func ExtractAmount(text string) string {
	return cleanText(amountRx.FindString(text))
}

// ExtractDeadlineText returns the text fragment following a deadline
// label, or the empty string when no labelled deadline is present.
func ExtractDeadlineText(text string) string {
	m := deadlineLabelRx.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return cleanText(m[1])
}
