package ingest

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Words in anchor text that mark a link as a likely funding opportunity.
var grantKeywords = []string{"grant", "fund", "funding", "program", "round", "apply"}

// descriptionCap bounds how much nearby text we attach to a candidate.
const descriptionCap = 600

// ExtractListing scans a listing page for anchors that look like grant
// opportunities and returns one Candidate per distinct resolved link.
// It never fetches anything; callers hand it the page body.
func ExtractListing(r io.Reader, baseURL, source string) ([]Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse listing page: %w", err)
	}
	return extractFromDoc(doc, baseURL, source), nil
}

func extractFromDoc(doc *goquery.Document, baseURL, source string) []Candidate {
	var out []Candidate
	seen := make(map[string]bool)

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") || strings.HasPrefix(strings.ToLower(href), "mailto:") {
			return
		}

		text := cleanText(sel.Text())
		if len(text) < 4 {
			return
		}
		if !looksLikeGrantLink(text, href) {
			return
		}

		link := resolveURL(baseURL, href)
		if seen[link] {
			return
		}
		seen[link] = true

		desc := ""
		if len(sel.Nodes) > 0 {
			desc = nearestFollowingText(sel.Nodes[0])
		}

		out = append(out, Candidate{
			Title:       text,
			Description: desc,
			Link:        link,
			Source:      source,
		})
	})

	return out
}

// looksLikeGrantLink matches anchor text against the keyword list, with
// a weaker fallback on the href itself.
func looksLikeGrantLink(text, href string) bool {
	for _, kw := range grantKeywords {
		if containsFold(text, kw) {
			return true
		}
	}
	return containsFold(href, "grant") || containsFold(href, "fund")
}

// nearestFollowingText walks forward in document order from n and
// returns the text of the first <p> it meets, falling back to the first
// <li> when no paragraph follows. Listing pages vary too much for CSS
// selectors; document order is the one structure they all share.
func nearestFollowingText(n *html.Node) string {
	var firstLi string
	for node := skipSubtree(n); node != nil; node = nextInDocument(node) {
		if node.Type != html.ElementNode {
			continue
		}
		switch node.Data {
		case "p":
			if text := cleanText(nodeText(node)); text != "" {
				return truncate(text, descriptionCap)
			}
		case "li":
			if firstLi == "" {
				firstLi = cleanText(nodeText(node))
			}
		}
	}
	return truncate(firstLi, descriptionCap)
}

// nextInDocument advances to the next node in preorder document order.
func nextInDocument(n *html.Node) *html.Node {
	if n.FirstChild != nil {
		return n.FirstChild
	}
	return skipSubtree(n)
}

// skipSubtree advances past n's entire subtree so an anchor never takes
// its description from inside itself.
func skipSubtree(n *html.Node) *html.Node {
	for n != nil {
		if n.NextSibling != nil {
			return n.NextSibling
		}
		n = n.Parent
	}
	return nil
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
			sb.WriteString(" ")
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
