// Package extract recovers typed fields from generated brief text.
//
// The model's output is free-form — nothing upstream guarantees shape.
// Extraction is therefore a small ordered list of independent
// pattern matchers, each a pure function over the raw text. A pattern
// that doesn't match simply yields an empty field; judging whether
// that is a problem belongs to the validation gates, not here.
package extract

import (
	"regexp"
	"strings"
)

// Document markers. The gates count occurrences of these in the raw
// text independently of extraction, so format drift is caught in one
// place.
const (
	// ResolutionMarker opens the single-line resolution statement.
	ResolutionMarker = "Resolution:"
	// HighlightsHeading opens the trailing highlights section.
	HighlightsHeading = "## Highlights"
	// PrioritiesHeading opens the ranked-entry section.
	PrioritiesHeading = "## Top Priorities"
)

// SingleOccurrenceHeadings may appear at most once per brief.
var SingleOccurrenceHeadings = []string{PrioritiesHeading, HighlightsHeading}

// Item is one ranked entry, optionally tagged with a category. The
// category is captured verbatim for allow-list validation.
type Item struct {
	Title    string `json:"title"`
	Category string `json:"category,omitempty"`
	RawBlock string `json:"raw_block,omitempty"`
}

// Resolution is the "previously / now / update" triple marking that a
// prior open issue was addressed.
type Resolution struct {
	Previously string `json:"previously"`
	Now        string `json:"now"`
	Update     string `json:"update"`
}

// Attempt holds everything recovered from one generation attempt.
// Attempts are built fresh per generation call and never mutated.
type Attempt struct {
	RawText    string      `json:"raw_text"`
	Items      []Item      `json:"items"`
	Resolution *Resolution `json:"resolution,omitempty"`
	Highlights []string    `json:"highlights,omitempty"`
	Categories []string    `json:"categories,omitempty"`
}

var (
	// 1) Priority: <title> (Category)
	itemLineRE = regexp.MustCompile(`(?m)^\s*\d+\)\s*Priority:\s*(.+?)(?:\s*\(([^()]+)\))?\s*$`)

	// Resolution: Previously: <A> -> Now: <B> -> Update: <C>
	resolutionRE = regexp.MustCompile(`(?m)^\s*Resolution:\s*Previously:\s*(.*?)\s*->\s*Now:\s*(.*?)\s*->\s*Update:\s*(.*?)\s*$`)

	// Leading list markers inside the highlights section.
	listMarkerRE = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s*`)
)

// Parse runs every matcher over the document and returns the attempt.
// It never fails; malformed documents yield empty fields.
func Parse(text string) *Attempt {
	return &Attempt{
		RawText:    text,
		Items:      Items(text),
		Resolution: ResolutionStatement(text),
		Highlights: Highlights(text),
		Categories: Categories(text),
	}
}

// Items extracts every ranked-entry line in document order.
func Items(text string) []Item {
	var items []Item
	for _, m := range itemLineRE.FindAllStringSubmatch(text, -1) {
		items = append(items, Item{
			Title:    strings.TrimSpace(m[1]),
			Category: strings.TrimSpace(m[2]),
			RawBlock: strings.TrimSpace(m[0]),
		})
	}
	return items
}

// Titles returns the ranked-entry titles in document order.
func Titles(items []Item) []string {
	titles := make([]string, 0, len(items))
	for _, it := range items {
		titles = append(titles, it.Title)
	}
	return titles
}

// ResolutionStatement extracts the first resolution triple, or nil
// when the document has none. Extra occurrences are ignored here; the
// duplicate-marker gate counts them separately.
func ResolutionStatement(text string) *Resolution {
	m := resolutionRE.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return &Resolution{
		Previously: strings.TrimSpace(m[1]),
		Now:        strings.TrimSpace(m[2]),
		Update:     strings.TrimSpace(m[3]),
	}
}

// MarkerCount counts raw occurrences of the resolution marker.
func MarkerCount(text string) int {
	return strings.Count(text, ResolutionMarker)
}

// HeadingCount counts raw occurrences of a section heading at the
// start of a line.
func HeadingCount(text, heading string) int {
	count := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), heading) {
			count++
		}
	}
	return count
}

// Highlights collects the list lines under the highlights heading,
// list markers stripped, in order. Duplicates are kept and no
// truncation happens at this layer.
func Highlights(text string) []string {
	idx := strings.Index(text, HighlightsHeading)
	if idx < 0 {
		return nil
	}
	section := text[idx+len(HighlightsHeading):]
	if next := strings.Index(section, "\n## "); next >= 0 {
		section = section[:next]
	}

	var highlights []string
	for _, line := range strings.Split(section, "\n") {
		if !listMarkerRE.MatchString(line) {
			continue
		}
		entry := strings.TrimSpace(listMarkerRE.ReplaceAllString(line, ""))
		if entry == "" {
			continue
		}
		highlights = append(highlights, entry)
	}
	return highlights
}

// Categories scans for every parenthetical category tag attached to a
// ranked-entry line, as a flat ordered list. This runs independently
// of Items so the category-count gate doesn't depend on per-item
// association.
func Categories(text string) []string {
	var cats []string
	for _, m := range itemLineRE.FindAllStringSubmatch(text, -1) {
		if tag := strings.TrimSpace(m[2]); tag != "" {
			cats = append(cats, tag)
		}
	}
	return cats
}
