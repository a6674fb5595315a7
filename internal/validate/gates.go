// Package validate evaluates structural and novelty gates against one
// generation attempt. Every gate runs on every attempt — no
// short-circuiting — so a single bad document reports all of its
// problems at once and the retry feedback can name each one.
package validate

import (
	"fmt"

	"github.com/mtholland/briefgen/internal/extract"
	"github.com/mtholland/briefgen/internal/novelty"
)

// Code identifies the gate that rejected an attempt.
type Code string

const (
	WrongItemCount            Code = "WRONG_ITEM_COUNT"
	InvalidCategory           Code = "INVALID_CATEGORY"
	DuplicateResolutionMarker Code = "DUPLICATE_RESOLUTION_MARKER"
	MissingRequiredResolution Code = "MISSING_REQUIRED_RESOLUTION"
	DuplicateSection          Code = "DUPLICATE_SECTION"
	NoveltyViolation          Code = "NOVELTY_VIOLATION"
)

// Error is one triggered gate failure. It is feedback for the model,
// not a Go error — validation failures are recoverable.
type Error struct {
	Code   Code   `json:"code"`
	Detail string `json:"detail,omitempty"`
}

func (e Error) String() string {
	if e.Detail == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

// Rules holds the caller-supplied validation policy for one pipeline
// invocation. Passed explicitly — never ambient state.
type Rules struct {
	ExpectedItemCount int
	AllowedCategories []string
	// RequireResolution demands a resolution statement whenever a
	// prior brief is supplied. Off by default.
	RequireResolution bool
	NoveltyCheck      bool
}

// RunGates evaluates every gate against the attempt. The returned
// novelty report is nil unless the novelty gate actually ran. An empty
// error slice means the attempt is accepted.
func RunGates(attempt *extract.Attempt, rules Rules, prior *extract.Attempt) ([]Error, *novelty.Report) {
	var errs []Error

	// Item count: the ranked-entry list has fixed cardinality.
	if len(attempt.Items) != rules.ExpectedItemCount {
		errs = append(errs, Error{
			Code:   WrongItemCount,
			Detail: fmt.Sprintf("found %d ranked entries, want exactly %d", len(attempt.Items), rules.ExpectedItemCount),
		})
	}

	// Category validity: exact string match against the allow-list.
	// An empty allow-list means the caller imposed no category policy.
	if len(rules.AllowedCategories) > 0 {
		allowed := make(map[string]struct{}, len(rules.AllowedCategories))
		for _, c := range rules.AllowedCategories {
			allowed[c] = struct{}{}
		}
		for _, cat := range attempt.Categories {
			if _, ok := allowed[cat]; !ok {
				errs = append(errs, Error{
					Code:   InvalidCategory,
					Detail: fmt.Sprintf("category %q is not in the allowed set %v", cat, rules.AllowedCategories),
				})
			}
		}
	}

	// Resolution marker: at most one occurrence, counted on the raw
	// text independently of what extraction recovered.
	markers := extract.MarkerCount(attempt.RawText)
	if markers > 1 {
		errs = append(errs, Error{
			Code:   DuplicateResolutionMarker,
			Detail: fmt.Sprintf("resolution marker appears %d times, want at most 1", markers),
		})
	}
	if rules.RequireResolution && prior != nil && markers == 0 {
		errs = append(errs, Error{
			Code:   MissingRequiredResolution,
			Detail: "a prior brief exists but the document carries no resolution statement",
		})
	}

	// Section uniqueness: designated headings may appear once.
	for _, heading := range extract.SingleOccurrenceHeadings {
		if n := extract.HeadingCount(attempt.RawText, heading); n > 1 {
			errs = append(errs, Error{
				Code:   DuplicateSection,
				Detail: fmt.Sprintf("section %q appears %d times", heading, n),
			})
		}
	}

	// Novelty: compare ranked-entry titles against the prior brief's.
	var report *novelty.Report
	if rules.NoveltyCheck && prior != nil {
		r := novelty.CompareAll(extract.Titles(attempt.Items), extract.Titles(prior.Items))
		report = &r
		for _, p := range r.Pairs {
			errs = append(errs, Error{
				Code:   NoveltyViolation,
				Detail: fmt.Sprintf("%q repeats prior entry %q (score %.2f, %s)", p.Candidate, p.Reference, p.Score, p.Reason),
			})
		}
	}

	return errs, report
}
