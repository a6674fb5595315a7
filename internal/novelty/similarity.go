// Package novelty scores lexical overlap between generated brief
// titles and a prior brief's titles, to catch near-identical
// restatement. Scoring is purely lexical (normalized tokens + bigram
// Jaccard) — no embeddings, no semantics.
package novelty

import (
	"github.com/mtholland/briefgen/internal/textnorm"
)

// Reason classifies why a pair was flagged.
type Reason string

const (
	// ReasonExact means both texts normalize to the same token sequence.
	ReasonExact Reason = "exact"
	// ReasonHighSimilarity means bigram Jaccard met the threshold.
	ReasonHighSimilarity Reason = "high_similarity"
)

// Thresholds for the bigram Jaccard path. Short phrases collide on
// chance bigram overlap more easily, so the bar is stricter for them.
const (
	shortSeqTokens  = 6
	shortThreshold  = 0.50
	normalThreshold = 0.60
)

// Match is the verdict for a single candidate/reference pair.
// A zero Reason means the pair is not a collision.
type Match struct {
	Score  float64 `json:"score"`
	Reason Reason  `json:"reason,omitempty"`
}

// Pair records one flagged collision.
type Pair struct {
	Candidate string  `json:"candidate"`
	Reference string  `json:"reference"`
	Score     float64 `json:"score"`
	Reason    Reason  `json:"reason"`
}

// Report aggregates the verdict over all candidate×reference pairs.
type Report struct {
	Pass     bool    `json:"pass"`
	MaxScore float64 `json:"max_score"`
	Pairs    []Pair  `json:"pairs,omitempty"`
}

// Score compares two texts. Exact match after normalization wins over
// the bigram path, including when both inputs normalize to nothing.
func Score(candidate, reference string) Match {
	cTokens := textnorm.Normalize(candidate)
	rTokens := textnorm.Normalize(reference)

	if textnorm.Join(cTokens) == textnorm.Join(rTokens) {
		return Match{Score: 1.0, Reason: ReasonExact}
	}

	sim := bigramJaccard(textnorm.Bigrams(cTokens), textnorm.Bigrams(rTokens))

	threshold := normalThreshold
	if len(cTokens) <= shortSeqTokens || len(rTokens) <= shortSeqTokens {
		threshold = shortThreshold
	}

	m := Match{Score: sim}
	if sim >= threshold {
		m.Reason = ReasonHighSimilarity
	}
	return m
}

// CompareAll scores every ordered (candidate, reference) pair,
// candidates outer. MaxScore tracks the highest score seen whether or
// not it was flagged; Pass is false iff any pair collided.
func CompareAll(candidates, references []string) Report {
	report := Report{Pass: true}
	for _, c := range candidates {
		for _, r := range references {
			m := Score(c, r)
			if m.Score > report.MaxScore {
				report.MaxScore = m.Score
			}
			if m.Reason == "" {
				continue
			}
			report.Pairs = append(report.Pairs, Pair{
				Candidate: c,
				Reference: r,
				Score:     m.Score,
				Reason:    m.Reason,
			})
		}
	}
	report.Pass = len(report.Pairs) == 0
	return report
}

// bigramJaccard computes intersection/union over bigram sets. Two
// empty sets count as identical; exactly one empty set as disjoint.
func bigramJaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
