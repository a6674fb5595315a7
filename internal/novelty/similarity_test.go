package novelty

import "testing"

func TestScoreExact(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		reference string
	}{
		{
			name:      "identical strings",
			candidate: "Legal gating: model risk assessment required",
			reference: "Legal gating: model risk assessment required",
		},
		{
			name:      "equal after normalization",
			candidate: "The quick brown fox jumps",
			reference: "Quick brown fox jumping",
		},
		{
			name:      "case and punctuation differences",
			candidate: "Ship payment audit!",
			reference: "ship PAYMENT audit",
		},
		{
			name:      "both empty",
			candidate: "",
			reference: "",
		},
		{
			name:      "both reduce to nothing",
			candidate: "the of and",
			reference: "...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Score(tt.candidate, tt.reference)
			if m.Reason != ReasonExact {
				t.Fatalf("reason = %q, want %q", m.Reason, ReasonExact)
			}
			if m.Score != 1.0 {
				t.Fatalf("score = %v, want 1.0", m.Score)
			}
		})
	}
}

func TestScoreHighSimilarity(t *testing.T) {
	// Bigram overlap 4/7 with a ≤6-token candidate, so the 0.50
	// threshold applies.
	m := Score(
		"Legal gating: model risk assessment required",
		"Legal gating: model risk assessment still required",
	)
	if m.Reason != ReasonHighSimilarity {
		t.Fatalf("reason = %q, want %q", m.Reason, ReasonHighSimilarity)
	}
	if m.Score < 0.5 {
		t.Fatalf("score = %v, want >= 0.5", m.Score)
	}
}

func TestScoreDissimilar(t *testing.T) {
	m := Score(
		"Legal gating: model risk assessment required",
		"Pilot timeline forces narrower MVP scope",
	)
	if m.Reason != "" {
		t.Fatalf("reason = %q, want none", m.Reason)
	}
	if m.Score != 0 {
		t.Fatalf("score = %v, want 0", m.Score)
	}
}

func TestScoreSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"Legal gating: model risk assessment required", "Legal gating: model risk assessment still required"},
		{"The quick brown fox jumps", "Quick brown fox jumping"},
		{"Ship payment audit", "Pilot timeline forces narrower MVP scope"},
		{"", "alpha"},
	}
	for _, p := range pairs {
		ab := Score(p[0], p[1])
		ba := Score(p[1], p[0])
		if ab != ba {
			t.Fatalf("score not symmetric for %q / %q: %+v vs %+v", p[0], p[1], ab, ba)
		}
	}
}

func TestScoreSingleTokenPair(t *testing.T) {
	// Two distinct single tokens both have empty bigram sets, which is
	// treated as identical under the bigram path.
	m := Score("alpha", "beta")
	if m.Reason != ReasonHighSimilarity {
		t.Fatalf("reason = %q, want %q", m.Reason, ReasonHighSimilarity)
	}
	if m.Score != 1.0 {
		t.Fatalf("score = %v, want 1.0", m.Score)
	}
}

func TestScoreOneSideEmpty(t *testing.T) {
	m := Score("", "quick brown fox")
	if m.Reason != "" {
		t.Fatalf("reason = %q, want none", m.Reason)
	}
	if m.Score != 0 {
		t.Fatalf("score = %v, want 0", m.Score)
	}
}

func TestCompareAll(t *testing.T) {
	candidates := []string{
		"Legal gating: model risk assessment required",
		"Hire two data engineers",
	}
	references := []string{
		"Legal gating: model risk assessment required",
		"Pilot timeline forces narrower MVP scope",
	}

	report := CompareAll(candidates, references)
	if report.Pass {
		t.Fatal("expected report to fail with one exact collision")
	}
	if len(report.Pairs) != 1 {
		t.Fatalf("pairs = %d, want 1", len(report.Pairs))
	}
	p := report.Pairs[0]
	if p.Reason != ReasonExact || p.Score != 1.0 {
		t.Fatalf("unexpected pair: %+v", p)
	}
	if p.Candidate != candidates[0] || p.Reference != references[0] {
		t.Fatalf("pair references wrong texts: %+v", p)
	}
	if report.MaxScore != 1.0 {
		t.Fatalf("max score = %v, want 1.0", report.MaxScore)
	}
}

func TestCompareAllPassTracksMaxScore(t *testing.T) {
	report := CompareAll(
		[]string{"Expand churn dashboard coverage across all regions now"},
		[]string{"Refresh churn dashboard styling for all paid regions today"},
	)
	if !report.Pass {
		t.Fatalf("expected pass, got pairs %+v", report.Pairs)
	}
	if report.MaxScore <= 0 {
		t.Fatalf("max score should record sub-threshold overlap, got %v", report.MaxScore)
	}
}

func TestCompareAllEmptyInputs(t *testing.T) {
	report := CompareAll(nil, []string{"something"})
	if !report.Pass || len(report.Pairs) != 0 || report.MaxScore != 0 {
		t.Fatalf("empty candidates should trivially pass, got %+v", report)
	}
}
