// Package textnorm canonicalizes free text into token sequences for
// lexical comparison.
//
// The rules are deliberately crude and fixed: lowercase, strip
// punctuation, drop a small stopword set, and strip a handful of
// common suffixes in priority order ("ing" before "ed" before "s").
// The rule order is a contract — two strings normalize to the same
// sequence only because these exact rules say so. This is not a
// linguistic stemmer and carries no exceptions list.
package textnorm

import "strings"

// stopwords are dropped from every token sequence.
var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "to": {}, "of": {},
	"for": {}, "and": {}, "in": {}, "on": {}, "with": {}, "by": {},
}

// Normalize converts free text into an ordered canonical token
// sequence. Duplicates are preserved; empty input yields nil.
func Normalize(text string) []string {
	text = strings.ToLower(text)

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}

	var tokens []string
	for _, tok := range strings.Fields(b.String()) {
		if _, drop := stopwords[tok]; drop {
			continue
		}
		tokens = append(tokens, stripSuffix(tok))
	}
	return tokens
}

// Join renders a token sequence as its canonical string form.
func Join(tokens []string) string {
	return strings.Join(tokens, " ")
}

// Bigrams returns the set of adjacent token pairs, each encoded as
// "left_right". Sequences shorter than two tokens yield an empty set.
func Bigrams(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for i := 0; i+1 < len(tokens); i++ {
		set[tokens[i]+"_"+tokens[i+1]] = struct{}{}
	}
	return set
}

// stripSuffix applies the three-rule heuristic in priority order.
// A rule only fires when it leaves at least one character behind.
func stripSuffix(tok string) string {
	switch {
	case strings.HasSuffix(tok, "ing") && len(tok) > 3:
		return tok[:len(tok)-3]
	case strings.HasSuffix(tok, "ed") && len(tok) > 2:
		return tok[:len(tok)-2]
	case strings.HasSuffix(tok, "s") && !strings.HasSuffix(tok, "ss") && len(tok) > 1:
		return tok[:len(tok)-1]
	}
	return tok
}
