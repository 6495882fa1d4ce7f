package reconcile

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// minTokenLen is the shortest token kept by WordSetSimilarity; shorter words
// are mostly connectors ("of", "in", "to").
const minTokenLen = 3

// Normalize lowercases s, drops every character that is neither a word
// character nor whitespace, and collapses whitespace.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_':
			return r
		case unicode.IsSpace(r):
			return ' '
		}
		return -1
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		if utf8.RuneCountInString(w) < minTokenLen {
			continue
		}
		set[w] = struct{}{}
	}
	return set
}

// WordSetSimilarity is the Jaccard index of the word sets of a and b, which
// should already be normalized. Two empty sets score 1, one empty set scores 0.
func WordSetSimilarity(a, b string) float64 {
	sa, sb := wordSet(a), wordSet(b)
	if len(sa) == 0 && len(sb) == 0 {
		return 1
	}
	if len(sa) == 0 || len(sb) == 0 {
		return 0
	}
	inter := 0
	for w := range sa {
		if _, ok := sb[w]; ok {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	return float64(inter) / float64(union)
}
