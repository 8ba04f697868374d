// Package similarity scores how alike two short strings are using
// normalized Levenshtein distance.
package similarity

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Similarity returns a score in [0, 1]. Blank inputs score 0, strings equal
// ignoring case score 1, everything else scores 1 - distance/longest where
// lengths are counted in runes.
func Similarity(a, b string) float64 {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a == "" || b == "" {
		return 0
	}

	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la == lb {
		return 1
	}

	longest := utf8.RuneCountInString(la)
	if n := utf8.RuneCountInString(lb); n > longest {
		longest = n
	}
	if longest == 0 {
		return 0
	}

	score := 1 - float64(Distance(la, lb))/float64(longest)
	if score < 0 {
		return 0
	}
	return score
}

// Distance is the unit-cost edit distance between a and b (insert, delete,
// substitute; no transpositions), computed over runes.
func Distance(a, b string) int {
	return levenshtein.ComputeDistance(a, b)
}
