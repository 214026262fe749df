// Package fuzzy provides the normalization and similarity primitives shared by
// entity extraction and entity resolution, so that confidences from both stages
// are on the same scale.
package fuzzy

import (
	"strings"
	"unicode"
)

// Normalize lowercases s, removes punctuation and symbols, and collapses runs of
// whitespace to a single space.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsSpace(r):
			space = true
		default:
			// punctuation is dropped without introducing a word break, so
			// "Mordenkainen's" and "Mordenkainens" normalize alike.
		}
	}
	return b.String()
}

// Ratio returns 1 - distance/maxLen for two already-normalized strings.
// Two empty strings are identical.
func Ratio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	la, lb := len([]rune(a)), len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1.0
	}
	d := LevenshteinDistance(a, b)
	return 1.0 - float64(d)/float64(longest)
}

// Similarity normalizes both inputs and returns their Ratio in [0,1].
func Similarity(a, b string) float64 {
	return Ratio(Normalize(a), Normalize(b))
}

// Contains reports whether the normalized needle occurs in the normalized
// haystack on word boundaries.
func Contains(haystack, needle string) bool {
	return ContainsNormalized(Normalize(haystack), Normalize(needle))
}

// ContainsNormalized is Contains for inputs that are already normalized.
func ContainsNormalized(haystack, needle string) bool {
	if needle == "" || haystack == "" {
		return false
	}
	return strings.Contains(" "+haystack+" ", " "+needle+" ")
}
