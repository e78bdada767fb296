// Package textutil provides the pure text comparison helpers used by the
// deduplication engine: URL hashing, title normalization and Levenshtein
// based similarity scoring. All functions are deterministic and side-effect
// free so they can be tested in isolation.
package textutil

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// HashURL returns a stable hex-encoded SHA-256 digest of the canonical URL.
// The URL is hashed byte-equal: case, query string and fragment are all
// preserved, so two URLs differing only in a tracking parameter hash to
// distinct values.
func HashURL(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

// NormalizeTitle prepares a title for fuzzy comparison: NFC unicode
// normalization, lowercasing, punctuation removal and whitespace collapsing.
func NormalizeTitle(s string) string {
	s = norm.NFC.String(s)
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// LevenshteinDistance computes the edit distance between a and b with unit
// cost for insert, delete and substitute. It runs the classic dynamic
// programming recurrence over two rows; titles are short, so no pruning is
// applied.
func LevenshteinDistance(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)

	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)

	for j := 0; j <= len(rb); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}

			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(rb)]
}

// Similarity scores two strings in [0,1] as 1 - distance/maxLen. Two empty
// strings are defined as identical (score 1). The score is symmetric.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}

	la := len([]rune(a))
	lb := len([]rune(b))
	maxLen := max(la, lb)
	if maxLen == 0 {
		return 1
	}

	score := 1 - float64(LevenshteinDistance(a, b))/float64(maxLen)
	if score < 0 {
		return 0
	}
	return score
}

// TitleSimilarity normalizes both titles and scores them, so case and
// punctuation differences never affect the result.
func TitleSimilarity(a, b string) float64 {
	return Similarity(NormalizeTitle(a), NormalizeTitle(b))
}
