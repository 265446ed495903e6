// Package similarity provides text similarity utilities for pattern matching.
package similarity

import "strings"

// TokenSet extracts meaningful lowercase tokens from UI text for overlap
// comparison. Short tokens are kept because UI labels are short ("OK",
// "Go"); only pure stop words are dropped.
func TokenSet(text string) map[string]bool {
	tokens := make(map[string]bool)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_')
	})

	stopWords := map[string]bool{
		"the": true, "a": true, "an": true, "is": true, "are": true,
		"and": true, "or": true, "of": true, "to": true, "in": true,
		"on": true, "at": true, "by": true, "for": true, "with": true,
		"this": true, "that": true,
	}

	for _, word := range words {
		if stopWords[word] {
			continue
		}
		tokens[word] = true
	}
	return tokens
}

// Jaccard calculates the Jaccard similarity between two token sets.
// Returns a value between 0 (no overlap) and 1 (identical).
func Jaccard(set1, set2 map[string]bool) float64 {
	if len(set1) == 0 && len(set2) == 0 {
		return 1.0
	}
	if len(set1) == 0 || len(set2) == 0 {
		return 0.0
	}

	intersection := 0
	for term := range set1 {
		if set2[term] {
			intersection++
		}
	}

	union := len(set1) + len(set2) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

// Levenshtein computes the edit distance between two strings.
func Levenshtein(a, b string) int {
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
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// NormalizedLevenshtein maps edit distance to [0,1] where 1 means identical.
func NormalizedLevenshtein(a, b string) float64 {
	if a == b {
		return 1.0
	}
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(Levenshtein(a, b))/float64(maxLen)
}

// Text scores the similarity of two text fragments in [0,1]. Per the matching
// contract: 1.0 when both are empty, 0.0 when exactly one is empty. Otherwise
// the better of token overlap and normalized edit distance is used — token
// overlap degenerates on one-word labels, edit distance on long sentences.
func Text(a, b string) float64 {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a == "" && b == "" {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	jaccard := Jaccard(TokenSet(a), TokenSet(b))
	edit := NormalizedLevenshtein(strings.ToLower(a), strings.ToLower(b))
	if edit > jaccard {
		return edit
	}
	return jaccard
}

// Contains reports whether needle appears inside haystack, case-insensitively.
// Used by the answer integrator's compatibility check.
func Contains(haystack, needle string) bool {
	haystack = strings.ToLower(strings.TrimSpace(haystack))
	needle = strings.ToLower(strings.TrimSpace(needle))
	if needle == "" || haystack == "" {
		return false
	}
	return strings.Contains(haystack, needle) || strings.Contains(needle, haystack)
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
