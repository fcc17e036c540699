package menu

import "strings"

// fuzzy.go provides the near-match check used to surface "did you mean"
// suggestions when a bulk row's category name is close to, but not
// identical to, an existing category.

// suggestionThreshold is the minimum normalized similarity for a category
// suggestion. Below this, names are considered unrelated.
const suggestionThreshold = 0.75

// levenshtein computes the edit distance between two strings using two
// rolling rows, O(min(len(a), len(b))) space.
func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	if len(a) > len(b) {
		a, b = b, a
	}

	prev := make([]int, len(a)+1)
	curr := make([]int, len(a)+1)
	for i := range prev {
		prev[i] = i
	}

	for j := 1; j <= len(b); j++ {
		curr[0] = j
		for i := 1; i <= len(a); i++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			curr[i] = min3(
				prev[i]+1,      // deletion
				curr[i-1]+1,    // insertion
				prev[i-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(a)]
}

// similarity returns a normalized score in [0, 1]; 1.0 means identical.
func similarity(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	return 1.0 - float64(levenshtein(a, b))/float64(maxLen)
}

// suggestCategory returns the closest existing category name when the typed
// name is near but not identical to it, and "" when nothing is close
// enough. Comparison is case-insensitive; an exact (case-insensitive) match
// yields no suggestion since the row will simply reuse that category.
func suggestCategory(typed string, existing []string) string {
	typedLower := strings.ToLower(strings.TrimSpace(typed))
	if typedLower == "" {
		return ""
	}

	best := ""
	bestScore := 0.0
	for _, name := range existing {
		nameLower := strings.ToLower(name)
		if nameLower == typedLower {
			return ""
		}
		if score := similarity(typedLower, nameLower); score > bestScore {
			bestScore = score
			best = name
		}
	}

	if bestScore >= suggestionThreshold {
		return best
	}
	return ""
}

func min3(a, b, c int) int {
	if a < b {
		if a < c {
			return a
		}
		return c
	}
	if b < c {
		return b
	}
	return c
}
