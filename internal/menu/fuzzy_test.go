package menu

import "testing"

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"abc", "abc", 0},
		{"kitten", "sitting", 3},
		{"appetizer", "appetizers", 1},
		{"mains", "drinks", 5},
	}
	for _, tt := range tests {
		if got := levenshtein(tt.a, tt.b); got != tt.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSuggestCategory(t *testing.T) {
	existing := []string{"Appetizers", "Mains", "Desserts"}

	tests := []struct {
		name  string
		typed string
		want  string
	}{
		{"near miss", "Appetizer", "Appetizers"},
		{"case-only difference is an exact match", "mains", ""},
		{"typo", "Deserts", "Desserts"},
		{"unrelated", "Cocktails", ""},
		{"empty input", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := suggestCategory(tt.typed, existing); got != tt.want {
				t.Errorf("suggestCategory(%q) = %q, want %q", tt.typed, got, tt.want)
			}
		})
	}
}

func TestSuggestCategoryNoCandidates(t *testing.T) {
	if got := suggestCategory("Anything", nil); got != "" {
		t.Errorf("expected no suggestion, got %q", got)
	}
}
