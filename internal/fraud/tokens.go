package fraud

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// tokenize lowercases text after NFKC folding and splits it into word tokens.
// A token is a maximal run of letters, digits and underscores.
func tokenize(text string) []string {
	folded := strings.ToLower(norm.NFKC.String(text))
	return strings.FieldsFunc(folded, func(r rune) bool {
		return !isWordRune(r)
	})
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}

// countSequence counts non-overlapping occurrences of seq in tokens.
func countSequence(tokens, seq []string) int {
	if len(seq) == 0 || len(seq) > len(tokens) {
		return 0
	}
	count := 0
	for i := 0; i+len(seq) <= len(tokens); {
		if tokens[i] == seq[0] && equalTokens(tokens[i:i+len(seq)], seq) {
			count++
			i += len(seq)
			continue
		}
		i++
	}
	return count
}

func equalTokens(a, b []string) bool {
	for i := range b {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
