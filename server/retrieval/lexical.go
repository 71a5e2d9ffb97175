package retrieval

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// nonWordPattern matches anything that is neither a word character nor whitespace.
var nonWordPattern = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)

// Tokenize lowercases text, turns punctuation into spaces and returns the
// distinct tokens longer than one character.
func Tokenize(text string) map[string]struct{} {
	normalized := nonWordPattern.ReplaceAllString(strings.ToLower(text), " ")
	tokens := make(map[string]struct{})
	for _, field := range strings.Fields(normalized) {
		if utf8.RuneCountInString(field) > 1 {
			tokens[field] = struct{}{}
		}
	}
	return tokens
}

// Jaccard returns |A∩B| / |A∪B| over the token sets of a and b, or 0 when both are empty.
func Jaccard(a, b string) float64 {
	setA, setB := Tokenize(a), Tokenize(b)
	if len(setA) > len(setB) {
		setA, setB = setB, setA
	}
	intersection := 0
	for token := range setA {
		if _, ok := setB[token]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
