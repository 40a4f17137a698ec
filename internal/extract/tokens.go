package extract

import (
	"path/filepath"
	"strings"
	"unicode"
)

// Tokenize splits text into lower-cased word tokens. Tokens shorter than two
// runes are dropped.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= 2 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// PathTokens tokenizes a filename or path, splitting on separators,
// punctuation and camelCase boundaries. The extension is dropped.
func PathTokens(path string) []string {
	if path == "" {
		return nil
	}
	path = strings.TrimSuffix(path, filepath.Ext(path))

	var b strings.Builder
	var prev rune
	for i, r := range path {
		if i > 0 && unicode.IsUpper(r) && unicode.IsLower(prev) {
			b.WriteRune(' ')
		}
		b.WriteRune(r)
		prev = r
	}
	return Tokenize(b.String())
}

// InformationDensity returns the ratio of unique to total tokens in [0,1].
// Empty text has density 0.
func InformationDensity(text string) (density float64, unique int, total int) {
	tokens := Tokenize(VisibleText(text))
	if len(tokens) == 0 {
		return 0, 0, 0
	}

	seen := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		seen[t] = true
	}
	return float64(len(seen)) / float64(len(tokens)), len(seen), len(tokens)
}

// MatchKeywords returns the distinct keywords present among tokens, in keyword order
func MatchKeywords(tokens []string, keywords []string) []string {
	if len(tokens) == 0 || len(keywords) == 0 {
		return nil
	}

	present := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		present[t] = true
	}

	seen := make(map[string]bool)
	var matched []string
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || seen[k] {
			continue
		}
		if present[k] {
			seen[k] = true
			matched = append(matched, k)
		}
	}
	return matched
}
