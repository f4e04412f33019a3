package dedup

import (
	"strings"
	"unicode"
)

// NormalizeTitle lowercases a title, folds accents and collapses every run
// of punctuation and whitespace into a single space.
func NormalizeTitle(title string) string {
	title = strings.ToLower(foldAccents(title))
	return strings.Join(strings.FieldsFunc(title, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}), " ")
}

type tokenSet map[string]struct{}

func titleTokens(normalized string) tokenSet {
	fields := strings.Fields(normalized)
	set := make(tokenSet, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// TitleOverlap returns the token-set overlap of two titles: the number of
// shared distinct tokens divided by the size of the larger token set. It is
// symmetric, 1 for titles that normalize identically and 0 when either
// title has no tokens.
func TitleOverlap(a, b string) float64 {
	return overlap(titleTokens(NormalizeTitle(a)), titleTokens(NormalizeTitle(b)))
}

func overlap(a, b tokenSet) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(a) > len(b) {
		a, b = b, a
	}
	shared := 0
	for t := range a {
		if _, ok := b[t]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(b))
}
