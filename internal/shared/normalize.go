package shared

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FoldName returns the case-insensitive identity of a name: Unicode case
// folded, trimmed and with runs of whitespace collapsed. Punctuation and
// accents are kept, so "AC/DC" and "ACDC" stay distinct artists.
func FoldName(name string) string {
	return strings.Join(strings.Fields(cases.Fold().String(name)), " ")
}

// NormalizeTitle produces the loose comparison form used for dedup keys:
// accents removed, lowercased, punctuation stripped and whitespace collapsed.
//
// "ABBEY ROAD!" and "Abbey  Road" both normalize to "abbey road".
func NormalizeTitle(s string) string {
	stripAccents := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(stripAccents, s)
	if err != nil {
		folded = s
	}
	folded = cases.Fold().String(folded)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// NormalizeKey joins the normalized form of each part with "|".
// Returns an empty string when every part normalizes to nothing.
func NormalizeKey(parts ...string) string {
	normalized := make([]string, len(parts))
	empty := true
	for i, p := range parts {
		normalized[i] = NormalizeTitle(p)
		if normalized[i] != "" {
			empty = false
		}
	}
	if empty {
		return ""
	}
	return strings.Join(normalized, "|")
}
