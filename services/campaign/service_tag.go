package campaign

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeServiceTag lowercases, strips diacritics, collapses whitespace
// runs into "_" and drops every character outside [a-z0-9_].
// NormalizeServiceTag(NormalizeServiceTag(x)) == NormalizeServiceTag(x).
func NormalizeServiceTag(input string) string {
	lowered := strings.ToLower(input)

	stripDiacritics := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(stripDiacritics, lowered)
	if err != nil {
		folded = lowered
	}

	joined := strings.Join(strings.Fields(folded), "_")

	var b strings.Builder
	b.Grow(len(joined))
	for _, r := range joined {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
