package normalizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeHeader lower-cases and trims a column header and strips its
// diacritics via canonical decomposition, so "Descripción" and
// "descripcion" compare equal.
func NormalizeHeader(header string) string {
	h := strings.ToLower(strings.TrimSpace(header))
	return FoldDiacritics(h)
}

// FoldDiacritics removes combining marks after NFD decomposition.
func FoldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
