// Package template remembers per-supplier extraction hints keyed by a
// normalized supplier identity, so the second invoice from a supplier
// extracts better than the first.
package template

import (
	"strings"
	"unicode"

	"github.com/agext/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Legal-form suffixes stripped from supplier names. Covers the English and
// Welsh company forms seen on UK paperwork.
var legalSuffixes = []string{
	"LTD", "LIMITED", "PLC", "LLP", "LLC", "INC", "CO",
	"CYF", "CYFYNGEDIG", "CCC",
}

var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeKey reduces a supplier name to a canonical matching key:
// uppercase, diacritics folded (ŵ, ŷ, â and friends), punctuation dropped,
// legal-form suffixes stripped, whitespace collapsed.
func NormalizeKey(name string) string {
	folded, _, err := transform.String(deaccent, name)
	if err != nil {
		folded = name
	}
	upper := strings.ToUpper(folded)

	var b strings.Builder
	for _, r := range upper {
		switch {
		case r >= 'A' && r <= 'Z' || r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}

	words := strings.Fields(b.String())
	for len(words) > 1 && isLegalSuffix(words[len(words)-1]) {
		words = words[:len(words)-1]
	}
	return strings.Join(words, " ")
}

// Similarity is a normalized edit-distance score in [0,1]; 1 is identical.
func Similarity(a, b string) float64 {
	return levenshtein.Similarity(a, b, nil)
}

func isLegalSuffix(w string) bool {
	for _, s := range legalSuffixes {
		if w == s {
			return true
		}
	}
	return false
}
