package classify

import (
	"regexp"
	"strings"

	"github.com/sells-group/intake-cli/internal/model"
)

// Small high-frequency lexicons for language detection. Detection only has
// to pick which keyword sets to score with, so coverage beats precision.
var welshMarkers = []string{
	"anfoneb", "cyfanswm", "taw", "dyddiad", "cyflenwi", "derbynneb",
	"rhif", "telerau", "cyfeiriad", "swm", "taliad", "is-gyfanswm",
	"treth", "cwmni", "cyfyngedig", "cyf", "nwy", "trydan", "mesurydd",
}

var englishMarkers = []string{
	"invoice", "total", "vat", "date", "delivery", "receipt",
	"number", "terms", "address", "amount", "payment", "subtotal",
	"tax", "company", "limited", "ltd", "gas", "electricity", "meter",
}

const minLangTokens = 6

var tokenRe = regexp.MustCompile(`\b[\p{L}-]+\b`)

// DetectLanguage scores the text against Welsh and English marker lexicons.
// Indeterminate or very short input defaults to English, the primary
// language, rather than guessing.
func DetectLanguage(text string) model.Language {
	lower := strings.ToLower(text)
	tokens := tokenRe.FindAllString(lower, -1)
	if len(tokens) < minLangTokens {
		return model.LangEnglish
	}

	seen := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		seen[t] = true
	}

	cy := markerHits(seen, welshMarkers)
	en := markerHits(seen, englishMarkers)

	switch {
	case cy >= 2 && en >= 2:
		return model.LangBilingual
	case cy > en:
		return model.LangWelsh
	default:
		return model.LangEnglish
	}
}

func markerHits(seen map[string]bool, markers []string) int {
	n := 0
	for _, m := range markers {
		if seen[m] {
			n++
		}
	}
	return n
}
