// Package classify assigns a document type and confidence to a block of
// recognized text. Scoring is deterministic: keyword hits (2x) plus field
// pattern hits (1x) per type, with a negative lexicon that can force
// doc_type=other regardless of positive evidence.
package classify

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/intake-cli/internal/config"
	"github.com/sells-group/intake-cli/internal/model"
)

const (
	keywordWeight = 2
	patternWeight = 1

	// Score shape ported from the legacy classifier: base 0.50, +0.10 per
	// point of lead over the runner-up, +0.05 per point of absolute
	// evidence, capped at 0.95.
	baseScore     = 0.50
	leadStep      = 0.10
	evidenceStep  = 0.05
	comboBoost    = 0.10
	maxScore      = 0.95
	ambiguousCap  = 0.60
	ambiguousBase = 0.30
)

// Classify scores text against the lexicon and returns the winning type with
// its score and the evidence that produced it. It never fails: empty or
// garbage input degrades to doc_type=other with score near zero.
func Classify(text string, lex *Lexicon, cfg config.ClassifyConfig) model.ClassificationResult {
	lang := DetectLanguage(text)

	if len(strings.TrimSpace(text)) < cfg.MinTextLength {
		return model.ClassificationResult{
			DocType:  model.DocTypeOther,
			Score:    0,
			Language: lang,
			Reasons:  []string{"text too short for classification"},
		}
	}

	lower := strings.ToLower(text)

	// Negative lexicon first: menu-like vocabulary overrides everything.
	negHits := matchedTerms(lower, lex.Negative)
	if len(negHits) >= cfg.NegativeHits {
		return model.ClassificationResult{
			DocType:  model.DocTypeOther,
			Score:    0.90,
			Language: lang,
			Reasons:  []string{fmt.Sprintf("negative lexicon: %s", strings.Join(cap3(negHits), ", "))},
		}
	}

	type typeScore struct {
		docType  model.DocType
		keywords []string
		patterns int
		total    int
	}

	scores := make([]typeScore, 0, 4)
	for _, dt := range []model.DocType{
		model.DocTypeInvoice,
		model.DocTypeDeliveryNote,
		model.DocTypeReceipt,
		model.DocTypeUtility,
	} {
		ts := typeScore{docType: dt}
		for _, set := range lex.keywordsFor(lang) {
			for _, hit := range matchedTerms(lower, set[dt]) {
				if !containsString(ts.keywords, hit) {
					ts.keywords = append(ts.keywords, hit)
				}
			}
		}
		for _, re := range lex.compiled[dt] {
			if re.MatchString(text) {
				ts.patterns++
			}
		}
		ts.total = len(ts.keywords)*keywordWeight + ts.patterns*patternWeight
		scores = append(scores, ts)
	}

	sort.SliceStable(scores, func(i, j int) bool { return scores[i].total > scores[j].total })
	best, second := scores[0], scores[1]

	if best.total == 0 {
		return model.ClassificationResult{
			DocType:  model.DocTypeOther,
			Score:    0,
			Language: lang,
			Reasons:  []string{"no document type indicators found"},
		}
	}

	var reasons []string
	if len(best.keywords) > 0 {
		reasons = append(reasons, fmt.Sprintf("keywords: %s", strings.Join(cap3(best.keywords), ", ")))
	}
	if best.patterns > 0 {
		reasons = append(reasons, fmt.Sprintf("%d field pattern(s) matched", best.patterns))
	}

	// A dead heat between two types is ambiguous, not a coin flip.
	if best.total == second.total {
		score := clampScore(ambiguousBase+float64(best.total)*evidenceStep, ambiguousBase, ambiguousCap)
		reasons = append(reasons, fmt.Sprintf("ambiguous: %s and %s tied", best.docType, second.docType))
		return model.ClassificationResult{
			DocType:  model.DocTypeOther,
			Score:    score,
			Language: lang,
			Reasons:  reasons,
		}
	}

	lead := best.total - second.total
	score := baseScore + float64(lead)*leadStep + float64(best.total)*evidenceStep
	if len(best.keywords) > 0 && best.patterns > 0 {
		score += comboBoost
		reasons = append(reasons, "both keywords and field patterns present")
	}
	score = clampScore(score, baseScore, maxScore)

	zap.L().Debug("classify: scored document",
		zap.String("doc_type", string(best.docType)),
		zap.Float64("score", score),
		zap.String("language", string(lang)),
	)

	return model.ClassificationResult{
		DocType:  best.docType,
		Score:    score,
		Language: lang,
		Reasons:  reasons,
	}
}

func matchedTerms(lower string, terms []string) []string {
	var hits []string
	for _, term := range terms {
		if strings.Contains(lower, term) {
			hits = append(hits, term)
		}
	}
	return hits
}

func cap3(s []string) []string {
	if len(s) > 3 {
		return s[:3]
	}
	return s
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func clampScore(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
