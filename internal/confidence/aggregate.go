// Package confidence rolls word-level recognizer confidences up to line,
// page, and document scores on the 0-100 reporting scale.
package confidence

import (
	"sort"

	"github.com/sells-group/intake-cli/internal/model"
)

// PageSummary is the per-page rollup: mean and minimum of line confidences.
type PageSummary struct {
	Avg   float64
	Min   float64
	Lines int
}

// Line computes the length-weighted mean confidence of one line's words,
// scaled to 0-100. Longer words weigh more since short common words are the
// noisiest part of recognizer output. An empty line scores 0.
func Line(words []model.RecognizedWord) float64 {
	var weighted, totalLen float64
	for _, w := range words {
		n := float64(len([]rune(w.Text)))
		if n == 0 {
			continue
		}
		weighted += w.Confidence * n
		totalLen += n
	}
	if totalLen == 0 {
		return 0
	}
	return clamp(weighted / totalLen * 100)
}

// Page groups a page's words into lines by vertical position and returns the
// mean and minimum line confidence. An empty page yields (0, 0), not an
// error, since blank pages are legitimate.
func Page(p model.Page) PageSummary {
	lines := groupLines(p.Words)
	if len(lines) == 0 {
		return PageSummary{}
	}

	sum := 0.0
	min := 101.0
	for _, line := range lines {
		c := Line(line)
		sum += c
		if c < min {
			min = c
		}
	}
	return PageSummary{
		Avg:   clamp(sum / float64(len(lines))),
		Min:   clamp(min),
		Lines: len(lines),
	}
}

// Document aggregates page summaries into a ConfidenceSummary: the document
// average is the mean of page averages, the document minimum the minimum of
// page minimums. Recompute whenever the word set changes.
func Document(pages []model.Page) model.ConfidenceSummary {
	if len(pages) == 0 {
		return model.ConfidenceSummary{}
	}

	summary := model.ConfidenceSummary{
		Pages: make([]model.PageConfidence, 0, len(pages)),
	}

	sum := 0.0
	min := 101.0
	for _, p := range pages {
		ps := Page(p)
		summary.Pages = append(summary.Pages, model.PageConfidence{
			PageIndex: p.Index,
			Avg:       ps.Avg,
			Min:       ps.Min,
			Lines:     ps.Lines,
		})
		sum += ps.Avg
		if ps.Min < min {
			min = ps.Min
		}
	}

	summary.AvgConfPage = clamp(sum / float64(len(pages)))
	summary.MinConfLine = clamp(min)
	summary.AvgConfDocument = summary.AvgConfPage
	return summary
}

// groupLines buckets words into lines by vertical overlap of their boxes.
// Words whose vertical centers fall within half a word height of each other
// belong to the same line.
func groupLines(words []model.RecognizedWord) [][]model.RecognizedWord {
	if len(words) == 0 {
		return nil
	}

	sorted := make([]model.RecognizedWord, len(words))
	copy(sorted, words)
	sort.SliceStable(sorted, func(i, j int) bool {
		return center(sorted[i]) < center(sorted[j])
	})

	var lines [][]model.RecognizedWord
	current := []model.RecognizedWord{sorted[0]}
	anchor := sorted[0]

	for _, w := range sorted[1:] {
		tol := anchor.Box.Height / 2
		if tol <= 0 {
			tol = 0.5
		}
		if center(w)-center(anchor) <= tol {
			current = append(current, w)
			continue
		}
		lines = append(lines, current)
		current = []model.RecognizedWord{w}
		anchor = w
	}
	return append(lines, current)
}

func center(w model.RecognizedWord) float64 {
	return w.Box.Y + w.Box.Height/2
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
