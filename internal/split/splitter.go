// Package split partitions a multi-page submission into per-document page
// ranges. Pages are scanned for document-start signals; pages without any
// signal continue the previous block. The splitter never discards input:
// suspicious blocks are emitted with RequiresManualReview set.
package split

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/intake-cli/internal/config"
	"github.com/sells-group/intake-cli/internal/confidence"
	"github.com/sells-group/intake-cli/internal/model"
)

var (
	// Invoice/reference number, e.g. "Invoice INV-001", "Anfoneb No: 2024/17".
	refRe = regexp.MustCompile(`(?i)\b(?:invoice|anfoneb|inv)\s*(?:no|number|#|rhif)?\s*[:#]?\s*([A-Z0-9][A-Z0-9\-/]{2,})`)

	// Page-numbering reset: "Page 1 of 4", "Tudalen 1 o 3", "P1/3".
	pageOneRe = regexp.MustCompile(`(?i)\b(?:page|tudalen|p)\s*\.?\s*1\s*(?:of|o|/)\s*\d+`)
	pageNumRe = regexp.MustCompile(`(?i)\b(?:page|tudalen|p)\s*\.?\s*(\d+)\s*(?:of|o|/)\s*\d+`)
)

// pageSignals holds the document-start evidence found on a single page.
type pageSignals struct {
	refs       []string
	supplier   string
	pageReset  bool
	pageNumber int // 0 when absent
	hasAny     bool
}

// Split partitions pages into InvoiceBlocks. Zero pages yields an empty
// result; pages with no signals at all yield a single block spanning
// everything. Deterministic: the same page set always produces the same
// boundaries.
func Split(pages []model.Page, cfg config.SplitConfig) []model.InvoiceBlock {
	if len(pages) == 0 {
		return nil
	}

	signals := make([]pageSignals, len(pages))
	for i, p := range pages {
		signals[i] = scanPage(p)
	}

	var blocks []model.InvoiceBlock
	cur := newBlock(pages[0].Index, signals[0])

	for i := 1; i < len(pages); i++ {
		s := signals[i]
		if startsNewDocument(cur, s) {
			blocks = append(blocks, cur.finish(pages, cfg))
			cur = newBlock(pages[i].Index, s)
			continue
		}
		cur.extend(pages[i].Index, s)
	}
	blocks = append(blocks, cur.finish(pages, cfg))

	zap.L().Debug("split: partitioned submission",
		zap.Int("pages", len(pages)),
		zap.Int("blocks", len(blocks)),
	)
	return blocks
}

// startsNewDocument decides whether page signals s open a new block given the
// block built so far. A repeated letterhead (same supplier, same reference)
// on a continuation page must NOT force a split.
func startsNewDocument(cur *blockBuilder, s pageSignals) bool {
	if !s.hasAny {
		return false
	}

	// A fresh reference number that differs from everything seen in the
	// current block is the strongest start signal.
	if len(s.refs) > 0 && !cur.sharesRef(s.refs) {
		return true
	}

	// Page numbering restarted at 1 after the block already advanced past
	// its own page 1.
	if s.pageReset && cur.sawPastPageOne {
		return true
	}

	// New supplier header with no reference carried over.
	if s.supplier != "" && cur.supplier != "" && !sameHeader(s.supplier, cur.supplier) && len(s.refs) == 0 {
		return true
	}

	return false
}

// blockBuilder accumulates one block's pages and signals.
type blockBuilder struct {
	start, end     int
	refs           map[string]bool
	supplier       string
	conflict       bool
	sawPastPageOne bool
}

func newBlock(pageIndex int, s pageSignals) *blockBuilder {
	b := &blockBuilder{
		start: pageIndex,
		end:   pageIndex,
		refs:  make(map[string]bool),
	}
	b.absorb(s)
	return b
}

func (b *blockBuilder) extend(pageIndex int, s pageSignals) {
	b.end = pageIndex
	b.absorb(s)
}

func (b *blockBuilder) absorb(s pageSignals) {
	for _, r := range s.refs {
		b.refs[r] = true
	}
	// More than one distinct reference inside a block means the header
	// signals conflict.
	if len(b.refs) > 1 {
		b.conflict = true
	}
	if s.supplier != "" {
		if b.supplier == "" {
			b.supplier = s.supplier
		} else if !sameHeader(b.supplier, s.supplier) {
			b.conflict = true
		}
	}
	if s.pageNumber > 1 {
		b.sawPastPageOne = true
	}
	if s.pageNumber == 1 {
		b.sawPastPageOne = false
	}
}

func (b *blockBuilder) sharesRef(refs []string) bool {
	for _, r := range refs {
		if b.refs[r] {
			return true
		}
	}
	return false
}

func (b *blockBuilder) finish(pages []model.Page, cfg config.SplitConfig) model.InvoiceBlock {
	member := pagesInRange(pages, b.start, b.end)
	conf := confidence.Document(member)

	blk := model.InvoiceBlock{
		PageStart:  b.start,
		PageEnd:    b.end,
		Confidence: conf.AvgConfDocument,
	}
	if b.conflict {
		blk.RequiresManualReview = true
		blk.Reasons = append(blk.Reasons, "conflicting header signals")
	}
	if conf.AvgConfDocument < cfg.ReviewConfidence {
		blk.RequiresManualReview = true
		blk.Reasons = append(blk.Reasons, "low aggregated confidence")
	}
	if cfg.MaxBlockPages > 0 && blk.PageCount() > cfg.MaxBlockPages {
		blk.RequiresManualReview = true
		blk.Reasons = append(blk.Reasons, "block exceeds page limit")
	}
	return blk
}

func pagesInRange(pages []model.Page, start, end int) []model.Page {
	var out []model.Page
	for _, p := range pages {
		if p.Index >= start && p.Index <= end {
			out = append(out, p)
		}
	}
	return out
}

// scanPage extracts document-start signals from one page.
func scanPage(p model.Page) pageSignals {
	var s pageSignals

	for _, m := range refRe.FindAllStringSubmatch(p.Text, -1) {
		ref := strings.ToUpper(strings.TrimSpace(m[1]))
		if ref != "" && !contains(s.refs, ref) {
			s.refs = append(s.refs, ref)
		}
	}

	s.supplier = headerLine(p.Text)
	s.pageReset = pageOneRe.MatchString(p.Text)
	if m := pageNumRe.FindStringSubmatch(p.Text); m != nil {
		if n := atoiSafe(m[1]); n > 0 {
			s.pageNumber = n
		}
	}

	s.hasAny = len(s.refs) > 0 || s.pageReset || s.supplier != ""
	return s
}

// companyMarkers identify a letterhead line as a supplier header. Plain
// continuation prose must not register as a header, so a company-form token
// is required.
var companyMarkers = []string{
	" LTD", " LIMITED", " PLC", " LLP", " LLC",
	" CYF", " CYFYNGEDIG", " CCC",
	" SUPPLIES", " WHOLESALE", " & CO", " AND CO",
}

// headerLine returns the first plausible supplier header line: an early,
// mostly-alphabetic line carrying a company-form marker.
func headerLine(text string) string {
	for _, line := range strings.SplitN(text, "\n", 6) {
		line = strings.TrimSpace(line)
		if line == "" || refRe.MatchString(line) || pageNumRe.MatchString(line) {
			continue
		}
		upper := strings.ToUpper(line)
		for _, marker := range companyMarkers {
			if strings.Contains(upper, marker) {
				return upper
			}
		}
	}
	return ""
}

func sameHeader(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}
