// Package extract pulls header fields and line items out of recognized page
// text. Pattern based and bilingual; a supplier template can bias it but
// extraction must still work cold.
package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/intake-cli/internal/model"
)

var (
	refRe  = regexp.MustCompile(`(?i)\b(?:invoice|anfoneb|inv)\s*(?:no|number|#|rhif)?\s*[:#]?\s*([A-Z0-9][A-Z0-9\-/]{2,})`)
	dateRe = regexp.MustCompile(`(?i)\b(?:invoice\s+date|date|dyddiad)\s*[:.]?\s*(\d{1,2})[/\-](\d{1,2})[/\-](\d{2,4})`)
	rateRe = regexp.MustCompile(`(?i)\b(?:vat|taw)\s*(?:@|at)?\s*(\d+(?:\.\d+)?)\s*%`)

	subtotalRe = regexp.MustCompile(`(?i)\b(?:sub\s*-?\s*total|subtotal|net\s+total|is-gyfanswm)\s*[:.]?\s*([£€$])?\s*(-?[\d,]+\.\d{2})`)
	vatAmtRe   = regexp.MustCompile(`(?i)\b(?:vat|taw)\b[^\n]*?([£€$])\s*(-?[\d,]+\.\d{2})`)
	totalRe    = regexp.MustCompile(`(?i)\b(?:grand\s+total|total\s+due|amount\s+due|cyfanswm\s+i\s+dalu|cyfanswm|total)\s*[:.]?\s*([£€$])?\s*(-?[\d,]+\.\d{2})`)

	// qty  description  unit  total
	lineRe = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)\s+(.{3,}?)\s+[£€$]?(-?[\d,]+\.\d{2})\s+[£€$]?(-?[\d,]+\.\d{2})\s*$`)
	packRe = regexp.MustCompile(`(?i)\b(\d+)\s*x\s*(\d+)\b`)

	// Bare value shapes used when reading inside a known header zone, where
	// position replaces the label.
	bareAmountRe = regexp.MustCompile(`-?[\d,]+\.\d{2}`)
	bareRateRe   = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)
	bareRefRe    = regexp.MustCompile(`\b[A-Z0-9][A-Z0-9\-/]{2,}\b`)

	companyMarkers = []string{
		" LTD", " LIMITED", " PLC", " LLP", " LLC",
		" CYF", " CYFYNGEDIG", " CCC",
		" SUPPLIES", " WHOLESALE", " & CO", " AND CO",
	}
)

// RegexExtractor is the deterministic pattern-based extractor.
type RegexExtractor struct{}

// NewRegexExtractor returns the extractor.
func NewRegexExtractor() *RegexExtractor {
	return &RegexExtractor{}
}

// Field names used as header-zone keys on a supplier template.
const (
	zoneInvoiceNumber = "invoice_number"
	zoneVATRate       = "vat_rate"
	zoneSubtotal      = "subtotal"
	zoneVATAmount     = "vat_amount"
	zoneTotal         = "total"
)

// Extract scans the block's pages. hint may be nil; when present its header
// zones recover fields whose labels were misread, and its display name and
// VAT hint fill the remaining gaps. The returned zones locate each extracted
// header field for the caller to record on the supplier's template.
func (e *RegexExtractor) Extract(pages []model.Page, hint *model.SupplierTemplate) (model.DocumentFields, map[string]model.Region, error) {
	var fields model.DocumentFields
	text := joinPages(pages)

	if m := refRe.FindStringSubmatch(text); m != nil {
		fields.InvoiceNumber = strings.ToUpper(m[1])
	}
	if m := dateRe.FindStringSubmatch(text); m != nil {
		if d := parseDMY(m[1], m[2], m[3]); d != nil {
			fields.InvoiceDate = d
		}
	}
	if m := rateRe.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			fields.VATRatePct = &v
		}
	}

	// Subtotal before total: "is-gyfanswm" and "sub total" both contain the
	// total keywords. Matched spans are blanked so the total pattern cannot
	// re-match them.
	remaining := text
	if m := subtotalRe.FindStringSubmatchIndex(remaining); m != nil {
		cur, pence := moneyAt(remaining, m)
		fields.SubtotalPence = &pence
		fields.Currency = pickCurrency(fields.Currency, cur)
		remaining = blank(remaining, m[0], m[1])
	}
	if m := vatAmtRe.FindStringSubmatchIndex(remaining); m != nil {
		cur, pence := moneyAt(remaining, m)
		fields.VATPence = &pence
		fields.Currency = pickCurrency(fields.Currency, cur)
		remaining = blank(remaining, m[0], m[1])
	}
	if m := totalRe.FindStringSubmatchIndex(remaining); m != nil {
		cur, pence := moneyAt(remaining, m)
		fields.TotalPence = &pence
		fields.Currency = pickCurrency(fields.Currency, cur)
	}

	fields.Supplier = findSupplier(pages)
	fields.Items = extractLines(text)

	if hint != nil {
		recoverFromZones(pages, hint.HeaderZones, &fields)
		if fields.Supplier == "" {
			fields.Supplier = hint.DisplayName
		}
		if fields.Currency == "" {
			fields.Currency = hint.CurrencyHint
		}
		if fields.VATRatePct == nil {
			fields.VATRatePct = hint.VATHint
		}
	}
	if fields.Currency == "" && (fields.TotalPence != nil || fields.SubtotalPence != nil) {
		fields.Currency = "GBP"
	}

	return fields, locateZones(pages, fields), nil
}

// locateZones maps each extracted header field to the region of the word that
// carried its value. Pages without word boxes yield no zones.
func locateZones(pages []model.Page, fields model.DocumentFields) map[string]model.Region {
	zones := make(map[string]model.Region)
	put := func(name, token string) {
		if token == "" {
			return
		}
		if r, ok := findWordRegion(pages, token); ok {
			zones[name] = r
		}
	}
	put(zoneInvoiceNumber, fields.InvoiceNumber)
	put(zoneSubtotal, penceToken(fields.SubtotalPence))
	put(zoneVATAmount, penceToken(fields.VATPence))
	put(zoneTotal, penceToken(fields.TotalPence))
	if fields.VATRatePct != nil {
		put(zoneVATRate, strconv.FormatFloat(*fields.VATRatePct, 'f', -1, 64)+"%")
	}
	return zones
}

// recoverFromZones fills fields the labeled patterns missed by reading the
// words inside the supplier's known header zones.
func recoverFromZones(pages []model.Page, zones map[string]model.Region, fields *model.DocumentFields) {
	if len(zones) == 0 {
		return
	}
	if fields.InvoiceNumber == "" {
		if z, ok := zones[zoneInvoiceNumber]; ok {
			for _, c := range bareRefRe.FindAllString(strings.ToUpper(zoneText(pages, z)), -1) {
				if strings.ContainsAny(c, "0123456789") {
					fields.InvoiceNumber = c
					break
				}
			}
		}
	}
	if fields.SubtotalPence == nil {
		if p, ok := amountInZone(pages, zones, zoneSubtotal); ok {
			fields.SubtotalPence = &p
		}
	}
	if fields.VATPence == nil {
		if p, ok := amountInZone(pages, zones, zoneVATAmount); ok {
			fields.VATPence = &p
		}
	}
	if fields.TotalPence == nil {
		if p, ok := amountInZone(pages, zones, zoneTotal); ok {
			fields.TotalPence = &p
		}
	}
	if fields.VATRatePct == nil {
		if z, ok := zones[zoneVATRate]; ok {
			if m := bareRateRe.FindStringSubmatch(zoneText(pages, z)); m != nil {
				if v, err := strconv.ParseFloat(m[1], 64); err == nil {
					fields.VATRatePct = &v
				}
			}
		}
	}
}

func amountInZone(pages []model.Page, zones map[string]model.Region, name string) (int64, bool) {
	z, ok := zones[name]
	if !ok {
		return 0, false
	}
	m := bareAmountRe.FindString(zoneText(pages, z))
	if m == "" {
		return 0, false
	}
	return parsePence(m), true
}

// zoneText joins the words whose centers fall inside the region, reading
// order preserved.
func zoneText(pages []model.Page, z model.Region) string {
	type positioned struct {
		x, y float64
		text string
	}
	var hits []positioned
	for _, p := range pages {
		for _, w := range p.Words {
			cx := w.Box.X + w.Box.Width/2
			cy := w.Box.Y + w.Box.Height/2
			if cx >= z.X && cx <= z.X+z.Width && cy >= z.Y && cy <= z.Y+z.Height {
				hits = append(hits, positioned{x: cx, y: cy, text: w.Text})
			}
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].y != hits[j].y {
			return hits[i].y < hits[j].y
		}
		return hits[i].x < hits[j].x
	})
	parts := make([]string, len(hits))
	for i, h := range hits {
		parts[i] = h.text
	}
	return strings.Join(parts, " ")
}

// findWordRegion returns the region of the last word matching the token.
// Amounts repeat between item lines and the summary block, and the summary
// copy is the one below, so the last occurrence is the one we want.
func findWordRegion(pages []model.Page, token string) (model.Region, bool) {
	want := normalizeToken(token)
	if want == "" {
		return model.Region{}, false
	}
	var region model.Region
	found := false
	for _, p := range pages {
		for _, w := range p.Words {
			if normalizeToken(w.Text) == want {
				region = regionAround(w.Box)
				found = true
			}
		}
	}
	return region, found
}

// regionAround pads a word box so small layout drift between documents from
// the same supplier still lands inside the zone.
func regionAround(b model.BoundingBox) model.Region {
	return model.Region{
		X:      b.X - b.Width/2,
		Y:      b.Y - b.Height,
		Width:  b.Width * 2,
		Height: b.Height * 3,
	}
}

func normalizeToken(s string) string {
	s = strings.ToUpper(s)
	return strings.Map(func(r rune) rune {
		switch r {
		case '£', '€', '$', ',', ':':
			return -1
		}
		return r
	}, s)
}

func penceToken(v *int64) string {
	if v == nil {
		return ""
	}
	n := *v
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	return fmt.Sprintf("%s%d.%02d", sign, n/100, n%100)
}

func joinPages(pages []model.Page) string {
	var b strings.Builder
	for _, p := range pages {
		b.WriteString(p.Text)
		b.WriteString("\n")
	}
	return b.String()
}

func extractLines(text string) []model.LineItem {
	var items []model.LineItem
	for _, line := range strings.Split(text, "\n") {
		m := lineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		qty, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		item := model.LineItem{
			Description:    strings.TrimSpace(m[2]),
			Quantity:       qty,
			UnitPricePence: parsePence(m[3]),
			LineTotalPence: parsePence(m[4]),
		}
		if pm := packRe.FindStringSubmatch(item.Description); pm != nil {
			packs, _ := strconv.ParseFloat(pm[1], 64)
			per, _ := strconv.ParseFloat(pm[2], 64)
			item.Packs = &packs
			item.UnitsPerPack = &per
		}
		items = append(items, item)
	}
	return items
}

// findSupplier takes the first header-looking line near the top of the first
// page: mostly letters plus a recognizable company form.
func findSupplier(pages []model.Page) string {
	if len(pages) == 0 {
		return ""
	}
	lines := strings.Split(pages[0].Text, "\n")
	limit := 8
	if len(lines) < limit {
		limit = len(lines)
	}
	for _, line := range lines[:limit] {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		upper := strings.ToUpper(trimmed)
		for _, marker := range companyMarkers {
			if strings.Contains(upper, marker) {
				return trimmed
			}
		}
	}
	return ""
}

// parsePence converts "1,234.56" to 123456 without going through float.
func parsePence(s string) int64 {
	s = strings.ReplaceAll(s, ",", "")
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	parts := strings.SplitN(s, ".", 2)
	pounds, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0
	}
	var pence int64
	if len(parts) == 2 {
		p, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return 0
		}
		pence = p
	}
	v := pounds*100 + pence
	if neg {
		v = -v
	}
	return v
}

func moneyAt(text string, idx []int) (currency string, pence int64) {
	// idx layout: full match, currency group, amount group.
	if idx[2] >= 0 {
		currency = symbolToCode(text[idx[2]:idx[3]])
	}
	pence = parsePence(text[idx[4]:idx[5]])
	return currency, pence
}

func symbolToCode(sym string) string {
	switch sym {
	case "£":
		return "GBP"
	case "€":
		return "EUR"
	case "$":
		return "USD"
	}
	return ""
}

func pickCurrency(existing, found string) string {
	if existing != "" {
		return existing
	}
	return found
}

func blank(s string, start, end int) string {
	return s[:start] + strings.Repeat(" ", end-start) + s[end:]
}

func parseDMY(d, m, y string) *time.Time {
	day, err1 := strconv.Atoi(d)
	mon, err2 := strconv.Atoi(m)
	year, err3 := strconv.Atoi(y)
	if err1 != nil || err2 != nil || err3 != nil {
		return nil
	}
	if year < 100 {
		year += 2000
	}
	if mon < 1 || mon > 12 || day < 1 || day > 31 {
		return nil
	}
	t := time.Date(year, time.Month(mon), day, 0, 0, 0, 0, time.UTC)
	return &t
}
