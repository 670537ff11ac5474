// Package validate runs the deterministic arithmetic and consistency checks
// over extracted document fields. All money is int64 pence; the validator is
// pure and produces the same result for the same input every time.
package validate

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/intake-cli/internal/config"
	"github.com/sells-group/intake-cli/internal/model"
)

// Descriptions that exempt a line from price coherence. A zero-priced sample
// crate is not an arithmetic error.
var focTerms = []string{"free of charge", "foc", "gratis", "am ddim"}

// Flags that never invalidate a document on their own.
var informational = map[model.ErrorKind]bool{
	model.FlagFOCLine:       true,
	model.FlagUnusualTotals: true,
	model.FlagPackPartial:   true,
}

// A stated total below a penny on a document that lists items reads as a
// misread digit, not a real bill.
const minPlausibleTotalPence int64 = 1

// LineCheck is the outcome of the per-line checks. Booleans map one to one
// onto verdict signals; flags feed the document-level rollup.
type LineCheck struct {
	PriceIncoherent     bool
	OffContractDiscount bool
	PackMismatch        bool
	PackPartial         bool
	VATRateDiffers      bool
	FOC                 bool
}

// CheckLine validates one line item against the configured tolerances.
// docRate is the document VAT rate when stated, nil otherwise.
func CheckLine(item model.LineItem, docRate *float64, cfg config.ValidateConfig) LineCheck {
	var lc LineCheck

	if isFOC(item) {
		lc.FOC = true
	} else {
		expected := ExpectedLineTotalPence(item.Quantity, item.UnitPricePence)
		delta := absInt64(expected - item.LineTotalPence)
		ref := maxInt64(absInt64(expected), absInt64(item.LineTotalPence))

		// Incoherent only when the delta exceeds both the absolute and
		// the relative tolerance. A 1p rounding slip on a £800 line is
		// not an error.
		if delta > cfg.LineTolPence && float64(delta) > cfg.LineTolPct*float64(ref) {
			under := expected - item.LineTotalPence
			if under > 0 && float64(under) > cfg.DiscountPct*float64(expected) && under > cfg.DiscountAbsPence {
				// Stated total is far below qty x unit: reads as a
				// deliberate discount, not a misread digit.
				lc.OffContractDiscount = true
			} else {
				lc.PriceIncoherent = true
			}
		}
	}

	switch {
	case item.Packs != nil && item.UnitsPerPack != nil:
		implied := *item.Packs * *item.UnitsPerPack
		if diff := implied - item.Quantity; diff > cfg.QtyTol || diff < -cfg.QtyTol {
			lc.PackMismatch = true
		}
	case item.Packs != nil || item.UnitsPerPack != nil:
		lc.PackPartial = true
	}

	if item.VATRatePct != nil && docRate != nil && *item.VATRatePct != *docRate {
		lc.VATRateDiffers = true
	}

	return lc
}

// Validate runs the document-level checks. now anchors the future-date check
// so results are reproducible in tests.
func Validate(fields model.DocumentFields, now time.Time, cfg config.ValidateConfig) model.ValidationResult {
	var res model.ValidationResult
	add := func(kind model.ErrorKind) {
		if !res.HasFlag(kind) {
			res.Flags = append(res.Flags, kind)
		}
	}

	if strings.TrimSpace(fields.Supplier) == "" {
		add(model.FlagNoSupplier)
	}
	if len(fields.Items) == 0 {
		add(model.FlagNoItems)
	}
	if fields.SubtotalPence == nil && fields.VATPence == nil && fields.TotalPence == nil {
		add(model.FlagNoTotals)
	}

	if negPence(fields.SubtotalPence) || negPence(fields.VATPence) || negPence(fields.TotalPence) {
		add(model.FlagNegativeValue)
	}

	var lineSum int64
	lineSumComplete := len(fields.Items) > 0
	rates := map[float64]bool{}
	for _, item := range fields.Items {
		if item.Quantity < 0 || item.UnitPricePence < 0 {
			add(model.FlagNegativeValue)
		}
		if item.LineTotalPence < 0 {
			// Credit and adjustment lines are legitimate on paper but
			// are never auto-accepted.
			add(model.FlagNegativeAdjustment)
			lineSumComplete = false
			continue
		}
		lineSum += item.LineTotalPence

		lc := CheckLine(item, fields.VATRatePct, cfg)
		if lc.FOC {
			add(model.FlagFOCLine)
		}
		if lc.PriceIncoherent {
			add(model.FlagLineMismatch)
		}
		if lc.OffContractDiscount {
			add(model.FlagOffContract)
		}
		if lc.PackMismatch {
			add(model.FlagPackMismatch)
		}
		if lc.PackPartial {
			add(model.FlagPackPartial)
		}
		if item.VATRatePct != nil {
			rates[*item.VATRatePct] = true
		}
	}

	if len(rates) > 1 {
		add(model.FlagVATInconsistent)
	} else if fields.VATRatePct != nil {
		for r := range rates {
			if r != *fields.VATRatePct {
				add(model.FlagVATInconsistent)
			}
		}
	}

	if fields.SubtotalPence != nil && lineSumComplete {
		res.SubtotalDeltaPence = lineSum - *fields.SubtotalPence
		if absInt64(res.SubtotalDeltaPence) > cfg.TotalTolPence {
			add(model.FlagSubtotalMismatch)
		}
	}

	if fields.SubtotalPence != nil && fields.VATPence != nil && fields.TotalPence != nil {
		res.SumDeltaPence = (*fields.SubtotalPence + *fields.VATPence) - *fields.TotalPence
		if absInt64(res.SumDeltaPence) > cfg.TotalTolPence {
			add(model.FlagSumMismatch)
		}
	}

	if fields.SubtotalPence != nil && fields.VATPence != nil && fields.VATRatePct != nil {
		res.VATDeltaPence = ExpectedVATPence(*fields.SubtotalPence, *fields.VATRatePct) - *fields.VATPence
		if absInt64(res.VATDeltaPence) > cfg.TotalTolPence {
			add(model.FlagVATMismatch)
		}
	}

	if fields.TotalPence != nil {
		if *fields.TotalPence > cfg.MaxPlausiblePence {
			add(model.FlagUnusualTotals)
		}
		if *fields.TotalPence >= 0 && *fields.TotalPence < minPlausibleTotalPence && len(fields.Items) > 0 {
			add(model.FlagUnusualTotals)
		}
	}

	if fields.InvoiceDate != nil && fields.InvoiceDate.After(now) {
		add(model.FlagFutureDate)
	}

	res.Valid = true
	for _, f := range res.Flags {
		if !informational[f] {
			res.Valid = false
			break
		}
	}

	if !res.Valid {
		zap.L().Debug("validate: document failed checks",
			zap.String("supplier", fields.Supplier),
			zap.Any("flags", res.Flags),
		)
	}

	return res
}

func isFOC(item model.LineItem) bool {
	if item.UnitPricePence == 0 && item.LineTotalPence == 0 {
		return true
	}
	desc := strings.ToLower(item.Description)
	for _, term := range focTerms {
		if !strings.Contains(desc, term) {
			continue
		}
		// Short markers like "foc" must stand alone, or "focaccia" would
		// be exempt too.
		if len(term) > 4 || containsWord(desc, term) {
			return true
		}
	}
	return false
}

func containsWord(s, word string) bool {
	for _, f := range strings.FieldsFunc(s, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	}) {
		if f == word {
			return true
		}
	}
	return false
}

func negPence(v *int64) bool {
	return v != nil && *v < 0
}
