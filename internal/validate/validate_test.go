package validate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/intake-cli/internal/config"
	"github.com/sells-group/intake-cli/internal/model"
)

func validateCfg() config.ValidateConfig {
	return config.ValidateConfig{
		LineTolPence:      1,
		LineTolPct:        0.01,
		TotalTolPence:     2,
		QtyTol:            0.01,
		DiscountPct:       0.30,
		DiscountAbsPence:  1000,
		MaxPlausiblePence: 5_000_000,
	}
}

func i64(v int64) *int64       { return &v }
func f64(v float64) *float64   { return &v }
func date(s string) *time.Time { t, _ := time.Parse("2006-01-02", s); return &t }

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func baseFields() model.DocumentFields {
	return model.DocumentFields{
		Supplier:      "Acme Trading Ltd",
		SubtotalPence: i64(10000),
		VATPence:      i64(2000),
		TotalPence:    i64(12000),
		VATRatePct:    f64(20),
		Items: []model.LineItem{
			{Description: "Beef mince 5kg", Quantity: 2, UnitPricePence: 5000, LineTotalPence: 10000},
		},
	}
}

func TestRoundPence_BankersRounding(t *testing.T) {
	assert.Equal(t, int64(2), RoundPence(2.5))
	assert.Equal(t, int64(4), RoundPence(3.5))
	assert.Equal(t, int64(2), RoundPence(1.5))
	assert.Equal(t, int64(3), RoundPence(2.51))
	assert.Equal(t, int64(-2), RoundPence(-2.5))
}

func TestValidate_CleanDocument(t *testing.T) {
	res := Validate(baseFields(), testNow, validateCfg())
	assert.True(t, res.Valid)
	assert.Empty(t, res.Flags)
	assert.Zero(t, res.SumDeltaPence)
}

func TestValidate_SumMismatch(t *testing.T) {
	// 100.00 + 20.00 stated against a 120.50 total.
	f := baseFields()
	f.TotalPence = i64(12050)
	res := Validate(f, testNow, validateCfg())
	assert.False(t, res.Valid)
	assert.True(t, res.HasFlag(model.FlagSumMismatch))
	assert.Equal(t, int64(-50), res.SumDeltaPence)
}

func TestValidate_SumWithinTolerance(t *testing.T) {
	f := baseFields()
	f.TotalPence = i64(12002)
	res := Validate(f, testNow, validateCfg())
	assert.True(t, res.Valid)
}

func TestValidate_SubtotalMismatch(t *testing.T) {
	f := baseFields()
	f.Items = []model.LineItem{
		{Description: "Chicken breast", Quantity: 3, UnitPricePence: 3000, LineTotalPence: 9000},
	}
	res := Validate(f, testNow, validateCfg())
	assert.False(t, res.Valid)
	assert.True(t, res.HasFlag(model.FlagSubtotalMismatch))
	assert.Equal(t, int64(-1000), res.SubtotalDeltaPence)
}

func TestCheckLine_Coherent(t *testing.T) {
	// 24 x 2.50 = 60.00.
	lc := CheckLine(model.LineItem{Quantity: 24, UnitPricePence: 250, LineTotalPence: 6000}, nil, validateCfg())
	assert.False(t, lc.PriceIncoherent)
}

func TestCheckLine_Incoherent(t *testing.T) {
	// 24 x 2.50 stated as 65.00: over both 1p and 1%.
	lc := CheckLine(model.LineItem{Quantity: 24, UnitPricePence: 250, LineTotalPence: 6500}, nil, validateCfg())
	assert.True(t, lc.PriceIncoherent)
	assert.False(t, lc.OffContractDiscount)
}

func TestCheckLine_BothTolerancesRequired(t *testing.T) {
	// 80000p expected, 79950p stated: 50p off but only 0.06%, so coherent.
	lc := CheckLine(model.LineItem{Quantity: 100, UnitPricePence: 800, LineTotalPence: 79950}, nil, validateCfg())
	assert.False(t, lc.PriceIncoherent)

	// 50p expected, 49p stated: 2% off but only 1p, so coherent.
	lc = CheckLine(model.LineItem{Quantity: 1, UnitPricePence: 50, LineTotalPence: 49}, nil, validateCfg())
	assert.False(t, lc.PriceIncoherent)
}

func TestCheckLine_LargeDiscountCarveOut(t *testing.T) {
	// 50.00 expected, 30.00 stated: 40% and £20 under, reads as discount.
	lc := CheckLine(model.LineItem{Quantity: 10, UnitPricePence: 500, LineTotalPence: 3000}, nil, validateCfg())
	assert.True(t, lc.OffContractDiscount)
	assert.False(t, lc.PriceIncoherent)
}

func TestCheckLine_SmallDiscountStaysIncoherent(t *testing.T) {
	// 40% under but only £2: below the absolute carve-out floor.
	lc := CheckLine(model.LineItem{Quantity: 1, UnitPricePence: 500, LineTotalPence: 300}, nil, validateCfg())
	assert.True(t, lc.PriceIncoherent)
	assert.False(t, lc.OffContractDiscount)
}

func TestCheckLine_FOCExemption(t *testing.T) {
	lc := CheckLine(model.LineItem{Description: "Sample crate FOC", Quantity: 1, UnitPricePence: 500, LineTotalPence: 0}, nil, validateCfg())
	assert.True(t, lc.FOC)
	assert.False(t, lc.PriceIncoherent)

	lc = CheckLine(model.LineItem{Description: "Bara brith am ddim", Quantity: 2, UnitPricePence: 300, LineTotalPence: 0}, nil, validateCfg())
	assert.True(t, lc.FOC)

	// Zero priced and zero total is FOC even without a marker.
	lc = CheckLine(model.LineItem{Description: "Promo item", Quantity: 1, UnitPricePence: 0, LineTotalPence: 0}, nil, validateCfg())
	assert.True(t, lc.FOC)

	// "focaccia" is not an exemption marker.
	lc = CheckLine(model.LineItem{Description: "Focaccia loaf", Quantity: 10, UnitPricePence: 200, LineTotalPence: 1500}, nil, validateCfg())
	assert.False(t, lc.FOC)
	assert.True(t, lc.PriceIncoherent)
}

func TestCheckLine_PackChecks(t *testing.T) {
	// 4 packs of 6 but quantity 24: consistent.
	lc := CheckLine(model.LineItem{Quantity: 24, UnitPricePence: 100, LineTotalPence: 2400, Packs: f64(4), UnitsPerPack: f64(6)}, nil, validateCfg())
	assert.False(t, lc.PackMismatch)

	// 4 packs of 6 but quantity 20.
	lc = CheckLine(model.LineItem{Quantity: 20, UnitPricePence: 100, LineTotalPence: 2000, Packs: f64(4), UnitsPerPack: f64(6)}, nil, validateCfg())
	assert.True(t, lc.PackMismatch)

	// Only one half of the descriptor read.
	lc = CheckLine(model.LineItem{Quantity: 24, UnitPricePence: 100, LineTotalPence: 2400, Packs: f64(4)}, nil, validateCfg())
	assert.True(t, lc.PackPartial)
	assert.False(t, lc.PackMismatch)
}

func TestValidate_VATMismatch(t *testing.T) {
	f := baseFields()
	f.VATPence = i64(1500)
	f.TotalPence = i64(11500)
	res := Validate(f, testNow, validateCfg())
	assert.False(t, res.Valid)
	assert.True(t, res.HasFlag(model.FlagVATMismatch))
	assert.Equal(t, int64(500), res.VATDeltaPence)
}

func TestValidate_VATInconsistentRates(t *testing.T) {
	f := baseFields()
	f.Items = []model.LineItem{
		{Description: "Ale", Quantity: 1, UnitPricePence: 5000, LineTotalPence: 5000, VATRatePct: f64(20)},
		{Description: "Bread", Quantity: 1, UnitPricePence: 5000, LineTotalPence: 5000, VATRatePct: f64(0)},
	}
	res := Validate(f, testNow, validateCfg())
	assert.True(t, res.HasFlag(model.FlagVATInconsistent))
}

func TestValidate_NegativeTotal(t *testing.T) {
	f := baseFields()
	f.TotalPence = i64(-12000)
	res := Validate(f, testNow, validateCfg())
	assert.False(t, res.Valid)
	assert.True(t, res.HasFlag(model.FlagNegativeValue))
}

func TestValidate_CreditLineFlagged(t *testing.T) {
	f := baseFields()
	f.Items = append(f.Items, model.LineItem{Description: "Returned goods", Quantity: 1, UnitPricePence: 500, LineTotalPence: -500})
	res := Validate(f, testNow, validateCfg())
	assert.False(t, res.Valid)
	assert.True(t, res.HasFlag(model.FlagNegativeAdjustment))
	// Credit lines drop out of the subtotal reconciliation.
	assert.False(t, res.HasFlag(model.FlagSubtotalMismatch))
}

func TestValidate_MissingEverything(t *testing.T) {
	res := Validate(model.DocumentFields{}, testNow, validateCfg())
	assert.False(t, res.Valid)
	assert.True(t, res.HasFlag(model.FlagNoSupplier))
	assert.True(t, res.HasFlag(model.FlagNoItems))
	assert.True(t, res.HasFlag(model.FlagNoTotals))
}

func TestValidate_UnusualTotalsInformational(t *testing.T) {
	f := baseFields()
	f.SubtotalPence = i64(6_000_000)
	f.VATPence = i64(1_200_000)
	f.TotalPence = i64(7_200_000)
	f.Items = []model.LineItem{
		{Description: "Fit-out works", Quantity: 1, UnitPricePence: 6_000_000, LineTotalPence: 6_000_000},
	}
	res := Validate(f, testNow, validateCfg())
	assert.True(t, res.HasFlag(model.FlagUnusualTotals))
	assert.True(t, res.Valid)
}

func TestValidate_NearZeroTotalWithItems(t *testing.T) {
	f := model.DocumentFields{
		Supplier:   "Acme Trading Ltd",
		TotalPence: i64(0),
		Items: []model.LineItem{
			{Description: "Beef mince 5kg", Quantity: 2, UnitPricePence: 5000, LineTotalPence: 10000},
		},
	}
	res := Validate(f, testNow, validateCfg())
	assert.True(t, res.HasFlag(model.FlagUnusualTotals))
	assert.True(t, res.Valid)
}

func TestValidate_ZeroTotalWithoutItemsNotUnusual(t *testing.T) {
	f := model.DocumentFields{Supplier: "Acme Trading Ltd", TotalPence: i64(0)}
	res := Validate(f, testNow, validateCfg())
	assert.False(t, res.HasFlag(model.FlagUnusualTotals))
	assert.True(t, res.HasFlag(model.FlagNoItems))
}

func TestValidate_FutureDate(t *testing.T) {
	f := baseFields()
	f.InvoiceDate = date("2024-07-15")
	res := Validate(f, testNow, validateCfg())
	assert.False(t, res.Valid)
	assert.True(t, res.HasFlag(model.FlagFutureDate))
}

func TestValidate_FOCLineDoesNotInvalidate(t *testing.T) {
	f := baseFields()
	f.Items = append(f.Items, model.LineItem{Description: "Sample FOC", Quantity: 1, UnitPricePence: 0, LineTotalPence: 0})
	res := Validate(f, testNow, validateCfg())
	assert.True(t, res.HasFlag(model.FlagFOCLine))
	assert.True(t, res.Valid)
}

func TestValidate_LineMismatchRollsUp(t *testing.T) {
	f := baseFields()
	f.Items = []model.LineItem{
		{Description: "Cheddar", Quantity: 24, UnitPricePence: 250, LineTotalPence: 6500},
	}
	f.SubtotalPence = i64(6500)
	f.VATPence = i64(1300)
	f.TotalPence = i64(7800)
	res := Validate(f, testNow, validateCfg())
	assert.False(t, res.Valid)
	assert.True(t, res.HasFlag(model.FlagLineMismatch))
}
