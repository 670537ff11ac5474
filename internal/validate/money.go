package validate

import "math"

// RoundPence rounds a fractional pence amount to whole pence using banker's
// rounding, so repeated aggregation does not drift upward.
func RoundPence(v float64) int64 {
	return int64(math.RoundToEven(v))
}

// ExpectedLineTotalPence is quantity times unit price, rounded once at the
// end. Intermediate values stay fractional.
func ExpectedLineTotalPence(quantity float64, unitPricePence int64) int64 {
	return RoundPence(quantity * float64(unitPricePence))
}

// ExpectedVATPence applies a percentage rate to a pence amount.
func ExpectedVATPence(subtotalPence int64, ratePct float64) int64 {
	return RoundPence(float64(subtotalPence) * ratePct / 100)
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
