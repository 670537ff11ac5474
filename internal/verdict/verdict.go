// Package verdict resolves per-line validation signals into exactly one
// verdict. Precedence is a static ordered table, scanned top to bottom;
// the first signal that is set wins.
package verdict

import "github.com/sells-group/intake-cli/internal/model"

// Signals are the independent facts established for one line item. Each is
// set by a different check; precedence is resolved here, not at the call
// sites.
type Signals struct {
	PriceIncoherent     bool
	VATMismatch         bool
	PackMismatch        bool
	OCRLowConf          bool
	OffContractDiscount bool
}

type rule struct {
	set     func(Signals) bool
	verdict model.Verdict
}

// Ordered by severity. Arithmetic contradictions outrank tax errors, which
// outrank packaging errors, which outrank read-quality doubts, which outrank
// commercial anomalies.
var precedence = []rule{
	{func(s Signals) bool { return s.PriceIncoherent }, model.VerdictPriceIncoherent},
	{func(s Signals) bool { return s.VATMismatch }, model.VerdictVATMismatch},
	{func(s Signals) bool { return s.PackMismatch }, model.VerdictPackMismatch},
	{func(s Signals) bool { return s.OCRLowConf }, model.VerdictOCRLowConf},
	{func(s Signals) bool { return s.OffContractDiscount }, model.VerdictOffContract},
}

// Resolve returns the single verdict for the given signals. No signals set
// means the line is clean.
func Resolve(s Signals) model.Verdict {
	for _, r := range precedence {
		if r.set(s) {
			return r.verdict
		}
	}
	return model.VerdictOKOnContract
}
