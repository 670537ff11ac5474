// Package policy turns classification, confidence, and validation evidence
// into the terminal accept/quarantine/reject decision. Thresholds are
// configuration, not code; the rules here only order them.
package policy

import (
	"go.uber.org/zap"

	"github.com/sells-group/intake-cli/internal/config"
	"github.com/sells-group/intake-cli/internal/model"
)

// Flags that on their own force rejection. Everything else at worst
// quarantines for a human.
var hardFlags = []model.ErrorKind{
	model.FlagNegativeValue,
	model.FlagNegativeAdjustment,
	model.FlagNoTotals,
	model.FlagNoItems,
}

// Inputs is everything the policy engine may consider. It never sees raw
// text or the model's prose.
type Inputs struct {
	Classification model.ClassificationResult
	Confidence     model.ConfidenceSummary
	Validation     model.ValidationResult
	AutoRetryUsed  bool
}

// Decide produces the terminal decision for one block. ACCEPT requires all
// three gates at once: confidence, classification, and validation. The
// others trigger on the worst single piece of evidence.
func Decide(in Inputs, cfg config.PolicyConfig) (out model.PolicyDecision) {
	conf := in.Confidence.AvgConfDocument
	d := model.PolicyDecision{
		ConfidenceThresholdMet: conf >= cfg.PassConfidence,
		ValidationPassed:       in.Validation.Valid,
		AutoRetryUsed:          in.AutoRetryUsed,
	}
	defer func() {
		if in.AutoRetryUsed {
			out.Reasons = append(out.Reasons, model.ReasonAutoRetryUsed)
		}
	}()

	reject := func(reasons ...string) model.PolicyDecision {
		d.Action = model.ActionReject
		d.Reasons = append(d.Reasons, reasons...)
		return d
	}
	quarantine := func(reasons ...string) model.PolicyDecision {
		d.Action = model.ActionQuarantine
		d.Reasons = append(d.Reasons, reasons...)
		return d
	}

	for _, f := range hardFlags {
		if in.Validation.HasFlag(f) {
			return reject(string(f))
		}
	}

	if in.Classification.DocType == model.DocTypeOther && in.Classification.Score >= cfg.OtherRejectScore {
		// Confidently not paperwork we process.
		return reject(model.ReasonDocOther)
	}

	if conf < cfg.RejectConfidence {
		return reject(model.ReasonLowConfidence)
	}
	if conf < cfg.WarnConfidence {
		return quarantine(model.ReasonLowConfidence)
	}

	if !in.Validation.Valid {
		reasons := make([]string, 0, len(in.Validation.Flags)+1)
		reasons = append(reasons, model.ReasonValidationFailed)
		for _, f := range in.Validation.Flags {
			reasons = append(reasons, string(f))
		}
		return quarantine(reasons...)
	}

	if in.Classification.DocType == model.DocTypeOther || in.Classification.Score < cfg.MinClassifierScore {
		return quarantine(model.ReasonClassifierUnsure)
	}

	if conf < cfg.PassConfidence {
		return quarantine(model.ReasonLowConfidence)
	}

	d.Action = model.ActionAccept
	zap.L().Debug("policy: accepted",
		zap.String("doc_type", string(in.Classification.DocType)),
		zap.Float64("confidence", conf),
	)
	return d
}
