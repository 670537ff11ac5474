package model

import "time"

// ClassificationResult is the classifier's output for one block.
// Score is in [0,1]; Reasons lists the matched evidence in match order.
type ClassificationResult struct {
	DocType  DocType  `json:"doc_type"`
	Score    float64  `json:"score"`
	Language Language `json:"language"`
	Reasons  []string `json:"reasons"`
}

// PageConfidence is the per-page confidence rollup, 0-100 scale.
type PageConfidence struct {
	PageIndex int     `json:"page_index"`
	Avg       float64 `json:"avg"`
	Min       float64 `json:"min"`
	Lines     int     `json:"lines"`
}

// ConfidenceSummary aggregates recognizer confidence for one document.
// All values are on a 0-100 scale for reporting; divide by 100 where a
// probability is needed.
type ConfidenceSummary struct {
	AvgConfPage     float64          `json:"avg_conf_page"`
	MinConfLine     float64          `json:"min_conf_line"`
	AvgConfDocument float64          `json:"avg_conf_document"`
	Pages           []PageConfidence `json:"pages,omitempty"`
}

// ErrorKind is a stable machine-readable validation flag. Consumers must
// treat the set as open but stable.
type ErrorKind string

const (
	FlagSumMismatch        ErrorKind = "SUM_MISMATCH"
	FlagSubtotalMismatch   ErrorKind = "SUBTOTAL_MISMATCH"
	FlagLineMismatch       ErrorKind = "LINE_MISMATCH"
	FlagPriceIncoherent    ErrorKind = "PRICE_INCOHERENT"
	FlagVATMismatch        ErrorKind = "VAT_MISMATCH"
	FlagVATInconsistent    ErrorKind = "VAT_INCONSISTENT"
	FlagPackMismatch       ErrorKind = "PACK_MISMATCH"
	FlagPackPartial        ErrorKind = "PACK_DESCRIPTOR_PARTIAL"
	FlagNegativeValue      ErrorKind = "NEGATIVE_VALUE"
	FlagNegativeAdjustment ErrorKind = "NEGATIVE_ADJUSTMENT_PRESENT"
	FlagUnusualTotals      ErrorKind = "UNUSUAL_TOTALS"
	FlagFutureDate         ErrorKind = "FUTURE_DATE"
	FlagNoItems            ErrorKind = "NO_ITEMS"
	FlagNoSupplier         ErrorKind = "NO_SUPPLIER"
	FlagNoTotals           ErrorKind = "NO_TOTALS"
	FlagFOCLine            ErrorKind = "FOC_LINE"
	FlagOffContract        ErrorKind = "OFF_CONTRACT_DISCOUNT"
)

// ValidationResult is the deterministic validator's output. It is replaced
// wholesale whenever totals or line items change, never mutated in place.
type ValidationResult struct {
	Valid bool        `json:"valid"`
	Flags []ErrorKind `json:"flags"`

	// Numeric deltas in pence, zero when the corresponding check passed
	// or could not run.
	SumDeltaPence      int64 `json:"sum_delta_pence"`
	SubtotalDeltaPence int64 `json:"subtotal_delta_pence"`
	VATDeltaPence      int64 `json:"vat_delta_pence"`
}

// HasFlag reports whether the given flag was raised.
func (v ValidationResult) HasFlag(kind ErrorKind) bool {
	for _, f := range v.Flags {
		if f == kind {
			return true
		}
	}
	return false
}

// PolicyAction is a terminal pipeline decision.
type PolicyAction string

const (
	ActionAccept     PolicyAction = "ACCEPT"
	ActionQuarantine PolicyAction = "QUARANTINE"
	ActionReject     PolicyAction = "REJECT"
)

// Policy reason codes beyond the validation flags.
const (
	ReasonDocOther         = "DOC_OTHER"
	ReasonLowConfidence    = "LOW_CONFIDENCE"
	ReasonAutoRetryUsed    = "AUTO_RETRY_USED"
	ReasonTemplateHintUsed = "TEMPLATE_HINT_USED"
	ReasonLLMAssistUsed    = "LLM_ASSIST_DTYPE"
	ReasonLLMAssistIgnored = "LLM_ASSIST_IGNORED"
	ReasonIngestError      = "INGEST_ERROR"
	ReasonValidationFailed = "VALIDATION_FAILED"
	ReasonClassifierUnsure = "CLASSIFIER_UNSURE"
)

// PolicyDecision is the terminal artifact for one block. Exactly one exists
// per InvoiceBlock; once AutoRetryUsed is true no further automatic retry
// may occur.
type PolicyDecision struct {
	Action                 PolicyAction `json:"action"`
	Reasons                []string     `json:"reasons"`
	ConfidenceThresholdMet bool         `json:"confidence_threshold_met"`
	ValidationPassed       bool         `json:"validation_passed"`
	AutoRetryUsed          bool         `json:"auto_retry_used"`
}

// BlockResult bundles everything the pipeline produced for one block. All
// fields are plain serializable records with no embedded behavior.
type BlockResult struct {
	ID             string               `json:"id"`
	FileID         string               `json:"file_id"`
	Block          InvoiceBlock         `json:"block"`
	Classification ClassificationResult `json:"classification"`
	Confidence     ConfidenceSummary    `json:"confidence"`
	Fields         DocumentFields       `json:"fields"`
	Validation     ValidationResult     `json:"validation"`
	Decision       PolicyDecision       `json:"decision"`
	Error          string               `json:"error,omitempty"`
	ProcessedAt    time.Time            `json:"processed_at"`
}

// IngestResult is the outcome of processing one submitted file.
type IngestResult struct {
	FileID string        `json:"file_id"`
	Blocks []BlockResult `json:"blocks"`
}
