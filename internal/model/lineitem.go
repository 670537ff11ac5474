package model

import "time"

// Verdict is the single priority-resolved outcome label for one line item.
type Verdict string

const (
	VerdictPriceIncoherent Verdict = "price_incoherent"
	VerdictVATMismatch     Verdict = "vat_mismatch"
	VerdictPackMismatch    Verdict = "pack_mismatch"
	VerdictOCRLowConf      Verdict = "ocr_low_conf"
	VerdictOffContract     Verdict = "off_contract_discount"
	VerdictOKOnContract    Verdict = "ok_on_contract"
)

// LineItem is one extracted invoice line. Monetary amounts are int64 pence.
// Line items are owned by their parent document and replaced as a set on
// re-extraction.
type LineItem struct {
	Description    string   `json:"description"`
	Quantity       float64  `json:"quantity"`
	UnitPricePence int64    `json:"unit_price_pence"`
	LineTotalPence int64    `json:"line_total_pence"`
	VATRatePct     *float64 `json:"vat_rate_pct,omitempty"`
	Packs          *float64 `json:"packs,omitempty"`
	UnitsPerPack   *float64 `json:"units_per_pack,omitempty"`

	// Derived after validation.
	Verdict    Verdict `json:"verdict,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// DocumentFields holds the candidate header fields and line items extracted
// for one block. Pointer fields are nil when the value was not found; the
// pipeline never invents a missing number.
type DocumentFields struct {
	Supplier      string     `json:"supplier,omitempty"`
	InvoiceNumber string     `json:"invoice_number,omitempty"`
	InvoiceDate   *time.Time `json:"invoice_date,omitempty"`
	Currency      string     `json:"currency,omitempty"`
	SubtotalPence *int64     `json:"subtotal_pence,omitempty"`
	VATPence      *int64     `json:"vat_pence,omitempty"`
	TotalPence    *int64     `json:"total_pence,omitempty"`
	VATRatePct    *float64   `json:"vat_rate_pct,omitempty"`
	Items         []LineItem `json:"items"`
}
