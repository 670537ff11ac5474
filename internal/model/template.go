package model

import "time"

// Region is a header zone on a page, in page-relative units.
type Region struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// SupplierTemplate caches per-supplier extraction hints. Keyed by the
// normalized supplier identity; updated in place (zones merged, SamplesCount
// incremented) on every successful extraction for that supplier. Advisory
// only: it biases extraction, never the policy engine.
type SupplierTemplate struct {
	SupplierKey  string            `json:"supplier_key"`
	DisplayName  string            `json:"display_name,omitempty"`
	HeaderZones  map[string]Region `json:"header_zones"`
	CurrencyHint string            `json:"currency_hint,omitempty"`
	VATHint      *float64          `json:"vat_hint,omitempty"`
	SamplesCount int               `json:"samples_count"`
	UpdatedAt    time.Time         `json:"updated_at"`
}
