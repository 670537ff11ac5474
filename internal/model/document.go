package model

// DocType represents a classified document category.
type DocType string

const (
	DocTypeInvoice      DocType = "invoice"
	DocTypeDeliveryNote DocType = "delivery_note"
	DocTypeReceipt      DocType = "receipt"
	DocTypeUtility      DocType = "utility"
	DocTypeOther        DocType = "other"
)

// AllDocTypes returns all defined document types.
func AllDocTypes() []DocType {
	return []DocType{
		DocTypeInvoice,
		DocTypeDeliveryNote,
		DocTypeReceipt,
		DocTypeUtility,
		DocTypeOther,
	}
}

// Language is a detected document language.
type Language string

const (
	LangEnglish   Language = "en"
	LangWelsh     Language = "cy"
	LangBilingual Language = "bi"
)

// BoundingBox is a word's position on the page, in page-relative units.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// RecognizedWord is a single word produced by the external recognizer.
// Confidence is in [0,1]. Immutable once produced.
type RecognizedWord struct {
	Text       string      `json:"text"`
	Box        BoundingBox `json:"box"`
	Confidence float64     `json:"confidence"`
	PageIndex  int         `json:"page_index"`
}

// Page is one recognized page: full text plus the word boxes it came from.
type Page struct {
	Index int              `json:"index"`
	Text  string           `json:"text"`
	Words []RecognizedWord `json:"words"`
}

// RecognizedFile is a submitted file after recognition: an ordered page list.
type RecognizedFile struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Pages []Page `json:"pages"`
}

// InvoiceBlock is a contiguous page range believed to be one logical document.
// PageStart and PageEnd are inclusive indexes into the submitted file.
type InvoiceBlock struct {
	PageStart            int      `json:"page_start"`
	PageEnd              int      `json:"page_end"`
	Confidence           float64  `json:"confidence"`
	RequiresManualReview bool     `json:"requires_manual_review"`
	Reasons              []string `json:"reasons,omitempty"`
}

// PageCount returns the number of pages in the block.
func (b InvoiceBlock) PageCount() int {
	return b.PageEnd - b.PageStart + 1
}
