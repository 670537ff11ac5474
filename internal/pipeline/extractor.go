package pipeline

import (
	"context"

	"github.com/sells-group/intake-cli/internal/model"
)

// Extractor pulls document fields out of a block's pages. hint may be nil;
// implementations must extract cold and only use the hint to fill gaps. The
// returned zones locate the extracted header fields on the page; they are
// merged into the supplier's template so later documents from the same
// supplier can be read by position when their labels are garbled.
type Extractor interface {
	Extract(pages []model.Page, hint *model.SupplierTemplate) (model.DocumentFields, map[string]model.Region, error)
}

// Reprocessor re-runs recognition over a block's pages, typically at higher
// quality settings. Optional; when absent the auto-retry step is skipped.
type Reprocessor interface {
	Reprocess(ctx context.Context, file model.RecognizedFile, block model.InvoiceBlock) ([]model.Page, error)
}
