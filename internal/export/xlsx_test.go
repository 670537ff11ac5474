package export

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/intake-cli/internal/model"
)

func TestWriteDecisions(t *testing.T) {
	total := int64(14880)
	date := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)
	results := []model.BlockResult{
		{
			FileID:      "scan-1",
			Block:       model.InvoiceBlock{PageStart: 1, PageEnd: 2},
			ProcessedAt: time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC),
			Classification: model.ClassificationResult{
				DocType: model.DocTypeInvoice, Score: 0.9,
			},
			Confidence: model.ConfidenceSummary{AvgConfDocument: 88.5},
			Fields: model.DocumentFields{
				Supplier:      "Valley Produce Ltd",
				InvoiceNumber: "INV-2024-0042",
				InvoiceDate:   &date,
				TotalPence:    &total,
			},
			Validation: model.ValidationResult{Valid: true},
			Decision:   model.PolicyDecision{Action: model.ActionAccept},
		},
		{
			FileID:     "scan-2",
			Block:      model.InvoiceBlock{PageStart: 1, PageEnd: 1},
			Validation: model.ValidationResult{Valid: false, Flags: []model.ErrorKind{model.FlagSumMismatch}},
			Decision: model.PolicyDecision{
				Action:  model.ActionQuarantine,
				Reasons: []string{model.ReasonValidationFailed, string(model.FlagSumMismatch)},
			},
		},
	}

	path := filepath.Join(t.TempDir(), "decisions.xlsx")
	require.NoError(t, WriteDecisions(path, results))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)
	sheet := f.Sheets[0]
	require.Len(t, sheet.Rows, 3)

	assert.Equal(t, "Processed", sheet.Rows[0].Cells[0].String())
	assert.Equal(t, "scan-1", sheet.Rows[1].Cells[1].String())
	assert.Equal(t, "ACCEPT", sheet.Rows[1].Cells[3].String())
	assert.Equal(t, "148.80", sheet.Rows[1].Cells[11].String())
	assert.Equal(t, "QUARANTINE", sheet.Rows[2].Cells[3].String())
	assert.Contains(t, sheet.Rows[2].Cells[14].String(), "SUM_MISMATCH")
}

func TestFormatPence(t *testing.T) {
	v := func(n int64) *int64 { return &n }
	assert.Equal(t, "", formatPence(nil))
	assert.Equal(t, "0.05", formatPence(v(5)))
	assert.Equal(t, "1.00", formatPence(v(100)))
	assert.Equal(t, "1234.56", formatPence(v(123456)))
	assert.Equal(t, "-12.00", formatPence(v(-1200)))
}
