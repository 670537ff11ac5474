// Package export writes decision reports for the back office. Bookkeepers
// live in spreadsheets, so the export format is XLSX.
package export

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/intake-cli/internal/model"
)

var decisionHeader = []string{
	"Processed", "File", "Pages", "Action", "Reasons", "Doc Type",
	"Supplier", "Invoice No", "Invoice Date", "Subtotal", "VAT", "Total",
	"Confidence", "Valid", "Flags",
}

// WriteDecisions writes one row per block result to an XLSX workbook at path.
func WriteDecisions(path string, results []model.BlockResult) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Decisions")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range decisionHeader {
		header.AddCell().SetString(h)
	}

	for _, r := range results {
		row := sheet.AddRow()
		row.AddCell().SetString(r.ProcessedAt.Format("2006-01-02 15:04"))
		row.AddCell().SetString(r.FileID)
		row.AddCell().SetString(fmt.Sprintf("%d-%d", r.Block.PageStart, r.Block.PageEnd))
		row.AddCell().SetString(string(r.Decision.Action))
		row.AddCell().SetString(strings.Join(r.Decision.Reasons, ", "))
		row.AddCell().SetString(string(r.Classification.DocType))
		row.AddCell().SetString(r.Fields.Supplier)
		row.AddCell().SetString(r.Fields.InvoiceNumber)
		if r.Fields.InvoiceDate != nil {
			row.AddCell().SetString(r.Fields.InvoiceDate.Format("2006-01-02"))
		} else {
			row.AddCell().SetString("")
		}
		row.AddCell().SetString(formatPence(r.Fields.SubtotalPence))
		row.AddCell().SetString(formatPence(r.Fields.VATPence))
		row.AddCell().SetString(formatPence(r.Fields.TotalPence))
		row.AddCell().SetFloatWithFormat(r.Confidence.AvgConfDocument, "0.0")
		row.AddCell().SetBool(r.Validation.Valid)
		row.AddCell().SetString(joinFlags(r.Validation.Flags))
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

func formatPence(v *int64) string {
	if v == nil {
		return ""
	}
	n := *v
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	return fmt.Sprintf("%s%d.%02d", sign, n/100, n%100)
}

func joinFlags(flags []model.ErrorKind) string {
	out := make([]string, len(flags))
	for i, f := range flags {
		out[i] = string(f)
	}
	return strings.Join(out, ", ")
}
