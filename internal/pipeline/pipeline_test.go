package pipeline

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/intake-cli/internal/assist"
	"github.com/sells-group/intake-cli/internal/classify"
	"github.com/sells-group/intake-cli/internal/config"
	"github.com/sells-group/intake-cli/internal/extract"
	"github.com/sells-group/intake-cli/internal/model"
	"github.com/sells-group/intake-cli/internal/store"
	"github.com/sells-group/intake-cli/internal/template"
)

func testConfig() *config.Config {
	return &config.Config{
		Assist: config.AssistConfig{Enabled: false},
		Split:  config.SplitConfig{ReviewConfidence: 50, MaxBlockPages: 20},
		Classify: config.ClassifyConfig{
			NegativeHits: 3, MinTextLength: 10,
		},
		Validate: config.ValidateConfig{
			LineTolPence: 1, LineTolPct: 0.01, TotalTolPence: 2, QtyTol: 0.01,
			DiscountPct: 0.30, DiscountAbsPence: 1000, MaxPlausiblePence: 5_000_000,
		},
		Policy: config.PolicyConfig{
			PassConfidence: 70, WarnConfidence: 50, RejectConfidence: 30,
			MinClassifierScore: 0.50, OtherRejectScore: 0.80,
		},
		Template: config.TemplateConfig{SimilarityThreshold: 0.82},
		Pipeline: config.PipelineConfig{
			MaxConcurrentBlocks: 4, RetryConfidence: 50, LowConfLine: 50,
		},
	}
}

func makePage(idx int, text string, conf float64) model.Page {
	var words []model.RecognizedWord
	y := 0.0
	for _, line := range strings.Split(text, "\n") {
		for _, tok := range strings.Fields(line) {
			words = append(words, model.RecognizedWord{
				Text:       tok,
				Confidence: conf,
				Box:        model.BoundingBox{Y: y, Height: 1},
				PageIndex:  idx,
			})
		}
		y += 5
	}
	return model.Page{Index: idx, Text: text, Words: words}
}

func newTestPipeline(t *testing.T, cfg *config.Config, ex Extractor, opts ...Option) (*Pipeline, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "intake.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })

	lex, err := classify.LoadLexicon("")
	require.NoError(t, err)

	mem := template.NewMemory(st, cfg.Template.SimilarityThreshold)
	gate := assist.NewGate(nil, cfg.Assist)
	return New(cfg, st, mem, gate, ex, lex, opts...), st
}

const cleanInvoice = `Valley Produce Ltd
Invoice Number: INV-2024-0042
Invoice Date: 14/03/2024
Payment terms: 30 days
2 Beef mince 5kg 50.00 100.00
24 Cheddar 4 x 6 1.00 24.00
Subtotal: £124.00
VAT 20%: £24.80
Total Due: £148.80`

func TestPipeline_CleanInvoiceAccepted(t *testing.T) {
	cfg := testConfig()
	p, st := newTestPipeline(t, cfg, extract.NewRegexExtractor())

	file := model.RecognizedFile{
		ID:    "file-1",
		Pages: []model.Page{makePage(1, cleanInvoice, 0.92)},
	}

	res, err := p.ProcessFile(context.Background(), file)
	require.NoError(t, err)
	require.Len(t, res.Blocks, 1)

	br := res.Blocks[0]
	assert.Equal(t, model.ActionAccept, br.Decision.Action)
	assert.Equal(t, model.DocTypeInvoice, br.Classification.DocType)
	assert.True(t, br.Validation.Valid)
	assert.Empty(t, br.Error)
	require.Len(t, br.Fields.Items, 2)
	for _, item := range br.Fields.Items {
		assert.Equal(t, model.VerdictOKOnContract, item.Verdict)
	}

	// Persisted.
	stored, err := st.GetResult(context.Background(), br.ID)
	require.NoError(t, err)
	assert.Equal(t, "file-1", stored.FileID)

	// Template learned, including where the header fields sit on the page.
	tpl, err := st.GetTemplate(context.Background(), "VALLEY PRODUCE")
	require.NoError(t, err)
	require.NotNil(t, tpl)
	assert.Equal(t, 1, tpl.SamplesCount)
	assert.Contains(t, tpl.HeaderZones, "total")
	assert.Contains(t, tpl.HeaderZones, "invoice_number")
}

func TestPipeline_TwoInvoicesSplitAndProcessed(t *testing.T) {
	cfg := testConfig()
	p, _ := newTestPipeline(t, cfg, extract.NewRegexExtractor())

	second := strings.ReplaceAll(cleanInvoice, "INV-2024-0042", "INV-2024-0043")
	second = strings.ReplaceAll(second, "Valley Produce Ltd", "Harbour Fish Supplies Ltd")

	file := model.RecognizedFile{
		Pages: []model.Page{
			makePage(1, cleanInvoice, 0.92),
			makePage(2, second, 0.92),
		},
	}

	res, err := p.ProcessFile(context.Background(), file)
	require.NoError(t, err)
	require.Len(t, res.Blocks, 2)
	assert.Equal(t, "Valley Produce Ltd", res.Blocks[0].Fields.Supplier)
	assert.Equal(t, "Harbour Fish Supplies Ltd", res.Blocks[1].Fields.Supplier)
}

type fakeExtractor struct {
	fields model.DocumentFields
	err    error
	panics bool
	calls  int
}

func (f *fakeExtractor) Extract(_ []model.Page, _ *model.SupplierTemplate) (model.DocumentFields, map[string]model.Region, error) {
	f.calls++
	if f.panics {
		panic("extractor exploded")
	}
	return f.fields, nil, f.err
}

type fakeReprocessor struct {
	pages []model.Page
	calls int
}

func (f *fakeReprocessor) Reprocess(_ context.Context, _ model.RecognizedFile, _ model.InvoiceBlock) ([]model.Page, error) {
	f.calls++
	return f.pages, nil
}

func TestPipeline_AutoRetryFiresExactlyOnce(t *testing.T) {
	cfg := testConfig()
	sub, vat, total := int64(10000), int64(2000), int64(12000)
	rate := 20.0
	ex := &fakeExtractor{fields: model.DocumentFields{
		Supplier:      "Acme Ltd",
		SubtotalPence: &sub, VATPence: &vat, TotalPence: &total, VATRatePct: &rate,
		Items: []model.LineItem{{Description: "Stock", Quantity: 2, UnitPricePence: 5000, LineTotalPence: 10000}},
	}}

	faint := makePage(1, cleanInvoice, 0.25)
	crisp := makePage(1, cleanInvoice, 0.92)
	reproc := &fakeReprocessor{pages: []model.Page{crisp}}

	p, _ := newTestPipeline(t, cfg, ex, WithReprocessor(reproc))

	res, err := p.ProcessFile(context.Background(), model.RecognizedFile{
		ID: "f-retry", Pages: []model.Page{faint},
	})
	require.NoError(t, err)
	require.Len(t, res.Blocks, 1)

	br := res.Blocks[0]
	assert.Equal(t, 1, reproc.calls)
	assert.True(t, br.Decision.AutoRetryUsed)
	assert.Contains(t, br.Decision.Reasons, model.ReasonAutoRetryUsed)
	assert.Greater(t, br.Confidence.AvgConfDocument, 70.0)
	assert.Equal(t, model.ActionAccept, br.Decision.Action)
}

func TestPipeline_NoRetryWhenConfidenceFine(t *testing.T) {
	cfg := testConfig()
	reproc := &fakeReprocessor{}
	p, _ := newTestPipeline(t, cfg, extract.NewRegexExtractor(), WithReprocessor(reproc))

	_, err := p.ProcessFile(context.Background(), model.RecognizedFile{
		Pages: []model.Page{makePage(1, cleanInvoice, 0.92)},
	})
	require.NoError(t, err)
	assert.Zero(t, reproc.calls)
}

func TestPipeline_ExtractorErrorQuarantinesBlock(t *testing.T) {
	cfg := testConfig()
	ex := &fakeExtractor{err: assert.AnError}
	p, _ := newTestPipeline(t, cfg, ex)

	res, err := p.ProcessFile(context.Background(), model.RecognizedFile{
		Pages: []model.Page{makePage(1, cleanInvoice, 0.92)},
	})
	require.NoError(t, err)
	require.Len(t, res.Blocks, 1)
	br := res.Blocks[0]
	assert.Equal(t, model.ActionQuarantine, br.Decision.Action)
	assert.Contains(t, br.Decision.Reasons, model.ReasonIngestError)
	assert.NotEmpty(t, br.Error)
}

func TestPipeline_PanicIsolatedToBlock(t *testing.T) {
	cfg := testConfig()
	ex := &fakeExtractor{panics: true}
	p, _ := newTestPipeline(t, cfg, ex)

	res, err := p.ProcessFile(context.Background(), model.RecognizedFile{
		Pages: []model.Page{makePage(1, cleanInvoice, 0.92)},
	})
	require.NoError(t, err)
	require.Len(t, res.Blocks, 1)
	br := res.Blocks[0]
	assert.Equal(t, model.ActionQuarantine, br.Decision.Action)
	assert.Contains(t, br.Decision.Reasons, model.ReasonIngestError)
	assert.Contains(t, br.Error, "panic")
}

func TestPipeline_SecondVisitUsesTemplateHint(t *testing.T) {
	cfg := testConfig()
	p, st := newTestPipeline(t, cfg, extract.NewRegexExtractor())
	ctx := context.Background()

	// First pass learns the supplier.
	_, err := p.ProcessFile(ctx, model.RecognizedFile{
		Pages: []model.Page{makePage(1, cleanInvoice, 0.92)},
	})
	require.NoError(t, err)

	// Second document from the same supplier misses its VAT rate; the
	// stored hint fills it.
	partial := `Valley Produce Ltd
Invoice Number: INV-2024-0050
2 Beef mince 5kg 50.00 100.00
Subtotal: £100.00
Total Due: £120.00`
	res, err := p.ProcessFile(ctx, model.RecognizedFile{
		Pages: []model.Page{makePage(1, partial, 0.92)},
	})
	require.NoError(t, err)
	require.Len(t, res.Blocks, 1)
	assert.Contains(t, res.Blocks[0].Decision.Reasons, model.ReasonTemplateHintUsed)

	tpl, err := st.GetTemplate(ctx, "VALLEY PRODUCE")
	require.NoError(t, err)
	require.NotNil(t, tpl)
	assert.Equal(t, 2, tpl.SamplesCount)
}

func TestPipeline_ZoneRecoversGarbledTotalLabel(t *testing.T) {
	cfg := testConfig()
	p, _ := newTestPipeline(t, cfg, extract.NewRegexExtractor())
	ctx := context.Background()

	// First pass learns where the totals sit on this supplier's layout.
	_, err := p.ProcessFile(ctx, model.RecognizedFile{
		Pages: []model.Page{makePage(1, cleanInvoice, 0.92)},
	})
	require.NoError(t, err)

	// Same layout, but the total label came back garbled so the labeled
	// pattern misses it. The learned zone reads the amount by position.
	garbled := strings.ReplaceAll(cleanInvoice, "Total Due:", "T0tal Due:")
	garbled = strings.ReplaceAll(garbled, "INV-2024-0042", "INV-2024-0051")
	res, err := p.ProcessFile(ctx, model.RecognizedFile{
		Pages: []model.Page{makePage(1, garbled, 0.92)},
	})
	require.NoError(t, err)
	require.Len(t, res.Blocks, 1)

	br := res.Blocks[0]
	assert.Contains(t, br.Decision.Reasons, model.ReasonTemplateHintUsed)
	require.NotNil(t, br.Fields.TotalPence)
	assert.Equal(t, int64(14880), *br.Fields.TotalPence)
	assert.Equal(t, model.ActionAccept, br.Decision.Action)
}

func TestPipeline_ProcessedAtFromClock(t *testing.T) {
	cfg := testConfig()
	fixed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	p, _ := newTestPipeline(t, cfg, extract.NewRegexExtractor(), WithClock(func() time.Time { return fixed }))

	res, err := p.ProcessFile(context.Background(), model.RecognizedFile{
		Pages: []model.Page{makePage(1, cleanInvoice, 0.92)},
	})
	require.NoError(t, err)
	require.Len(t, res.Blocks, 1)
	assert.Equal(t, fixed, res.Blocks[0].ProcessedAt)
}
