package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/intake-cli/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "intake.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleResult(fileID string, action model.PolicyAction) *model.BlockResult {
	return &model.BlockResult{
		FileID: fileID,
		Block:  model.InvoiceBlock{PageStart: 1, PageEnd: 2, Confidence: 84},
		Classification: model.ClassificationResult{
			DocType: model.DocTypeInvoice, Score: 0.85, Language: model.LangEnglish,
		},
		Confidence: model.ConfidenceSummary{AvgConfDocument: 84, MinConfLine: 60},
		Fields:     model.DocumentFields{Supplier: "Valley Produce Ltd"},
		Validation: model.ValidationResult{Valid: true},
		Decision:   model.PolicyDecision{Action: action},
	}
}

func TestSQLiteStore_SaveAndGetResult(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	r := sampleResult("file-1", model.ActionAccept)
	require.NoError(t, s.SaveResult(ctx, r))
	require.NotEmpty(t, r.ID)
	assert.False(t, r.ProcessedAt.IsZero())

	got, err := s.GetResult(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.FileID, got.FileID)
	assert.Equal(t, model.ActionAccept, got.Decision.Action)
	assert.Equal(t, "Valley Produce Ltd", got.Fields.Supplier)
}

func TestSQLiteStore_GetResult_NotFound(t *testing.T) {
	s := newTestSQLite(t)
	_, err := s.GetResult(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get result")
}

func TestSQLiteStore_SaveResult_Idempotent(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	r := sampleResult("file-1", model.ActionQuarantine)
	require.NoError(t, s.SaveResult(ctx, r))

	r.Decision.Action = model.ActionAccept
	require.NoError(t, s.SaveResult(ctx, r))

	got, err := s.GetResult(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ActionAccept, got.Decision.Action)

	all, err := s.ListResults(ctx, ResultFilter{FileID: "file-1"})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSQLiteStore_ListResults_FilterByAction(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.SaveResult(ctx, sampleResult("f1", model.ActionAccept)))
	require.NoError(t, s.SaveResult(ctx, sampleResult("f2", model.ActionQuarantine)))
	require.NoError(t, s.SaveResult(ctx, sampleResult("f3", model.ActionQuarantine)))

	quarantined, err := s.ListResults(ctx, ResultFilter{Action: model.ActionQuarantine})
	require.NoError(t, err)
	assert.Len(t, quarantined, 2)

	all, err := s.ListResults(ctx, ResultFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSQLiteStore_ListResults_LimitZeroMeansAll(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	for i := 0; i < 120; i++ {
		require.NoError(t, s.SaveResult(ctx, sampleResult(fmt.Sprintf("f%d", i), model.ActionAccept)))
	}

	all, err := s.ListResults(ctx, ResultFilter{Limit: 0})
	require.NoError(t, err)
	assert.Len(t, all, 120)

	two, err := s.ListResults(ctx, ResultFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, two, 2)

	tail, err := s.ListResults(ctx, ResultFilter{Offset: 118})
	require.NoError(t, err)
	assert.Len(t, tail, 2)
}

func TestSQLiteStore_Templates(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	missing, err := s.GetTemplate(ctx, "NOBODY")
	require.NoError(t, err)
	assert.Nil(t, missing)

	vat := 20.0
	tpl := &model.SupplierTemplate{
		SupplierKey:  "VALLEY PRODUCE",
		DisplayName:  "Valley Produce Ltd",
		HeaderZones:  map[string]model.Region{"total": {X: 0.8, Y: 0.9, Width: 0.15, Height: 0.05}},
		CurrencyHint: "GBP",
		VATHint:      &vat,
		SamplesCount: 1,
		UpdatedAt:    time.Now().UTC(),
	}
	require.NoError(t, s.UpsertTemplate(ctx, tpl))

	got, err := s.GetTemplate(ctx, "VALLEY PRODUCE")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Valley Produce Ltd", got.DisplayName)
	assert.Contains(t, got.HeaderZones, "total")

	tpl.SamplesCount = 2
	require.NoError(t, s.UpsertTemplate(ctx, tpl))
	got, err = s.GetTemplate(ctx, "VALLEY PRODUCE")
	require.NoError(t, err)
	assert.Equal(t, 2, got.SamplesCount)

	keys, err := s.ListTemplateKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"VALLEY PRODUCE"}, keys)

	templates, err := s.ListTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.Equal(t, "VALLEY PRODUCE", templates[0].SupplierKey)
}
