// Package pipeline orchestrates one submitted file end to end: split into
// blocks, then per block classify, extract, validate, and decide. Blocks are
// isolated; one blowing up never takes its siblings with it.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/intake-cli/internal/assist"
	"github.com/sells-group/intake-cli/internal/classify"
	"github.com/sells-group/intake-cli/internal/config"
	"github.com/sells-group/intake-cli/internal/confidence"
	"github.com/sells-group/intake-cli/internal/model"
	"github.com/sells-group/intake-cli/internal/policy"
	"github.com/sells-group/intake-cli/internal/split"
	"github.com/sells-group/intake-cli/internal/store"
	"github.com/sells-group/intake-cli/internal/template"
	"github.com/sells-group/intake-cli/internal/validate"
	"github.com/sells-group/intake-cli/internal/verdict"
)

// Pipeline wires the processing stages together.
type Pipeline struct {
	cfg       *config.Config
	store     store.Store
	memory    *template.Memory
	gate      *assist.Gate
	extractor Extractor
	reproc    Reprocessor
	lexicon   *classify.Lexicon
	now       func() time.Time
}

// Option tweaks pipeline construction.
type Option func(*Pipeline)

// WithReprocessor enables the one-shot auto-retry step.
func WithReprocessor(r Reprocessor) Option {
	return func(p *Pipeline) { p.reproc = r }
}

// WithClock overrides the clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New builds a pipeline.
func New(cfg *config.Config, st store.Store, mem *template.Memory, gate *assist.Gate, ex Extractor, lex *classify.Lexicon, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:       cfg,
		store:     st,
		memory:    mem,
		gate:      gate,
		extractor: ex,
		lexicon:   lex,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessFile splits the file and processes every block. The returned result
// always has one entry per block; failed blocks carry an error and a
// quarantine decision instead of aborting the file.
func (p *Pipeline) ProcessFile(ctx context.Context, file model.RecognizedFile) (*model.IngestResult, error) {
	if file.ID == "" {
		file.ID = uuid.New().String()
	}

	blocks := split.Split(file.Pages, p.cfg.Split)
	zap.L().Info("pipeline: file split",
		zap.String("file_id", file.ID),
		zap.Int("pages", len(file.Pages)),
		zap.Int("blocks", len(blocks)),
	)

	results := make([]model.BlockResult, len(blocks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Pipeline.MaxConcurrentBlocks)

	for i, block := range blocks {
		g.Go(func() error {
			results[i] = p.processBlock(gctx, file, block)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &model.IngestResult{FileID: file.ID, Blocks: results}, nil
}

// processBlock runs the full stage sequence for one block. Panics become a
// quarantined result so sibling blocks are unaffected.
func (p *Pipeline) processBlock(ctx context.Context, file model.RecognizedFile, block model.InvoiceBlock) (result model.BlockResult) {
	result = model.BlockResult{
		ID:          uuid.New().String(),
		FileID:      file.ID,
		Block:       block,
		ProcessedAt: p.now().UTC(),
	}

	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("pipeline: block panicked",
				zap.String("file_id", file.ID),
				zap.Int("page_start", block.PageStart),
				zap.Any("panic", r),
			)
			result.Error = fmt.Sprintf("panic: %v", r)
			result.Decision = model.PolicyDecision{
				Action:  model.ActionQuarantine,
				Reasons: []string{model.ReasonIngestError},
			}
		}
		p.persist(ctx, &result)
	}()

	pages := pagesFor(file, block)
	retryUsed := false

	conf, cls, fields, zones, extraReasons, err := p.analyze(ctx, pages)
	if err != nil {
		result.Error = err.Error()
		result.Decision = model.PolicyDecision{
			Action:  model.ActionQuarantine,
			Reasons: []string{model.ReasonIngestError},
		}
		return result
	}

	// One automatic re-recognition when the read is poor. Never more.
	if conf.AvgConfDocument < p.cfg.Pipeline.RetryConfidence && p.reproc != nil {
		if better, rerr := p.reproc.Reprocess(ctx, file, block); rerr == nil && len(better) > 0 {
			retryUsed = true
			if c2, cl2, f2, z2, r2, aerr := p.analyze(ctx, better); aerr == nil {
				conf, cls, fields, zones, extraReasons = c2, cl2, f2, z2, r2
			}
		} else if rerr != nil {
			zap.L().Warn("pipeline: reprocess failed", zap.Error(rerr))
		}
	}

	validation := validate.Validate(fields, p.now(), p.cfg.Validate)
	p.assignVerdicts(fields.Items, fields.VATRatePct, conf)

	decision := policy.Decide(policy.Inputs{
		Classification: cls,
		Confidence:     conf,
		Validation:     validation,
		AutoRetryUsed:  retryUsed,
	}, p.cfg.Policy)
	decision.Reasons = append(decision.Reasons, extraReasons...)

	result.Classification = cls
	result.Confidence = conf
	result.Fields = fields
	result.Validation = validation
	result.Decision = decision

	if decision.Action != model.ActionReject && fields.Supplier != "" {
		if err := p.memory.Record(ctx, fields.Supplier, template.Observation{
			HeaderZones:  zones,
			CurrencyHint: fields.Currency,
			VATHint:      fields.VATRatePct,
		}); err != nil {
			zap.L().Warn("pipeline: template record failed", zap.Error(err))
		}
	}

	return result
}

// analyze runs the read-only stages over a set of pages: confidence rollup,
// classification (with assist), then extraction with any template hint.
func (p *Pipeline) analyze(ctx context.Context, pages []model.Page) (model.ConfidenceSummary, model.ClassificationResult, model.DocumentFields, map[string]model.Region, []string, error) {
	conf := confidence.Document(pages)
	text := joinPages(pages)

	cls := classify.Classify(text, p.lexicon, p.cfg.Classify)
	cls, reasons := p.gate.Refine(ctx, text, cls)

	fields, zones, err := p.extractor.Extract(pages, nil)
	if err != nil {
		return conf, cls, fields, zones, reasons, err
	}

	if fields.Supplier != "" {
		hint, lerr := p.memory.Lookup(ctx, fields.Supplier)
		if lerr != nil {
			zap.L().Warn("pipeline: template lookup failed", zap.Error(lerr))
		} else if hint != nil && fieldsIncomplete(fields) {
			if refined, rzones, rerr := p.extractor.Extract(pages, hint); rerr == nil {
				fields, zones = refined, rzones
				reasons = append(reasons, model.ReasonTemplateHintUsed)
			}
		}
	}

	return conf, cls, fields, zones, reasons, nil
}

// assignVerdicts resolves the single verdict per line item in place.
func (p *Pipeline) assignVerdicts(items []model.LineItem, docRate *float64, conf model.ConfidenceSummary) {
	lowConf := conf.MinConfLine < p.cfg.Pipeline.LowConfLine
	for i := range items {
		lc := validate.CheckLine(items[i], docRate, p.cfg.Validate)
		items[i].Verdict = verdict.Resolve(verdict.Signals{
			PriceIncoherent:     lc.PriceIncoherent,
			VATMismatch:         lc.VATRateDiffers,
			PackMismatch:        lc.PackMismatch,
			OCRLowConf:          lowConf,
			OffContractDiscount: lc.OffContractDiscount,
		})
		items[i].Confidence = conf.AvgConfDocument
	}
}

func (p *Pipeline) persist(ctx context.Context, result *model.BlockResult) {
	if err := p.store.SaveResult(ctx, result); err != nil {
		zap.L().Error("pipeline: save result failed",
			zap.String("result_id", result.ID),
			zap.Error(err),
		)
	}
}

func pagesFor(file model.RecognizedFile, block model.InvoiceBlock) []model.Page {
	var pages []model.Page
	for _, pg := range file.Pages {
		if pg.Index >= block.PageStart && pg.Index <= block.PageEnd {
			pages = append(pages, pg)
		}
	}
	return pages
}

func joinPages(pages []model.Page) string {
	var b strings.Builder
	for _, pg := range pages {
		b.WriteString(pg.Text)
		b.WriteString("\n")
	}
	return b.String()
}

func fieldsIncomplete(f model.DocumentFields) bool {
	return f.TotalPence == nil || f.SubtotalPence == nil || f.VATPence == nil ||
		f.VATRatePct == nil || f.Currency == "" || len(f.Items) == 0
}
