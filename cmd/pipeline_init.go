package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/intake-cli/internal/assist"
	"github.com/sells-group/intake-cli/internal/classify"
	"github.com/sells-group/intake-cli/internal/extract"
	"github.com/sells-group/intake-cli/internal/pipeline"
	"github.com/sells-group/intake-cli/internal/store"
	"github.com/sells-group/intake-cli/internal/template"
	anthropicpkg "github.com/sells-group/intake-cli/pkg/anthropic"
)

// pipelineEnv bundles everything a command needs to run the pipeline.
type pipelineEnv struct {
	Store    store.Store
	Memory   *template.Memory
	Pipeline *pipeline.Pipeline
}

// initPipeline sets up the store, the assist gate, and the pipeline.
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	st, err := store.New(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	lex, err := classify.LoadLexicon(cfg.Classify.LexiconPath)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	var gen assist.Generator
	if cfg.Assist.Enabled {
		if cfg.Anthropic.Key == "" {
			zap.L().Warn("assist enabled but INTAKE_ANTHROPIC_KEY not set, assist disabled")
			cfg.Assist.Enabled = false
		} else {
			client := anthropicpkg.NewClient(cfg.Anthropic.Key, cfg.Anthropic.RequestsPerSec)
			gen = assist.NewAnthropicGenerator(client, cfg.Anthropic)
		}
	}

	mem := template.NewMemory(st, cfg.Template.SimilarityThreshold)
	pipe := pipeline.New(cfg, st, mem,
		assist.NewGate(gen, cfg.Assist),
		extract.NewRegexExtractor(), lex)

	return &pipelineEnv{Store: st, Memory: mem, Pipeline: pipe}, nil
}

// Close releases held resources.
func (e *pipelineEnv) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("close store", zap.Error(err))
	}
}
