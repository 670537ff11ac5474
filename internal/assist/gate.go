// Package assist consults a language model when the deterministic classifier
// is unsure, under strict gating: the model is advisory, rate-limited, time
// boxed, and its answer only counts when the document itself corroborates it.
package assist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/sells-group/intake-cli/internal/config"
	"github.com/sells-group/intake-cli/internal/model"
)

// ErrUnavailable is returned by a Generator that cannot reach its backend.
var ErrUnavailable = errors.New("assist: generator unavailable")

// ErrTimedOut is returned when the assist budget elapsed before an answer.
var ErrTimedOut = errors.New("assist: timed out")

// Generator produces a completion for a prompt. The production implementation
// calls the Anthropic API; tests substitute a canned one.
type Generator interface {
	Generate(ctx context.Context, system, prompt string, maxTokens int) (string, error)
}

// suggestion is the JSON shape the model is asked to reply with.
type suggestion struct {
	Label string `json:"label"`
	Why   string `json:"why"`
}

// hardSignals are document phrases that must corroborate a suggested label.
// A suggestion with fewer than two hits in the text is recorded but not
// applied.
var hardSignals = map[model.DocType][]string{
	model.DocTypeInvoice:      {"invoice number", "vat", "total due", "payment terms", "remittance", "anfoneb", "taw"},
	model.DocTypeDeliveryNote: {"delivery", "received by", "driver", "signature", "goods", "danfon", "llofnod"},
	model.DocTypeReceipt:      {"change", "cash", "card", "till", "transaction", "derbynneb", "arian"},
	model.DocTypeUtility:      {"kwh", "meter", "standing charge", "account number", "supply", "mesurydd", "trydan"},
}

const minHardSignals = 2

const systemPrompt = `You label scanned hospitality paperwork. Reply with a single JSON object
{"label": "...", "why": "..."} where label is one of: invoice, delivery_note,
receipt, utility, other. No other text.`

// Gate wraps a Generator with the gating rules. At most one assist call runs
// at a time; ingest throughput must never depend on model latency.
type Gate struct {
	gen Generator
	cfg config.AssistConfig
	sem *semaphore.Weighted
}

// NewGate builds a gate. gen may be nil when assist is disabled.
func NewGate(gen Generator, cfg config.AssistConfig) *Gate {
	return &Gate{gen: gen, cfg: cfg, sem: semaphore.NewWeighted(1)}
}

// Refine returns a possibly-updated classification plus audit reasons. The
// original classification is returned untouched when the gate does not open,
// the model cannot answer in time, or the answer fails corroboration.
func (g *Gate) Refine(ctx context.Context, text string, cls model.ClassificationResult) (model.ClassificationResult, []string) {
	if !g.cfg.Enabled || g.gen == nil {
		return cls, nil
	}
	if cls.Score >= g.cfg.GateThreshold {
		return cls, nil
	}

	timeout := time.Duration(g.cfg.TimeoutMillis) * time.Millisecond
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// One call at a time. A caller waits its turn within the same time budget
	// as the call itself; when the model stays busy past that, it keeps the
	// deterministic answer.
	if err := g.sem.Acquire(callCtx, 1); err != nil {
		zap.L().Warn("assist: model busy past deadline, keeping deterministic result", zap.Error(err))
		return cls, nil
	}
	defer g.sem.Release(1)

	prompt := buildPrompt(text, cls)
	raw, err := g.gen.Generate(callCtx, systemPrompt, prompt, g.cfg.MaxTokens)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrTimedOut) || errors.Is(err, ErrUnavailable) {
			zap.L().Warn("assist: degraded, keeping deterministic result", zap.Error(err))
			return cls, nil
		}
		zap.L().Warn("assist: generator failed", zap.Error(err))
		return cls, nil
	}

	var sug suggestion
	if err := json.Unmarshal([]byte(extractJSON(raw)), &sug); err != nil {
		zap.L().Warn("assist: unparseable suggestion", zap.String("raw", raw))
		return cls, nil
	}

	label := model.DocType(strings.TrimSpace(strings.ToLower(sug.Label)))
	if !validLabel(label) || label == cls.DocType {
		return cls, nil
	}

	if countSignals(text, hardSignals[label]) < minHardSignals {
		zap.L().Info("assist: suggestion lacked corroboration",
			zap.String("suggested", string(label)),
			zap.String("kept", string(cls.DocType)),
		)
		return cls, []string{model.ReasonLLMAssistIgnored}
	}

	zap.L().Info("assist: suggestion applied",
		zap.String("from", string(cls.DocType)),
		zap.String("to", string(label)),
	)
	out := cls
	out.DocType = label
	out.Reasons = append(append([]string{}, cls.Reasons...), fmt.Sprintf("assist: %s", sug.Why))
	return out, []string{model.ReasonLLMAssistUsed}
}

func buildPrompt(text string, cls model.ClassificationResult) string {
	excerpt := text
	if len(excerpt) > 2000 {
		excerpt = excerpt[:2000]
	}
	return fmt.Sprintf(
		"The rule-based classifier scored this as %q with low confidence (%.2f).\nDocument text:\n%s",
		cls.DocType, cls.Score, excerpt,
	)
}

// extractJSON pulls the first {...} span out of a reply that may carry
// prose around it.
func extractJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return raw
	}
	return raw[start : end+1]
}

func validLabel(dt model.DocType) bool {
	switch dt {
	case model.DocTypeInvoice, model.DocTypeDeliveryNote, model.DocTypeReceipt, model.DocTypeUtility, model.DocTypeOther:
		return true
	}
	return false
}

func countSignals(text string, signals []string) int {
	lower := strings.ToLower(text)
	n := 0
	for _, s := range signals {
		if strings.Contains(lower, s) {
			n++
		}
	}
	return n
}
