package template

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/intake-cli/internal/model"
)

// Store is the persistence surface the memory needs. GetTemplate returns
// (nil, nil) when no template exists for the key.
type Store interface {
	GetTemplate(ctx context.Context, key string) (*model.SupplierTemplate, error)
	ListTemplateKeys(ctx context.Context) ([]string, error)
	UpsertTemplate(ctx context.Context, tpl *model.SupplierTemplate) error
}

// Observation is what one successful extraction contributes back to the
// supplier's template.
type Observation struct {
	HeaderZones  map[string]model.Region
	CurrencyHint string
	VATHint      *float64
}

// Memory is the supplier template cache. Concurrent Record calls for the
// same supplier are serialized per key so get-merge-upsert never loses an
// update; different suppliers proceed in parallel.
type Memory struct {
	store     Store
	threshold float64

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewMemory wires the memory over a store. threshold is the minimum
// similarity for a fuzzy key match.
func NewMemory(store Store, threshold float64) *Memory {
	return &Memory{
		store:     store,
		threshold: threshold,
		locks:     make(map[string]*sync.Mutex),
	}
}

// Lookup finds the template for a supplier name, trying the exact normalized
// key first and falling back to the nearest known key above the similarity
// threshold. Returns (nil, nil) when nothing matches.
func (m *Memory) Lookup(ctx context.Context, supplier string) (*model.SupplierTemplate, error) {
	key := NormalizeKey(supplier)
	if key == "" {
		return nil, nil
	}

	tpl, err := m.store.GetTemplate(ctx, key)
	if err != nil {
		return nil, eris.Wrapf(err, "template: get %q", key)
	}
	if tpl != nil {
		return tpl, nil
	}

	keys, err := m.store.ListTemplateKeys(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "template: list keys")
	}

	bestKey, bestScore := "", m.threshold
	for _, k := range keys {
		if s := Similarity(key, k); s >= bestScore {
			bestKey, bestScore = k, s
		}
	}
	if bestKey == "" {
		return nil, nil
	}

	zap.L().Debug("template: fuzzy key match",
		zap.String("wanted", key),
		zap.String("matched", bestKey),
		zap.Float64("similarity", bestScore),
	)
	tpl, err = m.store.GetTemplate(ctx, bestKey)
	if err != nil {
		return nil, eris.Wrapf(err, "template: get %q", bestKey)
	}
	return tpl, nil
}

// Record merges an observation into the supplier's template, creating it on
// first sight. Zones overwrite per field name; hints fill in only when the
// template has none.
func (m *Memory) Record(ctx context.Context, supplier string, obs Observation) error {
	key := NormalizeKey(supplier)
	if key == "" {
		return nil
	}

	lock := m.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	tpl, err := m.store.GetTemplate(ctx, key)
	if err != nil {
		return eris.Wrapf(err, "template: get %q", key)
	}
	if tpl == nil {
		tpl = &model.SupplierTemplate{
			SupplierKey: key,
			DisplayName: supplier,
			HeaderZones: make(map[string]model.Region),
		}
	}
	if tpl.HeaderZones == nil {
		tpl.HeaderZones = make(map[string]model.Region)
	}

	for field, region := range obs.HeaderZones {
		tpl.HeaderZones[field] = region
	}
	if tpl.CurrencyHint == "" {
		tpl.CurrencyHint = obs.CurrencyHint
	}
	if tpl.VATHint == nil {
		tpl.VATHint = obs.VATHint
	}
	tpl.SamplesCount++
	tpl.UpdatedAt = time.Now().UTC()

	if err := m.store.UpsertTemplate(ctx, tpl); err != nil {
		return eris.Wrapf(err, "template: upsert %q", key)
	}
	return nil
}

func (m *Memory) keyLock(key string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	return l
}
