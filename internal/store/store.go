// Package store persists block results and supplier templates. Two backends:
// SQLite for single-site installs, Postgres for shared deployments.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/intake-cli/internal/config"
	"github.com/sells-group/intake-cli/internal/model"
)

// ResultFilter specifies criteria for listing block results.
type ResultFilter struct {
	Action model.PolicyAction `json:"action,omitempty"`
	FileID string             `json:"file_id,omitempty"`
	Limit  int                `json:"limit,omitempty"`
	Offset int                `json:"offset,omitempty"`
}

// Store defines the persistence interface for the intake pipeline.
type Store interface {
	// Block results
	SaveResult(ctx context.Context, result *model.BlockResult) error
	GetResult(ctx context.Context, id string) (*model.BlockResult, error)
	ListResults(ctx context.Context, filter ResultFilter) ([]model.BlockResult, error)

	// Supplier templates. GetTemplate returns (nil, nil) when the key is
	// unknown.
	GetTemplate(ctx context.Context, key string) (*model.SupplierTemplate, error)
	ListTemplateKeys(ctx context.Context) ([]string, error)
	ListTemplates(ctx context.Context) ([]model.SupplierTemplate, error)
	UpsertTemplate(ctx context.Context, tpl *model.SupplierTemplate) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// New opens the store selected by configuration.
func New(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return NewSQLite(cfg.DatabaseURL)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
