package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/intake-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it in
// tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}

	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS block_results (
	id           TEXT PRIMARY KEY,
	file_id      TEXT NOT NULL,
	action       TEXT NOT NULL,
	doc_type     TEXT NOT NULL,
	supplier     TEXT,
	payload      JSONB NOT NULL,
	processed_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS supplier_templates (
	supplier_key TEXT PRIMARY KEY,
	payload      JSONB NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_block_results_file_id ON block_results(file_id);
CREATE INDEX IF NOT EXISTS idx_block_results_action ON block_results(action);
CREATE INDEX IF NOT EXISTS idx_block_results_processed_at ON block_results(processed_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) SaveResult(ctx context.Context, result *model.BlockResult) error {
	if result.ID == "" {
		result.ID = uuid.New().String()
	}
	if result.ProcessedAt.IsZero() {
		result.ProcessedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO block_results (id, file_id, action, doc_type, supplier, payload, processed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET
		   action = excluded.action, doc_type = excluded.doc_type,
		   supplier = excluded.supplier, payload = excluded.payload,
		   processed_at = excluded.processed_at`,
		result.ID, result.FileID, string(result.Decision.Action),
		string(result.Classification.DocType), result.Fields.Supplier,
		payload, result.ProcessedAt,
	)
	return eris.Wrapf(err, "postgres: save result %s", result.ID)
}

func (s *PostgresStore) GetResult(ctx context.Context, id string) (*model.BlockResult, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM block_results WHERE id = $1`, id,
	).Scan(&payload)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get result %s", id)
	}

	var result model.BlockResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal result")
	}
	return &result, nil
}

func (s *PostgresStore) ListResults(ctx context.Context, filter ResultFilter) ([]model.BlockResult, error) {
	query := `SELECT payload FROM block_results WHERE 1=1`
	var args []any

	if filter.Action != "" {
		args = append(args, string(filter.Action))
		query += ` AND action = $1`
	}
	if filter.FileID != "" {
		args = append(args, filter.FileID)
		query += ` AND file_id = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY processed_at DESC`

	// Limit 0 means every row.
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list results")
	}
	defer rows.Close()

	var results []model.BlockResult
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "postgres: scan result")
		}
		var r model.BlockResult
		if err := json.Unmarshal(payload, &r); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal result")
		}
		results = append(results, r)
	}
	return results, eris.Wrap(rows.Err(), "postgres: list results iterate")
}

func (s *PostgresStore) GetTemplate(ctx context.Context, key string) (*model.SupplierTemplate, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM supplier_templates WHERE supplier_key = $1`, key,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get template %s", key)
	}

	var tpl model.SupplierTemplate
	if err := json.Unmarshal(payload, &tpl); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal template")
	}
	return &tpl, nil
}

func (s *PostgresStore) ListTemplateKeys(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT supplier_key FROM supplier_templates`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list template keys")
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, eris.Wrap(err, "postgres: scan template key")
		}
		keys = append(keys, k)
	}
	return keys, eris.Wrap(rows.Err(), "postgres: list template keys iterate")
}

func (s *PostgresStore) ListTemplates(ctx context.Context) ([]model.SupplierTemplate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT payload FROM supplier_templates ORDER BY supplier_key`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list templates")
	}
	defer rows.Close()

	var templates []model.SupplierTemplate
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "postgres: scan template")
		}
		var tpl model.SupplierTemplate
		if err := json.Unmarshal(payload, &tpl); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal template")
		}
		templates = append(templates, tpl)
	}
	return templates, eris.Wrap(rows.Err(), "postgres: list templates iterate")
}

func (s *PostgresStore) UpsertTemplate(ctx context.Context, tpl *model.SupplierTemplate) error {
	if tpl.UpdatedAt.IsZero() {
		tpl.UpdatedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(tpl)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal template")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO supplier_templates (supplier_key, payload, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (supplier_key) DO UPDATE SET
		   payload = excluded.payload, updated_at = excluded.updated_at`,
		tpl.SupplierKey, payload, tpl.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: upsert template %s", tpl.SupplierKey)
}

