package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/intake-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS block_results (
	id           TEXT PRIMARY KEY,
	file_id      TEXT NOT NULL,
	action       TEXT NOT NULL,
	doc_type     TEXT NOT NULL,
	supplier     TEXT,
	payload      TEXT NOT NULL,
	processed_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS supplier_templates (
	supplier_key TEXT PRIMARY KEY,
	payload      TEXT NOT NULL,
	updated_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_block_results_file_id ON block_results(file_id);
CREATE INDEX IF NOT EXISTS idx_block_results_action ON block_results(action);
CREATE INDEX IF NOT EXISTS idx_block_results_processed_at ON block_results(processed_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveResult(ctx context.Context, result *model.BlockResult) error {
	if result.ID == "" {
		result.ID = uuid.New().String()
	}
	if result.ProcessedAt.IsZero() {
		result.ProcessedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO block_results (id, file_id, action, doc_type, supplier, payload, processed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   action = excluded.action, doc_type = excluded.doc_type,
		   supplier = excluded.supplier, payload = excluded.payload,
		   processed_at = excluded.processed_at`,
		result.ID, result.FileID, string(result.Decision.Action),
		string(result.Classification.DocType), result.Fields.Supplier,
		string(payload), result.ProcessedAt,
	)
	return eris.Wrapf(err, "sqlite: save result %s", result.ID)
}

func (s *SQLiteStore) GetResult(ctx context.Context, id string) (*model.BlockResult, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM block_results WHERE id = ?`, id,
	).Scan(&payload)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get result %s", id)
	}

	var result model.BlockResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal result")
	}
	return &result, nil
}

func (s *SQLiteStore) ListResults(ctx context.Context, filter ResultFilter) ([]model.BlockResult, error) {
	query := `SELECT payload FROM block_results WHERE 1=1`
	var args []any

	if filter.Action != "" {
		query += ` AND action = ?`
		args = append(args, string(filter.Action))
	}
	if filter.FileID != "" {
		query += ` AND file_id = ?`
		args = append(args, filter.FileID)
	}
	query += ` ORDER BY processed_at DESC`

	// Limit 0 means every row. SQLite wants a LIMIT before OFFSET, so an
	// offset without a limit uses the unlimited sentinel.
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	} else if filter.Offset > 0 {
		query += ` LIMIT -1`
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list results")
	}
	defer rows.Close()

	var results []model.BlockResult
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan result")
		}
		var r model.BlockResult
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal result")
		}
		results = append(results, r)
	}
	return results, eris.Wrap(rows.Err(), "sqlite: list results iterate")
}

func (s *SQLiteStore) GetTemplate(ctx context.Context, key string) (*model.SupplierTemplate, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM supplier_templates WHERE supplier_key = ?`, key,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get template %s", key)
	}

	var tpl model.SupplierTemplate
	if err := json.Unmarshal([]byte(payload), &tpl); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal template")
	}
	return &tpl, nil
}

func (s *SQLiteStore) ListTemplateKeys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT supplier_key FROM supplier_templates`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list template keys")
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan template key")
		}
		keys = append(keys, k)
	}
	return keys, eris.Wrap(rows.Err(), "sqlite: list template keys iterate")
}

func (s *SQLiteStore) ListTemplates(ctx context.Context) ([]model.SupplierTemplate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM supplier_templates ORDER BY supplier_key`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list templates")
	}
	defer rows.Close()

	var templates []model.SupplierTemplate
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan template")
		}
		var tpl model.SupplierTemplate
		if err := json.Unmarshal([]byte(payload), &tpl); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal template")
		}
		templates = append(templates, tpl)
	}
	return templates, eris.Wrap(rows.Err(), "sqlite: list templates iterate")
}

func (s *SQLiteStore) UpsertTemplate(ctx context.Context, tpl *model.SupplierTemplate) error {
	if tpl.UpdatedAt.IsZero() {
		tpl.UpdatedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(tpl)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal template")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO supplier_templates (supplier_key, payload, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (supplier_key) DO UPDATE SET
		   payload = excluded.payload, updated_at = excluded.updated_at`,
		tpl.SupplierKey, string(payload), tpl.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: upsert template %s", tpl.SupplierKey)
}
