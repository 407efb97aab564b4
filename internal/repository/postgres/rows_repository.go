package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/stockwise/internal/analytics"
)

const insertBatchSize = 500

// RowsRepository stores each dataset table as JSONB documents, one per
// spreadsheet row, so the original headers survive untouched.
type RowsRepository struct {
	db     *DB
	schema string
}

func NewRowsRepository(db *DB, schema string) *RowsRepository {
	if schema == "" {
		schema = "public"
	}
	return &RowsRepository{db: db, schema: schema}
}

func (r *RowsRepository) Name() string { return "postgres:" + r.schema }

func (r *RowsRepository) tableName(table analytics.Table) string {
	return pq.QuoteIdentifier(r.schema) + "." + pq.QuoteIdentifier("stock_"+string(table))
}

// EnsureSchema creates the schema and one table per dataset table.
func (r *RowsRepository) EnsureSchema(ctx context.Context) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+pq.QuoteIdentifier(r.schema)); err != nil {
			return fmt.Errorf("create schema %s: %w", r.schema, err)
		}
		for _, table := range analytics.Tables {
			ddl := fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS %s (
					id BIGSERIAL PRIMARY KEY,
					payload JSONB NOT NULL,
					imported_at TIMESTAMPTZ NOT NULL DEFAULT now()
				)`, r.tableName(table))
			if _, err := tx.ExecContext(ctx, ddl); err != nil {
				return fmt.Errorf("create table %s: %w", table, err)
			}
		}
		return nil
	})
}

// LoadTable returns the rows of table in insertion order.
func (r *RowsRepository) LoadTable(ctx context.Context, table analytics.Table) ([]analytics.Row, error) {
	query := fmt.Sprintf("SELECT payload FROM %s ORDER BY id", r.tableName(table))

	var payloads [][]byte
	err := r.db.withPermit(ctx, func() error {
		return r.db.SelectContext(ctx, &payloads, query)
	})
	if err != nil {
		if table.Optional() && isUndefinedTable(err) {
			return []analytics.Row{}, nil
		}
		return nil, fmt.Errorf("error loading %s rows: %w", table, err)
	}

	rows := make([]analytics.Row, 0, len(payloads))
	for _, payload := range payloads {
		var row analytics.Row
		if err := json.Unmarshal(payload, &row); err != nil {
			return nil, fmt.Errorf("decode %s row: %w", table, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ReplaceTable swaps the contents of table for rows in one transaction.
func (r *RowsRepository) ReplaceTable(ctx context.Context, table analytics.Table, rows []analytics.Row) error {
	start := time.Now()
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, "TRUNCATE "+r.tableName(table)); err != nil {
			return fmt.Errorf("truncate %s: %w", table, err)
		}
		for begin := 0; begin < len(rows); begin += insertBatchSize {
			end := min(begin+insertBatchSize, len(rows))
			payloads := make([]string, 0, end-begin)
			for _, row := range rows[begin:end] {
				raw, err := json.Marshal(jsonSafe(row))
				if err != nil {
					return fmt.Errorf("encode %s row: %w", table, err)
				}
				payloads = append(payloads, string(raw))
			}
			query := fmt.Sprintf("INSERT INTO %s (payload) SELECT doc::jsonb FROM unnest($1::text[]) AS doc", r.tableName(table))
			if _, err := tx.ExecContext(ctx, query, payloads); err != nil {
				return fmt.Errorf("insert %s rows: %w", table, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info().
		Str("table", string(table)).
		Int("rows", len(rows)).
		Dur("duration", time.Since(start)).
		Msg("dataset table replaced")
	return nil
}

// jsonSafe replaces non-finite floats, which JSON cannot carry, with nil.
func jsonSafe(row analytics.Row) analytics.Row {
	out := make(analytics.Row, len(row))
	for k, v := range row {
		if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
			v = nil
		}
		out[k] = v
	}
	return out
}

func isUndefinedTable(err error) bool {
	var coded interface{ SQLState() string }
	return errors.As(err, &coded) && coded.SQLState() == "42P01"
}
