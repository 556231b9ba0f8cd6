package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/stocksync/internal/platform/db"
)

const schemaSQL = `CREATE TABLE IF NOT EXISTS sync_collections (
	name       TEXT PRIMARY KEY,
	records    JSONB NOT NULL DEFAULT '[]'::jsonb,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const upsertSQL = `INSERT INTO sync_collections (name, records, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (name) DO UPDATE SET records = EXCLUDED.records, updated_at = NOW()`

// PostgresRepository stores each collection as one JSONB row.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository constructs the repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// EnsureSchema creates the backing table when missing.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("store: ensure schema: %w", err)
	}
	return nil
}

// Get implements Repository.
func (r *PostgresRepository) Get(ctx context.Context, collection string) ([]json.RawMessage, error) {
	if collection == "" {
		return nil, ErrUnknownCollection
	}
	var payload []byte
	err := r.pool.QueryRow(ctx, `SELECT records FROM sync_collections WHERE name = $1`, collection).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return []json.RawMessage{}, nil
	}
	if err != nil {
		return nil, err
	}
	var records []json.RawMessage
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Put implements Repository.
func (r *PostgresRepository) Put(ctx context.Context, collection string, records []json.RawMessage) error {
	return r.PutAll(ctx, map[string][]json.RawMessage{collection: records})
}

// PutAll implements Repository inside a single transaction.
func (r *PostgresRepository) PutAll(ctx context.Context, batch map[string][]json.RawMessage) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for name, records := range batch {
			if name == "" {
				return ErrUnknownCollection
			}
			if records == nil {
				records = []json.RawMessage{}
			}
			raw, err := json.Marshal(records)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, upsertSQL, name, raw); err != nil {
				return fmt.Errorf("store: upsert %s: %w", name, err)
			}
		}
		return nil
	})
}
