package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	ensureSchemaSQL = `CREATE TABLE IF NOT EXISTS oracle_kv (
        key   BYTEA PRIMARY KEY,
        value BYTEA NOT NULL
    );`

	loadSQL = `SELECT value FROM oracle_kv WHERE key = $1;`

	upsertSQL = `INSERT INTO oracle_kv (key, value)
    VALUES ($1, $2)
    ON CONFLICT (key) DO UPDATE
    SET value = EXCLUDED.value;`

	deleteSQL = `DELETE FROM oracle_kv WHERE key = $1;`

	scanAscSQL = `SELECT key, value
    FROM oracle_kv
    WHERE key >= $1
      AND ($2::BYTEA IS NULL OR key < $2)
    ORDER BY key ASC;`

	scanDescSQL = `SELECT key, value
    FROM oracle_kv
    WHERE key >= $1
      AND ($2::BYTEA IS NULL OR key < $2)
    ORDER BY key DESC;`
)

// Postgres keeps oracle tables in a single key/value table.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wires a pgx pool into a KV backend.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// EnsureSchema creates the backing table when missing.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, ensureSchemaSQL); execErr != nil {
		return fmt.Errorf("ensure schema: %w", execErr)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *Postgres) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

func (s *Postgres) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// Load reads a single key.
func (s *Postgres) Load(ctx context.Context, key []byte) ([]byte, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	var value []byte
	if scanErr := pool.QueryRow(ctx, loadSQL, key).Scan(&value); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("load key: %w", scanErr)
	}
	return value, nil
}

// Save upserts a single key.
func (s *Postgres) Save(ctx context.Context, key, value []byte) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, upsertSQL, key, value); execErr != nil {
		return fmt.Errorf("save key: %w", execErr)
	}
	return nil
}

// RangeScan lists every key carrying prefix in key order.
func (s *Postgres) RangeScan(ctx context.Context, prefix []byte, order Order) ([]Entry, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	query := scanAscSQL
	if order == Descending {
		query = scanDescSQL
	}

	lower := prefix
	if lower == nil {
		lower = []byte{}
	}

	rows, queryErr := pool.Query(ctx, query, lower, PrefixEnd(prefix))
	if queryErr != nil {
		return nil, fmt.Errorf("range scan: %w", queryErr)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var entry Entry
		if scanErr := rows.Scan(&entry.Key, &entry.Value); scanErr != nil {
			return nil, fmt.Errorf("scan entry: %w", scanErr)
		}
		entries = append(entries, entry)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return entries, nil
}

// Batch applies ops inside one transaction.
func (s *Postgres) Batch(ctx context.Context, ops []Op) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	for _, op := range ops {
		switch op.Type {
		case OpPut:
			if _, execErr := tx.Exec(ctx, upsertSQL, op.Key, op.Value); execErr != nil {
				return fmt.Errorf("batch put: %w", execErr)
			}
		case OpDelete:
			if _, execErr := tx.Exec(ctx, deleteSQL, op.Key); execErr != nil {
				return fmt.Errorf("batch delete: %w", execErr)
			}
		default:
			return fmt.Errorf("unknown batch operation type: %d", op.Type)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

var _ KV = (*Postgres)(nil)
