package pgx

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lborres/blogdesk/core"
)

type Adapter struct {
	pool  *pgxpool.Pool
	table string
}

var _ core.Storage = (*Adapter)(nil)

const defaultTable = "blogdesk_kv"

// New wraps a pool. The pool is owned by the caller unless Close is used.
func New(pool *pgxpool.Pool) *Adapter {
	return &Adapter{
		pool:  pool,
		table: defaultTable,
	}
}

// Open connects to the given DSN and migrates the slot table.
func Open(ctx context.Context, dsn string) (*Adapter, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	a := New(pool)
	if err := a.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return a, nil
}

func (a *Adapter) Migrate(ctx context.Context) error {
	q := `CREATE TABLE IF NOT EXISTS ` + pgx.Identifier{a.table}.Sanitize() + ` (
		key        TEXT PRIMARY KEY,
		value      BYTEA NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`
	if _, err := a.pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("migrating %s: %w", a.table, err)
	}
	return nil
}

func (a *Adapter) Get(ctx context.Context, key string) ([]byte, error) {
	q := `SELECT value FROM ` + pgx.Identifier{a.table}.Sanitize() + ` WHERE key = $1`

	var value []byte
	err := a.pool.QueryRow(ctx, q, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrStorageNotFound
		}
		return nil, err
	}
	return value, nil
}

func (a *Adapter) Set(ctx context.Context, key string, value []byte) error {
	q := `INSERT INTO ` + pgx.Identifier{a.table}.Sanitize() + ` (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`

	_, err := a.pool.Exec(ctx, q, key, value)
	return err
}

func (a *Adapter) Delete(ctx context.Context, key string) error {
	q := `DELETE FROM ` + pgx.Identifier{a.table}.Sanitize() + ` WHERE key = $1`

	_, err := a.pool.Exec(ctx, q, key)
	return err
}

func (a *Adapter) Close() error {
	a.pool.Close()
	return nil
}
