package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/pawstails-storefront/internal/storage"
)

const (
	getValueSQL    = `SELECT value FROM kv WHERE key = $1`
	upsertValueSQL = `INSERT INTO kv (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
	deleteValueSQL = `DELETE FROM kv WHERE key = $1`
)

var _ storage.Store = (*KVStore)(nil)

// KVStore implements storage.Store backed by the kv table.
type KVStore struct {
	pool *pgxpool.Pool
}

// NewKVStore returns a KVStore that uses the given pool.
func NewKVStore(pool *pgxpool.Pool) *KVStore {
	return &KVStore{pool: pool}
}

func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value string
	if err := s.pool.QueryRow(ctx, getValueSQL, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("getting key %q: %w", key, err)
	}
	return []byte(value), nil
}

func (s *KVStore) Set(ctx context.Context, key string, value []byte) error {
	if _, err := s.pool.Exec(ctx, upsertValueSQL, key, string(value)); err != nil {
		return fmt.Errorf("setting key %q: %w", key, err)
	}
	return nil
}

func (s *KVStore) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, deleteValueSQL, key); err != nil {
		return fmt.Errorf("deleting key %q: %w", key, err)
	}
	return nil
}

func (s *KVStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
