package store

import (
	"context"
	"fmt"

	"imagestudio/internal/infra"
	"imagestudio/internal/sqlinline"
)

// PGStore persists collections in a single key-value table in Postgres.
// Used when several instances need to share state.
type PGStore struct {
	sql infra.SQLExecutor
}

// NewPGStore ensures the backing table exists and returns the store.
func NewPGStore(ctx context.Context, sql infra.SQLExecutor) (*PGStore, error) {
	if _, err := sql.Exec(ctx, sqlinline.QEnsureStateTable); err != nil {
		return nil, fmt.Errorf("store: ensure state table: %w", err)
	}
	return &PGStore{sql: sql}, nil
}

// Load reads the bytes stored at key. A key that has never been written
// returns (nil, nil).
func (s *PGStore) Load(ctx context.Context, key string) ([]byte, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectState, key)
	var data []byte
	if err := row.Scan(&data); err != nil {
		if infra.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: load %s: %w", key, err)
	}
	return data, nil
}

// Save upserts the bytes at key.
func (s *PGStore) Save(ctx context.Context, key string, data []byte) error {
	if _, err := s.sql.Exec(ctx, sqlinline.QUpsertState, key, data); err != nil {
		return fmt.Errorf("store: save %s: %w", key, err)
	}
	return nil
}

var _ Storage = (*PGStore)(nil)
