package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps status records in the statuses table. Row-level
// upserts give per-key atomicity without any application locking.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a store over an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Get returns the record for ref, or ErrNotFound.
func (s *PostgresStore) Get(ctx context.Context, ref string) (*Record, error) {
	var rec Record
	row := s.pool.QueryRow(ctx, `
		SELECT stage, COALESCE(note,''), updated_at
		FROM statuses WHERE ref=$1
	`, ref)
	if err := row.Scan(&rec.Stage, &rec.Note, &rec.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select status: %w", err)
	}
	return &rec, nil
}

// Put fully replaces the record for ref.
func (s *PostgresStore) Put(ctx context.Context, ref string, rec *Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO statuses (ref, stage, note, updated_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (ref) DO UPDATE
		SET stage=EXCLUDED.stage, note=EXCLUDED.note, updated_at=EXCLUDED.updated_at
	`, ref, rec.Stage, rec.Note, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert status: %w", err)
	}
	return nil
}
