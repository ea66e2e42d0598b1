package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS patient_records (
	id            uuid PRIMARY KEY,
	run_id        text        NOT NULL,
	patient_id    text        NOT NULL,
	source_file   text        NOT NULL,
	labeling_mode text        NOT NULL,
	visits        integer     NOT NULL,
	document      jsonb       NOT NULL,
	created_at    timestamptz NOT NULL DEFAULT now(),
	UNIQUE (patient_id, source_file)
)`

// Migrate creates the record table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create patient_records: %w", err)
	}
	return nil
}
