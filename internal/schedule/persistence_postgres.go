package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// PostgresPersistence stores snapshots in the study_snapshots table, one row per (user, kind).
type PostgresPersistence struct {
	pool *pgxpool.Pool
}

// NewPostgresPersistence creates a PostgreSQL-backed persistence. The schema must already be
// migrated (see database.Migrate).
func NewPostgresPersistence(pool *pgxpool.Pool) (*PostgresPersistence, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresPersistence{pool: pool}, nil
}

func (p *PostgresPersistence) Load(ctx context.Context, key Key) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var data []byte
	err := p.pool.QueryRow(ctx,
		`SELECT data
		 FROM study_snapshots
		 WHERE user_id = $1 AND kind = $2`,
		key.UserID,
		string(key.Kind),
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return data, nil
}

func (p *PostgresPersistence) Save(ctx context.Context, key Key, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	_, err := p.pool.Exec(ctx,
		`INSERT INTO study_snapshots (user_id, kind, version, data, updated_at)
		 VALUES ($1, $2, COALESCE(($3::jsonb->>'version')::int, 1), $3::jsonb, NOW())
		 ON CONFLICT (user_id, kind) DO UPDATE
		 SET version = EXCLUDED.version,
		     data = EXCLUDED.data,
		     updated_at = EXCLUDED.updated_at`,
		key.UserID,
		string(key.Kind),
		string(data),
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (p *PostgresPersistence) Delete(ctx context.Context, key Key) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if _, err := p.pool.Exec(ctx,
		`DELETE FROM study_snapshots WHERE user_id = $1 AND kind = $2`,
		key.UserID,
		string(key.Kind),
	); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}
