package leaderboard

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/pitchtank/go/internal/models"
	"github.com/rs/zerolog/log"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS pitch_results (
    id                 TEXT PRIMARY KEY,
    user_id            TEXT,
    handle             TEXT,
    company_name       TEXT NOT NULL,
    result             TEXT NOT NULL,
    reason             TEXT,
    deal_amount        BIGINT NOT NULL DEFAULT 0,
    equity             DOUBLE PRECISION NOT NULL DEFAULT 0,
    shark_id           TEXT,
    pitch_seconds_used INTEGER NOT NULL DEFAULT 0,
    created_at         TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS pitch_results_deal_amount_idx
    ON pitch_results (deal_amount DESC) WHERE result = 'deal';
`

// PostgresStore keeps results in the pitch_results table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info().Msg("connected to postgres leaderboard")
	return s, nil
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Record(ctx context.Context, e Entry) error {
	_, err := s.pool.Exec(ctx, `
        INSERT INTO pitch_results (
          id, user_id, handle, company_name, result, reason,
          deal_amount, equity, shark_id, pitch_seconds_used, created_at
        ) VALUES (
          $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
        )
        ON CONFLICT (id) DO NOTHING
    `,
		e.ID, e.UserID, e.Handle, e.CompanyName, string(e.Result), string(e.Reason),
		e.DealAmount, e.Equity, e.SharkID, e.PitchSecondsUsed, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record result %s: %w", e.ID, err)
	}
	return nil
}

func (s *PostgresStore) Top(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT id, COALESCE(user_id, ''), COALESCE(handle, ''), company_name, result,
               COALESCE(reason, ''), deal_amount, equity, COALESCE(shark_id, ''),
               pitch_seconds_used, created_at
        FROM pitch_results
        WHERE result = 'deal'
        ORDER BY deal_amount DESC
        LIMIT $1
    `, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		var e Entry
		var result, reason string
		err := row.Scan(
			&e.ID, &e.UserID, &e.Handle, &e.CompanyName, &result,
			&reason, &e.DealAmount, &e.Equity, &e.SharkID,
			&e.PitchSecondsUsed, &e.CreatedAt,
		)
		e.Result = models.OutcomeResult(result)
		e.Reason = models.NoDealReason(reason)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan leaderboard: %w", err)
	}
	return entries, nil
}

func (s *PostgresStore) Close(context.Context) error {
	s.pool.Close()
	return nil
}
