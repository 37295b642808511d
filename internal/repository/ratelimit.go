package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RateLimitRepository is a rolling-window request log shared by every server instance
// through the rate_limit_hits table.
type RateLimitRepository struct {
	db *pgxpool.Pool
}

func NewRateLimitRepository(db *pgxpool.Pool) *RateLimitRepository {
	return &RateLimitRepository{db: db}
}

// Allow reports whether key has made fewer than limit accepted requests during the
// last window and, if so, records this one. Rejected requests are not recorded.
// Requests for the same key are serialized by a transaction-scoped advisory lock.
func (r *RateLimitRepository) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	query := `
		WITH recent AS (
			SELECT COUNT(*) AS n
			FROM rate_limit_hits
			WHERE key = $1 AND hit_at > clock_timestamp() - make_interval(secs => $2)
		), hit AS (
			INSERT INTO rate_limit_hits (key)
			SELECT $1 FROM recent WHERE n < $3
			RETURNING id
		)
		SELECT EXISTS (SELECT 1 FROM hit)
	`

	var allowed bool
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
			return err
		}
		return tx.QueryRow(ctx, query, key, window.Seconds(), int64(limit)).Scan(&allowed)
	})
	if err != nil {
		return false, fmt.Errorf("failed to count request for %s: %w", key, err)
	}
	return allowed, nil
}

// Purge removes hits recorded more than olderThan ago.
func (r *RateLimitRepository) Purge(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM rate_limit_hits WHERE hit_at < clock_timestamp() - make_interval(secs => $1)`,
		olderThan.Seconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge rate limit hits: %w", err)
	}
	return tag.RowsAffected(), nil
}
