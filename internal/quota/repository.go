package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements CounterStore on the usage_counters table. It also
// implements AtomicIncrementer: Postgres can fold the rollover and increment
// into one upsert, so concurrent increments serialize on the row and no
// update is ever lost.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (r *PostgresStore) Get(ctx context.Context, userID uuid.UUID) (*UsageCounter, error) {
	var c UsageCounter
	var windowStart time.Time
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, total_count, window_count, window_start, daily_limit, version, updated_at
		 FROM usage_counters WHERE user_id = $1`, userID,
	).Scan(&c.UserID, &c.TotalCount, &c.WindowCount, &windowStart, &c.DailyLimit, &c.Version, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching usage counter: %w", err)
	}
	c.WindowStart = windowStart.Format(DateLayout)
	return &c, nil
}

func (r *PostgresStore) CompareAndSave(ctx context.Context, counter *UsageCounter, expectedVersion int64) error {
	if expectedVersion == 0 {
		tag, err := r.pool.Exec(ctx,
			`INSERT INTO usage_counters (user_id, total_count, window_count, window_start, daily_limit, version, updated_at)
			 VALUES ($1, $2, $3, $4::date, $5, 1, NOW())
			 ON CONFLICT (user_id) DO NOTHING`,
			counter.UserID, counter.TotalCount, counter.WindowCount, counter.WindowStart, counter.DailyLimit)
		if err != nil {
			return fmt.Errorf("inserting usage counter: %w", err)
		}
		if tag.RowsAffected() == 0 {
			// Row appeared since the read: same as a stale write.
			return ErrVersionConflict
		}
		counter.Version = 1
		return nil
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE usage_counters
		 SET total_count = $2,
		     window_count = $3,
		     window_start = $4::date,
		     daily_limit = $5,
		     version = version + 1,
		     updated_at = NOW()
		 WHERE user_id = $1 AND version = $6`,
		counter.UserID, counter.TotalCount, counter.WindowCount, counter.WindowStart,
		counter.DailyLimit, expectedVersion)
	if err != nil {
		return fmt.Errorf("updating usage counter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	counter.Version = expectedVersion + 1
	return nil
}

// IncrementAndSave atomically rolls the counter into today's window and adds
// one usage, creating the row on first use. Fields the caller never touches
// (daily_limit) are preserved on conflict.
func (r *PostgresStore) IncrementAndSave(ctx context.Context, userID uuid.UUID, today string, defaultLimit int) (*UsageCounter, error) {
	var c UsageCounter
	var windowStart time.Time
	err := r.pool.QueryRow(ctx,
		`INSERT INTO usage_counters (user_id, total_count, window_count, window_start, daily_limit, version, updated_at)
		 VALUES ($1, 1, 1, $2::date, $3, 1, NOW())
		 ON CONFLICT (user_id) DO UPDATE SET
		     total_count = usage_counters.total_count + 1,
		     window_count = CASE
		         WHEN usage_counters.window_start = EXCLUDED.window_start
		         THEN usage_counters.window_count + 1
		         ELSE 1
		     END,
		     window_start = EXCLUDED.window_start,
		     version = usage_counters.version + 1,
		     updated_at = NOW()
		 RETURNING user_id, total_count, window_count, window_start, daily_limit, version, updated_at`,
		userID, today, defaultLimit,
	).Scan(&c.UserID, &c.TotalCount, &c.WindowCount, &windowStart, &c.DailyLimit, &c.Version, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("incrementing usage counter: %w", err)
	}
	c.WindowStart = windowStart.Format(DateLayout)
	return &c, nil
}

// SetDailyLimit changes the user's plan limit, creating the counter row if
// needed. Account-management path, not on the request hot path.
func (r *PostgresStore) SetDailyLimit(ctx context.Context, userID uuid.UUID, limit int, today string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO usage_counters (user_id, total_count, window_count, window_start, daily_limit, version, updated_at)
		 VALUES ($1, 0, 0, $2::date, $3, 1, NOW())
		 ON CONFLICT (user_id) DO UPDATE SET
		     daily_limit = EXCLUDED.daily_limit,
		     version = usage_counters.version + 1,
		     updated_at = NOW()`,
		userID, today, limit)
	if err != nil {
		return fmt.Errorf("setting daily limit: %w", err)
	}
	return nil
}
