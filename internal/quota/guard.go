package quota

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/promptforge-ai/promptforge/internal/metrics"
)

// Guard makes the admission decision for a user and triggers accounting.
// Unauthenticated callers never reach it: guest usage is unmetered and the
// pipeline skips both Check and Consume for them.
type Guard struct {
	store    *Store
	failOpen bool
}

// NewGuard creates a Guard. failOpen selects the degradation policy when
// the counter store is unreachable during Check: allow (true) or deny.
func NewGuard(store *Store, failOpen bool) *Guard {
	return &Guard{store: store, failOpen: failOpen}
}

// Check reads the counter (with a logical rollover into today's window,
// persisted lazily on the next increment) and reports whether the user is
// under their daily limit. It never mutates stored state.
//
// When the store is unreachable the configured policy applies and the
// degradation is always logged.
func (g *Guard) Check(ctx context.Context, userID uuid.UUID) (Decision, error) {
	c, err := g.store.GetOrInit(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrStorageUnavailable) {
			metrics.QuotaStoreDegradedTotal.Inc()
			slog.Warn("quota: counter store unreachable during check",
				"user_id", userID, "fail_open", g.failOpen, "error", err)
			if g.failOpen {
				return Decision{Allowed: true, Limit: g.store.defaultLimit}, nil
			}
			return Decision{Allowed: false, Limit: g.store.defaultLimit}, err
		}
		return Decision{}, err
	}

	rolled := ApplyRollover(*c, g.store.Today())
	d := Decision{
		Allowed: rolled.WindowCount < rolled.DailyLimit,
		Limit:   rolled.DailyLimit,
		Used:    rolled.WindowCount,
	}
	if !d.Allowed {
		metrics.QuotaDeniedTotal.Inc()
	}
	return d, nil
}

// Consume records one successful generation against the user's counter.
// Callers must invoke it only after the generation attempt succeeded, so
// failed attempts are never charged.
func (g *Guard) Consume(ctx context.Context, userID uuid.UUID) (*UsageCounter, error) {
	return g.store.IncrementAndSave(ctx, userID)
}

// Status returns the user's usage against the daily limit for API display.
func (g *Guard) Status(ctx context.Context, userID uuid.UUID) (*Status, error) {
	c, err := g.store.GetOrInit(ctx, userID)
	if err != nil {
		return nil, err
	}
	rolled := ApplyRollover(*c, g.store.Today())

	remaining := rolled.DailyLimit - rolled.WindowCount
	if remaining < 0 {
		remaining = 0
	}
	return &Status{
		Used:        rolled.WindowCount,
		Limit:       rolled.DailyLimit,
		Remaining:   remaining,
		TotalCount:  rolled.TotalCount,
		WindowStart: rolled.WindowStart,
	}, nil
}
