package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrStorageUnavailable wraps transport failures from the backing store.
	ErrStorageUnavailable = errors.New("quota: counter store unavailable")

	// ErrVersionConflict is returned by CounterStore.CompareAndSave when the
	// stored counter changed since it was read.
	ErrVersionConflict = errors.New("quota: counter version conflict")

	// ErrConflict is returned by IncrementAndSave after exhausting its
	// optimistic-write retries. Safe for the caller to retry the request.
	ErrConflict = errors.New("quota: concurrent update conflict, retries exhausted")
)

// CounterStore is the narrow durable interface the Store is built on; any
// conforming backend (relational, document, in-memory) can implement it.
type CounterStore interface {
	// Get returns the stored counter, or (nil, nil) when absent.
	Get(ctx context.Context, userID uuid.UUID) (*UsageCounter, error)

	// CompareAndSave persists the counter only if the stored version still
	// equals expectedVersion (0 means the row must not exist yet). On a
	// stale write it returns ErrVersionConflict.
	CompareAndSave(ctx context.Context, counter *UsageCounter, expectedVersion int64) error
}

// AtomicIncrementer is an optional capability: backends that can fold the
// rollover and increment into one atomic operation expose it and the Store
// uses it instead of the read/compare/save loop.
type AtomicIncrementer interface {
	IncrementAndSave(ctx context.Context, userID uuid.UUID, today string, defaultLimit int) (*UsageCounter, error)
}

// Store owns the read-modify-write protocol over per-user usage counters:
// lazy initialization, calendar-day rollover, and lost-update-free
// increments.
type Store struct {
	counters     CounterStore
	defaultLimit int
	maxRetries   int
	loc          *time.Location
	now          func() time.Time
}

// NewStore creates a Store. loc is the fixed reference time zone for window
// rollover; now is injectable for tests and defaults to time.Now.
func NewStore(counters CounterStore, defaultLimit, maxRetries int, loc *time.Location) *Store {
	if loc == nil {
		loc = time.UTC
	}
	return &Store{
		counters:     counters,
		defaultLimit: defaultLimit,
		maxRetries:   maxRetries,
		loc:          loc,
		now:          time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Today returns the current calendar date in the reference zone.
func (s *Store) Today() string {
	return s.now().In(s.loc).Format(DateLayout)
}

// GetOrInit fetches the user's counter; if absent it returns a zero-valued
// counter for today without persisting it. Creation is write-on-first-use so
// identity checks that never consume quota leave no rows behind.
func (s *Store) GetOrInit(ctx context.Context, userID uuid.UUID) (*UsageCounter, error) {
	c, err := s.counters.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	if c == nil {
		return &UsageCounter{
			UserID:      userID,
			WindowStart: s.Today(),
			DailyLimit:  s.defaultLimit,
		}, nil
	}
	if c.DailyLimit <= 0 {
		c.DailyLimit = s.defaultLimit
	}
	return c, nil
}

// ApplyRollover returns a copy of the counter rolled into the window for
// today. If the counter's window already started today it is returned
// unchanged, so the transform is idempotent; any number of elapsed days
// resets the window count to zero exactly once.
func ApplyRollover(c UsageCounter, today string) UsageCounter {
	if c.WindowStart != today {
		c.WindowCount = 0
		c.WindowStart = today
	}
	return c
}

// IncrementAndSave is the only mutating entry point: load (or init) the
// counter, roll it into today's window, add one to the window and lifetime
// counts, and persist. Two concurrent calls for one user must both be
// reflected in the stored value.
//
// Backends exposing AtomicIncrementer do all of that in a single atomic
// operation. Everything else goes through a bounded optimistic loop:
// version-checked CompareAndSave, retried on conflict.
func (s *Store) IncrementAndSave(ctx context.Context, userID uuid.UUID) (*UsageCounter, error) {
	today := s.Today()

	if inc, ok := s.counters.(AtomicIncrementer); ok {
		c, err := inc.IncrementAndSave(ctx, userID, today, s.defaultLimit)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
		}
		return c, nil
	}

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		current, err := s.GetOrInit(ctx, userID)
		if err != nil {
			return nil, err
		}

		next := ApplyRollover(*current, today)
		next.WindowCount++
		next.TotalCount++
		next.UpdatedAt = s.now()

		err = s.counters.CompareAndSave(ctx, &next, current.Version)
		if err == nil {
			return &next, nil
		}
		if errors.Is(err, ErrVersionConflict) {
			continue
		}
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	return nil, ErrConflict
}
