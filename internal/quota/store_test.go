package quota

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCounterStore is an in-memory CounterStore with an injectable race
// window: beforeSave runs between the version check setup and the actual
// compare-and-save, letting tests force interleavings.
type fakeCounterStore struct {
	mu         sync.Mutex
	counters   map[uuid.UUID]UsageCounter
	beforeSave func()
	failGet    error
	failSave   error
}

func newFakeCounterStore() *fakeCounterStore {
	return &fakeCounterStore{counters: make(map[uuid.UUID]UsageCounter)}
}

func (f *fakeCounterStore) Get(_ context.Context, userID uuid.UUID) (*UsageCounter, error) {
	if f.failGet != nil {
		return nil, f.failGet
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.counters[userID]
	if !ok {
		return nil, nil
	}
	cp := c
	return &cp, nil
}

func (f *fakeCounterStore) CompareAndSave(_ context.Context, counter *UsageCounter, expectedVersion int64) error {
	if f.failSave != nil {
		return f.failSave
	}
	if f.beforeSave != nil {
		f.beforeSave()
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	stored, exists := f.counters[counter.UserID]
	if expectedVersion == 0 {
		if exists {
			return ErrVersionConflict
		}
	} else if !exists || stored.Version != expectedVersion {
		return ErrVersionConflict
	}

	counter.Version = expectedVersion + 1
	f.counters[counter.UserID] = *counter
	return nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestStore(fake CounterStore) *Store {
	s := NewStore(fake, 100, 5, time.UTC)
	return s.WithClock(fixedClock(time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)))
}

func TestGetOrInit_AbsentCounterIsNotPersisted(t *testing.T) {
	fake := newFakeCounterStore()
	store := newTestStore(fake)
	ctx := context.Background()
	userID := uuid.New()

	c, err := store.GetOrInit(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 0, c.WindowCount)
	assert.Equal(t, int64(0), c.TotalCount)
	assert.Equal(t, "2026-03-14", c.WindowStart)
	assert.Equal(t, 100, c.DailyLimit)

	// Write-on-first-use: reading must not create a row.
	assert.Empty(t, fake.counters)
}

func TestApplyRollover_Idempotent(t *testing.T) {
	c := UsageCounter{WindowCount: 42, WindowStart: "2026-03-13"}

	once := ApplyRollover(c, "2026-03-14")
	assert.Equal(t, 0, once.WindowCount)
	assert.Equal(t, "2026-03-14", once.WindowStart)

	twice := ApplyRollover(once, "2026-03-14")
	assert.Equal(t, once, twice)
}

func TestApplyRollover_MultipleDaysElapsed(t *testing.T) {
	c := UsageCounter{WindowCount: 7, WindowStart: "2026-01-01", TotalCount: 99}

	rolled := ApplyRollover(c, "2026-03-14")
	assert.Equal(t, 0, rolled.WindowCount)
	assert.Equal(t, "2026-03-14", rolled.WindowStart)
	// Lifetime count survives rollover.
	assert.Equal(t, int64(99), rolled.TotalCount)
}

func TestApplyRollover_SameDayUnchanged(t *testing.T) {
	c := UsageCounter{WindowCount: 3, WindowStart: "2026-03-14"}
	assert.Equal(t, c, ApplyRollover(c, "2026-03-14"))
}

func TestIncrementAndSave_FirstUseCreatesCounter(t *testing.T) {
	fake := newFakeCounterStore()
	store := newTestStore(fake)
	ctx := context.Background()
	userID := uuid.New()

	c, err := store.IncrementAndSave(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, c.WindowCount)
	assert.Equal(t, int64(1), c.TotalCount)
	assert.Equal(t, "2026-03-14", c.WindowStart)
	assert.Len(t, fake.counters, 1)
}

func TestIncrementAndSave_RollsStaleWindow(t *testing.T) {
	fake := newFakeCounterStore()
	store := newTestStore(fake)
	ctx := context.Background()
	userID := uuid.New()

	fake.counters[userID] = UsageCounter{
		UserID: userID, TotalCount: 50, WindowCount: 100,
		WindowStart: "2026-03-13", DailyLimit: 100, Version: 3,
	}

	c, err := store.IncrementAndSave(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, c.WindowCount)
	assert.Equal(t, "2026-03-14", c.WindowStart)
	assert.Equal(t, int64(51), c.TotalCount)
}

func TestIncrementAndSave_RetriesOnVersionConflict(t *testing.T) {
	fake := newFakeCounterStore()
	store := newTestStore(fake)
	ctx := context.Background()
	userID := uuid.New()

	// Slip a competing write in between the read and the save, once.
	interfered := false
	fake.beforeSave = func() {
		if interfered {
			return
		}
		interfered = true
		fake.mu.Lock()
		fake.counters[userID] = UsageCounter{
			UserID: userID, TotalCount: 1, WindowCount: 1,
			WindowStart: "2026-03-14", DailyLimit: 100, Version: 1,
		}
		fake.mu.Unlock()
	}

	c, err := store.IncrementAndSave(ctx, userID)
	require.NoError(t, err)
	// Both the competing write and ours must be reflected.
	assert.Equal(t, 2, c.WindowCount)
	assert.Equal(t, int64(2), c.TotalCount)
}

func TestIncrementAndSave_ConflictAfterBoundedRetries(t *testing.T) {
	fake := newFakeCounterStore()
	fake.failSave = ErrVersionConflict
	store := newTestStore(fake)

	_, err := store.IncrementAndSave(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrConflict)
}

func TestIncrementAndSave_StorageUnavailable(t *testing.T) {
	fake := newFakeCounterStore()
	fake.failGet = errors.New("connection refused")
	store := newTestStore(fake)

	_, err := store.IncrementAndSave(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}

// No lost updates: N concurrent increments for one user within one window
// must all land in the final persisted value.
func TestIncrementAndSave_ConcurrentWritersNoLostUpdates(t *testing.T) {
	fake := newFakeCounterStore()
	store := NewStore(fake, 1000, 200, time.UTC).
		WithClock(fixedClock(time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)))
	ctx := context.Background()
	userID := uuid.New()

	const n = 50
	var wg sync.WaitGroup
	errCh := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.IncrementAndSave(ctx, userID); err != nil {
				errCh <- err
			}
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatalf("concurrent increment failed: %v", err)
	}

	final, err := store.GetOrInit(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, n, final.WindowCount)
	assert.Equal(t, int64(n), final.TotalCount)
}

// atomicFake implements AtomicIncrementer; the Store must prefer the atomic
// path and never touch CompareAndSave.
type atomicFake struct {
	fakeCounterStore
	atomicCalls int
}

func (a *atomicFake) IncrementAndSave(_ context.Context, userID uuid.UUID, today string, defaultLimit int) (*UsageCounter, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.atomicCalls++
	c, ok := a.counters[userID]
	if !ok {
		c = UsageCounter{UserID: userID, WindowStart: today, DailyLimit: defaultLimit}
	}
	c = ApplyRollover(c, today)
	c.WindowCount++
	c.TotalCount++
	c.Version++
	a.counters[userID] = c
	cp := c
	return &cp, nil
}

func TestIncrementAndSave_PrefersAtomicBackend(t *testing.T) {
	fake := &atomicFake{}
	fake.counters = make(map[uuid.UUID]UsageCounter)
	fake.failSave = errors.New("CompareAndSave must not be called")
	store := NewStore(fake, 100, 5, time.UTC).
		WithClock(fixedClock(time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)))

	c, err := store.IncrementAndSave(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 1, c.WindowCount)
	assert.Equal(t, 1, fake.atomicCalls)
}

func TestToday_UsesReferenceZone(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	// 23:30 UTC on the 14th is already the 15th in Tokyo.
	at := time.Date(2026, 3, 14, 23, 30, 0, 0, time.UTC)

	utcStore := NewStore(newFakeCounterStore(), 100, 5, time.UTC).WithClock(fixedClock(at))
	tokyoStore := NewStore(newFakeCounterStore(), 100, 5, tokyo).WithClock(fixedClock(at))

	assert.Equal(t, "2026-03-14", utcStore.Today())
	assert.Equal(t, "2026-03-15", tokyoStore.Today())
}
