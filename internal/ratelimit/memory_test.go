package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(start time.Time) (*MemoryStore, *time.Time) {
	clock := start
	store := NewMemoryStore()
	store.now = func() time.Time { return clock }
	return store, &clock
}

func TestLockAfterMaxFailures(t *testing.T) {
	store, _ := newTestStore(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	for i := 0; i < MaxFailures-1; i++ {
		status, err := store.RecordFailure(ctx, "admin|1.2.3.4")
		require.NoError(t, err)
		assert.False(t, status.Locked, "failure %d", i+1)
	}

	status, err := store.RecordFailure(ctx, "admin|1.2.3.4")
	require.NoError(t, err)
	assert.True(t, status.Locked)
	assert.Equal(t, LockDuration, status.RetryAfter)
}

func TestCheckReportsRemainingLock(t *testing.T) {
	store, clock := newTestStore(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	for i := 0; i < MaxFailures; i++ {
		_, err := store.RecordFailure(ctx, "k")
		require.NoError(t, err)
	}

	*clock = clock.Add(5 * time.Minute)
	status, err := store.Check(ctx, "k")
	require.NoError(t, err)
	assert.True(t, status.Locked)
	assert.Equal(t, 10*time.Minute, status.RetryAfter)

	*clock = clock.Add(LockDuration)
	status, err = store.Check(ctx, "k")
	require.NoError(t, err)
	assert.False(t, status.Locked)
}

func TestWindowExpiryResetsCounter(t *testing.T) {
	store, clock := newTestStore(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	for i := 0; i < MaxFailures-1; i++ {
		_, err := store.RecordFailure(ctx, "k")
		require.NoError(t, err)
	}

	// Outside the window the slate is clean; one more failure is not the
	// fifth.
	*clock = clock.Add(Window + time.Second)
	status, err := store.RecordFailure(ctx, "k")
	require.NoError(t, err)
	assert.False(t, status.Locked)
}

func TestResetClearsFailures(t *testing.T) {
	store, _ := newTestStore(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	for i := 0; i < MaxFailures-1; i++ {
		_, err := store.RecordFailure(ctx, "k")
		require.NoError(t, err)
	}
	require.NoError(t, store.Reset(ctx, "k"))

	for i := 0; i < MaxFailures-1; i++ {
		status, err := store.RecordFailure(ctx, "k")
		require.NoError(t, err)
		assert.False(t, status.Locked)
	}
}

func TestKeysAreIndependent(t *testing.T) {
	store, _ := newTestStore(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	for i := 0; i < MaxFailures; i++ {
		_, err := store.RecordFailure(ctx, "admin|1.1.1.1")
		require.NoError(t, err)
	}

	status, err := store.Check(ctx, "admin|2.2.2.2")
	require.NoError(t, err)
	assert.False(t, status.Locked)
}
