package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitPassesWithQuotaAvailable(t *testing.T) {
	tracker := NewQuotaTracker(100, time.Minute)

	// Unknown quota must not block.
	require.NoError(t, tracker.Wait(context.Background()))

	tracker.Update(4999, time.Now().Add(time.Hour))
	require.NoError(t, tracker.Wait(context.Background()))
}

func TestWaitBlocksUntilReset(t *testing.T) {
	tracker := NewQuotaTracker(100, time.Minute)
	reset := time.Now().Add(120 * time.Millisecond)
	tracker.Update(0, reset)

	start := time.Now()
	require.NoError(t, tracker.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)

	snap := tracker.Snapshot()
	assert.Equal(t, int64(1), snap.QuotaWaits)
	assert.Equal(t, -1, snap.Remaining)
}

func TestWaitAbortsBeyondBudget(t *testing.T) {
	tracker := NewQuotaTracker(100, time.Second)
	tracker.Update(0, time.Now().Add(time.Hour))

	err := tracker.Wait(context.Background())
	assert.ErrorIs(t, err, ErrQuotaExhausted)
}

func TestWaitHonorsCancellation(t *testing.T) {
	tracker := NewQuotaTracker(100, time.Minute)
	tracker.Update(0, time.Now().Add(10*time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	err := tracker.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExpiredResetDoesNotBlock(t *testing.T) {
	tracker := NewQuotaTracker(100, time.Minute)
	tracker.Update(0, time.Now().Add(-time.Second))

	start := time.Now()
	require.NoError(t, tracker.Wait(context.Background()))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestSharedTrackerGatesAllCallers(t *testing.T) {
	tracker := NewQuotaTracker(100, time.Minute)
	reset := time.Now().Add(150 * time.Millisecond)
	tracker.Update(0, reset)

	start := time.Now()
	done := make(chan error, 3)
	for i := 0; i < 3; i++ {
		go func() {
			done <- tracker.Wait(context.Background())
		}()
	}
	for i := 0; i < 3; i++ {
		require.NoError(t, <-done)
	}
	// Every caller waited for the same reset rather than burning retries.
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}
