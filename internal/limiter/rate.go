package limiter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

var ErrQuotaExhausted = errors.New("api quota exhausted beyond the configured wait budget")

// QuotaTracker is the one piece of state every fetch worker shares. It
// smooths requests to the configured per-second rate and, once the API
// reports an empty quota, blocks all workers together until the reset time.
type QuotaTracker struct {
	limiter *rate.Limiter
	maxWait time.Duration

	mu         sync.Mutex
	remaining  int
	reset      time.Time
	quotaWaits int64
}

type Snapshot struct {
	Remaining  int       `json:"remaining"`
	Reset      time.Time `json:"reset"`
	QuotaWaits int64     `json:"quota_waits"`
}

func NewQuotaTracker(requestsPerSecond int, maxWait time.Duration) *QuotaTracker {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	return &QuotaTracker{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
		maxWait: maxWait,
		// Unknown until the first response reports headers.
		remaining: -1,
	}
}

// Update feeds one response's rate-limit headers back into the tracker.
func (q *QuotaTracker) Update(remaining int, reset time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.remaining = remaining
	if !reset.IsZero() {
		q.reset = reset
	}
}

// Wait blocks until the next request may go out: per-second smoothing first,
// then the quota gate when the API reported zero remaining calls. A required
// wait longer than the budget returns ErrQuotaExhausted so the run can stop
// fetching and report partial results instead of hanging for an hour.
func (q *QuotaTracker) Wait(ctx context.Context) error {
	if err := q.limiter.Wait(ctx); err != nil {
		return err
	}

	q.mu.Lock()
	remaining := q.remaining
	reset := q.reset
	q.mu.Unlock()

	if remaining != 0 {
		return nil
	}

	wait := time.Until(reset)
	if wait <= 0 {
		// The window already rolled over.
		q.markUnknown()
		return nil
	}
	if q.maxWait > 0 && wait > q.maxWait {
		return fmt.Errorf("%w: reset in %s", ErrQuotaExhausted, wait.Round(time.Second))
	}

	q.mu.Lock()
	q.quotaWaits++
	q.mu.Unlock()

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	q.markUnknown()
	return nil
}

func (q *QuotaTracker) markUnknown() {
	q.mu.Lock()
	q.remaining = -1
	q.mu.Unlock()
}

func (q *QuotaTracker) Snapshot() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Snapshot{
		Remaining:  q.remaining,
		Reset:      q.reset,
		QuotaWaits: q.quotaWaits,
	}
}
