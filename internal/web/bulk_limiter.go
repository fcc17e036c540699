package web

// bulk_limiter.go bounds how many bulk reconciliations run at once. A bulk
// request can touch thousands of rows; letting an arbitrary number run in
// parallel would exhaust the connection pool. Requests that cannot get a
// slot within maxWait are rejected rather than queued indefinitely.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// errBulkBusy is returned when every bulk slot is occupied and the wait
// timeout expires.
var errBulkBusy = errors.New("too many concurrent bulk operations, please try again later")

// bulkLimiter is a semaphore over bulk operations.
type bulkLimiter struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu     sync.RWMutex
	active int
}

func newBulkLimiter(maxConcurrent int, maxWait time.Duration) *bulkLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &bulkLimiter{
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
	}
}

// acquire claims a slot, waiting up to maxWait. The caller must release()
// exactly once on success.
func (l *bulkLimiter) acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil

	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errBulkBusy
	}
}

func (l *bulkLimiter) release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()
	<-l.semaphore
}

// activeCount returns the number of bulk operations currently running.
func (l *bulkLimiter) activeCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

func (l *bulkLimiter) available() int {
	return cap(l.semaphore) - len(l.semaphore)
}

// waitForDrain blocks until every active bulk operation has finished, for
// graceful shutdown.
func (l *bulkLimiter) waitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.activeCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
