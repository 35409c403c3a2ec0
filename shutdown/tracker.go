// Package shutdown coordinates graceful shutdown: it tracks in-flight renders
// and exports, runs ordered cleanup hooks, and turns OS signals into context
// cancellation.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrTrackerClosed is returned when work is started after shutdown began.
var ErrTrackerClosed = errors.New("shutdown: tracker is closed")

// ErrWaitTimeout is returned when in-flight work outlives the wait context.
var ErrWaitTimeout = errors.New("shutdown: in-flight work did not finish in time")

// Tracker counts in-flight renders and exports so shutdown can wait for
// every decoder session to be released before the process exits.
//
//	if !tracker.Start() {
//	    return ErrTrackerClosed
//	}
//	defer tracker.Done()
type Tracker struct {
	wg     sync.WaitGroup
	mu     sync.Mutex
	active atomic.Int64
	closed bool
}

// NewTracker returns an open Tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Start registers one unit of work. It returns false once Close has been
// called; a true result must be paired with exactly one Done.
func (t *Tracker) Start() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}
	t.wg.Add(1)
	t.active.Add(1)
	return true
}

// Done marks one unit of work finished.
func (t *Tracker) Done() {
	t.active.Add(-1)
	t.wg.Done()
}

// Close stops new work from starting. Work already running continues.
func (t *Tracker) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
}

// Closed reports whether Close has been called.
func (t *Tracker) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Active is the number of units currently running.
func (t *Tracker) Active() int64 {
	return t.active.Load()
}

// Wait blocks until all started work is done or ctx ends.
func (t *Tracker) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w (%d still running): %w", ErrWaitTimeout, t.Active(), ctx.Err())
	}
}
