package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"
)

// ErrInvalidConfig is returned for a non-positive quota or window
var ErrInvalidConfig = errors.New("ratelimit: quota and window must be positive")

// Window admits at most quota calls within any rolling window of size.
// It never rejects a call, it only tells the caller how long to pause.
type Window struct {
	mu    sync.Mutex
	quota int
	size  time.Duration
	calls []time.Time // oldest first
}

// NewWindow creates a rolling-window limiter
func NewWindow(quota int, size time.Duration) (*Window, error) {
	if quota <= 0 || size <= 0 {
		return nil, fmt.Errorf("%w: quota=%d window=%s", ErrInvalidConfig, quota, size)
	}
	return &Window{
		quota: quota,
		size:  size,
		calls: make([]time.Time, 0, quota),
	}, nil
}

// Admit reserves the next slot for a call made at now and returns how long
// the caller has to pause before issuing it. The reservation is recorded at
// now+wait, so concurrent callers each get their own slot.
func (w *Window) Admit(now time.Time) (allowed bool, wait time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.evict(now)

	if n := len(w.calls); n >= w.quota {
		// the slot frees up once the quota-th most recent call leaves the window
		wait = w.size - now.Sub(w.calls[n-w.quota])
		if wait < 0 {
			wait = 0
		}
	}

	at := now.Add(wait)
	i := sort.Search(len(w.calls), func(i int) bool { return w.calls[i].After(at) })
	w.calls = slices.Insert(w.calls, i, at)
	return true, wait
}

// Wait blocks the calling goroutine until a slot is available.
// Other goroutines are not affected by the pause.
func (w *Window) Wait(ctx context.Context) error {
	_, wait := w.Admit(time.Now())
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len returns the number of recorded calls still inside the window at now
func (w *Window) Len(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.evict(now)
	return len(w.calls)
}

func (w *Window) evict(now time.Time) {
	cutoff := now.Add(-w.size)
	i := 0
	for i < len(w.calls) && !w.calls[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.calls = append(w.calls[:0], w.calls[i:]...)
	}
}
