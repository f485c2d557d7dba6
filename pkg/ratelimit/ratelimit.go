// Package ratelimit provides sliding-window request limiters keyed by client.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter reports whether a client may make another request and records
// it when allowed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Window is an in-process sliding-window limiter.
type Window struct {
	requests map[string][]time.Time

	mu     sync.Mutex
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewWindow allows limit requests per key within window.
func NewWindow(limit int, window time.Duration) *Window {
	return &Window{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

func (w *Window) Allow(_ context.Context, key string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	cutoff := now.Add(-w.window)

	requests := w.requests[key]
	valid := requests[:0]
	for _, t := range requests {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= w.limit {
		w.requests[key] = valid
		return false, nil
	}
	w.requests[key] = append(valid, now)
	return true, nil
}

// Prune drops keys without requests inside the window.
func (w *Window) Prune() {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := w.now().Add(-w.window)
	for key, requests := range w.requests {
		if len(requests) == 0 || !requests[len(requests)-1].After(cutoff) {
			delete(w.requests, key)
		}
	}
}

// Keys returns the number of tracked clients.
func (w *Window) Keys() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.requests)
}
