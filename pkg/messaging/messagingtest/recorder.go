// Package messagingtest provides an in-memory publisher for tests.
package messagingtest

import (
	"context"
	"sync"

	"github.com/terminal-bench/fleetcompliance/pkg/messaging"
)

// Recorder captures published events.
type Recorder struct {
	mu     sync.Mutex
	events []*messaging.Event
	// Err, when set, is returned from every Publish after recording.
	Err error
}

func (r *Recorder) Publish(ctx context.Context, subject string, data interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := data.(*messaging.Event); ok {
		r.events = append(r.events, e)
	}
	return r.Err
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []*messaging.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*messaging.Event(nil), r.events...)
}

// Types returns the recorded event types in publish order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, 0, len(r.events))
	for _, e := range r.events {
		types = append(types, e.Type)
	}
	return types
}
