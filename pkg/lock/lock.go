// Package lock serialises mutations of one ship's ledger across requests
// and, with the redis or etcd backend, across service replicas.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrNotHeld is returned when releasing a lock that expired or was taken over.
var ErrNotHeld = errors.New("lock not held")

// Unlock releases an acquired lock.
type Unlock func(ctx context.Context) error

// Locker acquires named exclusive locks. Acquire blocks until the lock is
// held or ctx is done.
type Locker interface {
	Acquire(ctx context.Context, key string) (Unlock, error)
}

// WithLock runs fn while holding key. Release failures are logged, not
// returned, because fn has already taken effect.
func WithLock(ctx context.Context, l Locker, log logrus.FieldLogger, key string, fn func() error) error {
	unlock, err := l.Acquire(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			log.WithError(err).WithField("lock", key).Error("failed to release lock")
		}
	}()
	return fn()
}

// ShipKey names the lock guarding one ship's ledger.
func ShipKey(shipID string) string {
	return "fleetcompliance:ship:" + shipID
}

// Local is an in-process Locker.
type Local struct {
	mu    sync.Mutex
	locks map[string]*localEntry
}

type localEntry struct {
	ch   chan struct{}
	refs int
}

// NewLocal creates an in-process locker.
func NewLocal() *Local {
	return &Local{locks: make(map[string]*localEntry)}
}

func (l *Local) Acquire(ctx context.Context, key string) (Unlock, error) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &localEntry{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func(context.Context) error {
		err := ErrNotHeld
		once.Do(func() {
			<-e.ch
			l.release(key, e)
			err = nil
		})
		return err
	}, nil
}

func (l *Local) release(key string, e *localEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}
