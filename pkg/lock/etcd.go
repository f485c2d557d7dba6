package lock

import (
	"context"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"
)

// Etcd is a Locker built on etcd leases. Locks held by a process that
// dies are released when its session lease expires. Mutexes sharing a
// session share a lease key, so holders within this process are
// serialised locally first.
type Etcd struct {
	session *concurrency.Session
	local   *Local
}

// NewEtcd opens a session whose lease lives for ttl.
func NewEtcd(client *clientv3.Client, ttl time.Duration) (*Etcd, error) {
	seconds := int(ttl / time.Second)
	if seconds < 1 {
		seconds = 10
	}
	session, err := concurrency.NewSession(client, concurrency.WithTTL(seconds))
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd session: %w", err)
	}
	return &Etcd{session: session, local: NewLocal()}, nil
}

func (e *Etcd) Acquire(ctx context.Context, key string) (Unlock, error) {
	unlockLocal, err := e.local.Acquire(ctx, key)
	if err != nil {
		return nil, err
	}
	m := concurrency.NewMutex(e.session, "/"+key)
	if err := m.Lock(ctx); err != nil {
		_ = unlockLocal(ctx)
		return nil, fmt.Errorf("etcd lock: %w", err)
	}
	return func(ctx context.Context) error {
		defer unlockLocal(ctx)
		if err := m.Unlock(ctx); err != nil {
			return fmt.Errorf("etcd unlock: %w", err)
		}
		return nil
	}, nil
}

// Close ends the session and releases every lock it holds.
func (e *Etcd) Close() error {
	return e.session.Close()
}
