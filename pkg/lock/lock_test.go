package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal(t *testing.T) {
	t.Run("should exclude concurrent holders of a key", func(t *testing.T) {
		l := NewLocal()
		var (
			inside  int32
			maxSeen int32
			wg      sync.WaitGroup
		)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock, err := l.Acquire(context.Background(), ShipKey("R002"))
				if !assert.NoError(t, err) {
					return
				}
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxSeen)
					if n <= m || atomic.CompareAndSwapInt32(&maxSeen, m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inside, -1)
				assert.NoError(t, unlock(context.Background()))
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), maxSeen)
		assert.Empty(t, l.locks)
	})

	t.Run("should not block other keys", func(t *testing.T) {
		l := NewLocal()
		unlockA, err := l.Acquire(context.Background(), ShipKey("R001"))
		require.NoError(t, err)
		defer unlockA(context.Background())

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		unlockB, err := l.Acquire(ctx, ShipKey("R003"))
		require.NoError(t, err)
		assert.NoError(t, unlockB(context.Background()))
	})

	t.Run("should give up when the context ends", func(t *testing.T) {
		l := NewLocal()
		unlock, err := l.Acquire(context.Background(), "k")
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err = l.Acquire(ctx, "k")
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		require.NoError(t, unlock(context.Background()))
		assert.ErrorIs(t, unlock(context.Background()), ErrNotHeld)
	})
}

func TestWithLock(t *testing.T) {
	t.Run("should return fn's error and release", func(t *testing.T) {
		l := NewLocal()
		logger, _ := test.NewNullLogger()
		boom := errors.New("boom")

		err := WithLock(context.Background(), l, logger, "k", func() error { return boom })
		assert.ErrorIs(t, err, boom)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		unlock, err := l.Acquire(ctx, "k")
		require.NoError(t, err)
		assert.NoError(t, unlock(ctx))
	})

	t.Run("should log release failures", func(t *testing.T) {
		logger, hook := test.NewNullLogger()
		failing := lockerFunc(func(ctx context.Context, key string) (Unlock, error) {
			return func(context.Context) error { return ErrNotHeld }, nil
		})

		require.NoError(t, WithLock(context.Background(), failing, logger, "k", func() error { return nil }))

		require.Len(t, hook.Entries, 1)
		assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
		assert.Equal(t, "k", hook.LastEntry().Data["lock"])
	})
}

type lockerFunc func(ctx context.Context, key string) (Unlock, error)

func (f lockerFunc) Acquire(ctx context.Context, key string) (Unlock, error) { return f(ctx, key) }
