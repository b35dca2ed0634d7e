package lock_test

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-catalog/internal/lock"
)

func newLocker(t *testing.T, prefix string) (lock.Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond, Prefix: prefix}, mr
}

func TestWithLockSerializesRefreshes(t *testing.T) {
	locker, _ := newLocker(t, "")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var (
		mu      sync.Mutex
		active  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locker.WithLock(ctx, "catalog:refresh", time.Second, func(context.Context) error {
				mu.Lock()
				active++
				if active > maxSeen {
					maxSeen = active
				}
				mu.Unlock()
				time.Sleep(10 * time.Millisecond)
				mu.Lock()
				active--
				mu.Unlock()
				return nil
			})
			require.NoError(t, err)
		}()
	}
	wg.Wait()
	require.Equal(t, 1, maxSeen)
}

func TestWithLockGivesUpWhenContextEnds(t *testing.T) {
	locker, mr := newLocker(t, "")
	require.NoError(t, mr.Set("catalog:refresh", "other-worker"))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := locker.WithLock(ctx, "catalog:refresh", time.Second, func(context.Context) error {
		t.Fatal("callback must not run")
		return nil
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTryWithLockReportsHeld(t *testing.T) {
	locker, mr := newLocker(t, "lock:")
	ctx := context.Background()

	err := locker.TryWithLock(ctx, "catalog:refresh", time.Second, func(ctx context.Context) error {
		inner := locker.TryWithLock(ctx, "catalog:refresh", time.Second, func(context.Context) error {
			t.Fatal("inner callback must not run")
			return nil
		})
		require.ErrorIs(t, inner, lock.ErrNotAcquired)
		return nil
	})
	require.NoError(t, err)
	require.False(t, mr.Exists("lock:catalog:refresh"), "lock released after callback")
}

func TestReleaseKeepsForeignToken(t *testing.T) {
	locker, mr := newLocker(t, "")
	err := locker.WithLock(context.Background(), "k", time.Second, func(context.Context) error {
		require.NoError(t, mr.Set("k", "someone-else"))
		return nil
	})
	require.NoError(t, err)
	got, err := mr.Get("k")
	require.NoError(t, err)
	require.Equal(t, "someone-else", got)
}

func TestLeaseRenewedWhileCallbackRuns(t *testing.T) {
	locker, mr := newLocker(t, "")
	ttl := 90 * time.Millisecond

	err := locker.WithLock(context.Background(), "catalog:refresh", ttl, func(ctx context.Context) error {
		mr.SetTTL("catalog:refresh", time.Millisecond)
		require.Eventually(t, func() bool {
			return mr.TTL("catalog:refresh") == ttl
		}, time.Second, 5*time.Millisecond)
		return ctx.Err()
	})
	require.NoError(t, err)
}

func TestLeaseLostCancelsCallback(t *testing.T) {
	locker, mr := newLocker(t, "")

	err := locker.WithLock(context.Background(), "catalog:refresh", 60*time.Millisecond, func(ctx context.Context) error {
		require.NoError(t, mr.Set("catalog:refresh", "other-worker"))
		select {
		case <-ctx.Done():
			require.ErrorIs(t, context.Cause(ctx), lock.ErrLockLost)
			return ctx.Err()
		case <-time.After(time.Second):
			t.Fatal("callback context was not cancelled")
			return nil
		}
	})
	require.ErrorIs(t, err, lock.ErrLockLost)
	got, err := mr.Get("catalog:refresh")
	require.NoError(t, err)
	require.Equal(t, "other-worker", got)
}
