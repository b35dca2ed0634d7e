package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotAcquired is returned by TryWithLock when another holder owns the key.
	ErrNotAcquired = errors.New("lock: already held")
	// ErrLockLost is the cancellation cause seen by fn when the lease could
	// not be renewed, e.g. after the key expired and another holder took it.
	ErrLockLost = errors.New("lock: lease lost")
)

var releaseScript = redis.NewScript(`if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
end
return 0`)

var renewScript = redis.NewScript(`if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0`)

// Locker is a Redis lease lock. The holder renews the lease every third of
// its TTL until fn returns, so long catalog refreshes keep exclusive access.
type Locker struct {
	R            *redis.Client
	RetryBackoff time.Duration
	Prefix       string
}

// WithLock runs fn while holding key, waiting for the key until ctx is done.
func (l Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	return l.run(ctx, key, ttl, true, fn)
}

// TryWithLock runs fn only when key is free; otherwise it returns ErrNotAcquired.
func (l Locker) TryWithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	return l.run(ctx, key, ttl, false, fn)
}

func (l Locker) run(ctx context.Context, key string, ttl time.Duration, wait bool, fn func(context.Context) error) error {
	if l.R == nil {
		return errors.New("lock: redis client not configured")
	}
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	key = l.Prefix + key
	token := uuid.NewString()
	if err := l.acquire(ctx, key, token, ttl, wait); err != nil {
		return err
	}
	defer l.release(context.WithoutCancel(ctx), key, token)

	leaseCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.renew(leaseCtx, key, token, ttl, cancel)
	}()
	err := fn(leaseCtx)
	cancel(nil)
	<-done
	if errors.Is(context.Cause(leaseCtx), ErrLockLost) {
		if err == nil || errors.Is(err, context.Canceled) {
			return ErrLockLost
		}
		return errors.Join(ErrLockLost, err)
	}
	return err
}

func (l Locker) acquire(ctx context.Context, key, token string, ttl time.Duration, wait bool) error {
	retry := l.RetryBackoff
	if retry <= 0 {
		retry = 50 * time.Millisecond
	}
	for {
		ok, err := l.R.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if !wait {
			return ErrNotAcquired
		}
		timer := time.NewTimer(retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// renew extends the lease until ctx is done. A failed renewal cancels ctx
// with ErrLockLost.
func (l Locker) renew(ctx context.Context, key, token string, ttl time.Duration, cancel context.CancelCauseFunc) {
	interval := ttl / 3
	if interval <= 0 {
		interval = ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := renewScript.Run(ctx, l.R, []string{key}, token, ttl.Milliseconds()).Int64()
			if ctx.Err() != nil {
				return
			}
			if err != nil || n == 0 {
				cancel(ErrLockLost)
				return
			}
		}
	}
}

func (l Locker) release(ctx context.Context, key, token string) {
	_ = releaseScript.Run(ctx, l.R, []string{key}, token).Err()
}
