package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// StoreLimiter adapts a ulule/limiter store to Limiter. It runs a fixed
// window per (window, max) pair.
type StoreLimiter struct {
	Store limiter.Store

	mu       sync.Mutex
	limiters map[limiter.Rate]*limiter.Limiter
}

// NewMemoryLimiter keeps counters in process memory.
func NewMemoryLimiter(prefix string) *StoreLimiter {
	return &StoreLimiter{Store: memory.NewStoreWithOptions(limiter.StoreOptions{
		Prefix:          prefix,
		CleanUpInterval: time.Minute,
	})}
}

// NewRedisLimiter keeps counters in Redis.
func NewRedisLimiter(client *redis.Client, prefix string) (*StoreLimiter, error) {
	store, err := limiterredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: prefix})
	if err != nil {
		return nil, fmt.Errorf("ratelimit: redis store: %w", err)
	}
	return &StoreLimiter{Store: store}, nil
}

// Allow implements Limiter.
func (l *StoreLimiter) Allow(ctx context.Context, key string, window time.Duration, max int) (bool, int, time.Time, error) {
	if l == nil || l.Store == nil || max <= 0 || window <= 0 {
		return true, max, time.Now().Add(window), nil
	}
	res, err := l.limiterFor(limiter.Rate{Period: window, Limit: int64(max)}).Get(ctx, key)
	if err != nil {
		return false, 0, time.Now().Add(window), err
	}
	return !res.Reached, int(res.Remaining), time.Unix(res.Reset, 0), nil
}

func (l *StoreLimiter) limiterFor(rate limiter.Rate) *limiter.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.limiters == nil {
		l.limiters = make(map[limiter.Rate]*limiter.Limiter)
	}
	lim, ok := l.limiters[rate]
	if !ok {
		lim = limiter.New(l.Store, rate)
		l.limiters[rate] = lim
	}
	return lim
}
