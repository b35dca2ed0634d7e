package health

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deps probes the storefront's runtime dependencies.
type Deps struct {
	// Redis may be nil when caching is disabled.
	Redis *redis.Client
	// Catalog reports whether a catalog can be served.
	Catalog func(ctx context.Context) error
}

// PingRedis implements Checker.
func (d Deps) PingRedis(ctx context.Context, timeout time.Duration) error {
	if d.Redis == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return d.Redis.Ping(ctx).Err()
}

// PingCatalog implements Checker.
func (d Deps) PingCatalog(ctx context.Context, timeout time.Duration) error {
	if d.Catalog == nil {
		return errors.New("catalog probe not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return d.Catalog(ctx)
}
