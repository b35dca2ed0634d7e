package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/storefront-catalog/internal/catalog"
	"github.com/noah-isme/storefront-catalog/internal/events"
	"github.com/noah-isme/storefront-catalog/internal/lock"
	"github.com/noah-isme/storefront-catalog/internal/obs"
)

const refreshLockKey = "catalog:refresh"

// Warmer rewrites the catalog cache from the store API.
type Warmer interface {
	Warm(ctx context.Context) (int, error)
}

// Locker serialises refreshes across workers.
type Locker interface {
	TryWithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// RefreshHandler processes TypeCatalogRefresh tasks. Only one worker refreshes
// at a time; a task that finds the lock held is dropped.
type RefreshHandler struct {
	Catalog Warmer
	Locker  Locker
	LockTTL time.Duration
	Events  *events.Bus
	Logger  zerolog.Logger
	Now     func() time.Time
}

// ProcessTask implements asynq.Handler.
func (h *RefreshHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	if h.Catalog == nil {
		return fmt.Errorf("catalog refresh: warmer not configured: %w", asynq.SkipRetry)
	}
	payload, err := DecodeCatalogRefresh(t)
	if err != nil {
		obs.RecordCatalogRefresh("invalid", 0)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	run := func(ctx context.Context) error { return h.refresh(ctx, payload) }
	if h.Locker == nil {
		return run(ctx)
	}
	err = h.Locker.TryWithLock(ctx, refreshLockKey, h.lockTTL(), run)
	if errors.Is(err, lock.ErrNotAcquired) {
		obs.RecordCatalogRefresh("skipped", 0)
		h.Logger.Info().Str("reason", payload.Reason).Msg("catalog refresh already running")
		return nil
	}
	return err
}

func (h *RefreshHandler) refresh(ctx context.Context, payload CatalogRefreshPayload) error {
	ctx, span := obs.StartSpan(ctx, "queue.CatalogRefresh", attribute.String("catalog.refresh_reason", payload.Reason))
	defer span.End()

	start := h.now()
	count, err := h.Catalog.Warm(ctx)
	elapsed := h.now().Sub(start)
	if err != nil {
		obs.FailSpan(span, err)
		obs.RecordCatalogRefresh("error", elapsed)
		h.Logger.Error().Err(err).Str("reason", payload.Reason).Msg("catalog refresh failed")
		if errors.Is(err, catalog.ErrMalformedRecord) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}
	obs.RecordCatalogRefresh("ok", elapsed)
	h.Logger.Info().
		Int("products", count).
		Str("reason", payload.Reason).
		Dur("elapsed", elapsed).
		Msg("catalog refreshed")
	if h.Events != nil {
		if _, err := h.Events.Emit(ctx, events.TopicCatalogRefreshed, "catalog", map[string]any{
			"products": count,
			"reason":   payload.Reason,
		}); err != nil {
			h.Logger.Warn().Err(err).Msg("emit catalog refreshed event failed")
		}
	}
	return nil
}

func (h *RefreshHandler) lockTTL() time.Duration {
	if h.LockTTL <= 0 {
		return 2 * time.Minute
	}
	return h.LockTTL
}

func (h *RefreshHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}
