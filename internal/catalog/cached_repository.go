package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/storefront-catalog/internal/obs"
)

// CachedRepository decorates a Repository with a Redis JSON cache. Concurrent
// misses for the same key share one upstream call.
type CachedRepository struct {
	Upstream Repository
	Cache    *Cache
	Logger   zerolog.Logger

	group singleflight.Group
}

// ListAll implements Repository.
func (r *CachedRepository) ListAll(ctx context.Context) ([]RawProduct, error) {
	return r.list(ctx, listCacheKey(), func(ctx context.Context) ([]RawProduct, error) {
		return r.Upstream.ListAll(ctx)
	})
}

// ListByCategory implements Repository.
func (r *CachedRepository) ListByCategory(ctx context.Context, category string) ([]RawProduct, error) {
	return r.list(ctx, categoryCacheKey(category), func(ctx context.Context) ([]RawProduct, error) {
		return r.Upstream.ListByCategory(ctx, category)
	})
}

// GetByID implements Repository.
func (r *CachedRepository) GetByID(ctx context.Context, id string) (RawProduct, error) {
	key := productCacheKey(id)
	var cached RawProduct
	if ok, err := r.Cache.GetJSON(ctx, key, &cached); err == nil && ok {
		recordFetch("cache", "hit")
		return cached, nil
	} else if err != nil {
		r.Logger.Warn().Err(err).Str("key", key).Msg("catalog cache read failed")
	}
	v, err, _ := r.group.Do(key, func() (any, error) {
		raw, err := r.Upstream.GetByID(ctx, id)
		if err != nil {
			recordFetch("upstream", fetchResult(err))
			return RawProduct{}, err
		}
		recordFetch("upstream", "ok")
		if err := r.Cache.SetJSON(ctx, key, raw); err != nil {
			r.Logger.Warn().Err(err).Str("key", key).Msg("catalog cache write failed")
		}
		return raw, nil
	})
	if err != nil {
		return RawProduct{}, err
	}
	return v.(RawProduct), nil
}

// Warm fetches the full catalog from upstream and overwrites the cached list
// along with every product and category entry derived from it.
func (r *CachedRepository) Warm(ctx context.Context) (int, error) {
	raws, err := r.Upstream.ListAll(ctx)
	if err != nil {
		recordFetch("upstream", fetchResult(err))
		return 0, fmt.Errorf("warm catalog: %w", err)
	}
	recordFetch("upstream", "ok")
	if _, err := NormalizeAll(raws); err != nil {
		return 0, fmt.Errorf("warm catalog: %w", err)
	}
	entries := map[string]any{listCacheKey(): raws}
	byCategory := make(map[string][]RawProduct)
	for _, raw := range raws {
		entries[productCacheKey(string(raw.ID))] = raw
		byCategory[raw.Category] = append(byCategory[raw.Category], raw)
	}
	for category, items := range byCategory {
		entries[categoryCacheKey(category)] = items
	}
	if err := r.Cache.SetManyJSON(ctx, entries); err != nil {
		return 0, fmt.Errorf("warm catalog: %w", err)
	}
	return len(raws), nil
}

func (r *CachedRepository) list(ctx context.Context, key string, fetch func(context.Context) ([]RawProduct, error)) ([]RawProduct, error) {
	var cached []RawProduct
	if ok, err := r.Cache.GetJSON(ctx, key, &cached); err == nil && ok {
		recordFetch("cache", "hit")
		return cached, nil
	} else if err != nil {
		r.Logger.Warn().Err(err).Str("key", key).Msg("catalog cache read failed")
	}
	v, err, _ := r.group.Do(key, func() (any, error) {
		raws, err := fetch(ctx)
		if err != nil {
			recordFetch("upstream", fetchResult(err))
			return nil, err
		}
		recordFetch("upstream", "ok")
		if err := r.Cache.SetJSON(ctx, key, raws); err != nil {
			r.Logger.Warn().Err(err).Str("key", key).Msg("catalog cache write failed")
		}
		return raws, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]RawProduct), nil
}

func fetchResult(err error) string {
	if errors.Is(err, ErrNotFound) {
		return "not_found"
	}
	return "error"
}

func recordFetch(source, result string) {
	obs.RecordCatalogFetch(source, result)
}
