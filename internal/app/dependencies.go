// Package app builds the runtime dependencies shared by the API and the worker.
package app

import (
	"context"
	"fmt"
	"net/http"

	validator "github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/storefront-catalog/internal/catalog"
	"github.com/noah-isme/storefront-catalog/internal/common"
	"github.com/noah-isme/storefront-catalog/internal/config"
	"github.com/noah-isme/storefront-catalog/internal/pricing"
	"github.com/noah-isme/storefront-catalog/internal/queue"
	"github.com/noah-isme/storefront-catalog/internal/ratelimit"
	"github.com/noah-isme/storefront-catalog/internal/resilience"
	"github.com/noah-isme/storefront-catalog/internal/variant"
)

// Dependencies enumerates the services shared across modules.
type Dependencies struct {
	Redis      *redis.Client
	Validator  *validator.Validate
	Limiter    ratelimit.Limiter
	TaskClient *asynq.Client
	Catalog    *catalog.CachedRepository
	Variants   variant.Catalog
	Formatter  *pricing.Formatter
	Thresholds catalog.StockThresholds
}

// Options tunes what Build instruments.
type Options struct {
	RedisMetrics bool
	Target       string
}

// Build connects to Redis (when configured) and assembles the catalog stack.
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) (*Dependencies, error) {
	formatter, err := pricing.NewFormatter(cfg.CurrencyCode, cfg.CurrencyLocale)
	if err != nil {
		return nil, fmt.Errorf("currency formatter: %w", err)
	}
	deps := &Dependencies{
		Validator:  common.Validator(),
		Formatter:  formatter,
		Thresholds: catalog.StockThresholds{Listing: cfg.StockThresholdListing, Detail: cfg.StockThresholdDetail},
		Variants: variant.Catalog{
			Set:      variant.DefaultSet(),
			Eligible: variant.NewEligibility(cfg.VariantEligibleCategories...),
		},
	}

	if cfg.RedisEnabled() {
		client, err := NewRedis(ctx, cfg.RedisURL, opts.RedisMetrics, logger)
		if err != nil {
			return nil, err
		}
		deps.Redis = client
		limiter, err := ratelimit.NewRedisLimiter(client, "ratelimit:")
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("rate limiter store: %w", err)
		}
		deps.Limiter = limiter
		connOpt, err := queue.RedisConnOpt(cfg.RedisURL)
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("task queue: %w", err)
		}
		deps.TaskClient = asynq.NewClient(connOpt)
	} else {
		logger.Warn().Msg("REDIS_URL not set; catalog cache, idempotency and task queue disabled")
		deps.Limiter = ratelimit.NewMemoryLimiter("ratelimit:")
	}

	target := opts.Target
	if target == "" {
		target = "store-api"
	}
	deps.Catalog = &catalog.CachedRepository{
		Upstream: catalog.StoreClient{BaseURL: cfg.StoreAPIBaseURL, HTTP: NewStoreHTTPClient(cfg, target, logger)},
		Cache:    catalog.NewCache(deps.Redis, cfg.CatalogCacheTTL),
		Logger:   logger.With().Str("component", "catalog").Logger(),
	}
	return deps, nil
}

// Close releases network resources.
func (d *Dependencies) Close() error {
	if d == nil {
		return nil
	}
	var firstErr error
	if d.TaskClient != nil {
		if err := d.TaskClient.Close(); err != nil {
			firstErr = err
		}
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NewRedis parses url, instruments the client and checks connectivity.
func NewRedis(ctx context.Context, url string, metrics bool, logger zerolog.Logger) (*redis.Client, error) {
	redisOpts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewStoreHTTPClient returns the traced, retrying client used for the store API.
func NewStoreHTTPClient(cfg *config.Config, target string, logger zerolog.Logger) resilience.HTTPClient {
	return resilience.HTTPClient{
		Client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		Breaker:     resilience.NewBreaker(cfg.CircuitStoreMinRequests, cfg.CircuitStoreFailureRatio, cfg.CircuitStoreOpenFor).WithTarget(target).WithLogger(logger),
		Target:      target,
		Logger:      logger.With().Str("component", "store-client").Logger(),
		BaseBackoff: cfg.StoreAPIRetryBase,
		MaxAttempts: cfg.StoreAPIMaxAttempts,
		Jitter:      cfg.StoreAPIRetryJitter,
		Timeout:     cfg.StoreAPITimeout,
	}
}
