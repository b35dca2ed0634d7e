package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	RedisURL           string
	CORSAllowedOrigins []string

	StoreAPIBaseURL     string
	StoreAPITimeout     time.Duration
	StoreAPIMaxAttempts int
	StoreAPIRetryBase   time.Duration
	StoreAPIRetryJitter float64

	CircuitStoreMinRequests  int
	CircuitStoreFailureRatio float64
	CircuitStoreOpenFor      time.Duration

	CatalogCacheTTL    time.Duration
	CatalogRefreshCron string

	StockThresholdListing     int
	StockThresholdDetail      int
	VariantEligibleCategories []string

	CurrencyCode   string
	CurrencyLocale string

	CartTTL        time.Duration
	IdempotencyTTL time.Duration

	RateLimitWindow   time.Duration
	RateLimitMax      int
	RateLimitWriteMax int
	BodyLimitBytes    int64

	LockTTL          time.Duration
	LockRetryBackoff time.Duration

	AdminBasicAuthUser string
	AdminBasicAuthPass string
	WorkerConcurrency  int

	Ops Ops
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		StoreAPIBaseURL:     strings.TrimRight(valueOrDefault(k.String("STORE_API_BASE_URL"), "https://fakestoreapi.com"), "/"),
		StoreAPITimeout:     parseDuration(k.String("STORE_API_TIMEOUT"), "5s"),
		StoreAPIMaxAttempts: parseInt(k.String("STORE_API_MAX_ATTEMPTS"), 3),
		StoreAPIRetryBase:   parseDuration(k.String("STORE_API_RETRY_BASE"), "200ms"),
		StoreAPIRetryJitter: parseFloat(k.String("STORE_API_RETRY_JITTER"), 0.2),

		CircuitStoreMinRequests:  parseInt(k.String("CIRCUIT_STORE_MIN_REQ"), 5),
		CircuitStoreFailureRatio: parseFloat(k.String("CIRCUIT_STORE_FAILURE_RATE"), 0.5),
		CircuitStoreOpenFor:      parseDuration(k.String("CIRCUIT_STORE_OPEN_FOR"), "30s"),

		CatalogCacheTTL:    parseDuration(k.String("CATALOG_CACHE_TTL"), "5m"),
		CatalogRefreshCron: valueOrDefault(k.String("CATALOG_REFRESH_CRON"), "@every 5m"),

		StockThresholdListing:     parseInt(k.String("STOCK_THRESHOLD_LISTING"), 100),
		StockThresholdDetail:      parseInt(k.String("STOCK_THRESHOLD_DETAIL"), 50),
		VariantEligibleCategories: splitAndTrim(valueOrDefault(k.String("VARIANT_ELIGIBLE_CATEGORIES"), "electronics")),

		CurrencyCode:   strings.ToUpper(valueOrDefault(k.String("CURRENCY_CODE"), "USD")),
		CurrencyLocale: valueOrDefault(k.String("CURRENCY_LOCALE"), "en-US"),

		CartTTL:        parseDuration(k.String("CART_TTL"), "168h"),
		IdempotencyTTL: parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),

		RateLimitWindow:   parseDuration(k.String("RATE_LIMIT_WINDOW"), "1m"),
		RateLimitMax:      parseInt(k.String("RATE_LIMIT_MAX"), 120),
		RateLimitWriteMax: parseInt(k.String("RATE_LIMIT_WRITE_MAX"), 30),
		BodyLimitBytes:    int64(parseInt(k.String("BODY_LIMIT_BYTES"), 64<<10)),

		LockTTL:          parseDuration(k.String("LOCK_TTL"), "2m"),
		LockRetryBackoff: parseDuration(k.String("LOCK_RETRY_BACKOFF"), "50ms"),

		AdminBasicAuthUser: strings.TrimSpace(k.String("ADMIN_BASIC_AUTH_USER")),
		AdminBasicAuthPass: strings.TrimSpace(k.String("ADMIN_BASIC_AUTH_PASS")),
		WorkerConcurrency:  parseInt(k.String("WORKER_CONCURRENCY"), 2),
	}
	cfg.Ops = loadOps(k, cfg.AppEnv)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	u, err := url.Parse(c.StoreAPIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("STORE_API_BASE_URL must be an absolute url, got %q", c.StoreAPIBaseURL)
	}
	if c.StockThresholdListing < 0 || c.StockThresholdDetail < 0 {
		return fmt.Errorf("stock thresholds must not be negative")
	}
	if c.StoreAPIMaxAttempts < 1 {
		return fmt.Errorf("STORE_API_MAX_ATTEMPTS must be at least 1")
	}
	return nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// RedisEnabled reports whether a Redis URL was configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisURL != ""
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func parseFloat(value string, fallback float64) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return parsed
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
