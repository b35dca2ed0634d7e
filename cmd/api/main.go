package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront-catalog/internal/app"
	"github.com/noah-isme/storefront-catalog/internal/cart"
	"github.com/noah-isme/storefront-catalog/internal/catalog"
	"github.com/noah-isme/storefront-catalog/internal/common"
	"github.com/noah-isme/storefront-catalog/internal/config"
	"github.com/noah-isme/storefront-catalog/internal/events"
	"github.com/noah-isme/storefront-catalog/internal/health"
	"github.com/noah-isme/storefront-catalog/internal/obs"
	"github.com/noah-isme/storefront-catalog/internal/queue"
	"github.com/noah-isme/storefront-catalog/internal/ratelimit"
	"github.com/noah-isme/storefront-catalog/internal/resilience"
	"github.com/noah-isme/storefront-catalog/internal/security"
	"github.com/noah-isme/storefront-catalog/internal/storefront"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	ops := cfg.Ops
	logger := obs.NewLogger(ops.LogFormat, ops.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	obs.MustRegisterDomainMetrics(ops.MetricsNamespace, nil)
	resilience.MustRegisterMetrics(nil)
	queue.MustRegisterMetrics(nil)

	tracingEnabled := ops.TracingEnabled
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "storefront-api",
			Endpoint:      ops.OTLPEndpoint,
			Exporter:      ops.TracingExporter,
			SamplingRatio: ops.TracingSampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				ctx := context.Background()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	deps, err := app.Build(ctx, cfg, logger, app.Options{RedisMetrics: ops.MetricsEnabled})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise dependencies")
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Error().Err(err).Msg("close dependencies")
		}
	}()

	feed := &catalog.Feed{Repo: deps.Catalog, MaxAge: cfg.CatalogCacheTTL}
	storefrontSvc, err := storefront.NewService(storefront.ServiceConfig{
		Repo:       deps.Catalog,
		Feed:       feed,
		Thresholds: deps.Thresholds,
		Variants:   deps.Variants,
		Formatter:  deps.Formatter,
		Logger:     &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise storefront service")
	}
	storefrontHandler := storefront.NewHandler(storefront.HandlerConfig{Service: storefrontSvc})

	bus := &events.Bus{
		Notifiers: []events.Notifier{events.LogNotifier{Logger: logger.With().Str("component", "events").Logger()}},
	}
	if deps.Redis != nil {
		bus.Store = &events.RedisStreamStore{Client: deps.Redis, Stream: events.DefaultStream}
	}

	cartSvc := &cart.Service{
		Store:      &cart.Store{TTL: cfg.CartTTL},
		Products:   storefrontSvc,
		Thresholds: deps.Thresholds,
		Variants:   deps.Variants,
		Events:     bus,
		Logger:     logger.With().Str("component", "cart").Logger(),
	}
	cartHandler := &cart.Handler{Svc: cartSvc, Formatter: deps.Formatter}
	if deps.Redis != nil {
		cartHandler.Idempotency = common.Idem{R: deps.Redis, TTL: cfg.IdempotencyTTL}.Middleware
	}

	adminHandler := &queue.AdminHandler{Logger: logger.With().Str("component", "admin").Logger()}
	if deps.TaskClient != nil {
		adminHandler.Queue = queue.Enqueuer{Client: deps.TaskClient, MaxRetry: ops.QueueMaxRetry}
	}

	var httpMetrics *obs.HTTPMetrics
	if ops.MetricsEnabled {
		httpMetrics = obs.NewHTTPMetrics(ops.MetricsNamespace, obs.ParseBucketsCSV(ops.MetricsBuckets), nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.CORS(strings.Join(allowedOrigins(cfg), ",")))
	r.Use(security.Headers{
		Enable:     ops.SecureHeaders,
		EnableHSTS: ops.HSTS,
		HSTSMaxAge: ops.HSTSMaxAge,
	}.Middleware)

	if ops.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if ops.PprofEnabled {
		r.With(security.BasicAuth(ops.PprofUser, ops.PprofPass, "pprof")).Mount("/debug/pprof", obs.PprofHandler())
	}

	healthHandler := health.Handler{
		Checker: health.Deps{
			Redis: deps.Redis,
			Catalog: func(ctx context.Context) error {
				_, err := feed.Products(ctx)
				return err
			},
		},
		RedisTimeout:   ops.ReadyRedisTimeout,
		CatalogTimeout: ops.ReadyCatalogTimeout,
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	limiter := ratelimit.Handler{
		Limiter: deps.Limiter,
		Config: ratelimit.Config{
			Key:      ratelimit.ByClientIP("api:"),
			Window:   cfg.RateLimitWindow,
			Max:      cfg.RateLimitMax,
			WriteMax: cfg.RateLimitWriteMax,
		},
		OnError: func(err error) {
			logger.Warn().Err(err).Msg("rate limiter unavailable")
		},
	}

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(limiter.Middleware)
		v.Use(security.BodyLimit{Max: cfg.BodyLimitBytes, RequireJSON: true}.Middleware)

		v.Group(func(c chi.Router) {
			c.Use(security.Headers{Enable: true, CacheControl: security.PublicFor(int(cfg.CatalogCacheTTL.Seconds()))}.Middleware)
			storefrontHandler.Routes(c)
		})

		v.Group(func(c chi.Router) {
			c.Use(security.Headers{Enable: true, CacheControl: "no-store"}.Middleware)
			cartHandler.Routes(c)
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(security.BasicAuth(cfg.AdminBasicAuthUser, cfg.AdminBasicAuthPass, "admin"))
			admin.Post("/catalog/refresh", adminHandler.RefreshCatalog)
		})
	})

	go warmFeed(feed, logger)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-sigCtx.Done()
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ops.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server stopped")
}

// warmFeed loads the first catalog snapshot so the first shopper does not pay for it.
func warmFeed(feed *catalog.Feed, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	snapshot, _, err := feed.Refresh(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("initial catalog load failed")
		return
	}
	logger.Info().Int("products", len(snapshot.Products)).Msg("catalog loaded")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}
