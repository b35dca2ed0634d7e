package config

import (
	"strings"
	"time"

	"github.com/knadh/koanf/v2"
)

// Ops groups the process knobs for logging, telemetry, debug endpoints and
// shutdown. They are read from the same environment as Config.
type Ops struct {
	LogFormat string
	LogLevel  string

	MetricsEnabled   bool
	MetricsNamespace string
	MetricsBuckets   string

	TracingEnabled  bool
	TracingExporter string
	OTLPEndpoint    string
	TracingSampling float64

	PprofEnabled bool
	PprofUser    string
	PprofPass    string

	SecureHeaders bool
	HSTS          bool
	HSTSMaxAge    int

	ReadyRedisTimeout   time.Duration
	ReadyCatalogTimeout time.Duration

	ShutdownTimeout       time.Duration
	WorkerShutdownTimeout time.Duration
	QueueMaxRetry         int
}

func loadOps(k *koanf.Koanf, appEnv string) Ops {
	return Ops{
		LogFormat: valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
		LogLevel:  valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),

		MetricsEnabled:   parseBool(k.String("OBS_ENABLE_PROMETHEUS"), true),
		MetricsNamespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "storefront"),
		MetricsBuckets:   strings.TrimSpace(k.String("OBS_METRICS_BUCKETS_MS")),

		TracingEnabled:  parseBool(k.String("OBS_ENABLE_TRACING"), true),
		TracingExporter: valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp"),
		OTLPEndpoint:    strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
		TracingSampling: parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1.0),

		PprofEnabled: parseBool(k.String("OBS_ENABLE_PPROF"), false),
		PprofUser:    strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_USER")),
		PprofPass:    strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_PASS")),

		SecureHeaders: parseBool(k.String("SECURE_HEADERS_ENABLE"), true),
		HSTS:          parseBool(k.String("SECURE_HSTS_ENABLE"), appEnv == "production"),
		HSTSMaxAge:    parseInt(k.String("SECURE_HSTS_MAX_AGE"), 31536000),

		ReadyRedisTimeout:   parseMillis(k.String("HEALTH_READY_REDIS_TIMEOUT_MS"), 300),
		ReadyCatalogTimeout: parseMillis(k.String("HEALTH_READY_CATALOG_TIMEOUT_MS"), 2000),

		ShutdownTimeout:       parseMillis(k.String("SHUTDOWN_TIMEOUT_MS"), 10000),
		WorkerShutdownTimeout: parseMillis(k.String("WORKER_SHUTDOWN_TIMEOUT_MS"), 30000),
		QueueMaxRetry:         parseInt(k.String("QUEUE_MAX_RETRY"), 5),
	}
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	}
	return fallback
}

func parseMillis(value string, fallback int) time.Duration {
	return time.Duration(parseInt(value, fallback)) * time.Millisecond
}
