package obs

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics holds the request collectors shared by every route.
type HTTPMetrics struct {
	Requests      *prometheus.CounterVec
	Latency       *prometheus.HistogramVec
	ResponseBytes *prometheus.HistogramVec
	InFlight      prometheus.Gauge
}

// DefaultBuckets are latency bounds in milliseconds sized for catalog reads
// served from cache and cold fetches against the store API.
var DefaultBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500}

// NewHTTPMetrics registers the collectors on reg, reusing ones a previous
// call already registered under the same namespace.
func NewHTTPMetrics(namespace string, buckets []float64, reg prometheus.Registerer) *HTTPMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if len(buckets) == 0 {
		buckets = DefaultBuckets
	}
	buckets = slices.Clone(buckets)
	slices.Sort(buckets)
	buckets = slices.Compact(buckets)

	return &HTTPMetrics{
		Requests: reuseRegistered(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Storefront HTTP requests by route and status class.",
		}, []string{"method", "route", "status_class"})),
		Latency: reuseRegistered(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "Storefront HTTP latency in milliseconds.",
			Buckets:   buckets,
		}, []string{"method", "route"})),
		ResponseBytes: reuseRegistered(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "Size of listing, product and cart payloads.",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 7),
		}, []string{"route"})),
		InFlight: reuseRegistered(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_in_flight_requests",
			Help:      "Requests currently being served.",
		})),
	}
}

// StatusClass collapses a status code to "2xx", "4xx" and so on.
func StatusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}

// ParseBucketsCSV reads OBS_METRICS_BUCKETS_MS style input. Entries that are
// not positive numbers are dropped.
func ParseBucketsCSV(csv string) []float64 {
	var out []float64
	for field := range strings.SplitSeq(csv, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err == nil && v > 0 {
			out = append(out, v)
		}
	}
	return out
}

// DurationMillis converts d for the millisecond histograms.
func DurationMillis(d time.Duration) float64 {
	return d.Seconds() * 1000
}

func reuseRegistered[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	err := reg.Register(c)
	if err == nil {
		return c
	}
	are, ok := err.(prometheus.AlreadyRegisteredError)
	if !ok {
		panic(fmt.Errorf("register http metric: %w", err))
	}
	if existing, ok := are.ExistingCollector.(T); ok {
		return existing
	}
	return c
}
