package obs

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CatalogFetchTotal counts catalog reads by source (cache, upstream) and outcome.
	CatalogFetchTotal *prometheus.CounterVec
	// CatalogRefreshTotal counts scheduled catalog refresh outcomes.
	CatalogRefreshTotal *prometheus.CounterVec
	// CartLineItemsAddedTotal counts add-to-cart attempts by outcome.
	CartLineItemsAddedTotal *prometheus.CounterVec
	// CatalogRefreshLatency records refresh latency in milliseconds.
	CatalogRefreshLatency prometheus.Histogram
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CatalogFetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_fetch_total",
			Help:      "Count of catalog reads by source and outcome.",
		}, []string{"source", "result"})
		CatalogRefreshTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_refresh_total",
			Help:      "Count of catalog refresh runs by outcome.",
		}, []string{"result"})
		CartLineItemsAddedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_line_items_added_total",
			Help:      "Count of add-to-cart attempts by outcome.",
		}, []string{"result"})
		CatalogRefreshLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "catalog_refresh_duration_ms",
			Help:      "Latency of catalog refresh runs in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000},
		})

		mustRegisterCollector(reg, CatalogFetchTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CatalogFetchTotal = v
			}
		})
		mustRegisterCollector(reg, CatalogRefreshTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CatalogRefreshTotal = v
			}
		})
		mustRegisterCollector(reg, CartLineItemsAddedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CartLineItemsAddedTotal = v
			}
		})
		mustRegisterCollector(reg, CatalogRefreshLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				CatalogRefreshLatency = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}

// RecordCatalogFetch increments catalog_fetch_total when domain metrics are registered.
func RecordCatalogFetch(source, result string) {
	if CatalogFetchTotal == nil {
		return
	}
	CatalogFetchTotal.WithLabelValues(source, result).Inc()
}

// RecordCartAdd increments cart_line_items_added_total when domain metrics are registered.
func RecordCartAdd(result string) {
	if CartLineItemsAddedTotal == nil {
		return
	}
	CartLineItemsAddedTotal.WithLabelValues(result).Inc()
}

// RecordCatalogRefresh observes one refresh run.
func RecordCatalogRefresh(result string, elapsed time.Duration) {
	if CatalogRefreshTotal != nil {
		CatalogRefreshTotal.WithLabelValues(result).Inc()
	}
	if CatalogRefreshLatency != nil {
		CatalogRefreshLatency.Observe(DurationMillis(elapsed))
	}
}
