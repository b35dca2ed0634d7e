package queue

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricsOnce sync.Once

	QueueEnqueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_enqueued_total",
			Help: "Tasks submitted to the queue grouped by outcome",
		},
		[]string{"kind", "result"},
	)
	QueueProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_processed_total",
			Help: "Total tasks processed grouped by status",
		},
		[]string{"kind", "status"},
	)
)

// MustRegisterMetrics registers the queue collectors once.
func MustRegisterMetrics(reg prometheus.Registerer) {
	metricsOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		for _, c := range []prometheus.Collector{QueueEnqueuedTotal, QueueProcessedTotal} {
			if err := reg.Register(c); err != nil {
				if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
					continue
				}
				panic(fmt.Errorf("register queue metric: %w", err))
			}
		}
	})
}

func recordEnqueue(kind, result string) {
	QueueEnqueuedTotal.WithLabelValues(kind, result).Inc()
}

func recordProcessed(kind, status string) {
	QueueProcessedTotal.WithLabelValues(kind, status).Inc()
}
