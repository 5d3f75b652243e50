package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all prometheus metrics
type Metrics struct {
	RecordsProcessed prometheus.Counter
	EventsDispatched prometheus.Counter
	RecordsSkipped   prometheus.Counter
	SweepDuration    prometheus.Histogram
	ErrorsCount      *prometheus.CounterVec
}

// NewMetrics creates new prometheus metrics
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		RecordsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "change_records_processed_total",
			Help:      "The total number of change-feed records processed",
		}),
		EventsDispatched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dispatched_total",
			Help:      "The total number of notification payloads published",
		}),
		RecordsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "change_records_skipped_total",
			Help:      "The total number of change-feed records dropped by normalization",
		}),
		SweepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Time taken by one retry-sweeper pass",
			Buckets:   prometheus.DefBuckets,
		}),
		ErrorsCount: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "The total number of errors",
		}, []string{"operation"}),
	}
}
