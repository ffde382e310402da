package benchmark

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	queryDuration  *prometheus.HistogramVec
	mismatches     *prometheus.CounterVec
	updateDuration *prometheus.HistogramVec
}

// NewMetrics registers the benchmark metrics with reg. A nil reg keeps them
// unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		queryDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "trackbench",
			Name:      "query_duration_seconds",
			Help:      "Time to produce one aggregation result.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
		}, []string{"backend", "variant", "mode", "order_by"}),
		mismatches: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "trackbench",
			Name:      "result_mismatches_total",
			Help:      "Database and in-memory results that did not agree.",
		}, []string{"backend"}),
		updateDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "trackbench",
			Name:      "update_duration_seconds",
			Help:      "Time of a single user update.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"backend", "kind"}),
	}
}

func (m *Metrics) observeQuery(x Measurement) {
	if m == nil {
		return
	}
	m.queryDuration.WithLabelValues(x.Backend, x.Variant, string(x.Mode), string(x.OrderBy)).Observe(x.Duration)
}

// observeMismatch counts one disagreeing pair.
func (m *Metrics) observeMismatch(backend string) {
	if m == nil {
		return
	}
	m.mismatches.WithLabelValues(backend).Inc()
}

func (m *Metrics) observeUpdate(backend, kind string, seconds float64) {
	if m == nil {
		return
	}
	m.updateDuration.WithLabelValues(backend, kind).Observe(seconds)
}
