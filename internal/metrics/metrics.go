package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records per-operation extraction outcomes.
type Metrics struct {
	operations *prometheus.CounterVec
	attempts   *prometheus.HistogramVec
	duration   *prometheus.HistogramVec
}

// New registers the NLU collectors with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sales_nlu",
			Name:      "operations_total",
			Help:      "NLU operations by operation, provider and outcome.",
		}, []string{"operation", "provider", "outcome"}),
		attempts: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sales_nlu",
			Name:      "completion_attempts",
			Help:      "Provider round trips needed per operation.",
			Buckets:   []float64{1, 2, 3, 4, 5},
		}, []string{"operation"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sales_nlu",
			Name:      "operation_duration_seconds",
			Help:      "Wall time per NLU operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "outcome"}),
	}
	for _, c := range []prometheus.Collector{m.operations, m.attempts, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Observe records one finished operation. A nil receiver is a no-op.
func (m *Metrics) Observe(operation, provider, outcome string, attempts int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, provider, outcome).Inc()
	if attempts > 0 {
		m.attempts.WithLabelValues(operation).Observe(float64(attempts))
	}
	m.duration.WithLabelValues(operation, outcome).Observe(elapsed.Seconds())
}
