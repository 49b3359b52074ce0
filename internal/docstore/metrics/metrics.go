package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for document store operations.
type Metrics struct {
	OperationDuration *prometheus.HistogramVec
	Operations        *prometheus.CounterVec
	Conflicts         *prometheus.CounterVec
}

// New creates and registers docstore metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lexicon_docstore_operation_duration_seconds",
			Help:    "Latency of document store operations",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"backend", "op"}),
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lexicon_docstore_operations_total",
			Help: "Document store operations by outcome",
		}, []string{"backend", "op", "outcome"}),
		Conflicts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lexicon_docstore_conflicts_total",
			Help: "Writes rejected by a failed precondition",
		}, []string{"backend", "collection"}),
	}
}

// ObserveOperation records latency and outcome for one operation.
func (m *Metrics) ObserveOperation(backend, op, outcome string, d time.Duration) {
	m.OperationDuration.WithLabelValues(backend, op).Observe(d.Seconds())
	m.Operations.WithLabelValues(backend, op, outcome).Inc()
}

// IncrementConflict counts a precondition failure. collection is the top-level collection name.
func (m *Metrics) IncrementConflict(backend, collection string) {
	m.Conflicts.WithLabelValues(backend, collection).Inc()
}
