package identity

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for id resolution.
type Metrics struct {
	Resolved *prometheus.CounterVec
}

// NewMetrics registers identity metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Resolved: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "lexicon_identity_resolved_total",
			Help: "Id resolutions by outcome (existing, minted, race_lost)",
		}, []string{"resource_type", "outcome"}),
	}
}

func (m *Metrics) observe(rt, outcome string) {
	if m != nil {
		m.Resolved.WithLabelValues(rt, outcome).Inc()
	}
}
