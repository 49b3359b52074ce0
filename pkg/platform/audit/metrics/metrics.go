package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for change feed publishing.
type Metrics struct {
	Published       *prometheus.CounterVec
	PublishFailures *prometheus.CounterVec
	PublishDuration *prometheus.HistogramVec
}

// New registers change feed metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Published: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lexicon_changefeed_published_total",
			Help: "Change events delivered to the feed",
		}, []string{"transport"}),
		PublishFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lexicon_changefeed_publish_failures_total",
			Help: "Change events the feed rejected or timed out on",
		}, []string{"transport"}),
		PublishDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lexicon_changefeed_publish_duration_seconds",
			Help:    "Time to deliver one change event",
			Buckets: prometheus.DefBuckets,
		}, []string{"transport"}),
	}
}

// ObservePublish records the outcome of one publish.
func (m *Metrics) ObservePublish(transport string, err error, d time.Duration) {
	if err != nil {
		m.PublishFailures.WithLabelValues(transport).Inc()
		return
	}
	m.Published.WithLabelValues(transport).Inc()
	m.PublishDuration.WithLabelValues(transport).Observe(d.Seconds())
}
