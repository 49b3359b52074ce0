package provenance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Appends         *prometheus.CounterVec
	AppendRetries   prometheus.Counter
	PublishFailures prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Appends: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lexicon_provenance_appends_total",
			Help: "Provenance entries appended, by resource type and action",
		}, []string{"resource_type", "action"}),
		AppendRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "lexicon_provenance_append_retries_total",
			Help: "Provenance appends retried after a version conflict",
		}),
		PublishFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "lexicon_provenance_publish_failures_total",
			Help: "Change events that could not be published after a successful append",
		}),
	}
}
