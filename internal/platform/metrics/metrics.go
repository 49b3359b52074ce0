package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the process-wide Prometheus registry with the runtime collectors attached.
// Module metrics register into it through promauto.With so tests can pass a fresh registry.
type Registry struct {
	*prometheus.Registry
	Build *prometheus.GaugeVec
}

// New creates a registry carrying Go and process collectors plus a build info gauge.
func New(version string) *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	build := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "lexicon_build_info",
		Help: "Build information for the running engine",
	}, []string{"version"})
	reg.MustRegister(build)
	build.WithLabelValues(version).Set(1)
	return &Registry{Registry: reg, Build: build}
}

// Handler exposes the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.Registry, promhttp.HandlerOpts{Registry: r.Registry})
}
