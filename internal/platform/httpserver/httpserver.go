package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// New builds an HTTP server with sane defaults for this project.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Checker reports whether a dependency is ready to serve traffic.
type Checker interface {
	Health(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) error

// Health calls f.
func (f CheckerFunc) Health(ctx context.Context) error { return f(ctx) }

// NewOpsRouter serves liveness, readiness and metrics. Engine operations are not exposed over HTTP.
func NewOpsRouter(logger *slog.Logger, metrics http.Handler, checks map[string]Checker) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		status := http.StatusOK
		body := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check.Health(ctx); err != nil {
				logger.WarnContext(ctx, "readiness check failed", "check", name, "error", err)
				body[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			body[name] = "ok"
		}
		writeJSON(w, status, body)
	})
	if metrics != nil {
		r.Handle("/metrics", metrics)
	}
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
