// Package httptransport wires the route groups, middleware stack and
// operational endpoints into a single handler.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"keystone/internal/platform/metrics"
	"keystone/internal/platform/middleware"
)

// Registrar is implemented by each domain handler package.
type Registrar interface {
	Register(r chi.Router)
}

// HealthChecker reports dependency health for the readiness endpoint.
type HealthChecker func(w http.ResponseWriter, r *http.Request)

// NewRouter assembles the API. Every route passes through the shared
// middleware stack so request IDs and request-scoped time are always set
// before a domain handler runs.
func NewRouter(logger *slog.Logger, m *metrics.Metrics, gatherer prometheus.Gatherer, health HealthChecker, handlers ...Registrar) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.Latency(m))

	for _, h := range handlers {
		h.Register(r)
	}

	r.Get("/healthz", http.HandlerFunc(health))
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return r
}
