// Package httptransport assembles the HTTP surface of the server: middleware
// chain, operational endpoints, and the domain handlers mounted on top.
package httptransport

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	platformmetrics "amparo/internal/platform/metrics"
	"amparo/pkg/platform/httputil"
	"amparo/pkg/platform/middleware/metadata"
	"amparo/pkg/platform/middleware/requestid"
	"amparo/pkg/platform/middleware/requesttime"
)

const healthCheckTimeout = 2 * time.Second

// Registrar is implemented by domain handlers that mount their own routes.
type Registrar interface {
	Register(r chi.Router)
}

// HealthCheck reports the readiness of one backing dependency.
type HealthCheck func(ctx context.Context) error

// Config collects the router's dependencies. Handlers are mounted in order;
// nil Metrics disables request instrumentation.
type Config struct {
	Handlers     []Registrar
	Metrics      *platformmetrics.Metrics
	HealthChecks map[string]HealthCheck
}

// NewRouter wires the middleware chain and mounts all endpoints.
func NewRouter(cfg Config) http.Handler {
	r := chi.NewRouter()

	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/healthz", healthHandler(cfg.HealthChecks))

	for _, h := range cfg.Handlers {
		h.Register(r)
	}
	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		status := "ok"
		code := http.StatusOK
		deps := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				deps[name] = err.Error()
				status = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			deps[name] = "ok"
		}

		body := map[string]any{"status": status}
		if len(deps) > 0 {
			body["dependencies"] = deps
		}
		httputil.WriteJSON(w, code, body)
	}
}
