// Package httptransport assembles the HTTP surface: the shared middleware
// chain, the public routes, and the token-guarded API. Handlers stay thin and
// register themselves; this package only decides what sits in front of them.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"libripal/internal/platform/metrics"
	"libripal/internal/platform/middleware"
	"libripal/pkg/platform/httputil"
	"libripal/pkg/platform/middleware/metadata"
	"libripal/pkg/platform/middleware/requesttime"
)

// requestTimeout bounds every request; slow upstream catalogs answer from
// their own shorter client timeouts well before this fires.
const requestTimeout = 30 * time.Second

// Registrar is anything that mounts routes on a chi router.
type Registrar interface {
	Register(r chi.Router)
}

// RegistrarFunc adapts a plain function to Registrar.
type RegistrarFunc func(r chi.Router)

// Register implements Registrar.
func (f RegistrarFunc) Register(r chi.Router) { f(r) }

// HealthCheck probes one dependency for /healthz.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Deps collects everything the router mounts.
type Deps struct {
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Validator middleware.JWTValidator

	// Public routes: token exchange, the telegram redeem endpoint.
	Public []Registrar
	// Protected routes: everything behind RequireAuth.
	Protected []Registrar

	Health []HealthCheck
}

// NewRouter builds the full HTTP handler.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.ContentTypeJSON)
	if deps.Metrics != nil {
		r.Use(middleware.LatencyMiddleware(deps.Metrics))
	}

	r.Get("/healthz", handleHealth(deps.Health))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	for _, reg := range deps.Public {
		reg.Register(r)
	}

	r.Group(func(protected chi.Router) {
		protected.Use(middleware.RequireAuth(deps.Validator, deps.Logger))
		for _, reg := range deps.Protected {
			reg.Register(protected)
		}
	})

	return r
}

// handleHealth runs every dependency probe and reports per-check status. Any
// failing check turns the whole response into a 503.
func handleHealth(checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for _, check := range checks {
			if err := check.Check(ctx); err != nil {
				results[check.Name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[check.Name] = "ok"
		}

		body := map[string]any{"status": "ok", "checks": results}
		if status != http.StatusOK {
			body["status"] = "degraded"
		}
		httputil.WriteJSON(w, status, body)
	}
}
