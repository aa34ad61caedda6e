package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthChecker reports dependency liveness for the health endpoint.
type HealthChecker func(ctx context.Context) error

// NewRouter wires the engine handler plus the operational endpoints.
func NewRouter(h *Handler, health HealthChecker, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if health != nil {
			if err := health(req.Context()); err != nil {
				if logger != nil {
					logger.WarnContext(req.Context(), "health check failed", "error", err)
				}
				writeErrorJSON(w, http.StatusServiceUnavailable, "unhealthy")
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	h.Register(r)
	return r
}
