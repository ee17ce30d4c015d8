package api

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/audiomatch/pkg/metrics"
)

// healthCheckTimeout bounds every readiness probe.
const healthCheckTimeout = 2 * time.Second

type namedCheck struct {
	name  string
	check func(ctx context.Context) error
}

// HealthHandler reports liveness and the state of registered checks.
type HealthHandler struct {
	strategy string
	checks   []namedCheck
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(strategy string) *HealthHandler {
	return &HealthHandler{strategy: strategy}
}

type healthResponse struct {
	Status   string            `json:"status"`
	Strategy string            `json:"strategy"`
	Checks   map[string]string `json:"checks,omitempty"`
}

// HandleHealth handles GET /healthz. Any failing check turns the status to
// "degraded" and the code to 503.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Strategy: h.strategy}
	status := http.StatusOK
	if len(h.checks) > 0 {
		resp.Checks = make(map[string]string, len(h.checks))
	}
	for _, c := range h.checks {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := c.check(ctx)
		cancel()
		if err != nil {
			resp.Checks[c.name] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[c.name] = "ok"
	}
	writeJSON(w, status, resp)
}

// MetricsHandler serves the custom Prometheus registry.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})
}
