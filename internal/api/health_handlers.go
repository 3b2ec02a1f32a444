package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// readinessTimeout bounds all readiness checks together.
const readinessTimeout = 5 * time.Second

// HealthChecker is a dependency probed by the readiness endpoint.
type HealthChecker interface {
	Name() string
	HealthCheck(ctx context.Context) error
}

// HealthHandlers provides health and readiness check endpoints for Kubernetes probes.
type HealthHandlers struct {
	checkers []HealthChecker
	now      func() time.Time
}

// NewHealthHandlers creates health handlers probing checkers on /ready.
// Dependencies that are not configured (in-memory store, no Redis) are
// simply not passed.
func NewHealthHandlers(checkers ...HealthChecker) *HealthHandlers {
	return &HealthHandlers{checkers: checkers, now: time.Now}
}

// HealthResponse represents the JSON response for health checks.
type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Health handles GET /health (liveness probe).
// Returns 200 whenever the process can serve requests.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r.Context(), http.StatusOK, HealthResponse{
		Status:    "healthy",
		Checks:    map[string]string{"runtime": "ok"},
		Timestamp: h.now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready (readiness probe).
// Returns 503 if any configured dependency fails its check.
func (h *HealthHandlers) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	checks := map[string]string{"metrics": "ok"}
	healthy := true

	for _, c := range h.checkers {
		if err := c.HealthCheck(ctx); err != nil {
			checks[c.Name()] = "error"
			healthy = false
			slog.WarnContext(ctx, "health check failed", "check", c.Name(), "error", err)
			continue
		}
		checks[c.Name()] = "ok"
	}

	status := "healthy"
	statusCode := http.StatusOK
	if !healthy {
		status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, r.Context(), statusCode, HealthResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: h.now().UTC().Format(time.RFC3339),
	})
}
