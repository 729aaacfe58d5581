package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/hexdecor/api/internal/platform/httpx"
)

// ReadinessChecker reports whether a backing dependency is reachable.
type ReadinessChecker func(ctx context.Context) error

// HealthHandlers serves liveness and readiness probes.
type HealthHandlers struct {
	checkers map[string]ReadinessChecker
	started  time.Time
}

// NewHealthHandlers constructs health handlers over the named dependency checks.
func NewHealthHandlers(checkers map[string]ReadinessChecker) *HealthHandlers {
	return &HealthHandlers{
		checkers: checkers,
		started:  time.Now().UTC(),
	}
}

// Healthz reports process liveness.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(h.started).String(),
	})
}

// Readyz probes each registered dependency and reports per-check outcomes.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string, len(h.checkers))
	healthy := true
	for name, check := range h.checkers {
		if check == nil {
			continue
		}
		if err := check(ctx); err != nil {
			checks[name] = "unavailable"
			healthy = false
			continue
		}
		checks[name] = "ok"
	}

	status := http.StatusOK
	state := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}
	httpx.WriteJSON(w, status, map[string]any{
		"status": state,
		"checks": checks,
	})
}
