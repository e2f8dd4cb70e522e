package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

const healthTimeout = 5 * time.Second

// HealthChecker is anything that can report its own reachability.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports on the database and, if configured, Redis.
type HealthHandler struct {
	db     HealthChecker
	cache  HealthChecker
	logger *slog.Logger
}

// NewHealthHandler accepts a nil cache when Redis is not configured.
func NewHealthHandler(db, cache HealthChecker, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{db: db, cache: cache, logger: logger}
}

// HealthResponse is the data of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// HandleHealth pings every dependency and answers 503 if any ping fails.
// Failure detail goes to the log only.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	checks := make(map[string]string, 2)
	healthy := h.check(ctx, checks, "database", h.db)
	healthy = h.check(ctx, checks, "redis", h.cache) && healthy

	resp := HealthResponse{Status: "ok", Checks: checks}
	status := http.StatusOK
	if !healthy {
		resp.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, successEnvelope{Success: healthy, Data: resp, Timestamp: timestamp()})
}

func (h *HealthHandler) check(ctx context.Context, checks map[string]string, name string, c HealthChecker) bool {
	if c == nil {
		checks[name] = "not configured"
		return true
	}
	if err := c.Ping(ctx); err != nil {
		h.logger.Warn("health check failed", slog.String("dependency", name), slog.String("error", err.Error()))
		checks[name] = "unavailable"
		return false
	}
	checks[name] = "ok"
	return true
}
