package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

const readinessTimeout = 5 * time.Second

// HealthChecker defines an interface for checking service health.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// HealthHandler manages health check endpoints.
type HealthHandler struct {
	db     HealthChecker
	cache  HealthChecker
	logger *slog.Logger
}

// NewHealthHandler creates a new HealthHandler.
// Pass nil for db or cache if they are not configured.
func NewHealthHandler(db, cache HealthChecker, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{
		db:     db,
		cache:  cache,
		logger: logger,
	}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Healthz is a liveness probe endpoint. No dependency checks.
//
// GET /healthz
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Readyz is a readiness probe endpoint.
// Dependencies are pinged concurrently; 200 only if all are healthy.
// Failure detail goes to the log, not the response.
//
// GET /readyz
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	names := []string{"postgres", "redis"}
	checkers := []HealthChecker{h.db, h.cache}
	results := make([]string, len(names))

	var g errgroup.Group
	for i, checker := range checkers {
		i, checker := i, checker
		if checker == nil {
			results[i] = "not configured"
			continue
		}
		g.Go(func() error {
			if err := checker.Ping(ctx); err != nil {
				h.logger.Warn("readiness check failed",
					slog.String("dependency", names[i]),
					slog.String("error", err.Error()),
				)
				results[i] = "error"
				return err
			}
			results[i] = "ok"
			return nil
		})
	}
	healthy := g.Wait() == nil

	checks := make(map[string]string, len(names))
	for i, name := range names {
		checks[name] = results[i]
	}

	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	writeJSON(w, code, HealthResponse{Status: status, Checks: checks})
}
