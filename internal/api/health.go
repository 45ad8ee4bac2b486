package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/asmaf9056/afatimachtbot36/internal/store"
)

// IndexStatus is the part of the knowledge index the health check reads.
type IndexStatus interface {
	Ping(ctx context.Context) error
	Count(ctx context.Context) (int, error)
	Sources(ctx context.Context) ([]store.Source, error)
}

// CompletionStatus reports the state of the completion provider.
type CompletionStatus interface {
	Enabled() bool
	Provider() string
	BreakerState() string
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	index      IndexStatus
	completion CompletionStatus
	sessions   func() int
	timeout    time.Duration
}

// NewHealthHandler creates a new health handler. sessions reports the live session count.
func NewHealthHandler(index IndexStatus, completion CompletionStatus, sessions func() int) *HealthHandler {
	return &HealthHandler{
		index:      index,
		completion: completion,
		sessions:   sessions,
		timeout:    5 * time.Second,
	}
}

// Health returns the health status of the API and its dependencies. A missing completion
// provider degrades replies to the fallback table but does not make the service unhealthy.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]interface{}{
		"status": "healthy",
		"checks": checks,
	}
	statusCode := http.StatusOK

	if err := h.index.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status["status"] = "degraded"
		checks["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
		if n, err := h.index.Count(ctx); err == nil {
			status["indexed_chunks"] = n
		}
		if sources, err := h.index.Sources(ctx); err == nil {
			status["sources"] = sources
		}
	}

	if h.completion != nil && h.completion.Enabled() {
		checks["completion"] = h.completion.BreakerState()
		status["provider"] = h.completion.Provider()
	} else {
		checks["completion"] = "disabled"
	}
	if h.sessions != nil {
		status["active_sessions"] = h.sessions()
	}

	JSON(w, statusCode, status)
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/api/health", h.Health)
}
