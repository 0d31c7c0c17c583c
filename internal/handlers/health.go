package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	pkghttp "github.com/BradenHooton/authguard/pkg/http"
)

// HealthCheckFunc reports whether a dependency is reachable
type HealthCheckFunc func(ctx context.Context) error

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
	Detail string `json:"detail"`
}

// HealthHandler reports lockout store health
type HealthHandler struct {
	storeName string
	check     HealthCheckFunc
	timeout   time.Duration
	logger    *slog.Logger
}

// NewHealthHandler creates a health handler for the named store
func NewHealthHandler(storeName string, check HealthCheckFunc, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		storeName: storeName,
		check:     check,
		timeout:   2 * time.Second,
		logger:    logger,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.check(ctx); err != nil {
		h.logger.Warn("health check failed", slog.String("store", h.storeName), slog.Any("error", err))
		pkghttp.WriteJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy", Store: h.storeName, Detail: "down"})
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Store: h.storeName, Detail: "up"})
}
