package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/bitlifehost4tvegesdgames/flux-keyauth/internal/services"
)

// HealthHandler serves the liveness endpoint.
type HealthHandler struct {
	service *services.HealthService
	logger  *slog.Logger
}

// NewHealthHandler creates the health handler.
func NewHealthHandler(service *services.HealthService, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "health")),
	}
}

// Health handles GET /api/health. A degraded store yields 503 so load
// balancers stop routing validation traffic at a dead database.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := h.service.Check(r.Context())

	if status.Status != "healthy" {
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, status)
}
