package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	apierrors "github.com/bitlifehost4tvegesdgames/flux-keyauth/internal/errors"
	"github.com/bitlifehost4tvegesdgames/flux-keyauth/internal/services"
)

// SettingsHandler serves the admin branding settings.
type SettingsHandler struct {
	service services.SettingsService
	logger  *slog.Logger
}

// NewSettingsHandler creates the settings handler.
func NewSettingsHandler(service services.SettingsService, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "settings")),
	}
}

type updateSettingsRequest struct {
	SiteName string `json:"site_name" validate:"max=128"`
	Accent   string `json:"accent" validate:"max=64"`
}

// Bind implements render.Binder.
func (req *updateSettingsRequest) Bind(r *http.Request) error {
	return validate.Struct(req)
}

// Get handles GET /api/settings.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	settings, err := h.service.Get(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "settings read failed", slog.String("error", err.Error()))
		render.Render(w, r, apierrors.ErrInternalServer)
		return
	}

	render.JSON(w, r, settings)
}

// Update handles PUT /api/settings.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req := &updateSettingsRequest{}
	if err := render.Bind(r, req); err != nil {
		render.Render(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	err := h.service.Update(ctx, services.Settings{
		SiteName: req.SiteName,
		Accent:   req.Accent,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "settings update failed", slog.String("error", err.Error()))
		render.Render(w, r, apierrors.ErrInternalServer)
		return
	}

	render.JSON(w, r, map[string]bool{"ok": true})
}
