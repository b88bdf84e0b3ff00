package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "github.com/bitlifehost4tvegesdgames/flux-keyauth/internal/errors"
	"github.com/bitlifehost4tvegesdgames/flux-keyauth/internal/services"
)

var validate = validator.New()

// LicenseHandler serves the admin license CRUD endpoints.
type LicenseHandler struct {
	service services.LicenseService
	logger  *slog.Logger
}

// NewLicenseHandler creates the admin license handler.
func NewLicenseHandler(service services.LicenseService, logger *slog.Logger) *LicenseHandler {
	return &LicenseHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "license")),
	}
}

// Routes returns the chi router for /api/licenses. The caller mounts it
// behind the admin auth middleware.
func (h *LicenseHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Post("/{id}/revoke", h.Revoke)
	r.Delete("/{id}", h.Delete)
	return r
}

// createLicenseRequest is the admin create payload. Days and
// MaxActivations are strings on the wire: the surface contract coerces
// junk input to defaults rather than rejecting it.
type createLicenseRequest struct {
	Days           string `json:"days"`
	MaxActivations string `json:"max_activations"`
	Notes          string `json:"notes" validate:"max=2048"`
}

// Bind implements render.Binder.
func (req *createLicenseRequest) Bind(r *http.Request) error {
	return validate.Struct(req)
}

// createLicenseResponse mirrors the original create contract: the caller
// gets back only the generated key.
type createLicenseResponse struct {
	OK  bool   `json:"ok"`
	Key string `json:"key"`
}

// Create handles POST /api/licenses.
func (h *LicenseHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req := &createLicenseRequest{}
	if err := render.Bind(r, req); err != nil {
		render.Render(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	lic, err := h.service.Create(ctx, req.Days, req.MaxActivations, req.Notes)
	if err != nil {
		h.logger.ErrorContext(ctx, "license creation failed", slog.String("error", err.Error()))
		render.Render(w, r, apierrors.ErrInternalServer)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, createLicenseResponse{OK: true, Key: lic.Key})
}

// List handles GET /api/licenses.
func (h *LicenseHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	entries, err := h.service.List(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "license listing failed", slog.String("error", err.Error()))
		render.Render(w, r, apierrors.ErrInternalServer)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"ok":    true,
		"items": entries,
	})
}

// Revoke handles POST /api/licenses/{id}/revoke.
func (h *LicenseHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if err := h.service.Revoke(ctx, id); err != nil {
		if errors.Is(err, apierrors.ErrLicenseNotFound) {
			render.Render(w, r, apierrors.NotFoundError("license"))
			return
		}
		h.logger.ErrorContext(ctx, "license revocation failed",
			slog.String("license_id", id), slog.String("error", err.Error()))
		render.Render(w, r, apierrors.ErrInternalServer)
		return
	}

	render.JSON(w, r, map[string]bool{"ok": true})
}

// Delete handles DELETE /api/licenses/{id}.
func (h *LicenseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if err := h.service.Delete(ctx, id); err != nil {
		if errors.Is(err, apierrors.ErrLicenseNotFound) {
			render.Render(w, r, apierrors.NotFoundError("license"))
			return
		}
		h.logger.ErrorContext(ctx, "license deletion failed",
			slog.String("license_id", id), slog.String("error", err.Error()))
		render.Render(w, r, apierrors.ErrInternalServer)
		return
	}

	render.JSON(w, r, map[string]bool{"ok": true})
}
