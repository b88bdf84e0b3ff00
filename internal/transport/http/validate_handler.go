package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/render"

	"github.com/bitlifehost4tvegesdgames/flux-keyauth/internal/license"
	"github.com/bitlifehost4tvegesdgames/flux-keyauth/internal/websocket"
)

// ValidationService is the engine capability the handler depends on.
type ValidationService interface {
	Validate(ctx context.Context, key, machineID string, now time.Time) (*license.Verdict, error)
}

// ValidateHandler serves the public, unauthenticated validation endpoint.
type ValidateHandler struct {
	engine ValidationService
	hub    *websocket.Hub
	logger *slog.Logger
}

// NewValidateHandler creates the validation handler. The hub may be nil.
func NewValidateHandler(engine ValidationService, hub *websocket.Hub, logger *slog.Logger) *ValidateHandler {
	return &ValidateHandler{
		engine: engine,
		hub:    hub,
		logger: logger.With(slog.String("handler", "validate")),
	}
}

// validateRequest is the public request payload, accepted as JSON or form
// fields.
type validateRequest struct {
	Key       string `json:"key"`
	MachineID string `json:"machine_id"`
}

// validateResponse is the verdict wire format.
type validateResponse struct {
	Valid                bool   `json:"valid"`
	Reason               string `json:"reason,omitempty"`
	Key                  string `json:"key,omitempty"`
	ExpiresAt            string `json:"expires_at,omitempty"`
	RemainingActivations *int   `json:"remaining_activations,omitempty"`
	Notes                string `json:"notes,omitempty"`
}

// Validate handles POST /api/validate.
func (h *ValidateHandler) Validate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := decodeValidateRequest(r)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, validateResponse{Valid: false, Reason: "malformed_request"})
		return
	}

	verdict, err := h.engine.Validate(ctx, req.Key, req.MachineID, time.Now().UTC())
	if err != nil {
		// Storage fault: never presented as a policy verdict.
		h.logger.ErrorContext(ctx, "validation aborted by storage fault",
			slog.String("error", err.Error()))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, validateResponse{Valid: false, Reason: "internal_error"})
		return
	}

	if !verdict.Valid {
		render.Status(r, statusForReason(verdict.Reason))
		render.JSON(w, r, validateResponse{Valid: false, Reason: string(verdict.Reason)})
		return
	}

	if h.hub != nil {
		h.hub.Emit(websocket.EventMachineActivated, map[string]interface{}{
			"key":                   verdict.Key,
			"remaining_activations": verdict.RemainingActivations,
		})
	}

	remaining := verdict.RemainingActivations
	render.Status(r, http.StatusOK)
	render.JSON(w, r, validateResponse{
		Valid:                true,
		Key:                  verdict.Key,
		ExpiresAt:            verdict.ExpiresAt,
		RemainingActivations: &remaining,
		Notes:                verdict.Notes,
	})
}

// decodeValidateRequest accepts either a JSON body or form fields, the way
// license client libraries in the wild send them.
func decodeValidateRequest(r *http.Request) (*validateRequest, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") {
		var req validateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, err
		}
		return &req, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	return &validateRequest{
		Key:       r.FormValue("key"),
		MachineID: r.FormValue("machine_id"),
	}, nil
}

func statusForReason(reason license.Reason) int {
	switch reason {
	case license.ReasonMissingKey, license.ReasonMissingMachineID:
		return http.StatusBadRequest
	case license.ReasonNotFound:
		return http.StatusNotFound
	case license.ReasonRevoked, license.ReasonExpired, license.ReasonActivationLimit:
		return http.StatusForbidden
	default:
		return http.StatusForbidden
	}
}
