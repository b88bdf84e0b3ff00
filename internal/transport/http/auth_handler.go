package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	apierrors "github.com/bitlifehost4tvegesdgames/flux-keyauth/internal/errors"
	"github.com/bitlifehost4tvegesdgames/flux-keyauth/internal/middleware"
	"github.com/bitlifehost4tvegesdgames/flux-keyauth/internal/security"
)

// AuthHandler serves admin login and logout.
type AuthHandler struct {
	sessions   *security.SessionManager
	sessionTTL time.Duration
	logger     *slog.Logger
}

// NewAuthHandler creates the auth handler.
func NewAuthHandler(sessions *security.SessionManager, sessionTTL time.Duration, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		sessions:   sessions,
		sessionTTL: sessionTTL,
		logger:     logger.With(slog.String("handler", "auth")),
	}
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Bind implements render.Binder.
func (req *loginRequest) Bind(r *http.Request) error {
	return validate.Struct(req)
}

// Login handles POST /api/login. A successful login sets the session
// cookie; failures return 401 without distinguishing bad usernames from
// bad passwords.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req := &loginRequest{}
	if err := render.Bind(r, req); err != nil {
		render.Render(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	token, err := h.sessions.Login(req.Username, req.Password)
	if err != nil {
		h.logger.WarnContext(ctx, "login rejected",
			slog.String("remote_addr", r.RemoteAddr))
		render.Render(w, r, apierrors.ErrInvalidCredentials)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.sessionTTL.Seconds()),
	})

	h.logger.InfoContext(ctx, "admin logged in")
	render.JSON(w, r, map[string]bool{"ok": true})
}

// Logout handles POST /api/logout. Always succeeds.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := middleware.SessionToken(r); token != "" {
		h.sessions.Logout(token)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})

	render.JSON(w, r, map[string]bool{"ok": true})
}
