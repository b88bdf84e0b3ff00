package middleware

import (
	"log/slog"
	"net/http"

	"github.com/bitlifehost4tvegesdgames/flux-keyauth/internal/security"
)

// SessionCookieName is the cookie carrying the admin session token.
const SessionCookieName = "flux_session"

// AdminAuth gates admin routes behind the injected authenticator. Requests
// without a live session get 401; the core never learns how credentials
// are configured.
func AdminAuth(auth security.Authenticator, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !auth.IsAuthenticated(SessionToken(r)) {
				logger.WarnContext(r.Context(), "unauthenticated admin request",
					"method", r.Method,
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
				)

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"ok":false,"error":"unauthorized"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SessionToken extracts the session token from the request cookie, or ""
// when absent.
func SessionToken(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}
