package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitlifehost4tvegesdgames/flux-keyauth/internal/infrastructure"
	"github.com/bitlifehost4tvegesdgames/flux-keyauth/internal/middleware"
	"github.com/bitlifehost4tvegesdgames/flux-keyauth/internal/shared/testutil"
)

// stubAuth is a fixed-answer security.Authenticator.
type stubAuth struct {
	allow bool
	token string
}

func (s *stubAuth) IsAuthenticated(token string) bool {
	s.token = token
	return s.allow
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequestID_GeneratesAndPropagates(t *testing.T) {
	var captured string
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = middleware.GetReqID(r.Context())
		assert.Equal(t, captured, infrastructure.GetTraceID(r.Context()))
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.NotEmpty(t, captured)
	assert.Equal(t, captured, rec.Header().Get("X-Request-ID"))
}

func TestRequestID_HonorsIncomingHeader(t *testing.T) {
	var captured string
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = middleware.GetReqID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "upstream-id")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "upstream-id", captured)
	assert.Equal(t, "upstream-id", rec.Header().Get("X-Request-ID"))
}

func TestRecoverer(t *testing.T) {
	handler := middleware.Recoverer(testutil.NewTestLogger(t))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))

	req := httptest.NewRequest(http.MethodPost, "/api/validate", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"valid":false,"reason":"internal_error"}`, rec.Body.String())
}

func TestRateLimiter(t *testing.T) {
	// 1 rps with burst 2: the first two requests pass, the third is shed.
	rl := middleware.NewRateLimiter(1, 2, testutil.NewTestLogger(t))
	handler := rl.Handler(okHandler())

	codes := make([]int, 3)
	for i := range codes {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/validate", nil))
		codes[i] = rec.Code
	}

	assert.Equal(t, http.StatusOK, codes[0])
	assert.Equal(t, http.StatusOK, codes[1])
	assert.Equal(t, http.StatusTooManyRequests, codes[2])
}

func TestRateLimiter_ResponseShape(t *testing.T) {
	rl := middleware.NewRateLimiter(1, 1, testutil.NewTestLogger(t))
	handler := rl.Handler(okHandler())

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"valid":false,"reason":"rate_limited"}`, rec.Body.String())
}

func TestAdminAuth_RejectsMissingSession(t *testing.T) {
	auth := &stubAuth{allow: false}
	handler := middleware.AdminAuth(auth, testutil.NewTestLogger(t))(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/licenses", nil))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"ok":false,"error":"unauthorized"}`, rec.Body.String())
	assert.Empty(t, auth.token)
}

func TestAdminAuth_PassesLiveSession(t *testing.T) {
	auth := &stubAuth{allow: true}
	handler := middleware.AdminAuth(auth, testutil.NewTestLogger(t))(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/licenses", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "tok-1"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tok-1", auth.token)
}
