package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitlifehost4tvegesdgames/flux-keyauth/internal/middleware"
	"github.com/bitlifehost4tvegesdgames/flux-keyauth/internal/security"
	"github.com/bitlifehost4tvegesdgames/flux-keyauth/internal/shared/testutil"
)

func newAuthFixture(t *testing.T) (*AuthHandler, *security.SessionManager) {
	t.Helper()
	checker, err := security.NewCredentialChecker("admin", "s3cret")
	require.NoError(t, err)
	sessions := security.NewSessionManager(checker, time.Hour)
	return NewAuthHandler(sessions, time.Hour, testutil.NewTestLogger(t)), sessions
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			return c
		}
	}
	return nil
}

func TestLogin_Success(t *testing.T) {
	handler, sessions := newAuthFixture(t)

	rec := postJSON(t, handler.Login, "/api/login", `{"username":"admin","password":"s3cret"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["ok"])

	cookie := sessionCookie(rec)
	require.NotNil(t, cookie, "login must set the session cookie")
	assert.True(t, cookie.HttpOnly)
	assert.NotEmpty(t, cookie.Value)
	assert.True(t, sessions.IsAuthenticated(cookie.Value))
}

func TestLogin_BadCredentials(t *testing.T) {
	handler, _ := newAuthFixture(t)

	rec := postJSON(t, handler.Login, "/api/login", `{"username":"admin","password":"wrong"}`)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, sessionCookie(rec))
}

func TestLogin_MissingFields(t *testing.T) {
	handler, _ := newAuthFixture(t)

	rec := postJSON(t, handler.Login, "/api/login", `{"username":"admin"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogout_InvalidatesSession(t *testing.T) {
	handler, sessions := newAuthFixture(t)

	loginRec := postJSON(t, handler.Login, "/api/login", `{"username":"admin","password":"s3cret"}`)
	cookie := sessionCookie(loginRec)
	require.NotNil(t, cookie)

	req := httptest.NewRequest(http.MethodPost, "/api/logout", strings.NewReader(""))
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	handler.Logout(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, sessions.IsAuthenticated(cookie.Value))

	cleared := sessionCookie(rec)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.Negative(t, cleared.MaxAge)
}

func TestLogout_WithoutSessionStillSucceeds(t *testing.T) {
	handler, _ := newAuthFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/logout", strings.NewReader(""))
	rec := httptest.NewRecorder()
	handler.Logout(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}
