package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bitlifehost4tvegesdgames/flux-keyauth/internal/license"
	"github.com/bitlifehost4tvegesdgames/flux-keyauth/internal/shared/testutil"
)

type mockValidationService struct {
	mock.Mock
}

func (m *mockValidationService) Validate(ctx context.Context, key, machineID string, now time.Time) (*license.Verdict, error) {
	args := m.Called(ctx, key, machineID, now)
	if v := args.Get(0); v != nil {
		return v.(*license.Verdict), args.Error(1)
	}
	return nil, args.Error(1)
}

func newValidateHandler(t *testing.T, engine ValidationService) *ValidateHandler {
	t.Helper()
	return NewValidateHandler(engine, nil, testutil.NewTestLogger(t))
}

func postJSON(t *testing.T, handler http.HandlerFunc, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestValidate_SuccessJSON(t *testing.T) {
	engine := &mockValidationService{}
	engine.On("Validate", mock.Anything, "FLUX-AAAAA-BBBBB-CCCCC-DDDDD", "m1", mock.AnythingOfType("time.Time")).
		Return(&license.Verdict{
			Valid:                true,
			Key:                  "FLUX-AAAAA-BBBBB-CCCCC-DDDDD",
			ExpiresAt:            "2030-01-01T00:00:00Z",
			RemainingActivations: 2,
			Notes:                "team license",
		}, nil)

	rec := postJSON(t, newValidateHandler(t, engine).Validate, "/api/validate",
		`{"key":"FLUX-AAAAA-BBBBB-CCCCC-DDDDD","machine_id":"m1"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["valid"])
	assert.Equal(t, "FLUX-AAAAA-BBBBB-CCCCC-DDDDD", body["key"])
	assert.Equal(t, "2030-01-01T00:00:00Z", body["expires_at"])
	assert.Equal(t, float64(2), body["remaining_activations"])
	assert.Equal(t, "team license", body["notes"])
	engine.AssertExpectations(t)
}

func TestValidate_SuccessForm(t *testing.T) {
	engine := &mockValidationService{}
	engine.On("Validate", mock.Anything, "FLUX-AAAAA-BBBBB-CCCCC-DDDDD", "m1", mock.AnythingOfType("time.Time")).
		Return(&license.Verdict{Valid: true, Key: "FLUX-AAAAA-BBBBB-CCCCC-DDDDD"}, nil)

	form := url.Values{"key": {"FLUX-AAAAA-BBBBB-CCCCC-DDDDD"}, "machine_id": {"m1"}}
	req := httptest.NewRequest(http.MethodPost, "/api/validate", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	newValidateHandler(t, engine).Validate(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["valid"])
	engine.AssertExpectations(t)
}

func TestValidate_ZeroRemainingIsSerialized(t *testing.T) {
	engine := &mockValidationService{}
	engine.On("Validate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&license.Verdict{Valid: true, Key: "FLUX-AAAAA-BBBBB-CCCCC-DDDDD"}, nil)

	rec := postJSON(t, newValidateHandler(t, engine).Validate, "/api/validate",
		`{"key":"FLUX-AAAAA-BBBBB-CCCCC-DDDDD","machine_id":"m1"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	remaining, present := body["remaining_activations"]
	require.True(t, present, "remaining_activations must be present even at zero")
	assert.Equal(t, float64(0), remaining)
}

func TestValidate_VerdictStatusMapping(t *testing.T) {
	tests := []struct {
		reason license.Reason
		status int
	}{
		{license.ReasonMissingKey, http.StatusBadRequest},
		{license.ReasonMissingMachineID, http.StatusBadRequest},
		{license.ReasonNotFound, http.StatusNotFound},
		{license.ReasonRevoked, http.StatusForbidden},
		{license.ReasonExpired, http.StatusForbidden},
		{license.ReasonActivationLimit, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			engine := &mockValidationService{}
			engine.On("Validate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
				Return(&license.Verdict{Valid: false, Reason: tt.reason}, nil)

			rec := postJSON(t, newValidateHandler(t, engine).Validate, "/api/validate",
				`{"key":"x","machine_id":"y"}`)

			require.Equal(t, tt.status, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, false, body["valid"])
			assert.Equal(t, string(tt.reason), body["reason"])
		})
	}
}

func TestValidate_StorageFaultIs500(t *testing.T) {
	engine := &mockValidationService{}
	engine.On("Validate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, assert.AnError)

	rec := postJSON(t, newValidateHandler(t, engine).Validate, "/api/validate",
		`{"key":"FLUX-AAAAA-BBBBB-CCCCC-DDDDD","machine_id":"m1"}`)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["valid"])
	assert.Equal(t, "internal_error", body["reason"])
}

func TestValidate_MalformedJSON(t *testing.T) {
	engine := &mockValidationService{}

	rec := postJSON(t, newValidateHandler(t, engine).Validate, "/api/validate", `{not json`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "malformed_request", decodeBody(t, rec)["reason"])
	engine.AssertNotCalled(t, "Validate")
}
