package handler

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/healthvault-api/internal/application/auth"
	"github.com/healthvault-api/internal/application/registration"
	"github.com/healthvault-api/internal/domain"
	jwtinfra "github.com/healthvault-api/internal/infrastructure/jwt"
	"github.com/healthvault-api/internal/pkg/clock"
	"github.com/healthvault-api/internal/transport/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockRegistrationSvc struct{ mock.Mock }

func (m *mockRegistrationSvc) SubmitContact(ctx context.Context, req registration.SubmitContactRequest) (*registration.OtpSent, error) {
	args := m.Called(ctx, req)
	if s, _ := args.Get(0).(*registration.OtpSent); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRegistrationSvc) ResendOtp(ctx context.Context, req registration.ResendOtpRequest) (*registration.OtpSent, error) {
	args := m.Called(ctx, req)
	if s, _ := args.Get(0).(*registration.OtpSent); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRegistrationSvc) VerifyOtp(ctx context.Context, req registration.VerifyOtpRequest) (*registration.VerifyOtpResponse, error) {
	args := m.Called(ctx, req)
	if s, _ := args.Get(0).(*registration.VerifyOtpResponse); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRegistrationSvc) SetPassword(ctx context.Context, token string, req registration.SetPasswordRequest) error {
	return m.Called(ctx, token, req).Error(0)
}

func (m *mockRegistrationSvc) CompleteProfile(ctx context.Context, token string, req registration.CompleteProfileRequest) error {
	return m.Called(ctx, token, req).Error(0)
}

func (m *mockRegistrationSvc) Status(ctx context.Context, userID string) (*registration.StatusResponse, error) {
	args := m.Called(ctx, userID)
	if s, _ := args.Get(0).(*registration.StatusResponse); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockAuthSvc struct{ mock.Mock }

func (m *mockAuthSvc) RequestPasswordReset(ctx context.Context, req auth.PasswordResetRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockAuthSvc) ResetPassword(ctx context.Context, req auth.ResetPasswordRequest) error {
	return m.Called(ctx, req).Error(0)
}

// --- helpers ---

func newTestJWTProvider(t *testing.T) *jwtinfra.Provider {
	t.Helper()
	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return jwtinfra.NewProviderFromKeys(privKey, &privKey.PublicKey, time.Hour, clock.System{})
}

func postJSON(t *testing.T, target string, v interface{}) *http.Request {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	r := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorEnvelope {
	t.Helper()
	var env ErrorEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&env))
	return env
}

// --- error mapping ---

func TestHTTPError_KindToStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
		kind   domain.Kind
	}{
		{domain.ErrValidation, http.StatusUnprocessableEntity, domain.KindValidation},
		{domain.ErrOtpNotFound, http.StatusBadRequest, domain.KindInvalidOrExpiredOtp},
		{domain.ErrInvalidOtp, http.StatusBadRequest, domain.KindInvalidOtp},
		{domain.ErrUnauthorized, http.StatusUnauthorized, domain.KindUnauthorized},
		{domain.ErrForbidden, http.StatusForbidden, domain.KindForbidden},
		{domain.ErrPasswordMismatch, http.StatusUnprocessableEntity, domain.KindPasswordMismatch},
		{domain.ErrWeakPassword, http.StatusUnprocessableEntity, domain.KindWeakPassword},
		{domain.ErrStepOutOfOrder, http.StatusConflict, domain.KindStepOutOfOrder},
		{domain.ErrTooManyRequests, http.StatusTooManyRequests, domain.KindTooManyRequests},
		{domain.ErrDeliveryUnavailable, http.StatusServiceUnavailable, domain.KindDeliveryUnavailable},
		{domain.Unavailable("get user", errors.New("dial tcp: timeout")), http.StatusServiceUnavailable, domain.KindServiceUnavailable},
		{domain.ErrNotFound, http.StatusNotFound, domain.KindNotFound},
		{errors.New("boom"), http.StatusInternalServerError, domain.KindInternal},
	}
	for _, tt := range tests {
		rr := httptest.NewRecorder()
		httpError(rr, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
		assert.Equal(t, tt.status, rr.Code, tt.kind)
		assert.Equal(t, tt.kind, decodeError(t, rr).Kind)
	}
}

func TestHTTPError_HidesCause(t *testing.T) {
	rr := httptest.NewRecorder()
	httpError(rr, httptest.NewRequest(http.MethodGet, "/", nil), domain.Unavailable("get user", errors.New("dynamodb: secret-table throttled")))
	assert.NotContains(t, rr.Body.String(), "secret-table")
}

func TestHTTPError_Fields(t *testing.T) {
	rr := httptest.NewRecorder()
	fe := domain.NewFieldError(domain.ErrValidation, "gender", "is required")
	httpError(rr, httptest.NewRequest(http.MethodGet, "/", nil), fe)
	env := decodeError(t, rr)
	assert.Equal(t, map[string][]string{"gender": {"is required"}}, env.Fields)
}

// --- registration ---

func TestSubmitContact_InvalidBody(t *testing.T) {
	svc := &mockRegistrationSvc{}
	h := NewRegistrationHandler(svc)
	r := httptest.NewRequest(http.MethodPost, "/v1/registration/submit-contact", bytes.NewBufferString("not-json"))
	rr := httptest.NewRecorder()
	h.SubmitContact(rr, r)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	svc.AssertNotCalled(t, "SubmitContact", mock.Anything, mock.Anything)
}

func TestSubmitContact_HappyPath(t *testing.T) {
	svc := &mockRegistrationSvc{}
	exp := time.Date(2026, 3, 1, 12, 10, 0, 0, time.UTC)
	svc.On("SubmitContact", mock.Anything, registration.SubmitContactRequest{Contact: "a@example.com"}).
		Return(&registration.OtpSent{RegistrationID: "r1", ContactType: domain.MethodEmail, ExpiresAt: exp}, nil)
	h := NewRegistrationHandler(svc)

	rr := httptest.NewRecorder()
	h.SubmitContact(rr, postJSON(t, "/v1/registration/submit-contact", map[string]string{"contact": "a@example.com"}))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"registrationId":"r1","contactType":"email","expiresAt":"2026-03-01T12:10:00Z"}`, rr.Body.String())
	svc.AssertExpectations(t)
}

func TestSubmitContact_Throttled(t *testing.T) {
	svc := &mockRegistrationSvc{}
	svc.On("SubmitContact", mock.Anything, mock.Anything).Return(nil, domain.ErrTooManyRequests)
	h := NewRegistrationHandler(svc)

	rr := httptest.NewRecorder()
	h.SubmitContact(rr, postJSON(t, "/v1/registration/submit-contact", map[string]string{"contact": "a@example.com"}))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
}

func TestVerifyOtp_InvalidCode(t *testing.T) {
	svc := &mockRegistrationSvc{}
	svc.On("VerifyOtp", mock.Anything, mock.Anything).Return(nil, domain.ErrOtpNotFound)
	h := NewRegistrationHandler(svc)

	rr := httptest.NewRecorder()
	h.VerifyOtp(rr, postJSON(t, "/v1/registration/verify-otp", map[string]string{"contact": "a@example.com", "otp": "123456"}))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, domain.KindInvalidOrExpiredOtp, decodeError(t, rr).Kind)
}

func TestVerifyOtp_HappyPath(t *testing.T) {
	svc := &mockRegistrationSvc{}
	svc.On("VerifyOtp", mock.Anything, registration.VerifyOtpRequest{Contact: "a@example.com", Otp: "123456"}).
		Return(&registration.VerifyOtpResponse{Token: "tok", UserID: "u1", ContactType: domain.MethodEmail, RequiresProfileCompletion: true}, nil)
	h := NewRegistrationHandler(svc)

	rr := httptest.NewRecorder()
	h.VerifyOtp(rr, postJSON(t, "/v1/registration/verify-otp", map[string]string{"contact": "a@example.com", "otp": "123456"}))
	require.Equal(t, http.StatusOK, rr.Code)
	var resp registration.VerifyOtpResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "tok", resp.Token)
	assert.True(t, resp.RequiresProfileCompletion)
}

func TestSetPassword_PassesBearerToken(t *testing.T) {
	svc := &mockRegistrationSvc{}
	req := registration.SetPasswordRequest{Password: "S3cure!pw", ConfirmPassword: "S3cure!pw"}
	svc.On("SetPassword", mock.Anything, "tok-123", req).Return(nil)
	h := NewRegistrationHandler(svc)

	r := postJSON(t, "/v1/registration/set-password", req)
	r.Header.Set("Authorization", "Bearer tok-123")
	rr := httptest.NewRecorder()
	h.SetPassword(rr, r)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"ok":true}`, rr.Body.String())
	svc.AssertExpectations(t)
}

func TestSetPassword_WeakPassword(t *testing.T) {
	svc := &mockRegistrationSvc{}
	fe := domain.NewFieldError(domain.ErrWeakPassword, "password", "at least 8 characters")
	svc.On("SetPassword", mock.Anything, "", mock.Anything).Return(fe)
	h := NewRegistrationHandler(svc)

	rr := httptest.NewRecorder()
	h.SetPassword(rr, postJSON(t, "/v1/registration/set-password", map[string]string{"password": "abc", "confirmPassword": "abc"}))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	env := decodeError(t, rr)
	assert.Equal(t, domain.KindWeakPassword, env.Kind)
	assert.Contains(t, env.Fields, "password")
}

func TestCompleteProfile_StepOutOfOrder(t *testing.T) {
	svc := &mockRegistrationSvc{}
	svc.On("CompleteProfile", mock.Anything, "tok", mock.Anything).Return(domain.ErrStepOutOfOrder)
	h := NewRegistrationHandler(svc)

	r := postJSON(t, "/v1/registration/complete-profile", map[string]interface{}{"firstName": "Ana"})
	r.Header.Set("Authorization", "Bearer tok")
	rr := httptest.NewRecorder()
	h.CompleteProfile(rr, r)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestStatus_MissingClaims(t *testing.T) {
	svc := &mockRegistrationSvc{}
	h := NewRegistrationHandler(svc)
	rr := httptest.NewRecorder()
	h.Status(rr, httptest.NewRequest(http.MethodGet, "/v1/registration/status", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestStatus_WithAuth(t *testing.T) {
	p := newTestJWTProvider(t)
	tok, err := p.Issue("u1", "a@example.com", "")
	require.NoError(t, err)

	svc := &mockRegistrationSvc{}
	svc.On("Status", mock.Anything, "u1").Return(&registration.StatusResponse{UserID: "u1", Step: domain.StepProfileRequired}, nil)
	h := NewRegistrationHandler(svc)

	r := httptest.NewRequest(http.MethodGet, "/v1/registration/status", nil)
	r.Header.Set("Authorization", "Bearer "+tok.Value)
	rr := httptest.NewRecorder()
	middleware.Auth(p)(http.HandlerFunc(h.Status)).ServeHTTP(rr, r)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"userId":"u1","step":"PROFILE_REQUIRED"}`, rr.Body.String())
}

func TestPasswordPolicy(t *testing.T) {
	h := NewRegistrationHandler(&mockRegistrationSvc{})
	rr := httptest.NewRecorder()
	h.PasswordPolicy(rr, httptest.NewRequest(http.MethodGet, "/v1/registration/password-policy", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"id":"min_length"`)
}

// --- password reset ---

func TestPasswordReset_Request(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("RequestPasswordReset", mock.Anything, auth.PasswordResetRequest{Contact: "a@example.com"}).Return(nil)
	h := NewPasswordResetHandler(svc)

	rr := httptest.NewRecorder()
	h.Request(rr, postJSON(t, "/v1/password-reset/request", map[string]string{"contact": "a@example.com"}))
	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestPasswordReset_ConfirmMismatch(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("ResetPassword", mock.Anything, mock.Anything).Return(domain.NewFieldError(domain.ErrPasswordMismatch, "confirmPassword", "must match password"))
	h := NewPasswordResetHandler(svc)

	rr := httptest.NewRecorder()
	h.Confirm(rr, postJSON(t, "/v1/password-reset/confirm", map[string]string{"contact": "a@example.com", "otp": "123456", "password": "a", "confirmPassword": "b"}))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, domain.KindPasswordMismatch, decodeError(t, rr).Kind)
}

// --- health ---

func TestPing(t *testing.T) {
	h := NewHealthHandler()
	r := chi.NewRouter()
	r.Get("/v1/health-check/{action}", h.Ping)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health-check/ping", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"pong"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health-check/other", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
