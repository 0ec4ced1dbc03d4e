package handler

import (
	"net/http"

	"github.com/healthvault-api/internal/application/registration"
	"github.com/healthvault-api/internal/domain"
	"github.com/healthvault-api/internal/pkg/password"
	"github.com/healthvault-api/internal/transport/http/middleware"
)

// RegistrationHandler serves the progressive registration steps.
type RegistrationHandler struct {
	svc registration.Service
}

func NewRegistrationHandler(svc registration.Service) *RegistrationHandler {
	return &RegistrationHandler{svc: svc}
}

func (h *RegistrationHandler) SubmitContact(w http.ResponseWriter, r *http.Request) {
	var req registration.SubmitContactRequest
	if !decode(w, r, &req) {
		return
	}
	sent, err := h.svc.SubmitContact(r.Context(), req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sent)
}

func (h *RegistrationHandler) ResendOtp(w http.ResponseWriter, r *http.Request) {
	var req registration.ResendOtpRequest
	if !decode(w, r, &req) {
		return
	}
	sent, err := h.svc.ResendOtp(r.Context(), req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sent)
}

func (h *RegistrationHandler) VerifyOtp(w http.ResponseWriter, r *http.Request) {
	var req registration.VerifyOtpRequest
	if !decode(w, r, &req) {
		return
	}
	resp, err := h.svc.VerifyOtp(r.Context(), req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// SetPassword and CompleteProfile pass the raw bearer token through; the
// service verifies it before touching any state.
func (h *RegistrationHandler) SetPassword(w http.ResponseWriter, r *http.Request) {
	var req registration.SetPasswordRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.SetPassword(r.Context(), middleware.BearerToken(r), req); err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, OkEnvelope{Ok: true})
}

func (h *RegistrationHandler) CompleteProfile(w http.ResponseWriter, r *http.Request) {
	var req registration.CompleteProfileRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.CompleteProfile(r.Context(), middleware.BearerToken(r), req); err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, OkEnvelope{Ok: true})
}

// Status expects middleware.Auth to have run.
func (h *RegistrationHandler) Status(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		httpError(w, r, domain.ErrUnauthorized)
		return
	}
	st, err := h.svc.Status(r.Context(), claims.UserID())
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *RegistrationHandler) PasswordPolicy(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, PolicyEnvelope{Rules: password.Requirements()})
}
