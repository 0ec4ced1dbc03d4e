package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/healthvault-api/internal/domain"
)

const maxBodyBytes = 64 << 10

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message"`
}

// OkEnvelope acknowledges a step that returns no data.
type OkEnvelope struct {
	Ok bool `json:"ok"`
}

// ErrorEnvelope is the body of every error response.
type ErrorEnvelope struct {
	Error  string              `json:"error"`
	Kind   domain.Kind         `json:"kind"`
	Fields map[string][]string `json:"fields,omitempty"`
}

// PolicyEnvelope lists the password rules.
type PolicyEnvelope struct {
	Rules interface{} `json:"rules"`
}

type kindInfo struct {
	status  int
	message string
}

var kindStatus = map[domain.Kind]kindInfo{
	domain.KindValidation:          {http.StatusUnprocessableEntity, "validation failed"},
	domain.KindInvalidOrExpiredOtp: {http.StatusBadRequest, "invalid or expired code"},
	domain.KindInvalidOtp:          {http.StatusBadRequest, "invalid code"},
	domain.KindUnauthorized:        {http.StatusUnauthorized, "unauthorized"},
	domain.KindForbidden:           {http.StatusForbidden, "forbidden"},
	domain.KindPasswordMismatch:    {http.StatusUnprocessableEntity, "passwords do not match"},
	domain.KindWeakPassword:        {http.StatusUnprocessableEntity, "password does not meet requirements"},
	domain.KindStepOutOfOrder:      {http.StatusConflict, "registration step out of order"},
	domain.KindTooManyRequests:     {http.StatusTooManyRequests, "too many requests"},
	domain.KindDeliveryUnavailable: {http.StatusServiceUnavailable, "delivery channel unavailable"},
	domain.KindServiceUnavailable:  {http.StatusServiceUnavailable, "service temporarily unavailable"},
	domain.KindNotFound:            {http.StatusNotFound, "not found"},
	domain.KindConflict:            {http.StatusConflict, "conflict"},
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// httpError maps err to its status and generic message. Causes are logged,
// never sent to the client.
func httpError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	info, ok := kindStatus[kind]
	if !ok {
		info = kindInfo{http.StatusInternalServerError, "internal server error"}
	}
	if info.status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", chimiddleware.GetReqID(r.Context()),
			"kind", kind,
			"err", err,
		)
	}
	env := ErrorEnvelope{Error: info.message, Kind: kind}
	var fe *domain.FieldError
	if errors.As(err, &fe) && !fe.Empty() {
		env.Fields = fe.Fields
	}
	writeJSON(w, info.status, env)
}

// decode reads a JSON body into v, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorEnvelope{Error: "invalid request body", Kind: domain.KindValidation})
		return false
	}
	return true
}
