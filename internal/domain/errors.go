package domain

import (
	"errors"
	"sort"
	"strings"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// ErrAlreadyUsed is returned by stores when a conditional consume loses.
	ErrAlreadyUsed = errors.New("already used")

	ErrValidation          = errors.New("validation failed")
	ErrOtpNotFound         = errors.New("invalid or expired otp")
	ErrInvalidOtp          = errors.New("invalid otp")
	ErrPasswordMismatch    = errors.New("passwords do not match")
	ErrWeakPassword        = errors.New("password does not meet policy")
	ErrStepOutOfOrder      = errors.New("registration step out of order")
	ErrTooManyRequests     = errors.New("too many requests")
	ErrServiceUnavailable  = errors.New("service unavailable")
	ErrDeliveryUnavailable = errors.New("delivery channel unavailable")
)

// Kind is the machine-readable error category returned to clients.
type Kind string

const (
	KindValidation          Kind = "ValidationError"
	KindInvalidOrExpiredOtp Kind = "InvalidOrExpiredOtp"
	KindInvalidOtp          Kind = "InvalidOtp"
	KindUnauthorized        Kind = "Unauthorized"
	KindForbidden           Kind = "Forbidden"
	KindPasswordMismatch    Kind = "PasswordMismatch"
	KindWeakPassword        Kind = "WeakPassword"
	KindStepOutOfOrder      Kind = "StepOutOfOrder"
	KindTooManyRequests     Kind = "TooManyRequests"
	KindDeliveryUnavailable Kind = "EmailDeliveryUnavailable"
	KindServiceUnavailable  Kind = "ServiceUnavailable"
	KindNotFound            Kind = "NotFound"
	KindConflict            Kind = "Conflict"
	KindInternal            Kind = "InternalError"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	// Order matters: a store failure wrapped as unavailable must win over its cause.
	{ErrServiceUnavailable, KindServiceUnavailable},
	{ErrValidation, KindValidation},
	{ErrOtpNotFound, KindInvalidOrExpiredOtp},
	{ErrInvalidOtp, KindInvalidOtp},
	{ErrUnauthorized, KindUnauthorized},
	{ErrForbidden, KindForbidden},
	{ErrPasswordMismatch, KindPasswordMismatch},
	{ErrWeakPassword, KindWeakPassword},
	{ErrStepOutOfOrder, KindStepOutOfOrder},
	{ErrTooManyRequests, KindTooManyRequests},
	{ErrDeliveryUnavailable, KindDeliveryUnavailable},
	{ErrNotFound, KindNotFound},
	{ErrConflict, KindConflict},
}

// KindOf maps err to its client-facing kind. Unknown errors are KindInternal.
func KindOf(err error) Kind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// Unavailable wraps a dependency failure so it surfaces as ServiceUnavailable.
func Unavailable(op string, err error) error {
	return &wrapped{op: op, kind: ErrServiceUnavailable, cause: err}
}

type wrapped struct {
	op    string
	kind  error
	cause error
}

func (w *wrapped) Error() string   { return w.op + ": " + w.kind.Error() + ": " + w.cause.Error() }
func (w *wrapped) Unwrap() []error { return []error{w.kind, w.cause} }

// FieldError is a client error scoped to request fields.
// It unwraps to its sentinel (ErrValidation, ErrWeakPassword, ...).
type FieldError struct {
	Err    error
	Fields map[string][]string
}

func NewFieldError(sentinel error, field string, msgs ...string) *FieldError {
	return &FieldError{Err: sentinel, Fields: map[string][]string{field: msgs}}
}

// Add appends a message for field.
func (e *FieldError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string][]string{}
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

func (e *FieldError) Empty() bool { return len(e.Fields) == 0 }

func (e *FieldError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, k := range names {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], ", "))
	}
	return e.Err.Error() + " (" + strings.Join(parts, "; ") + ")"
}

func (e *FieldError) Unwrap() error { return e.Err }
