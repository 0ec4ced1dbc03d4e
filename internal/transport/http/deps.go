package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/healthvault-api/internal/domain"
	jwtinfra "github.com/healthvault-api/internal/infrastructure/jwt"
	"github.com/healthvault-api/internal/pkg/clock"
)

// UserRepository is the minimal interface the router requires from a user store.
type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByContact(ctx context.Context, c domain.Contact) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
	CompleteProfile(ctx context.Context, userID string, updates map[string]interface{}) error
}

// AttemptRepository is the minimal interface the router requires from an attempt store.
type AttemptRepository interface {
	Put(ctx context.Context, a *domain.RegistrationAttempt) error
	Get(ctx context.Context, attemptID string) (*domain.RegistrationAttempt, error)
	MarkCompleted(ctx context.Context, attemptID, contactValue string, at time.Time) error
}

// VerificationRepository is the minimal interface the router requires from an OTP store.
type VerificationRepository interface {
	Put(ctx context.Context, v *domain.OtpVerification) error
	FindLatest(ctx context.Context, contactValue string, purpose domain.OtpPurpose, now time.Time) (*domain.OtpVerification, error)
	MarkUsed(ctx context.Context, otpID string) error
}

// Notifier delivers codes and welcome messages off the request path.
type Notifier interface {
	Available(method domain.ContactMethod) bool
	SendOtp(contact domain.Contact, code string, purpose domain.OtpPurpose, expiresAt time.Time)
	SendWelcome(contact domain.Contact, name string)
}

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo         UserRepository
	AttemptRepo      AttemptRepository
	VerificationRepo VerificationRepository
	Notifier         Notifier
	JWTProvider      *jwtinfra.Provider
	Clock            clock.Clock
	Logger           *slog.Logger
}
