package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/healthvault-api/internal/application/verification"
	"github.com/healthvault-api/internal/domain"
	"github.com/healthvault-api/internal/pkg/clock"
	"github.com/healthvault-api/internal/pkg/password"
	"github.com/healthvault-api/internal/pkg/validate"
)

type PasswordResetRequest struct {
	Contact string `json:"contact" validate:"required,max=254"`
}

type ResetPasswordRequest struct {
	Contact         string `json:"contact" validate:"required,max=254"`
	Otp             string `json:"otp" validate:"required,numeric,max=12"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

type Service interface {
	RequestPasswordReset(ctx context.Context, req PasswordResetRequest) error
	ResetPassword(ctx context.Context, req ResetPasswordRequest) error
}

type userStore interface {
	GetByContact(ctx context.Context, c domain.Contact) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

type passwordHasher interface {
	Hash(pw string) (string, error)
}

type notifier interface {
	Available(method domain.ContactMethod) bool
	SendOtp(contact domain.Contact, code string, purpose domain.OtpPurpose, expiresAt time.Time)
}

type service struct {
	users     userStore
	otps      verification.Service
	passwords passwordHasher
	notifier  notifier
	clock     clock.Clock
	logger    *slog.Logger
}

func NewService(
	users userStore,
	otps verification.Service,
	passwords passwordHasher,
	n notifier,
	clk clock.Clock,
	logger *slog.Logger,
) Service {
	if passwords == nil {
		passwords = password.Hasher{}
	}
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &service{users: users, otps: otps, passwords: passwords, notifier: n, clock: clk, logger: logger}
}

// RequestPasswordReset sends a reset code when the contact has an account.
// Unknown contacts succeed silently so the response does not reveal existence.
func (s *service) RequestPasswordReset(ctx context.Context, req PasswordResetRequest) error {
	if err := validate.Struct(req); err != nil {
		return err
	}
	c, err := domain.NormalizeContact(req.Contact, "")
	if err != nil {
		return err
	}
	if !s.notifier.Available(c.Method) {
		return fmt.Errorf("%s delivery not configured: %w", c.Method, domain.ErrDeliveryUnavailable)
	}

	u, err := s.users.GetByContact(ctx, c)
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.Info("password reset for unknown contact", "method", c.Method)
		return nil
	}
	if err != nil {
		return domain.Unavailable("get user by contact", err)
	}
	if u.AccountStatus == domain.AccountSuspended {
		s.logger.Info("password reset for suspended account", "user_id", u.UserID)
		return nil
	}

	issued, err := s.otps.Issue(ctx, c, domain.PurposePasswordReset)
	if errors.Is(err, domain.ErrTooManyRequests) {
		// Throttling only known contacts would be an existence oracle.
		s.logger.Info("password reset throttled", "user_id", u.UserID)
		return nil
	}
	if err != nil {
		return err
	}
	s.notifier.SendOtp(c, issued.Code, domain.PurposePasswordReset, issued.ExpiresAt)
	return nil
}

func (s *service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	if err := validate.Struct(req); err != nil {
		return err
	}
	c, err := domain.NormalizeContact(req.Contact, "")
	if err != nil {
		return err
	}
	if req.Password != req.ConfirmPassword {
		return domain.NewFieldError(domain.ErrPasswordMismatch, "confirmPassword", "must match password")
	}
	if unmet := password.CheckPolicy(req.Password); len(unmet) > 0 {
		fe := &domain.FieldError{Err: domain.ErrWeakPassword}
		for _, rule := range unmet {
			fe.Add("password", password.Describe(rule))
		}
		return fe
	}

	if _, err := s.otps.Verify(ctx, c, domain.PurposePasswordReset, req.Otp); err != nil {
		return err
	}
	u, err := s.users.GetByContact(ctx, c)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrOtpNotFound
	}
	if err != nil {
		return domain.Unavailable("get user by contact", err)
	}
	if u.AccountStatus == domain.AccountSuspended {
		return fmt.Errorf("account suspended: %w", domain.ErrForbidden)
	}

	hash, err := s.passwords.Hash(req.Password)
	if err != nil {
		return err
	}
	if err := s.users.Update(ctx, u.UserID, map[string]interface{}{
		domain.FieldPasswordHash: hash,
		domain.FieldUpdatedAt:    s.clock.Now(),
	}); err != nil {
		return domain.Unavailable("store password", err)
	}
	return nil
}
