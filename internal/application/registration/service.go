// Package registration drives progressive sign-up: contact submission, OTP
// verification, password creation and profile completion. Every transition
// is decided from the stored user, never from client-declared state.
package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/healthvault-api/internal/application/attempt"
	"github.com/healthvault-api/internal/application/verification"
	"github.com/healthvault-api/internal/domain"
	jwtinfra "github.com/healthvault-api/internal/infrastructure/jwt"
	"github.com/healthvault-api/internal/pkg/clock"
	"github.com/healthvault-api/internal/pkg/id"
	"github.com/healthvault-api/internal/pkg/password"
	"github.com/healthvault-api/internal/pkg/validate"
)

type Service interface {
	SubmitContact(ctx context.Context, req SubmitContactRequest) (*OtpSent, error)
	ResendOtp(ctx context.Context, req ResendOtpRequest) (*OtpSent, error)
	VerifyOtp(ctx context.Context, req VerifyOtpRequest) (*VerifyOtpResponse, error)
	SetPassword(ctx context.Context, token string, req SetPasswordRequest) error
	CompleteProfile(ctx context.Context, token string, req CompleteProfileRequest) error
	Status(ctx context.Context, userID string) (*StatusResponse, error)
}

type userStore interface {
	Create(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByContact(ctx context.Context, c domain.Contact) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
	CompleteProfile(ctx context.Context, userID string, updates map[string]interface{}) error
}

type tokenProvider interface {
	Issue(userID, email, phone string) (*jwtinfra.Token, error)
	Verify(token string) (*jwtinfra.Claims, error)
}

type passwordHasher interface {
	Hash(pw string) (string, error)
}

type notifier interface {
	Available(method domain.ContactMethod) bool
	SendOtp(contact domain.Contact, code string, purpose domain.OtpPurpose, expiresAt time.Time)
	SendWelcome(contact domain.Contact, name string)
}

type ServiceDeps struct {
	Users     userStore
	Attempts  attempt.Service
	Otps      verification.Service
	Tokens    tokenProvider
	Passwords passwordHasher
	Notifier  notifier
	Clock     clock.Clock
	Logger    *slog.Logger
}

type service struct {
	users     userStore
	attempts  attempt.Service
	otps      verification.Service
	tokens    tokenProvider
	passwords passwordHasher
	notifier  notifier
	clock     clock.Clock
	logger    *slog.Logger
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		users:     deps.Users,
		attempts:  deps.Attempts,
		otps:      deps.Otps,
		tokens:    deps.Tokens,
		passwords: deps.Passwords,
		notifier:  deps.Notifier,
		clock:     deps.Clock,
		logger:    deps.Logger,
	}
	if s.passwords == nil {
		s.passwords = password.Hasher{}
	}
	if s.clock == nil {
		s.clock = clock.System{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

func (s *service) SubmitContact(ctx context.Context, req SubmitContactRequest) (*OtpSent, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	c, err := s.contact(req.Contact, req.Method)
	if err != nil {
		return nil, err
	}
	issued, err := s.otps.Issue(ctx, c, domain.PurposeRegistration)
	if err != nil {
		return nil, err
	}
	a, err := s.attempts.Create(ctx, c)
	if err != nil {
		return nil, err
	}
	s.notifier.SendOtp(c, issued.Code, domain.PurposeRegistration, issued.ExpiresAt)
	return &OtpSent{RegistrationID: a.AttemptID, ContactType: c.Method, ExpiresAt: issued.ExpiresAt}, nil
}

func (s *service) ResendOtp(ctx context.Context, req ResendOtpRequest) (*OtpSent, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	c, err := s.contact(req.Contact, req.Method)
	if err != nil {
		return nil, err
	}
	issued, err := s.otps.Issue(ctx, c, domain.PurposeRegistration)
	if err != nil {
		return nil, err
	}
	a, err := s.resumeAttempt(ctx, req.RegistrationID, c)
	if err != nil {
		return nil, err
	}
	s.notifier.SendOtp(c, issued.Code, domain.PurposeRegistration, issued.ExpiresAt)
	return &OtpSent{RegistrationID: a.AttemptID, ContactType: c.Method, ExpiresAt: issued.ExpiresAt}, nil
}

// resumeAttempt reuses attemptID when it is still pending for c, otherwise
// opens a new attempt.
func (s *service) resumeAttempt(ctx context.Context, attemptID string, c domain.Contact) (*domain.RegistrationAttempt, error) {
	if attemptID != "" {
		a, err := s.attempts.Get(ctx, attemptID)
		switch {
		case err == nil && a.Status == domain.AttemptPending && a.ContactValue == c.Value:
			return a, nil
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			return nil, err
		}
	}
	return s.attempts.Create(ctx, c)
}

func (s *service) VerifyOtp(ctx context.Context, req VerifyOtpRequest) (*VerifyOtpResponse, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	c, err := domain.NormalizeContact(req.Contact, domain.ContactMethod(req.Method))
	if err != nil {
		return nil, err
	}
	if _, err := s.otps.Verify(ctx, c, domain.PurposeRegistration, req.Otp); err != nil {
		return nil, err
	}

	u, created, err := s.activate(ctx, c)
	if err != nil {
		return nil, err
	}
	if req.RegistrationID != "" {
		s.attempts.MarkCompleted(ctx, req.RegistrationID, c).LogIfFailed(s.logger)
	}

	tok, err := s.issueToken(u)
	if err != nil {
		return nil, err
	}
	if created && c.IsEmail() {
		s.notifier.SendWelcome(c, "")
	}
	return &VerifyOtpResponse{
		Token:                     tok.Value,
		UserID:                    u.UserID,
		ContactType:               c.Method,
		RequiresProfileCompletion: !u.ProfileComplete,
		ExpiresAt:                 tok.ExpiresAt(),
	}, nil
}

// activate creates the user skeleton for c. When c already belongs to a user
// that account is marked verified on the channel instead.
func (s *service) activate(ctx context.Context, c domain.Contact) (*domain.User, bool, error) {
	now := s.clock.Now()
	u := domain.NewUserForContact(id.New(), c, now)
	err := s.users.Create(ctx, u)
	if err == nil {
		return u, true, nil
	}
	if !errors.Is(err, domain.ErrConflict) {
		return nil, false, domain.Unavailable("create user", err)
	}

	existing, err := s.users.GetByContact(ctx, c)
	if err != nil {
		return nil, false, domain.Unavailable("get user by contact", err)
	}
	if existing.AccountStatus == domain.AccountSuspended {
		return nil, false, fmt.Errorf("account suspended: %w", domain.ErrForbidden)
	}
	field, verified := domain.FieldIsEmailVerified, existing.IsEmailVerified
	if !c.IsEmail() {
		field, verified = domain.FieldIsPhoneVerified, existing.IsPhoneVerified
	}
	if !verified {
		if err := s.users.Update(ctx, existing.UserID, map[string]interface{}{
			field:                 true,
			domain.FieldUpdatedAt: now,
		}); err != nil {
			return nil, false, domain.Unavailable("mark contact verified", err)
		}
		if c.IsEmail() {
			existing.IsEmailVerified = true
		} else {
			existing.IsPhoneVerified = true
		}
	}
	return existing, false, nil
}

func (s *service) issueToken(u *domain.User) (*jwtinfra.Token, error) {
	var email, phone string
	if u.Email != nil {
		email = *u.Email
	}
	if u.Phone != nil {
		phone = *u.Phone
	}
	tok, err := s.tokens.Issue(u.UserID, email, phone)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return tok, nil
}

func (s *service) SetPassword(ctx context.Context, token string, req SetPasswordRequest) error {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return err
	}
	if err := validate.Struct(req); err != nil {
		return err
	}
	if req.Password != req.ConfirmPassword {
		return domain.NewFieldError(domain.ErrPasswordMismatch, "confirmPassword", "must match password")
	}
	if err := checkPolicy(req.Password); err != nil {
		return err
	}

	u, err := s.loadUser(ctx, claims.UserID())
	if err != nil {
		return err
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

func (s *service) CompleteProfile(ctx context.Context, token string, req CompleteProfileRequest) error {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	fe := &domain.FieldError{Err: domain.ErrValidation}
	if err := validate.Struct(req); err != nil {
		var tagErr *domain.FieldError
		if !errors.As(err, &tagErr) {
			return err
		}
		fe = tagErr
	}
	updates := profileUpdates(req, now, fe)
	if !fe.Empty() {
		return fe
	}

	u, err := s.loadUser(ctx, claims.UserID())
	if err != nil {
		return err
	}
	if !u.HasPassword() {
		return fmt.Errorf("password not set: %w", domain.ErrStepOutOfOrder)
	}
	if u.ProfileComplete {
		return fmt.Errorf("profile already completed: %w", domain.ErrStepOutOfOrder)
	}
	err = s.users.CompleteProfile(ctx, u.UserID, updates)
	if errors.Is(err, domain.ErrConflict) {
		return fmt.Errorf("profile already completed: %w", domain.ErrStepOutOfOrder)
	}
	if err != nil {
		return domain.Unavailable("store profile", err)
	}
	return nil
}

func (s *service) Status(ctx context.Context, userID string) (*StatusResponse, error) {
	u, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &StatusResponse{UserID: u.UserID, Step: u.Step()}, nil
}

// loadUser fetches the token subject. A subject with no user is treated as an
// invalid token.
func (s *service) loadUser(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.users.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("token subject has no account: %w", domain.ErrUnauthorized)
	}
	if err != nil {
		return nil, domain.Unavailable("get user", err)
	}
	if u.AccountStatus == domain.AccountSuspended {
		return nil, fmt.Errorf("account suspended: %w", domain.ErrForbidden)
	}
	return u, nil
}

// contact normalizes the submitted value and checks that its channel can be
// reached before anything is stored.
func (s *service) contact(raw, method string) (domain.Contact, error) {
	c, err := domain.NormalizeContact(raw, domain.ContactMethod(method))
	if err != nil {
		return domain.Contact{}, err
	}
	if !s.notifier.Available(c.Method) {
		return domain.Contact{}, fmt.Errorf("%s delivery not configured: %w", c.Method, domain.ErrDeliveryUnavailable)
	}
	return c, nil
}

func checkPolicy(pw string) error {
	unmet := password.CheckPolicy(pw)
	if len(unmet) == 0 {
		return nil
	}
	fe := &domain.FieldError{Err: domain.ErrWeakPassword}
	for _, rule := range unmet {
		fe.Add("password", password.Describe(rule))
	}
	return fe
}
