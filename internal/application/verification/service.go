package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/healthvault-api/internal/domain"
	"github.com/healthvault-api/internal/pkg/clock"
	"github.com/healthvault-api/internal/pkg/id"
	"github.com/healthvault-api/internal/pkg/otp"
)

// Issued is returned once per issuance; Code is the only copy of the plaintext.
type Issued struct {
	ID        string
	Code      string
	ExpiresAt time.Time
}

type Service interface {
	Issue(ctx context.Context, contact domain.Contact, purpose domain.OtpPurpose) (*Issued, error)
	FindActive(ctx context.Context, contact domain.Contact, purpose domain.OtpPurpose) (*domain.OtpVerification, error)
	Consume(ctx context.Context, otpID string) error
	Verify(ctx context.Context, contact domain.Contact, purpose domain.OtpPurpose, code string) (*domain.OtpVerification, error)
}

type verificationStore interface {
	Put(ctx context.Context, v *domain.OtpVerification) error
	FindLatest(ctx context.Context, contactValue string, purpose domain.OtpPurpose, now time.Time) (*domain.OtpVerification, error)
	MarkUsed(ctx context.Context, otpID string) error
}

type codeHasher interface {
	Hash(code string) (string, error)
	Verify(candidate, hash string) bool
}

type ServiceDeps struct {
	Repo           verificationStore
	Hasher         codeHasher
	Clock          clock.Clock
	CodeLength     int
	TTL            time.Duration
	ResendCooldown time.Duration
}

type service struct {
	repo     verificationStore
	hasher   codeHasher
	clock    clock.Clock
	length   int
	ttl      time.Duration
	cooldown time.Duration
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		repo:     deps.Repo,
		hasher:   deps.Hasher,
		clock:    deps.Clock,
		length:   deps.CodeLength,
		ttl:      deps.TTL,
		cooldown: deps.ResendCooldown,
	}
	if s.hasher == nil {
		s.hasher = otp.Hasher{}
	}
	if s.clock == nil {
		s.clock = clock.System{}
	}
	if s.length <= 0 {
		s.length = otp.DefaultLength
	}
	if s.ttl <= 0 {
		s.ttl = 10 * time.Minute
	}
	return s
}

func (s *service) Issue(ctx context.Context, contact domain.Contact, purpose domain.OtpPurpose) (*Issued, error) {
	now := s.clock.Now()
	if s.cooldown > 0 {
		latest, err := s.repo.FindLatest(ctx, contact.Value, purpose, now)
		switch {
		case err == nil && !latest.IsUsed && now.Sub(latest.CreatedAt) < s.cooldown:
			return nil, fmt.Errorf("otp requested again within %s: %w", s.cooldown, domain.ErrTooManyRequests)
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			return nil, domain.Unavailable("find latest otp", err)
		}
	}

	code, err := otp.Generate(s.length)
	if err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(code)
	if err != nil {
		return nil, err
	}
	v := &domain.OtpVerification{
		OtpID:          id.New(),
		ContactValue:   contact.Value,
		Purpose:        purpose,
		ContactPurpose: domain.ContactPurposeKey(contact.Value, purpose),
		CodeHash:       hash,
		IsUsed:         false,
		ExpiresAt:      now.Add(s.ttl),
		CreatedAt:      now,
	}
	if err := s.repo.Put(ctx, v); err != nil {
		return nil, domain.Unavailable("store otp", err)
	}
	return &Issued{ID: v.OtpID, Code: code, ExpiresAt: v.ExpiresAt}, nil
}

// FindActive returns the authoritative record for the contact and purpose.
// Only the newest unexpired record counts: once it is used, older codes stay
// stale. Never requested, already used and expired all yield ErrOtpNotFound.
func (s *service) FindActive(ctx context.Context, contact domain.Contact, purpose domain.OtpPurpose) (*domain.OtpVerification, error) {
	now := s.clock.Now()
	v, err := s.repo.FindLatest(ctx, contact.Value, purpose, now)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrOtpNotFound
	}
	if err != nil {
		return nil, domain.Unavailable("find otp", err)
	}
	if !v.ActiveAt(now) {
		return nil, domain.ErrOtpNotFound
	}
	return v, nil
}

func (s *service) Consume(ctx context.Context, otpID string) error {
	err := s.repo.MarkUsed(ctx, otpID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrAlreadyUsed):
		return err
	case errors.Is(err, domain.ErrNotFound):
		return fmt.Errorf("consume %s: %w", otpID, domain.ErrAlreadyUsed)
	default:
		return domain.Unavailable("consume otp", err)
	}
}

// Verify checks code against the active record and consumes it. A request
// that loses the consume race gets ErrOtpNotFound, as if the code never existed.
func (s *service) Verify(ctx context.Context, contact domain.Contact, purpose domain.OtpPurpose, code string) (*domain.OtpVerification, error) {
	v, err := s.FindActive(ctx, contact, purpose)
	if err != nil {
		return nil, err
	}
	if !s.hasher.Verify(code, v.CodeHash) {
		return nil, domain.ErrInvalidOtp
	}
	if err := s.Consume(ctx, v.OtpID); err != nil {
		if errors.Is(err, domain.ErrAlreadyUsed) {
			return nil, domain.ErrOtpNotFound
		}
		return nil, err
	}
	v.IsUsed = true
	return v, nil
}
