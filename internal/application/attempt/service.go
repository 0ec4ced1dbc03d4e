package attempt

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/healthvault-api/internal/domain"
	"github.com/healthvault-api/internal/pkg/clock"
	"github.com/healthvault-api/internal/pkg/id"
)

// Outcome is the result of a best-effort bookkeeping update. Callers log
// Err and carry on; registration never fails because of it.
type Outcome struct {
	AttemptID string
	Skipped   bool // attempt missing, no longer pending, or another contact's
	Err       error
}

// LogIfFailed writes a warning when the update failed. Skips are logged at debug.
func (o Outcome) LogIfFailed(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	switch {
	case o.Err != nil:
		logger.Warn("registration attempt not marked completed", "attempt_id", o.AttemptID, "err", o.Err)
	case o.Skipped:
		logger.Debug("registration attempt already settled", "attempt_id", o.AttemptID)
	}
}

type Service interface {
	Create(ctx context.Context, contact domain.Contact) (*domain.RegistrationAttempt, error)
	Get(ctx context.Context, attemptID string) (*domain.RegistrationAttempt, error)
	MarkCompleted(ctx context.Context, attemptID string, contact domain.Contact) Outcome
}

type attemptStore interface {
	Put(ctx context.Context, a *domain.RegistrationAttempt) error
	Get(ctx context.Context, attemptID string) (*domain.RegistrationAttempt, error)
	MarkCompleted(ctx context.Context, attemptID, contactValue string, at time.Time) error
}

type service struct {
	repo  attemptStore
	clock clock.Clock
}

func NewService(repo attemptStore, clk clock.Clock) Service {
	if clk == nil {
		clk = clock.System{}
	}
	return &service{repo: repo, clock: clk}
}

func (s *service) Create(ctx context.Context, contact domain.Contact) (*domain.RegistrationAttempt, error) {
	a := &domain.RegistrationAttempt{
		AttemptID:     id.New(),
		ContactValue:  contact.Value,
		ContactMethod: contact.Method,
		Status:        domain.AttemptPending,
		CreatedAt:     s.clock.Now(),
	}
	if err := s.repo.Put(ctx, a); err != nil {
		return nil, domain.Unavailable("store registration attempt", err)
	}
	return a, nil
}

func (s *service) Get(ctx context.Context, attemptID string) (*domain.RegistrationAttempt, error) {
	a, err := s.repo.Get(ctx, attemptID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, domain.Unavailable("get registration attempt", err)
	}
	return a, nil
}

// MarkCompleted closes attemptID only when it was opened for contact.
func (s *service) MarkCompleted(ctx context.Context, attemptID string, contact domain.Contact) Outcome {
	out := Outcome{AttemptID: attemptID}
	if attemptID == "" {
		out.Skipped = true
		return out
	}
	err := s.repo.MarkCompleted(ctx, attemptID, contact.Value, s.clock.Now())
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrConflict):
		out.Skipped = true
	default:
		out.Err = err
	}
	return out
}
