package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/healthvault-api/internal/domain"
)

type AttemptRepo struct {
	mu       sync.Mutex
	attempts map[string]*domain.RegistrationAttempt
}

func NewAttemptRepo() *AttemptRepo {
	return &AttemptRepo{attempts: make(map[string]*domain.RegistrationAttempt)}
}

func (r *AttemptRepo) Put(_ context.Context, a *domain.RegistrationAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.attempts[a.AttemptID] = &cp
	return nil
}

func (r *AttemptRepo) Get(_ context.Context, attemptID string) (*domain.RegistrationAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attempts[attemptID]
	if !ok {
		return nil, fmt.Errorf("attempt not found: %w", domain.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

// MarkCompleted flips a pending attempt for contactValue to completed.
func (r *AttemptRepo) MarkCompleted(_ context.Context, attemptID, contactValue string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attempts[attemptID]
	if !ok {
		return fmt.Errorf("attempt not found: %w", domain.ErrNotFound)
	}
	if a.Status != domain.AttemptPending {
		return fmt.Errorf("attempt is %s: %w", a.Status, domain.ErrConflict)
	}
	if a.ContactValue != contactValue {
		return fmt.Errorf("attempt belongs to another contact: %w", domain.ErrConflict)
	}
	a.Status = domain.AttemptCompleted
	a.CompletedAt = &at
	return nil
}
