package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/healthvault-api/internal/domain"
)

type VerificationRepo struct {
	mu      sync.Mutex
	records []*domain.OtpVerification // insertion order
	byID    map[string]*domain.OtpVerification
}

func NewVerificationRepo() *VerificationRepo {
	return &VerificationRepo{byID: make(map[string]*domain.OtpVerification)}
}

func (r *VerificationRepo) Put(_ context.Context, v *domain.OtpVerification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[v.OtpID]; ok {
		return fmt.Errorf("verification id taken: %w", domain.ErrConflict)
	}
	cp := *v
	r.records = append(r.records, &cp)
	r.byID[v.OtpID] = &cp
	return nil
}

// FindLatest returns the newest unexpired record for the key, used or not.
// Later insertions win ties on CreatedAt.
func (r *VerificationRepo) FindLatest(_ context.Context, contactValue string, purpose domain.OtpPurpose, now time.Time) (*domain.OtpVerification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *domain.OtpVerification
	for _, v := range r.records {
		if v.ContactValue != contactValue || v.Purpose != purpose || !now.Before(v.ExpiresAt) {
			continue
		}
		if best == nil || !v.CreatedAt.Before(best.CreatedAt) {
			best = v
		}
	}
	if best == nil {
		return nil, fmt.Errorf("verification not found: %w", domain.ErrNotFound)
	}
	cp := *best
	return &cp, nil
}

// MarkUsed is the compare-and-set is_used false -> true.
func (r *VerificationRepo) MarkUsed(_ context.Context, otpID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.byID[otpID]
	if !ok {
		return fmt.Errorf("verification not found: %w", domain.ErrNotFound)
	}
	if v.IsUsed {
		return fmt.Errorf("verification %s: %w", otpID, domain.ErrAlreadyUsed)
	}
	v.IsUsed = true
	return nil
}

// All returns a snapshot of every record, oldest first.
func (r *VerificationRepo) All() []domain.OtpVerification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.OtpVerification, len(r.records))
	for i, v := range r.records {
		out[i] = *v
	}
	return out
}
