// Package memory is an in-process store backend with the same conditional
// semantics as the DynamoDB and PostgreSQL backends.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/healthvault-api/internal/domain"
)

type UserRepo struct {
	mu        sync.RWMutex
	users     map[string]*domain.User // user_id -> user
	byContact map[string]string       // contact key -> user_id
}

func NewUserRepo() *UserRepo {
	return &UserRepo{
		users:     make(map[string]*domain.User),
		byContact: make(map[string]string),
	}
}

// Create stores u unless its contact already belongs to another user.
func (r *UserRepo) Create(_ context.Context, u *domain.User) error {
	key := u.Contact().Key()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.UserID]; ok {
		return fmt.Errorf("user id taken: %w", domain.ErrConflict)
	}
	if _, ok := r.byContact[key]; ok {
		return fmt.Errorf("contact already registered: %w", domain.ErrConflict)
	}
	cp := *u
	r.users[u.UserID] = &cp
	r.byContact[key] = u.UserID
	return nil
}

func (r *UserRepo) Get(_ context.Context, userID string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[userID]
	if !ok {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (r *UserRepo) GetByContact(ctx context.Context, c domain.Contact) (*domain.User, error) {
	r.mu.RLock()
	id, ok := r.byContact[c.Key()]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	return r.Get(ctx, id)
}

func (r *UserRepo) Update(_ context.Context, userID string, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	cp := *u
	if err := applyUserUpdates(&cp, updates); err != nil {
		return err
	}
	r.users[userID] = &cp
	return nil
}

// CompleteProfile applies updates only while the profile is still incomplete.
func (r *UserRepo) CompleteProfile(_ context.Context, userID string, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	if u.ProfileComplete {
		return fmt.Errorf("profile already completed: %w", domain.ErrConflict)
	}
	cp := *u
	if err := applyUserUpdates(&cp, updates); err != nil {
		return err
	}
	r.users[userID] = &cp
	return nil
}

func applyUserUpdates(u *domain.User, updates map[string]interface{}) error {
	for k, v := range updates {
		var ok bool
		switch k {
		case domain.FieldIsEmailVerified:
			u.IsEmailVerified, ok = v.(bool)
		case domain.FieldIsPhoneVerified:
			u.IsPhoneVerified, ok = v.(bool)
		case domain.FieldPrivacyAccepted:
			u.PrivacyAccepted, ok = v.(bool)
		case domain.FieldProfileComplete:
			u.ProfileComplete, ok = v.(bool)
		case domain.FieldPasswordHash:
			u.PasswordHash, ok = strPtr(v)
		case domain.FieldFirstName:
			u.FirstName, ok = strPtr(v)
		case domain.FieldLastName:
			u.LastName, ok = strPtr(v)
		case domain.FieldAlternatePhone:
			u.AlternatePhone, ok = strPtr(v)
		case domain.FieldDateOfBirth:
			u.DateOfBirth, ok = strPtr(v)
		case domain.FieldUpdatedAt:
			u.UpdatedAt, ok = v.(time.Time)
		case domain.FieldGender:
			var s string
			if s, ok = v.(string); ok {
				g := domain.Gender(s)
				u.Gender = &g
			}
		default:
			return fmt.Errorf("unknown user field %q", k)
		}
		if !ok {
			return fmt.Errorf("field %s: unexpected type %T", k, v)
		}
	}
	return nil
}

func strPtr(v interface{}) (*string, bool) {
	s, ok := v.(string)
	if !ok {
		return nil, false
	}
	return &s, true
}

// Len returns the number of stored users.
func (r *UserRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}
