package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/healthvault-api/internal/domain"
	"github.com/jackc/pgx/v5"
)

type AttemptRepo struct{ db DB }

func NewAttemptRepo(db DB) *AttemptRepo { return &AttemptRepo{db: db} }

func (r *AttemptRepo) Put(ctx context.Context, a *domain.RegistrationAttempt) error {
	_, err := r.db.Exec(ctx, `INSERT INTO registration_attempts
	(attempt_id, contact_value, contact_method, status, created_at, completed_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		a.AttemptID, a.ContactValue, string(a.ContactMethod), string(a.Status), a.CreatedAt, a.CompletedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("attempt id taken: %w", domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

func (r *AttemptRepo) Get(ctx context.Context, attemptID string) (*domain.RegistrationAttempt, error) {
	var (
		a      domain.RegistrationAttempt
		method string
		status string
	)
	err := r.db.QueryRow(ctx, `SELECT attempt_id, contact_value, contact_method, status, created_at, completed_at
FROM registration_attempts WHERE attempt_id = $1`, attemptID).
		Scan(&a.AttemptID, &a.ContactValue, &method, &status, &a.CreatedAt, &a.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("attempt not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	a.ContactMethod = domain.ContactMethod(method)
	a.Status = domain.AttemptStatus(status)
	a.CreatedAt = a.CreatedAt.UTC()
	return &a, nil
}

// MarkCompleted flips a pending attempt for contactValue to completed. When
// no row changes the attempt is looked up again to tell a missing one from a
// finished or foreign one.
func (r *AttemptRepo) MarkCompleted(ctx context.Context, attemptID, contactValue string, at time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE registration_attempts SET status = $2, completed_at = $3
WHERE attempt_id = $1 AND status = $4 AND contact_value = $5`,
		attemptID, string(domain.AttemptCompleted), at, string(domain.AttemptPending), contactValue)
	if err != nil {
		return fmt.Errorf("complete attempt: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	a, err := r.Get(ctx, attemptID)
	if err != nil {
		return err
	}
	if a.ContactValue != contactValue {
		return fmt.Errorf("attempt belongs to another contact: %w", domain.ErrConflict)
	}
	return fmt.Errorf("attempt is %s: %w", a.Status, domain.ErrConflict)
}
