package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/healthvault-api/internal/domain"
	"github.com/jackc/pgx/v5"
)

type VerificationRepo struct{ db DB }

func NewVerificationRepo(db DB) *VerificationRepo { return &VerificationRepo{db: db} }

func (r *VerificationRepo) Put(ctx context.Context, v *domain.OtpVerification) error {
	_, err := r.db.Exec(ctx, `INSERT INTO otp_verifications
	(otp_id, contact_value, purpose, code_hash, is_used, expires_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		v.OtpID, v.ContactValue, string(v.Purpose), v.CodeHash, v.IsUsed, v.ExpiresAt, v.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("verification id taken: %w", domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert verification: %w", err)
	}
	return nil
}

// FindLatest returns the newest record for contact and purpose that expires
// strictly after now. Used records are included so that consuming the newest
// code leaves older ones stale.
func (r *VerificationRepo) FindLatest(ctx context.Context, contactValue string, purpose domain.OtpPurpose, now time.Time) (*domain.OtpVerification, error) {
	var (
		v  domain.OtpVerification
		pp string
	)
	err := r.db.QueryRow(ctx, `SELECT otp_id, contact_value, purpose, code_hash, is_used, expires_at, created_at
FROM otp_verifications
WHERE contact_value = $1 AND purpose = $2 AND expires_at > $3
ORDER BY created_at DESC, otp_id DESC
LIMIT 1`, contactValue, string(purpose), now).
		Scan(&v.OtpID, &v.ContactValue, &pp, &v.CodeHash, &v.IsUsed, &v.ExpiresAt, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("verification not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find verification: %w", err)
	}
	v.Purpose = domain.OtpPurpose(pp)
	v.ContactPurpose = domain.ContactPurposeKey(v.ContactValue, v.Purpose)
	v.ExpiresAt = v.ExpiresAt.UTC()
	v.CreatedAt = v.CreatedAt.UTC()
	return &v, nil
}

// MarkUsed is a conditional UPDATE, so concurrent callers race on the row
// lock and only the first sees a changed row.
func (r *VerificationRepo) MarkUsed(ctx context.Context, otpID string) error {
	tag, err := r.db.Exec(ctx, `UPDATE otp_verifications SET is_used = TRUE WHERE otp_id = $1 AND NOT is_used`, otpID)
	if err != nil {
		return fmt.Errorf("mark verification used: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM otp_verifications WHERE otp_id = $1)`, otpID).Scan(&exists); err != nil {
		return fmt.Errorf("check verification: %w", err)
	}
	if !exists {
		return fmt.Errorf("verification not found: %w", domain.ErrNotFound)
	}
	return fmt.Errorf("verification %s: %w", otpID, domain.ErrAlreadyUsed)
}
