package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/healthvault-api/internal/domain"
	"github.com/jackc/pgx/v5"
)

const userColumns = `user_id, email, phone, account_status, is_email_verified, is_phone_verified,
	password_hash, first_name, last_name, alternate_phone, date_of_birth, gender,
	privacy_accepted, profile_complete, created_at, updated_at`

// updatable maps partial-update field names to their columns.
var updatable = map[string]string{
	domain.FieldIsEmailVerified: "is_email_verified",
	domain.FieldIsPhoneVerified: "is_phone_verified",
	domain.FieldPasswordHash:    "password_hash",
	domain.FieldFirstName:       "first_name",
	domain.FieldLastName:        "last_name",
	domain.FieldAlternatePhone:  "alternate_phone",
	domain.FieldDateOfBirth:     "date_of_birth",
	domain.FieldGender:          "gender",
	domain.FieldPrivacyAccepted: "privacy_accepted",
	domain.FieldProfileComplete: "profile_complete",
	domain.FieldUpdatedAt:       "updated_at",
}

type UserRepo struct{ db DB }

func NewUserRepo(db DB) *UserRepo { return &UserRepo{db: db} }

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		u      domain.User
		status string
		gender *string
	)
	if err := row.Scan(&u.UserID, &u.Email, &u.Phone, &status, &u.IsEmailVerified, &u.IsPhoneVerified,
		&u.PasswordHash, &u.FirstName, &u.LastName, &u.AlternatePhone, &u.DateOfBirth, &gender,
		&u.PrivacyAccepted, &u.ProfileComplete, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.AccountStatus = domain.AccountStatus(status)
	if gender != nil {
		g := domain.Gender(*gender)
		u.Gender = &g
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}

// Create inserts u. The partial unique indexes on email and phone turn a
// second registration of the same contact into domain.ErrConflict.
func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	var gender *string
	if u.Gender != nil {
		g := string(*u.Gender)
		gender = &g
	}
	_, err := r.db.Exec(ctx, `INSERT INTO users (`+userColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		u.UserID, u.Email, u.Phone, string(u.AccountStatus), u.IsEmailVerified, u.IsPhoneVerified,
		u.PasswordHash, u.FirstName, u.LastName, u.AlternatePhone, u.DateOfBirth, gender,
		u.PrivacyAccepted, u.ProfileComplete, u.CreatedAt, u.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("contact already registered: %w", domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepo) Get(ctx context.Context, userID string) (*domain.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = $1`, userID))
}

func (r *UserRepo) GetByContact(ctx context.Context, c domain.Contact) (*domain.User, error) {
	col := "phone"
	if c.IsEmail() {
		col = "email"
	}
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+col+` = $1`, c.Value))
}

func (r *UserRepo) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	set, args, err := buildUpdate(updates)
	if err != nil {
		return err
	}
	args = append(args, userID)
	tag, err := r.db.Exec(ctx, fmt.Sprintf(`UPDATE users SET %s WHERE user_id = $%d`, set, len(args)), args...)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	return nil
}

// CompleteProfile applies updates only while profile_complete is false.
func (r *UserRepo) CompleteProfile(ctx context.Context, userID string, updates map[string]interface{}) error {
	set, args, err := buildUpdate(updates)
	if err != nil {
		return err
	}
	args = append(args, userID)
	tag, err := r.db.Exec(ctx, fmt.Sprintf(`UPDATE users SET %s WHERE user_id = $%d AND NOT profile_complete`, set, len(args)), args...)
	if err != nil {
		return fmt.Errorf("complete profile: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE user_id = $1)`, userID).Scan(&exists); err != nil {
		return fmt.Errorf("check user: %w", err)
	}
	if !exists {
		return fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	return fmt.Errorf("profile already completed: %w", domain.ErrConflict)
}

// buildUpdate renders the SET clause in sorted field order with numbered
// placeholders starting at $1.
func buildUpdate(updates map[string]interface{}) (string, []any, error) {
	if len(updates) == 0 {
		return "", nil, errors.New("no fields to update")
	}
	keys := make([]string, 0, len(updates))
	for k := range updates {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sets := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys)+1)
	for i, k := range keys {
		col, ok := updatable[k]
		if !ok {
			return "", nil, fmt.Errorf("field %q is not updatable", k)
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", col, i+1))
		args = append(args, sqlValue(updates[k]))
	}
	return strings.Join(sets, ", "), args, nil
}

func sqlValue(v interface{}) any {
	switch t := v.(type) {
	case domain.Gender:
		return string(t)
	case *domain.Gender:
		if t == nil {
			return nil
		}
		return string(*t)
	default:
		return v
	}
}
