package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/healthvault-api/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// --- fakes ---

type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.vals) {
		return fmt.Errorf("scan: want %d values, got %d", len(dest), len(r.vals))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *bool:
			*p = r.vals[i].(bool)
		case *string:
			*p = r.vals[i].(string)
		default:
			return fmt.Errorf("scan: unsupported dest %T", d)
		}
	}
	return nil
}

type fakeDB struct {
	execSQL  []string
	execArgs [][]any
	tags     []pgconn.CommandTag
	execErr  error
	rows     []pgx.Row
	querySQL []string
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execSQL = append(f.execSQL, sql)
	f.execArgs = append(f.execArgs, args)
	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}
	tag := pgconn.NewCommandTag("UPDATE 1")
	if len(f.tags) > 0 {
		tag, f.tags = f.tags[0], f.tags[1:]
	}
	return tag, nil
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	f.querySQL = append(f.querySQL, sql)
	if len(f.rows) == 0 {
		return fakeRow{err: pgx.ErrNoRows}
	}
	row := f.rows[0]
	f.rows = f.rows[1:]
	return row
}

// --- tests ---

func TestBuildUpdate(t *testing.T) {
	set, args, err := buildUpdate(map[string]interface{}{
		domain.FieldUpdatedAt:       t0,
		domain.FieldGender:          domain.GenderFemale,
		domain.FieldProfileComplete: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "gender = $1, profile_complete = $2, updated_at = $3", set)
	assert.Equal(t, []any{"female", true, t0}, args)
}

func TestBuildUpdate_Rejects(t *testing.T) {
	_, _, err := buildUpdate(map[string]interface{}{})
	assert.ErrorContains(t, err, "no fields to update")

	_, _, err = buildUpdate(map[string]interface{}{"account_status; DROP TABLE users": "x"})
	assert.ErrorContains(t, err, "not updatable")
}

func TestUserRepo_Update(t *testing.T) {
	db := &fakeDB{}
	require.NoError(t, NewUserRepo(db).Update(context.Background(), "u1", map[string]interface{}{domain.FieldPasswordHash: "h"}))
	assert.Equal(t, "UPDATE users SET password_hash = $1 WHERE user_id = $2", db.execSQL[0])
	assert.Equal(t, []any{"h", "u1"}, db.execArgs[0])

	db = &fakeDB{tags: []pgconn.CommandTag{pgconn.NewCommandTag("UPDATE 0")}}
	err := NewUserRepo(db).Update(context.Background(), "ghost", map[string]interface{}{domain.FieldPasswordHash: "h"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUserRepo_CreateConflict(t *testing.T) {
	db := &fakeDB{execErr: &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}}
	u := domain.NewUserForContact("u1", domain.Contact{Method: domain.MethodEmail, Value: "a@example.com"}, t0)
	assert.ErrorIs(t, NewUserRepo(db).Create(context.Background(), u), domain.ErrConflict)

	db = &fakeDB{execErr: errors.New("connection reset")}
	err := NewUserRepo(db).Create(context.Background(), u)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrConflict)
}

func TestUserRepo_GetMissing(t *testing.T) {
	_, err := NewUserRepo(&fakeDB{}).GetByContact(context.Background(), domain.Contact{Method: domain.MethodPhone, Value: "15551234567"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUserRepo_CompleteProfile(t *testing.T) {
	updates := map[string]interface{}{domain.FieldProfileComplete: true}
	db := &fakeDB{}
	require.NoError(t, NewUserRepo(db).CompleteProfile(context.Background(), "u1", updates))
	assert.Contains(t, db.execSQL[0], "WHERE user_id = $2 AND NOT profile_complete")

	zero := pgconn.NewCommandTag("UPDATE 0")
	db = &fakeDB{tags: []pgconn.CommandTag{zero}, rows: []pgx.Row{fakeRow{vals: []any{true}}}}
	assert.ErrorIs(t, NewUserRepo(db).CompleteProfile(context.Background(), "u1", updates), domain.ErrConflict)

	db = &fakeDB{tags: []pgconn.CommandTag{zero}, rows: []pgx.Row{fakeRow{vals: []any{false}}}}
	assert.ErrorIs(t, NewUserRepo(db).CompleteProfile(context.Background(), "u1", updates), domain.ErrNotFound)
}

func TestAttemptRepo_MarkCompleted(t *testing.T) {
	db := &fakeDB{}
	require.NoError(t, NewAttemptRepo(db).MarkCompleted(context.Background(), "a1", "a@b.com", t0))
	assert.Contains(t, db.execSQL[0], "AND contact_value = $5")
	assert.Equal(t, "a@b.com", db.execArgs[0][4])

	db = &fakeDB{tags: []pgconn.CommandTag{pgconn.NewCommandTag("UPDATE 0")}}
	err := NewAttemptRepo(db).MarkCompleted(context.Background(), "missing", "a@b.com", t0)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestVerificationRepo_MarkUsed(t *testing.T) {
	zero := pgconn.NewCommandTag("UPDATE 0")
	tests := []struct {
		name string
		db   *fakeDB
		want error
	}{
		{name: "consumed", db: &fakeDB{}},
		{name: "missing", db: &fakeDB{tags: []pgconn.CommandTag{zero}, rows: []pgx.Row{fakeRow{vals: []any{false}}}}, want: domain.ErrNotFound},
		{name: "already used", db: &fakeDB{tags: []pgconn.CommandTag{zero}, rows: []pgx.Row{fakeRow{vals: []any{true}}}}, want: domain.ErrAlreadyUsed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewVerificationRepo(tt.db).MarkUsed(context.Background(), "o1")
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestVerificationRepo_FindLatestMissing(t *testing.T) {
	db := &fakeDB{}
	_, err := NewVerificationRepo(db).FindLatest(context.Background(), "a@example.com", domain.PurposeRegistration, t0)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	// Used rows stay visible so a consumed newest code shadows older ones.
	require.Len(t, db.querySQL, 1)
	assert.NotContains(t, db.querySQL[0], "is_used AND")
	assert.Contains(t, db.querySQL[0], "ORDER BY created_at DESC, otp_id DESC")
}

func TestMigrate(t *testing.T) {
	db := &fakeDB{}
	require.NoError(t, Migrate(context.Background(), db))
	assert.Contains(t, db.execSQL[0], "CREATE TABLE IF NOT EXISTS otp_verifications")

	db = &fakeDB{execErr: errors.New("permission denied")}
	assert.ErrorContains(t, Migrate(context.Background(), db), "migrate")
}
