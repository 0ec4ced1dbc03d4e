package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/healthvault-api/internal/application/verification"
	"github.com/healthvault-api/internal/domain"
	"github.com/healthvault-api/internal/infrastructure/memory"
	"github.com/healthvault-api/internal/pkg/clock"
	"github.com/healthvault-api/internal/pkg/otp"
	"github.com/healthvault-api/internal/pkg/password"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// --- mocks ---

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) GetByContact(ctx context.Context, c domain.Contact) (*domain.User, error) {
	args := m.Called(ctx, c)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	return m.Called(ctx, userID, updates).Error(0)
}

type fakeNotifier struct {
	mu    sync.Mutex
	codes map[string]string
	sends int
}

func (n *fakeNotifier) Available(domain.ContactMethod) bool { return true }

func (n *fakeNotifier) SendOtp(c domain.Contact, code string, purpose domain.OtpPurpose, _ time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.codes == nil {
		n.codes = map[string]string{}
	}
	n.codes[c.Value+"#"+string(purpose)] = code
	n.sends++
}

// --- builder ---

type fixture struct {
	svc      Service
	users    *memory.UserRepo
	otps     verification.Service
	notifier *fakeNotifier
	clock    *clock.Manual
}

func newFixture(t *testing.T, users userStore) *fixture {
	t.Helper()
	f := &fixture{users: memory.NewUserRepo(), notifier: &fakeNotifier{}, clock: clock.NewManual(t0)}
	if users == nil {
		users = f.users
	}
	f.otps = verification.NewService(verification.ServiceDeps{
		Repo:           memory.NewVerificationRepo(),
		Hasher:         otp.Hasher{Cost: bcrypt.MinCost},
		Clock:          f.clock,
		TTL:            10 * time.Minute,
		ResendCooldown: 30 * time.Second,
	})
	f.svc = NewService(users, f.otps, password.Hasher{Cost: bcrypt.MinCost}, f.notifier, f.clock, nil)
	return f
}

func (f *fixture) seedUser(t *testing.T, email string) *domain.User {
	t.Helper()
	u := domain.NewUserForContact("u1", domain.Contact{Method: domain.MethodEmail, Value: email}, t0)
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

func TestRequestPasswordReset_KnownContact(t *testing.T) {
	f := newFixture(t, nil)
	f.seedUser(t, "user@example.com")

	require.NoError(t, f.svc.RequestPasswordReset(context.Background(), PasswordResetRequest{Contact: "USER@example.com"}))
	assert.Len(t, f.notifier.codes["user@example.com#password_reset"], 6)
}

func TestRequestPasswordReset_UnknownContactIsSilent(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.svc.RequestPasswordReset(context.Background(), PasswordResetRequest{Contact: "nobody@example.com"}))
	assert.Zero(t, f.notifier.sends)
}

func TestRequestPasswordReset_ThrottleIsSilent(t *testing.T) {
	f := newFixture(t, nil)
	f.seedUser(t, "user@example.com")
	ctx := context.Background()

	require.NoError(t, f.svc.RequestPasswordReset(ctx, PasswordResetRequest{Contact: "user@example.com"}))
	require.NoError(t, f.svc.RequestPasswordReset(ctx, PasswordResetRequest{Contact: "user@example.com"}))
	assert.Equal(t, 1, f.notifier.sends)
}

func TestRequestPasswordReset_StoreFailure(t *testing.T) {
	users := &mockUserStore{}
	users.On("GetByContact", mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))
	f := newFixture(t, users)

	err := f.svc.RequestPasswordReset(context.Background(), PasswordResetRequest{Contact: "user@example.com"})
	assert.Equal(t, domain.KindServiceUnavailable, domain.KindOf(err))
}

func TestResetPassword(t *testing.T) {
	f := newFixture(t, nil)
	u := f.seedUser(t, "user@example.com")
	ctx := context.Background()

	require.NoError(t, f.svc.RequestPasswordReset(ctx, PasswordResetRequest{Contact: "user@example.com"}))
	code := f.notifier.codes["user@example.com#password_reset"]

	err := f.svc.ResetPassword(ctx, ResetPasswordRequest{
		Contact: "user@example.com", Otp: code, Password: "N3w!secret", ConfirmPassword: "N3w!secret",
	})
	require.NoError(t, err)

	got, err := f.users.Get(ctx, u.UserID)
	require.NoError(t, err)
	require.NotNil(t, got.PasswordHash)
	assert.True(t, password.Hasher{}.Verify("N3w!secret", *got.PasswordHash))

	err = f.svc.ResetPassword(ctx, ResetPasswordRequest{
		Contact: "user@example.com", Otp: code, Password: "N3w!secret", ConfirmPassword: "N3w!secret",
	})
	assert.Equal(t, domain.KindInvalidOrExpiredOtp, domain.KindOf(err))
}

func TestResetPassword_SuspendedAfterCodeIssued(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	email := "user@example.com"
	require.NoError(t, f.users.Create(ctx, &domain.User{UserID: "u1", Email: &email, AccountStatus: domain.AccountSuspended}))

	issued, err := f.otps.Issue(ctx, domain.Contact{Method: domain.MethodEmail, Value: email}, domain.PurposePasswordReset)
	require.NoError(t, err)

	err = f.svc.ResetPassword(ctx, ResetPasswordRequest{
		Contact: email, Otp: issued.Code, Password: "N3w!secret", ConfirmPassword: "N3w!secret",
	})
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))

	got, err := f.users.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, got.PasswordHash)
}

func TestResetPassword_RegistrationCodeRejected(t *testing.T) {
	f := newFixture(t, nil)
	f.seedUser(t, "user@example.com")
	ctx := context.Background()

	issued, err := f.otps.Issue(ctx, domain.Contact{Method: domain.MethodEmail, Value: "user@example.com"}, domain.PurposeRegistration)
	require.NoError(t, err)

	err = f.svc.ResetPassword(ctx, ResetPasswordRequest{
		Contact: "user@example.com", Otp: issued.Code, Password: "N3w!secret", ConfirmPassword: "N3w!secret",
	})
	assert.Equal(t, domain.KindInvalidOrExpiredOtp, domain.KindOf(err))
}

func TestResetPassword_PolicyBeforeOtp(t *testing.T) {
	users := &mockUserStore{}
	f := newFixture(t, users)
	ctx := context.Background()

	err := f.svc.ResetPassword(ctx, ResetPasswordRequest{Contact: "user@example.com", Otp: "123456", Password: "weak", ConfirmPassword: "weak"})
	assert.Equal(t, domain.KindWeakPassword, domain.KindOf(err))

	err = f.svc.ResetPassword(ctx, ResetPasswordRequest{Contact: "user@example.com", Otp: "123456", Password: "N3w!secret", ConfirmPassword: "other"})
	assert.Equal(t, domain.KindPasswordMismatch, domain.KindOf(err))
	users.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestResetPassword_Validation(t *testing.T) {
	f := newFixture(t, nil)
	err := f.svc.ResetPassword(context.Background(), ResetPasswordRequest{Contact: "user@example.com", Otp: "12ab56"})
	var fe *domain.FieldError
	require.True(t, errors.As(err, &fe))
	assert.Contains(t, fe.Fields, "otp")
	assert.Contains(t, fe.Fields, "password")
}
