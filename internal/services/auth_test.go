package services

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventmanager/internal/adapters/auth"
	"eventmanager/internal/domain"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeTokenIssuer implements domain.TokenIssuer for tests.
type fakeTokenIssuer struct {
	err   error
	roles []string
}

func (f *fakeTokenIssuer) Issue(userID, email string, roles []string, expiry time.Duration) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.roles = roles
	return "token-" + userID, nil
}

// fakeEmailService implements domain.EmailService for tests.
type fakeEmailService struct {
	sent []*domain.WelcomeMessageEmailData
	err  error
}

func (f *fakeEmailService) SendWelcomeMessage(ctx context.Context, data *domain.WelcomeMessageEmailData) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, data)
	return nil
}

// failingHasher implements domain.PasswordHasher and always fails.
type failingHasher struct {
	err error
}

func (f *failingHasher) Derive(string) (domain.Credential, error)       { return domain.Credential{}, f.err }
func (f *failingHasher) Verify(string, domain.Credential) (bool, error) { return false, f.err }
func (f *failingHasher) NeedsRehash(domain.Credential) bool             { return false }

func testHasher(t *testing.T) domain.PasswordHasher {
	t.Helper()
	h, err := auth.NewRegistry(auth.NewKeyDeriver(), auth.Options{PBKDF2Iterations: 2000})
	require.NoError(t, err)
	return h
}

type authFixture struct {
	users  *fakeUserRepo
	roles  *fakeRoleRepo
	tokens *fakeTokenIssuer
	emails *fakeEmailService
	hasher domain.PasswordHasher
}

func newAuthFixture(t *testing.T) *authFixture {
	return &authFixture{
		users:  newFakeUserRepo(),
		roles:  newFakeRoleRepo(),
		tokens: &fakeTokenIssuer{},
		emails: &fakeEmailService{},
		hasher: testHasher(t),
	}
}

func (f *authFixture) service(concurrency int) domain.AuthService {
	return NewAuthService(f.users, f.roles, f.hasher, f.tokens, time.Hour, f.emails, concurrency, discardLogger)
}

func TestAuthService_SignUp(t *testing.T) {
	f := newAuthFixture(t)
	svc := f.service(2)

	user, err := svc.SignUp(context.Background(), "  Ada@Example.com ", "Tr0ub4dor&3", " Ada ", "")
	require.NoError(t, err)
	assert.Equal(t, "created-1", user.ID)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, "Ada", user.Name)
	assert.Len(t, user.Credential.Salt, auth.SaltSize)
	assert.Equal(t, "pbkdf2-sha256$i=2000", user.Credential.Scheme)

	ok, err := f.hasher.Verify("Tr0ub4dor&3", f.users.byID["created-1"].Credential)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, []string{"role-attendee"}, f.users.roles["created-1"])
	require.Len(t, f.emails.sent, 1)
	assert.Equal(t, "ada@example.com", f.emails.sent[0].Email)
}

func TestAuthService_SignUp_admin_role(t *testing.T) {
	f := newAuthFixture(t)
	_, err := f.service(1).SignUp(context.Background(), "boss@example.com", "long-enough", "Boss", " ADMIN ")
	require.NoError(t, err)
	assert.Equal(t, []string{"role-admin"}, f.users.roles["created-1"])
}

func TestAuthService_SignUp_errors(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		setup    func(f *authFixture)
		errIs    error
	}{
		{name: "invalid email", email: "not-an-email", password: "long-enough", errIs: domain.ErrInvalidEmail},
		{name: "short password", email: "a@example.com", password: "short", errIs: domain.ErrPasswordTooShort},
		{
			name: "duplicate email", email: "a@example.com", password: "long-enough",
			setup: func(f *authFixture) { f.users.put(&domain.User{ID: "u-1", Email: "a@example.com"}) },
			errIs: domain.ErrDuplicateEmail,
		},
		{
			name: "crypto unavailable", email: "a@example.com", password: "long-enough",
			setup: func(f *authFixture) { f.hasher = &failingHasher{err: domain.ErrCryptoUnavailable} },
			errIs: domain.ErrCryptoUnavailable,
		},
		{
			name: "role lookup fails", email: "a@example.com", password: "long-enough",
			setup: func(f *authFixture) { f.roles.getErr = sql.ErrConnDone },
			errIs: sql.ErrConnDone,
		},
		{
			name: "create fails", email: "a@example.com", password: "long-enough",
			setup: func(f *authFixture) { f.users.createErr = sql.ErrConnDone },
			errIs: sql.ErrConnDone,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAuthFixture(t)
			if tt.setup != nil {
				tt.setup(f)
			}
			_, err := f.service(1).SignUp(context.Background(), tt.email, tt.password, "", "")
			require.ErrorIs(t, err, tt.errIs)
			assert.Empty(t, f.emails.sent)
		})
	}
}

func TestAuthService_SignUp_email_failure_is_not_fatal(t *testing.T) {
	f := newAuthFixture(t)
	f.emails.err = errors.New("ses throttled")

	user, err := f.service(1).SignUp(context.Background(), "a@example.com", "long-enough", "", "")
	require.NoError(t, err)
	assert.Equal(t, "created-1", user.ID)
}

func TestAuthService_SignUp_waits_for_hash_slot(t *testing.T) {
	f := newAuthFixture(t)
	svc := f.service(1)
	impl := svc.(*authService)
	require.NoError(t, impl.hashSlots.Acquire(context.Background(), 1))
	defer impl.hashSlots.Release(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := svc.SignUp(ctx, "a@example.com", "long-enough", "", "")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, f.users.byID)
}

func TestAuthService_Login(t *testing.T) {
	f := newAuthFixture(t)
	svc := f.service(2)
	_, err := svc.SignUp(context.Background(), "a@example.com", "correct-horse", "", "")
	require.NoError(t, err)
	f.roles.listByUID["created-1"] = []*domain.Role{domain.NewRole("role-attendee", domain.RoleAttendee)}

	token, user, err := svc.Login(context.Background(), " A@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "token-created-1", token)
	assert.Equal(t, "created-1", user.ID)
	assert.Equal(t, []string{"attendee"}, f.tokens.roles)
	assert.Zero(t, f.users.credUpdates)
}

func TestAuthService_Login_errors(t *testing.T) {
	tests := []struct {
		name       string
		email      string
		password   string
		setup      func(t *testing.T, f *authFixture)
		errIs      error
		notInvalid bool
	}{
		{name: "unknown email", email: "nobody@example.com", password: "correct-horse", errIs: domain.ErrInvalidCredentials},
		{name: "wrong password", email: "a@example.com", password: "wrong-horse", errIs: domain.ErrInvalidCredentials},
		{
			name: "no credential set", email: "nopass@example.com", password: "",
			setup: func(t *testing.T, f *authFixture) {
				f.users.put(&domain.User{ID: "u-2", Email: "nopass@example.com"})
			},
			errIs: domain.ErrInvalidCredentials,
		},
		{
			name: "repository error", email: "a@example.com", password: "correct-horse",
			setup: func(t *testing.T, f *authFixture) { f.users.getErr = sql.ErrConnDone },
			errIs: sql.ErrConnDone, notInvalid: true,
		},
		{
			name: "malformed salt", email: "bad@example.com", password: "correct-horse",
			setup: func(t *testing.T, f *authFixture) {
				f.users.put(&domain.User{ID: "u-3", Email: "bad@example.com", Credential: domain.Credential{Digest: "x", Salt: []byte{1, 2}}})
			},
			errIs: domain.ErrInvalidSalt, notInvalid: true,
		},
		{
			name: "token signing fails", email: "a@example.com", password: "correct-horse",
			setup: func(t *testing.T, f *authFixture) { f.tokens.err = errors.New("no key") },
			notInvalid: true,
		},
		{
			name: "roles lookup fails", email: "a@example.com", password: "correct-horse",
			setup: func(t *testing.T, f *authFixture) { f.roles.listErr = sql.ErrConnDone },
			errIs: sql.ErrConnDone, notInvalid: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAuthFixture(t)
			svc := f.service(1)
			_, err := svc.SignUp(context.Background(), "a@example.com", "correct-horse", "", "")
			require.NoError(t, err)
			if tt.setup != nil {
				tt.setup(t, f)
			}

			token, user, err := svc.Login(context.Background(), tt.email, tt.password)
			require.Error(t, err)
			assert.Empty(t, token)
			assert.Nil(t, user)
			if tt.errIs != nil {
				require.ErrorIs(t, err, tt.errIs)
			}
			if tt.notInvalid {
				assert.NotErrorIs(t, err, domain.ErrInvalidCredentials)
			}
		})
	}
}

func TestAuthService_Login_rehashes_outdated_credential(t *testing.T) {
	f := newAuthFixture(t)
	legacy, err := auth.NewPBKDF2Hasher(auth.NewKeyDeriver(), 1000).Derive("correct-horse")
	require.NoError(t, err)
	legacy.Scheme = "pbkdf2-sha256$i=1000"
	f.users.put(&domain.User{ID: "u-1", Email: "a@example.com", Credential: legacy})

	svc := f.service(1)
	_, user, err := svc.Login(context.Background(), "a@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, 1, f.users.credUpdates)
	assert.Equal(t, "pbkdf2-sha256$i=2000", user.Credential.Scheme)

	stored := f.users.byID["u-1"].Credential
	assert.Equal(t, "pbkdf2-sha256$i=2000", stored.Scheme)
	assert.NotEqual(t, legacy.Salt, stored.Salt)

	_, _, err = svc.Login(context.Background(), "a@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, 1, f.users.credUpdates, "current credentials are not rehashed again")
}

func TestAuthService_Login_rehash_store_failure_is_not_fatal(t *testing.T) {
	f := newAuthFixture(t)
	legacy, err := auth.NewPBKDF2Hasher(auth.NewKeyDeriver(), 1000).Derive("correct-horse")
	require.NoError(t, err)
	f.users.put(&domain.User{ID: "u-1", Email: "a@example.com", Credential: legacy})
	f.users.credentialErr = sql.ErrConnDone

	token, user, err := f.service(1).Login(context.Background(), "a@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "token-u-1", token)
	assert.Equal(t, legacy.Scheme, user.Credential.Scheme)
}
