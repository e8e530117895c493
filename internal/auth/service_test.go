package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/watchplus/watchplus/internal/accounts"
	"github.com/watchplus/watchplus/internal/roles"
	"github.com/watchplus/watchplus/internal/shared"
)

type memRepository struct {
	creds    map[string]*Credential
	sessions map[string]string
}

func newMemRepository() *memRepository {
	return &memRepository{creds: make(map[string]*Credential), sessions: make(map[string]string)}
}

func (m *memRepository) FindByEmail(ctx context.Context, email string) (*Credential, error) {
	cred, ok := m.creds[strings.ToLower(email)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *cred
	return &copied, nil
}

func (m *memRepository) SetPassword(ctx context.Context, uid, hash string) error {
	for _, cred := range m.creds {
		if cred.UID == uid {
			cred.PasswordHash = hash
			return nil
		}
	}
	return shared.ErrNotFound
}

func (m *memRepository) CreateSession(ctx context.Context, id, uid string, expiresAt time.Time, ip, ua string) error {
	m.sessions[id] = uid
	return nil
}

func (m *memRepository) DeleteSession(ctx context.Context, id string) error {
	delete(m.sessions, id)
	return nil
}

type memRegistrar struct {
	repo *memRepository
}

func (r *memRegistrar) Register(ctx context.Context, email, displayName string) (*accounts.Account, error) {
	account := &accounts.Account{
		UID:         uuid.NewString(),
		Email:       strings.ToLower(email),
		DisplayName: displayName,
		Role:        roles.RoleUser,
		IsActive:    true,
	}
	r.repo.creds[account.Email] = &Credential{UID: account.UID, Email: account.Email, IsActive: true}
	return account, nil
}

type stubChecker struct {
	blocked map[string]bool
}

func (c *stubChecker) IsBlocked(ctx context.Context, email string) (bool, error) {
	at := strings.LastIndex(email, "@")
	return c.blocked[strings.ToLower(email[at+1:])], nil
}

func newService(repo *memRepository, blocked ...string) *Service {
	checker := &stubChecker{blocked: make(map[string]bool)}
	for _, domain := range blocked {
		checker.blocked[domain] = true
	}
	return NewService(repo, &memRegistrar{repo: repo}, checker)
}

func TestSignupRejectsBlockedDomain(t *testing.T) {
	repo := newMemRepository()
	service := newService(repo, "tempmail.org")

	_, err := service.Signup(context.Background(), SignupInput{
		Email:       "new@tempmail.org",
		Password:    "correct horse",
		DisplayName: "New User",
	})
	assert.ErrorIs(t, err, ErrDomainBlocked)
	assert.Empty(t, repo.creds)
}

func TestSignupCreatesDefaultTierAccount(t *testing.T) {
	repo := newMemRepository()
	service := newService(repo)

	account, err := service.Signup(context.Background(), SignupInput{
		Email:       "Jo@Example.com",
		Password:    "correct horse",
		DisplayName: "Jo",
	})
	require.NoError(t, err)
	assert.Equal(t, roles.RoleUser, account.Role)
	assert.Equal(t, "jo@example.com", account.Email)

	cred := repo.creds["jo@example.com"]
	require.NotNil(t, cred)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte("correct horse")))
}

func TestSignupDuplicateEmail(t *testing.T) {
	repo := newMemRepository()
	service := newService(repo)

	_, err := service.Signup(context.Background(), SignupInput{Email: "jo@example.com", Password: "correct horse", DisplayName: "Jo"})
	require.NoError(t, err)
	_, err = service.Signup(context.Background(), SignupInput{Email: "jo@example.com", Password: "other passwd", DisplayName: "Jo2"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestAuthenticate(t *testing.T) {
	repo := newMemRepository()
	service := newService(repo)

	account, err := service.Signup(context.Background(), SignupInput{Email: "jo@example.com", Password: "correct horse", DisplayName: "Jo"})
	require.NoError(t, err)

	uid, err := service.Authenticate(context.Background(), "jo@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, account.UID, uid)

	_, err = service.Authenticate(context.Background(), "jo@example.com", "wrong")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = service.Authenticate(context.Background(), "nobody@example.com", "correct horse")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)

	repo.creds["jo@example.com"].IsActive = false
	_, err = service.Authenticate(context.Background(), "jo@example.com", "correct horse")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
}
