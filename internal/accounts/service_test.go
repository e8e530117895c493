package accounts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchplus/watchplus/internal/adminlog"
	"github.com/watchplus/watchplus/internal/observability"
	"github.com/watchplus/watchplus/internal/roles"
	"github.com/watchplus/watchplus/internal/rules"
	"github.com/watchplus/watchplus/internal/shared"
)

type mockRepository struct {
	accounts map[string]*Account
	logs     []adminlog.Entry

	// Error injection
	txError error
	// When set, the named uid's role_version is bumped just before the
	// transactional update runs, simulating a concurrent winner.
	raceUID string
}

func newMockRepository() *mockRepository {
	return &mockRepository{accounts: make(map[string]*Account)}
}

func (m *mockRepository) seed(uid string, role roles.Role, active bool) *Account {
	account := &Account{
		UID:       uid,
		Email:     uid + "@example.org",
		Role:      role,
		IsActive:  active,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	m.accounts[uid] = account
	return account
}

func (m *mockRepository) Get(ctx context.Context, uid string) (*Account, error) {
	account, ok := m.accounts[uid]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *account
	return &copied, nil
}

func (m *mockRepository) GetByEmail(ctx context.Context, email string) (*Account, error) {
	for _, account := range m.accounts {
		if account.Email == email {
			copied := *account
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *mockRepository) List(ctx context.Context, f ListFilters) ([]Account, int, error) {
	var out []Account
	for _, account := range m.accounts {
		out = append(out, *account)
	}
	return out, len(out), nil
}

func (m *mockRepository) Create(ctx context.Context, account Account) error {
	m.accounts[account.UID] = &account
	return nil
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if m.txError != nil {
		return m.txError
	}
	if m.raceUID != "" {
		if account, ok := m.accounts[m.raceUID]; ok {
			account.RoleVersion++
		}
		m.raceUID = ""
	}
	tx := &mockTxRepo{mock: m}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	// Commit.
	for _, apply := range tx.applied {
		apply()
	}
	m.logs = append(m.logs, tx.logs...)
	return nil
}

type mockTxRepo struct {
	mock    *mockRepository
	applied []func()
	logs    []adminlog.Entry
}

func (t *mockTxRepo) UpdateRole(ctx context.Context, uid string, newRole roles.Role, expectedVersion int64) error {
	account, ok := t.mock.accounts[uid]
	if !ok {
		return shared.ErrNotFound
	}
	if account.RoleVersion != expectedVersion {
		return ErrConflict
	}
	t.applied = append(t.applied, func() {
		account.Role = newRole
		account.RoleVersion++
	})
	return nil
}

func (t *mockTxRepo) SetActive(ctx context.Context, uid string, active bool, expectedVersion int64) error {
	account, ok := t.mock.accounts[uid]
	if !ok {
		return shared.ErrNotFound
	}
	if account.RoleVersion != expectedVersion {
		return ErrConflict
	}
	t.applied = append(t.applied, func() {
		account.IsActive = active
		account.RoleVersion++
	})
	return nil
}

func (t *mockTxRepo) AppendLog(ctx context.Context, entry adminlog.Entry) (string, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = time.Now().UTC()
	t.logs = append(t.logs, entry)
	return entry.ID, nil
}

func newService(repo Repository) *Service {
	return &Service{repo: repo, engine: rules.NewEngine()}
}

func actorCaller(role roles.Role) roles.Caller {
	return roles.Caller{UID: "actor-" + string(role), Role: role, Active: true}
}

func TestAssignRoleDeniedWithoutCapability(t *testing.T) {
	repo := newMockRepository()
	repo.seed("target", roles.RoleUser, true)
	service := newService(repo)

	_, err := service.AssignRole(context.Background(), actorCaller(roles.RoleBusiness), "target", roles.RoleAdmin)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Empty(t, repo.logs, "denied attempts must not produce audit entries")
}

func TestAssignRoleSucceedsAndLogsOnce(t *testing.T) {
	repo := newMockRepository()
	repo.seed("target", roles.RoleBusiness, true)
	service := newService(repo)

	account, err := service.AssignRole(context.Background(), actorCaller(roles.RoleAdmin), "target", roles.RolePremiumBusiness)
	require.NoError(t, err)
	assert.Equal(t, roles.RolePremiumBusiness, account.Role)

	require.Len(t, repo.logs, 1)
	entry := repo.logs[0]
	assert.Equal(t, adminlog.ActionAssignRole, entry.Action)
	assert.Equal(t, roles.RoleBusiness, entry.PreviousRole)
	assert.Equal(t, roles.RolePremiumBusiness, entry.NewRole)
	assert.Equal(t, "target", entry.TargetUID)
	assert.Equal(t, roles.RoleAdmin, entry.ActorRole)
}

func TestAssignAdminRequiresSuperAdmin(t *testing.T) {
	repo := newMockRepository()
	repo.seed("target", roles.RoleUser, true)
	service := newService(repo)

	_, err := service.AssignRole(context.Background(), actorCaller(roles.RoleAdmin), "target", roles.RoleAdmin)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	account, err := service.AssignRole(context.Background(), actorCaller(roles.RoleSuperAdmin), "target", roles.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, roles.RoleAdmin, account.Role)
}

func TestAssignRoleRejectsUnknownRole(t *testing.T) {
	repo := newMockRepository()
	repo.seed("target", roles.RoleUser, true)
	service := newService(repo)

	_, err := service.AssignRole(context.Background(), actorCaller(roles.RoleSuperAdmin), "target", roles.Role("insurance"))
	assert.ErrorIs(t, err, roles.ErrInvalidRole)
	assert.Empty(t, repo.logs)
}

func TestAssignRoleMissingTarget(t *testing.T) {
	service := newService(newMockRepository())

	_, err := service.AssignRole(context.Background(), actorCaller(roles.RoleAdmin), "ghost", roles.RoleBusiness)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestAssignRoleNoopRejectedWithoutLog(t *testing.T) {
	repo := newMockRepository()
	repo.seed("target", roles.RolePolice, true)
	service := newService(repo)

	_, err := service.AssignRole(context.Background(), actorCaller(roles.RoleAdmin), "target", roles.RolePolice)
	assert.ErrorIs(t, err, ErrNoopAssignment)
	assert.Empty(t, repo.logs)
}

func TestAssignRoleConflictOnConcurrentMutation(t *testing.T) {
	repo := newMockRepository()
	repo.seed("target", roles.RoleUser, true)
	repo.raceUID = "target"
	service := newService(repo)

	_, err := service.AssignRole(context.Background(), actorCaller(roles.RoleAdmin), "target", roles.RoleBusiness)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Empty(t, repo.logs, "losing writers must not log")

	// The loser re-reads and retries, and now succeeds: one mutation,
	// one entry.
	_, err = service.AssignRole(context.Background(), actorCaller(roles.RoleAdmin), "target", roles.RoleBusiness)
	require.NoError(t, err)
	assert.Len(t, repo.logs, 1)
}

func TestRevokeRole(t *testing.T) {
	repo := newMockRepository()
	repo.seed("target", roles.RolePremiumBusiness, true)
	service := newService(repo)

	account, err := service.RevokeRole(context.Background(), actorCaller(roles.RoleAdmin), "target")
	require.NoError(t, err)
	assert.Equal(t, roles.RoleUser, account.Role)

	require.Len(t, repo.logs, 1)
	assert.Equal(t, adminlog.ActionRevokeRole, repo.logs[0].Action)
	assert.Equal(t, roles.RolePremiumBusiness, repo.logs[0].PreviousRole)
	assert.Equal(t, roles.RoleUser, repo.logs[0].NewRole)
}

func TestInactiveActorCannotAssign(t *testing.T) {
	repo := newMockRepository()
	repo.seed("target", roles.RoleUser, true)
	service := newService(repo)

	suspended := roles.Caller{UID: "a1", Role: roles.RoleAdmin, Active: false}
	_, err := service.AssignRole(context.Background(), suspended, "target", roles.RoleBusiness)
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestToggleActive(t *testing.T) {
	repo := newMockRepository()
	repo.seed("target", roles.RoleBusiness, true)
	service := newService(repo)

	account, err := service.ToggleActive(context.Background(), actorCaller(roles.RoleAdmin), "target", false)
	require.NoError(t, err)
	assert.False(t, account.IsActive)

	require.Len(t, repo.logs, 1)
	assert.Equal(t, adminlog.ActionDeactivate, repo.logs[0].Action)

	// Repeating the same state is a rejected no-op.
	_, err = service.ToggleActive(context.Background(), actorCaller(roles.RoleAdmin), "target", false)
	assert.ErrorIs(t, err, ErrNoopAssignment)

	_, err = service.ToggleActive(context.Background(), actorCaller(roles.RolePolice), "target", true)
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestRegisterDefaultsToUserTier(t *testing.T) {
	repo := newMockRepository()
	service := newService(repo)

	account, err := service.Register(context.Background(), "New.Resident@Example.org", "New Resident")
	require.NoError(t, err)
	assert.Equal(t, roles.RoleUser, account.Role)
	assert.True(t, account.IsActive)
	assert.Equal(t, "new.resident@example.org", account.Email)
}

func TestRoleMutationOutcomesRecorded(t *testing.T) {
	repo := newMockRepository()
	repo.seed("target", roles.RoleUser, true)
	repo.raceUID = "target"
	metrics := observability.NewMetrics()
	service := NewService(repo, rules.NewEngine(), metrics)

	_, err := service.AssignRole(context.Background(), actorCaller(roles.RoleAdmin), "target", roles.RoleBusiness)
	require.ErrorIs(t, err, ErrConflict)

	_, err = service.AssignRole(context.Background(), actorCaller(roles.RoleAdmin), "target", roles.RoleBusiness)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rr.Body.String()
	assert.Contains(t, body, `watchplus_role_mutations_total{action="assign",outcome="conflict"} 1`)
	assert.Contains(t, body, `watchplus_role_mutations_total{action="assign",outcome="success"} 1`)
}
