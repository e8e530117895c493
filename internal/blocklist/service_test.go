package blocklist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchplus/watchplus/internal/adminlog"
	"github.com/watchplus/watchplus/internal/roles"
	"github.com/watchplus/watchplus/internal/rules"
	"github.com/watchplus/watchplus/internal/shared"
)

type memStore struct {
	domains map[string]BlockedDomain
}

func newMemStore() *memStore {
	return &memStore{domains: make(map[string]BlockedDomain)}
}

func (m *memStore) Insert(ctx context.Context, record BlockedDomain) error {
	if _, ok := m.domains[record.Domain]; ok {
		return ErrAlreadyBlocked
	}
	m.domains[record.Domain] = record
	return nil
}

func (m *memStore) Remove(ctx context.Context, domain string) error {
	if _, ok := m.domains[domain]; !ok {
		return shared.ErrNotFound
	}
	delete(m.domains, domain)
	return nil
}

func (m *memStore) Exists(ctx context.Context, domain string) (bool, error) {
	_, ok := m.domains[domain]
	return ok, nil
}

func (m *memStore) List(ctx context.Context) ([]BlockedDomain, error) {
	var out []BlockedDomain
	for _, record := range m.domains {
		out = append(out, record)
	}
	return out, nil
}

type captureAudit struct {
	entries []adminlog.Entry
}

func (c *captureAudit) Append(ctx context.Context, entry adminlog.Entry) (string, error) {
	c.entries = append(c.entries, entry)
	return "id", nil
}

func superAdmin() roles.Caller {
	return roles.Caller{UID: "root-1", Role: roles.RoleSuperAdmin, Active: true}
}

func admin() roles.Caller {
	return roles.Caller{UID: "admin-1", Role: roles.RoleAdmin, Active: true}
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"Example.COM":   "example.com",
		" spam.xyz ":    "spam.xyz",
		"@tempmail.org": "tempmail.org",
		"mail.UK.co.uk": "mail.uk.co.uk",
	}
	for in, want := range cases {
		got, err := Normalize(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	for _, in := range []string{"", "nodot", "two words.com", "a@b.com"} {
		_, err := Normalize(in)
		assert.ErrorIs(t, err, ErrInvalidDomain, "input %q", in)
	}
}

func TestBlockRequiresSuperAdmin(t *testing.T) {
	store := newMemStore()
	audit := &captureAudit{}
	service := NewService(store, rules.NewEngine(), audit)

	_, err := service.Block(context.Background(), admin(), "spam.xyz")
	assert.ErrorIs(t, err, rules.ErrDenied)
	assert.Empty(t, audit.entries)

	record, err := service.Block(context.Background(), superAdmin(), "Spam.XYZ")
	require.NoError(t, err)
	assert.Equal(t, "spam.xyz", record.Domain)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, adminlog.ActionBlockDomain, audit.entries[0].Action)
}

func TestBlockDuplicate(t *testing.T) {
	store := newMemStore()
	service := NewService(store, rules.NewEngine(), &captureAudit{})

	_, err := service.Block(context.Background(), superAdmin(), "spam.xyz")
	require.NoError(t, err)
	_, err = service.Block(context.Background(), superAdmin(), "spam.xyz")
	assert.ErrorIs(t, err, ErrAlreadyBlocked)
}

func TestListRequiresAdminRank(t *testing.T) {
	service := NewService(newMemStore(), rules.NewEngine(), &captureAudit{})

	_, err := service.List(context.Background(), roles.Caller{UID: "p", Role: roles.RolePolice, Active: true})
	assert.ErrorIs(t, err, rules.ErrDenied)

	_, err = service.List(context.Background(), admin())
	assert.NoError(t, err)
}

func TestUnblockAudits(t *testing.T) {
	store := newMemStore()
	audit := &captureAudit{}
	service := NewService(store, rules.NewEngine(), audit)

	_, err := service.Block(context.Background(), superAdmin(), "spam.xyz")
	require.NoError(t, err)
	require.NoError(t, service.Unblock(context.Background(), superAdmin(), "spam.xyz"))

	assert.ErrorIs(t, service.Unblock(context.Background(), superAdmin(), "spam.xyz"), shared.ErrNotFound)
	require.Len(t, audit.entries, 2)
	assert.Equal(t, adminlog.ActionUnblockDomain, audit.entries[1].Action)
}

func TestIsBlocked(t *testing.T) {
	store := newMemStore()
	service := NewService(store, rules.NewEngine(), &captureAudit{})

	_, err := service.Block(context.Background(), superAdmin(), "tempmail.org")
	require.NoError(t, err)

	blocked, err := service.IsBlocked(context.Background(), "someone@TempMail.org")
	require.NoError(t, err)
	assert.True(t, blocked)

	blocked, err = service.IsBlocked(context.Background(), "someone@example.org")
	require.NoError(t, err)
	assert.False(t, blocked)

	_, err = service.IsBlocked(context.Background(), "not-an-email")
	assert.ErrorIs(t, err, ErrInvalidDomain)
}
