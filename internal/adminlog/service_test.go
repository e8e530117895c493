package adminlog

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchplus/watchplus/internal/roles"
	"github.com/watchplus/watchplus/internal/rules"
	"github.com/watchplus/watchplus/internal/shared"
)

type stubStore struct {
	entries map[string]Entry
	order   []string
}

func newStubStore() *stubStore {
	return &stubStore{entries: make(map[string]Entry)}
}

func (s *stubStore) Get(ctx context.Context, id string) (Entry, error) {
	entry, ok := s.entries[id]
	if !ok {
		return Entry{}, shared.ErrNotFound
	}
	return entry, nil
}

func (s *stubStore) List(ctx context.Context, f ListFilters) ([]Entry, bool, error) {
	var out []Entry
	for i := len(s.order) - 1; i >= 0; i-- {
		entry := s.entries[s.order[i]]
		if f.Action != "" && entry.Action != f.Action {
			continue
		}
		if f.TargetUID != "" && entry.TargetUID != f.TargetUID {
			continue
		}
		out = append(out, entry)
	}
	return out, false, nil
}

func (s *stubStore) Append(ctx context.Context, entry Entry) (string, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.entries[entry.ID] = entry
	s.order = append(s.order, entry.ID)
	return entry.ID, nil
}

func (s *stubStore) Correct(ctx context.Context, id, note string) error {
	entry, ok := s.entries[id]
	if !ok {
		return shared.ErrNotFound
	}
	entry.Note = note
	s.entries[id] = entry
	return nil
}

func (s *stubStore) Delete(ctx context.Context, id string) error {
	if _, ok := s.entries[id]; !ok {
		return shared.ErrNotFound
	}
	delete(s.entries, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func admin() roles.Caller {
	return roles.Caller{UID: "admin-1", Role: roles.RoleAdmin, Active: true}
}

func superAdmin() roles.Caller {
	return roles.Caller{UID: "root-1", Role: roles.RoleSuperAdmin, Active: true}
}

func TestListRequiresAdminRank(t *testing.T) {
	service := NewService(newStubStore(), rules.NewEngine())

	_, err := service.List(context.Background(), roles.Caller{UID: "p1", Role: roles.RolePolice, Active: true}, ListFilters{})
	assert.ErrorIs(t, err, rules.ErrDenied)

	_, err = service.List(context.Background(), admin(), ListFilters{})
	assert.NoError(t, err)
}

func TestCorrectRequiresSuperAdminAndLogsItself(t *testing.T) {
	store := newStubStore()
	id, err := store.Append(context.Background(), Entry{
		ActorUID:  "admin-1",
		ActorRole: roles.RoleAdmin,
		Action:    ActionAssignRole,
		TargetUID: "target-1",
	})
	require.NoError(t, err)

	service := NewService(store, rules.NewEngine())

	err = service.Correct(context.Background(), admin(), id, "wrong target")
	assert.ErrorIs(t, err, rules.ErrDenied)

	require.NoError(t, service.Correct(context.Background(), superAdmin(), id, "wrong target"))
	assert.Equal(t, "wrong target", store.entries[id].Note)

	// The correction left its own trace.
	result, err := service.List(context.Background(), superAdmin(), ListFilters{Action: ActionCorrectEntry})
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, "root-1", result.Entries[0].ActorUID)
	assert.Equal(t, "target-1", result.Entries[0].TargetUID)
}

func TestDeleteLogsItself(t *testing.T) {
	store := newStubStore()
	id, err := store.Append(context.Background(), Entry{
		ActorUID:  "admin-1",
		ActorRole: roles.RoleAdmin,
		Action:    ActionRevokeRole,
		TargetUID: "target-2",
	})
	require.NoError(t, err)

	service := NewService(store, rules.NewEngine())

	assert.ErrorIs(t, service.Delete(context.Background(), admin(), id), rules.ErrDenied)

	require.NoError(t, service.Delete(context.Background(), superAdmin(), id))
	_, err = store.Get(context.Background(), id)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	result, err := service.List(context.Background(), superAdmin(), ListFilters{Action: ActionDeleteEntry})
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
}

func TestCorrectMissingEntry(t *testing.T) {
	service := NewService(newStubStore(), rules.NewEngine())
	err := service.Correct(context.Background(), superAdmin(), "missing", "note")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
