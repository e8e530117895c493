package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/watchplus/watchplus/internal/adminlog"
	"github.com/watchplus/watchplus/internal/observability"
	"github.com/watchplus/watchplus/internal/roles"
	"github.com/watchplus/watchplus/internal/rules"
)

// Service is the Role Mutation Service: every role or active-flag
// change flows through here, checked against the actor's capabilities
// and recorded in the admin log atomically with the mutation.
type Service struct {
	repo    Repository
	engine  *rules.Engine
	metrics *observability.Metrics
}

// NewService constructs a Service. metrics may be nil.
func NewService(repo Repository, engine *rules.Engine, metrics *observability.Metrics) *Service {
	return &Service{repo: repo, engine: engine, metrics: metrics}
}

// observeMutation classifies a mutation attempt for the
// role_mutations_total counter.
func (s *Service) observeMutation(action string, err error) {
	switch {
	case err == nil:
		s.metrics.ObserveRoleMutation(action, "success")
	case errors.Is(err, ErrConflict):
		s.metrics.ObserveRoleMutation(action, "conflict")
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, rules.ErrDenied):
		s.metrics.ObserveRoleMutation(action, "denied")
	default:
		s.metrics.ObserveRoleMutation(action, "error")
	}
}

// Get returns one account, rule-checked for the caller.
func (s *Service) Get(ctx context.Context, caller roles.Caller, uid string) (*Account, error) {
	account, err := s.repo.Get(ctx, uid)
	if err != nil {
		return nil, err
	}
	if err := s.engine.Allow(rules.CollectionUsers, rules.OpRead, caller, rules.Document{OwnerUID: account.UID}); err != nil {
		return nil, err
	}
	return account, nil
}

// List returns a page of accounts for administration.
func (s *Service) List(ctx context.Context, caller roles.Caller, f ListFilters) ([]Account, int, error) {
	if err := s.engine.Allow(rules.CollectionUsers, rules.OpRead, caller, rules.Document{}); err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, f)
}

// Register creates a new account at the default tier. Role assignment
// beyond user goes through AssignRole only.
func (s *Service) Register(ctx context.Context, email, displayName string) (*Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("accounts: email required")
	}
	account := Account{
		UID:         uuid.NewString(),
		Email:       email,
		DisplayName: strings.TrimSpace(displayName),
		Role:        roles.RoleUser,
		IsActive:    true,
	}
	if err := s.repo.Create(ctx, account); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, account.UID)
}

// AssignRole changes the target's role. Preconditions: the actor holds
// assignRole, ranks high enough to grant newRole, and the target
// exists. The update and its audit entry commit in one transaction; a
// concurrent mutation on the same target yields ErrConflict.
func (s *Service) AssignRole(ctx context.Context, actor roles.Caller, targetUID string, newRole roles.Role) (*Account, error) {
	return s.mutateRole(ctx, actor, targetUID, newRole, adminlog.ActionAssignRole)
}

// RevokeRole returns the target to the default tier.
func (s *Service) RevokeRole(ctx context.Context, actor roles.Caller, targetUID string) (*Account, error) {
	return s.mutateRole(ctx, actor, targetUID, roles.RoleUser, adminlog.ActionRevokeRole)
}

func (s *Service) mutateRole(ctx context.Context, actor roles.Caller, targetUID string, newRole roles.Role, action string) (account *Account, err error) {
	defer func() { s.observeMutation(action, err) }()

	if _, err := roles.Parse(string(newRole)); err != nil {
		return nil, err
	}
	if !actor.Can(roles.CapAssignRole) {
		return nil, fmt.Errorf("%w: %s requires assignRole", ErrPermissionDenied, action)
	}
	grantRank, err := roles.RequiredGrantRank(newRole)
	if err != nil {
		return nil, err
	}
	if !actor.AtLeast(grantRank) {
		return nil, fmt.Errorf("%w: granting %s requires a higher rank", ErrPermissionDenied, newRole)
	}

	target, err := s.repo.Get(ctx, targetUID)
	if err != nil {
		return nil, err
	}
	// Storage-boundary re-check, independent of the capability gates
	// above.
	if err := s.engine.Allow(rules.CollectionUsers, rules.OpUpdate, actor, rules.Document{OwnerUID: target.UID}); err != nil {
		return nil, err
	}
	if target.Role == newRole {
		return nil, fmt.Errorf("%w: %s already holds %s", ErrNoopAssignment, targetUID, newRole)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateRole(ctx, target.UID, newRole, target.RoleVersion); err != nil {
			return err
		}
		_, err := tx.AppendLog(ctx, adminlog.Entry{
			ActorUID:     actor.UID,
			ActorRole:    actor.Role,
			Action:       action,
			TargetUID:    target.UID,
			PreviousRole: target.Role,
			NewRole:      newRole,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, target.UID)
}

// ToggleActive suspends or reinstates an account under the same
// atomic-mutation and audit contract as role changes.
func (s *Service) ToggleActive(ctx context.Context, actor roles.Caller, targetUID string, active bool) (account *Account, err error) {
	action := adminlog.ActionDeactivate
	if active {
		action = adminlog.ActionActivate
	}
	defer func() { s.observeMutation(action, err) }()

	if !actor.Can(roles.CapToggleActive) {
		return nil, fmt.Errorf("%w: toggling accounts requires toggleActive", ErrPermissionDenied)
	}
	target, err := s.repo.Get(ctx, targetUID)
	if err != nil {
		return nil, err
	}
	if err := s.engine.Allow(rules.CollectionUsers, rules.OpUpdate, actor, rules.Document{OwnerUID: target.UID}); err != nil {
		return nil, err
	}
	if target.IsActive == active {
		return nil, fmt.Errorf("%w: account already in requested state", ErrNoopAssignment)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.SetActive(ctx, target.UID, active, target.RoleVersion); err != nil {
			return err
		}
		_, err := tx.AppendLog(ctx, adminlog.Entry{
			ActorUID:     actor.UID,
			ActorRole:    actor.Role,
			Action:       action,
			TargetUID:    target.UID,
			PreviousRole: target.Role,
			NewRole:      target.Role,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, target.UID)
}
