package adminlog

import (
	"context"
	"fmt"

	"github.com/watchplus/watchplus/internal/roles"
	"github.com/watchplus/watchplus/internal/rules"
)

// Store is the persistence surface the service needs. The concrete
// implementation is the pgx Repository; tests inject a stub.
type Store interface {
	Get(ctx context.Context, id string) (Entry, error)
	List(ctx context.Context, f ListFilters) ([]Entry, bool, error)
	Append(ctx context.Context, entry Entry) (string, error)
	Correct(ctx context.Context, id, note string) error
	Delete(ctx context.Context, id string) error
}

// Service coordinates audit review and the super-admin correction
// path. Every access re-validates against the rule engine at the
// storage boundary.
type Service struct {
	store  Store
	engine *rules.Engine
}

// NewService constructs the service.
func NewService(store Store, engine *rules.Engine) *Service {
	return &Service{store: store, engine: engine}
}

// List returns a page of entries for audit review.
func (s *Service) List(ctx context.Context, caller roles.Caller, f ListFilters) (Result, error) {
	if err := s.engine.Allow(rules.CollectionAdminLogs, rules.OpRead, caller, rules.Document{}); err != nil {
		return Result{}, err
	}
	entries, hasNext, err := s.store.List(ctx, f)
	if err != nil {
		return Result{}, err
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	pageSize := f.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Entries: entries, Paging: paging}, nil
}

// Correct rewrites the note of an erroneous entry and records the
// correction as a new entry.
func (s *Service) Correct(ctx context.Context, caller roles.Caller, id, note string) error {
	if err := s.engine.Allow(rules.CollectionAdminLogs, rules.OpUpdate, caller, rules.Document{}); err != nil {
		return err
	}
	prior, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Correct(ctx, id, note); err != nil {
		return err
	}
	_, err = s.store.Append(ctx, Entry{
		ActorUID:  caller.UID,
		ActorRole: caller.Role,
		Action:    ActionCorrectEntry,
		TargetUID: prior.TargetUID,
		Note:      fmt.Sprintf("corrected entry %s", id),
	})
	return err
}

// Delete removes an erroneous entry and records the deletion.
func (s *Service) Delete(ctx context.Context, caller roles.Caller, id string) error {
	if err := s.engine.Allow(rules.CollectionAdminLogs, rules.OpDelete, caller, rules.Document{}); err != nil {
		return err
	}
	prior, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	_, err = s.store.Append(ctx, Entry{
		ActorUID:  caller.UID,
		ActorRole: caller.Role,
		Action:    ActionDeleteEntry,
		TargetUID: prior.TargetUID,
		Note:      fmt.Sprintf("deleted entry %s (%s)", id, prior.Action),
	})
	return err
}
