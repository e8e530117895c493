package blocklist

import (
	"context"
	"fmt"

	"github.com/watchplus/watchplus/internal/adminlog"
	"github.com/watchplus/watchplus/internal/roles"
	"github.com/watchplus/watchplus/internal/rules"
)

// AuditAppender records blocklist mutations in the admin log.
type AuditAppender interface {
	Append(ctx context.Context, entry adminlog.Entry) (string, error)
}

// Service enforces who may read and mutate the domain blocklist.
type Service struct {
	store  Store
	engine *rules.Engine
	audit  AuditAppender
}

// NewService constructs the service.
func NewService(store Store, engine *rules.Engine, audit AuditAppender) *Service {
	return &Service{store: store, engine: engine, audit: audit}
}

// List returns all blocked domains; admin rank and above.
func (s *Service) List(ctx context.Context, caller roles.Caller) ([]BlockedDomain, error) {
	if err := s.engine.Allow(rules.CollectionBlockedEmails, rules.OpRead, caller, rules.Document{}); err != nil {
		return nil, err
	}
	return s.store.List(ctx)
}

// Block adds a domain; top rank only, audited.
func (s *Service) Block(ctx context.Context, caller roles.Caller, domain string) (BlockedDomain, error) {
	normalized, err := Normalize(domain)
	if err != nil {
		return BlockedDomain{}, err
	}
	if err := s.engine.Allow(rules.CollectionBlockedEmails, rules.OpCreate, caller, rules.Document{}); err != nil {
		return BlockedDomain{}, err
	}
	record := BlockedDomain{Domain: normalized, BlockedBy: caller.UID}
	if err := s.store.Insert(ctx, record); err != nil {
		return BlockedDomain{}, err
	}
	if _, err := s.audit.Append(ctx, adminlog.Entry{
		ActorUID:  caller.UID,
		ActorRole: caller.Role,
		Action:    adminlog.ActionBlockDomain,
		Note:      fmt.Sprintf("blocked %s", normalized),
	}); err != nil {
		return BlockedDomain{}, err
	}
	return record, nil
}

// Unblock removes a domain; top rank only, audited.
func (s *Service) Unblock(ctx context.Context, caller roles.Caller, domain string) error {
	normalized, err := Normalize(domain)
	if err != nil {
		return err
	}
	if err := s.engine.Allow(rules.CollectionBlockedEmails, rules.OpDelete, caller, rules.Document{}); err != nil {
		return err
	}
	if err := s.store.Remove(ctx, normalized); err != nil {
		return err
	}
	_, err = s.audit.Append(ctx, adminlog.Entry{
		ActorUID:  caller.UID,
		ActorRole: caller.Role,
		Action:    adminlog.ActionUnblockDomain,
		Note:      fmt.Sprintf("unblocked %s", normalized),
	})
	return err
}

// IsBlocked reports whether an email address belongs to a blocked
// domain. Used at the signup boundary; unauthenticated on purpose.
func (s *Service) IsBlocked(ctx context.Context, email string) (bool, error) {
	domain, err := DomainOfEmail(email)
	if err != nil {
		return false, err
	}
	return s.store.Exists(ctx, domain)
}
