// Package rules is the storage-layer mirror of the capability table:
// declarative read/write predicates evaluated by repositories on every
// query. It is the last line of defense when a client-side check is
// bypassed, so every decision fails closed.
package rules

import (
	"errors"
	"fmt"

	"github.com/watchplus/watchplus/internal/roles"
)

// Operation is a storage primitive guarded by the engine.
type Operation string

const (
	OpRead   Operation = "read"
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Collection names the guarded document collections.
type Collection string

const (
	CollectionUsers            Collection = "users"
	CollectionIncidentReports  Collection = "incidentReports"
	CollectionArchivedRequests Collection = "archivedRequests"
	CollectionAdminLogs        Collection = "admin_logs"
	CollectionBlockedEmails    Collection = "blocked_emails"
)

// ErrDenied is the terminal storage-layer denial. When an application
// check and this engine disagree, this denial wins.
var ErrDenied = errors.New("rules: access denied")

// Document carries the fields rule predicates may inspect about the
// target record. OwnerUID is the record's owner (account uid, reporter,
// or original requester depending on the collection).
type Document struct {
	OwnerUID  string
	VisibleTo []roles.Role
}

// Predicate decides one operation for one collection.
type Predicate func(caller roles.Caller, doc Document) bool

// RuleSet groups the per-operation predicates of a collection.
type RuleSet struct {
	Read   Predicate
	Create Predicate
	Update Predicate
	Delete Predicate
}

// Engine evaluates collection rules at the storage boundary.
type Engine struct {
	rulesets map[Collection]RuleSet
}

// Helper predicates, mirroring the declarative rule language.

// IsAuthenticated reports whether the caller carries an identity.
func IsAuthenticated(caller roles.Caller) bool {
	return caller.Authenticated()
}

// IsAdmin reports rank >= admin.
func IsAdmin(caller roles.Caller) bool {
	return caller.AtLeast(roles.RankAdmin)
}

// IsSuperAdmin reports rank >= super_admin.
func IsSuperAdmin(caller roles.Caller) bool {
	return caller.AtLeast(roles.RankSuperAdmin)
}

func isOwner(caller roles.Caller, doc Document) bool {
	return IsAuthenticated(caller) && caller.Active && doc.OwnerUID != "" && caller.UID == doc.OwnerUID
}

func addressedTo(caller roles.Caller, doc Document) bool {
	for _, role := range doc.VisibleTo {
		if role == caller.Role {
			return true
		}
	}
	return false
}

// NewEngine installs the collection rulesets.
//
// Most predicates derive from the capability table so the two surfaces
// cannot drift. The admin-log and blocked-email mutation paths are
// spelled out as independent rank checks on purpose: they are the
// records an attacker would target to cover their tracks, and must not
// share a failure mode with the in-process resolver.
func NewEngine() *Engine {
	return &Engine{rulesets: map[Collection]RuleSet{
		CollectionUsers: {
			// Read: self or rank >= admin.
			Read: func(caller roles.Caller, doc Document) bool {
				return isOwner(caller, doc) || IsAdmin(caller)
			},
			// Create happens at signup, before a role exists.
			Create: func(caller roles.Caller, doc Document) bool {
				return IsAuthenticated(caller)
			},
			// Role and active-flag writes go through the mutation
			// service, gated by the assignRole capability.
			Update: func(caller roles.Caller, doc Document) bool {
				return caller.Can(roles.CapAssignRole)
			},
			Delete: func(caller roles.Caller, doc Document) bool {
				return IsSuperAdmin(caller)
			},
		},
		CollectionIncidentReports: {
			// Read: any authenticated account; field-level shaping is
			// the visibility filter's job. Records scoped by visibleTo
			// stay invisible outside the allow-list.
			Read: func(caller roles.Caller, doc Document) bool {
				if !IsAuthenticated(caller) || !caller.Active {
					return false
				}
				if len(doc.VisibleTo) == 0 {
					return true
				}
				return addressedTo(caller, doc) || isOwner(caller, doc) || IsAdmin(caller)
			},
			Create: func(caller roles.Caller, doc Document) bool {
				return IsAuthenticated(caller) && caller.Active
			},
			Update: func(caller roles.Caller, doc Document) bool {
				return isOwner(caller, doc) || IsAdmin(caller)
			},
			Delete: func(caller roles.Caller, doc Document) bool {
				return isOwner(caller, doc) || IsAdmin(caller)
			},
		},
		CollectionArchivedRequests: {
			// Read: admin or the original requester.
			Read: func(caller roles.Caller, doc Document) bool {
				return IsAdmin(caller) || isOwner(caller, doc)
			},
			Create: func(caller roles.Caller, doc Document) bool {
				return IsAdmin(caller)
			},
			Update: func(caller roles.Caller, doc Document) bool {
				return IsAdmin(caller)
			},
			Delete: func(caller roles.Caller, doc Document) bool {
				return IsAdmin(caller)
			},
		},
		CollectionAdminLogs: {
			Read: func(caller roles.Caller, doc Document) bool {
				return IsAdmin(caller)
			},
			Create: func(caller roles.Caller, doc Document) bool {
				return IsAdmin(caller)
			},
			// Corrections and deletions are reserved to the top rank.
			Update: func(caller roles.Caller, doc Document) bool {
				return IsSuperAdmin(caller)
			},
			Delete: func(caller roles.Caller, doc Document) bool {
				return IsSuperAdmin(caller)
			},
		},
		CollectionBlockedEmails: {
			Read: func(caller roles.Caller, doc Document) bool {
				return IsAdmin(caller)
			},
			Create: func(caller roles.Caller, doc Document) bool {
				return IsSuperAdmin(caller)
			},
			Update: func(caller roles.Caller, doc Document) bool {
				return IsSuperAdmin(caller)
			},
			Delete: func(caller roles.Caller, doc Document) bool {
				return IsSuperAdmin(caller)
			},
		},
	}}
}

// Allow evaluates the rule for one operation. Unknown collections and
// operations are denied.
func (e *Engine) Allow(col Collection, op Operation, caller roles.Caller, doc Document) error {
	ruleset, ok := e.rulesets[col]
	if !ok {
		return fmt.Errorf("%w: unknown collection %q", ErrDenied, col)
	}
	var predicate Predicate
	switch op {
	case OpRead:
		predicate = ruleset.Read
	case OpCreate:
		predicate = ruleset.Create
	case OpUpdate:
		predicate = ruleset.Update
	case OpDelete:
		predicate = ruleset.Delete
	}
	if predicate == nil {
		return fmt.Errorf("%w: %s on %s", ErrDenied, op, col)
	}
	if !predicate(caller, doc) {
		return fmt.Errorf("%w: %s on %s", ErrDenied, op, col)
	}
	return nil
}
