// Package accounts owns user account records and is the only path by
// which an account's role or active flag changes.
package accounts

import (
	"errors"
	"time"

	"github.com/watchplus/watchplus/internal/roles"
)

var (
	// ErrPermissionDenied indicates the actor lacks the capability or
	// grant rank for the requested mutation.
	ErrPermissionDenied = errors.New("accounts: permission denied")
	// ErrConflict indicates a concurrent mutation won the race; the
	// caller must re-read and retry.
	ErrConflict = errors.New("accounts: concurrent role mutation")
	// ErrNoopAssignment indicates the requested role equals the current
	// one. No-op assignments are rejected and leave no audit entry.
	ErrNoopAssignment = errors.New("accounts: role unchanged")
)

// Account is a platform account. Role and IsActive are mutated only by
// the Service in this package; RoleVersion backs optimistic
// concurrency on those mutations.
type Account struct {
	UID         string     `json:"uid"`
	Email       string     `json:"email"`
	DisplayName string     `json:"displayName,omitempty"`
	Role        roles.Role `json:"role"`
	IsActive    bool       `json:"isActive"`
	RoleVersion int64      `json:"-"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// ListFilters narrows and pages account listings.
type ListFilters struct {
	Role     roles.Role
	Search   string
	Page     int
	PageSize int
}
