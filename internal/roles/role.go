// Package roles defines the closed role vocabulary of the platform, the
// rank ordering over it, and the capability table every permission check
// in the application derives from.
package roles

import (
	"errors"
	"fmt"
)

// Role is a tier in the platform's access model. The set is closed:
// values outside the enumeration are rejected at every boundary, never
// coerced.
type Role string

const (
	// RoleUser is the default tier for new accounts.
	RoleUser Role = "user"
	// RoleBusiness is the paid tier for local businesses.
	RoleBusiness Role = "business"
	// RolePremiumBusiness is the insurance/security tier.
	RolePremiumBusiness Role = "premium_business"
	// RolePolice is the law-enforcement tier.
	RolePolice Role = "police"
	// RoleAdmin moderates the platform.
	RoleAdmin Role = "admin"
	// RoleSuperAdmin owns the platform.
	RoleSuperAdmin Role = "super_admin"
)

// ErrInvalidRole indicates a value outside the closed role set.
var ErrInvalidRole = errors.New("roles: invalid role")

// Rank orders roles for threshold checks. police and premium_business
// share a rank on purpose: neither dominates the other, their
// differences live in the capability table.
type Rank int

const (
	RankUser Rank = iota
	RankBusiness
	RankProfessional
	RankAdmin
	RankSuperAdmin
)

var roleRanks = map[Role]Rank{
	RoleUser:            RankUser,
	RoleBusiness:        RankBusiness,
	RolePremiumBusiness: RankProfessional,
	RolePolice:          RankProfessional,
	RoleAdmin:           RankAdmin,
	RoleSuperAdmin:      RankSuperAdmin,
}

// All returns the closed role set in rank order.
func All() []Role {
	return []Role{RoleUser, RoleBusiness, RolePremiumBusiness, RolePolice, RoleAdmin, RoleSuperAdmin}
}

// Parse validates a stored or transmitted role value.
func Parse(value string) (Role, error) {
	role := Role(value)
	if _, ok := roleRanks[role]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, value)
	}
	return role, nil
}

// Valid reports whether r belongs to the closed set.
func (r Role) Valid() bool {
	_, ok := roleRanks[r]
	return ok
}

// GetRank returns the rank of a role.
func GetRank(r Role) (Rank, error) {
	rank, ok := roleRanks[r]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRole, r)
	}
	return rank, nil
}

// AtLeast reports whether role ranks at or above threshold. Unknown
// roles never satisfy any threshold.
func AtLeast(role Role, threshold Rank) bool {
	rank, ok := roleRanks[role]
	if !ok {
		return false
	}
	return rank >= threshold
}

// RequiredGrantRank returns the minimum rank an actor needs to assign
// newRole to another account. Granting admin or super_admin is reserved
// to super_admin; every other role only needs the assignRole capability
// holders (rank admin and above).
func RequiredGrantRank(newRole Role) (Rank, error) {
	if !newRole.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRole, newRole)
	}
	if newRole == RoleAdmin || newRole == RoleSuperAdmin {
		return RankSuperAdmin, nil
	}
	return RankAdmin, nil
}
