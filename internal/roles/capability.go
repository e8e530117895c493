package roles

import (
	"errors"
	"fmt"
)

// Capability is a named permission, the unit of access control. The
// string values are also the wire/storage representation.
type Capability string

const (
	CapViewHexGrid           Capability = "viewHexGrid"
	CapViewExactLocation     Capability = "viewExactLocation"
	CapSubmitEvidenceRequest Capability = "submitEvidenceRequest"
	CapViewAdminLogs         Capability = "viewAdminLogs"
	CapMutateAdminLogs       Capability = "mutateAdminLogs"
	CapAssignRole            Capability = "assignRole"
	CapToggleActive          Capability = "toggleActive"
	CapManageBlockedDomains  Capability = "manageBlockedDomains"
)

// ErrUnknownCapability indicates a capability name that is not declared
// in the table. It signals a configuration bug, never a denial.
var ErrUnknownCapability = errors.New("roles: unknown capability")

// capabilityTable is the single source of truth for capability-to-role
// assignment. Adding a role or capability extends this table and
// nothing else; no other component carries role literals.
var capabilityTable = map[Capability]map[Role]struct{}{
	CapViewHexGrid:           roleSet(RolePremiumBusiness, RolePolice, RoleAdmin, RoleSuperAdmin),
	CapViewExactLocation:     roleSet(RolePolice, RolePremiumBusiness, RoleAdmin, RoleSuperAdmin),
	CapSubmitEvidenceRequest: roleSet(RolePolice, RolePremiumBusiness),
	CapViewAdminLogs:         roleSet(RoleAdmin, RoleSuperAdmin),
	CapMutateAdminLogs:       roleSet(RoleSuperAdmin),
	CapAssignRole:            roleSet(RoleAdmin, RoleSuperAdmin),
	CapToggleActive:          roleSet(RoleAdmin, RoleSuperAdmin),
	CapManageBlockedDomains:  roleSet(RoleSuperAdmin),
}

func roleSet(members ...Role) map[Role]struct{} {
	set := make(map[Role]struct{}, len(members))
	for _, m := range members {
		set[m] = struct{}{}
	}
	return set
}

// Capabilities returns every declared capability name.
func Capabilities() []Capability {
	return []Capability{
		CapViewHexGrid,
		CapViewExactLocation,
		CapSubmitEvidenceRequest,
		CapViewAdminLogs,
		CapMutateAdminLogs,
		CapAssignRole,
		CapToggleActive,
		CapManageBlockedDomains,
	}
}

// HasCapability resolves whether role may exercise cap. Unknown roles
// and unknown capabilities fail with a typed error instead of a silent
// deny so configuration bugs surface loudly.
func HasCapability(role Role, cap Capability) (bool, error) {
	if !role.Valid() {
		return false, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	allowed, ok := capabilityTable[cap]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownCapability, cap)
	}
	_, granted := allowed[role]
	return granted, nil
}

// Allows is HasCapability for callers that already validated their
// inputs; it fails closed on any error.
func Allows(role Role, cap Capability) bool {
	granted, err := HasCapability(role, cap)
	if err != nil {
		return false
	}
	return granted
}

// AllowedRoles returns the roles holding cap, in rank order.
func AllowedRoles(cap Capability) ([]Role, error) {
	allowed, ok := capabilityTable[cap]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCapability, cap)
	}
	members := make([]Role, 0, len(allowed))
	for _, role := range All() {
		if _, granted := allowed[role]; granted {
			members = append(members, role)
		}
	}
	return members, nil
}

// GrantedTo lists the capabilities role holds.
func GrantedTo(role Role) ([]Capability, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	granted := make([]Capability, 0, len(capabilityTable))
	for _, cap := range Capabilities() {
		if _, ok := capabilityTable[cap][role]; ok {
			granted = append(granted, cap)
		}
	}
	return granted, nil
}
