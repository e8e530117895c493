package roles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wantMatrix mirrors the declared capability table role by role. The
// test walks the full role x capability grid so a table edit that
// drops or widens a grant cannot slip through.
var wantMatrix = map[Capability][]Role{
	CapViewHexGrid:           {RolePremiumBusiness, RolePolice, RoleAdmin, RoleSuperAdmin},
	CapViewExactLocation:     {RolePolice, RolePremiumBusiness, RoleAdmin, RoleSuperAdmin},
	CapSubmitEvidenceRequest: {RolePolice, RolePremiumBusiness},
	CapViewAdminLogs:         {RoleAdmin, RoleSuperAdmin},
	CapMutateAdminLogs:       {RoleSuperAdmin},
	CapAssignRole:            {RoleAdmin, RoleSuperAdmin},
	CapToggleActive:          {RoleAdmin, RoleSuperAdmin},
	CapManageBlockedDomains:  {RoleSuperAdmin},
}

func TestCapabilityMatrix(t *testing.T) {
	require.ElementsMatch(t, Capabilities(), capabilityNames(), "matrix must cover every declared capability")

	for cap, allowed := range wantMatrix {
		allowedSet := make(map[Role]bool, len(allowed))
		for _, role := range allowed {
			allowedSet[role] = true
		}
		for _, role := range All() {
			granted, err := HasCapability(role, cap)
			require.NoError(t, err)
			assert.Equal(t, allowedSet[role], granted, "hasCapability(%s, %s)", role, cap)
		}
	}
}

func capabilityNames() []Capability {
	names := make([]Capability, 0, len(wantMatrix))
	for cap := range wantMatrix {
		names = append(names, cap)
	}
	return names
}

func TestBaseTiersNeverSeeLocationData(t *testing.T) {
	for _, role := range []Role{RoleUser, RoleBusiness} {
		assert.False(t, Allows(role, CapViewExactLocation), "%s must not view exact locations", role)
		assert.False(t, Allows(role, CapViewHexGrid), "%s must not view the hex grid", role)
	}
	for _, role := range []Role{RolePremiumBusiness, RolePolice, RoleAdmin, RoleSuperAdmin} {
		assert.True(t, Allows(role, CapViewHexGrid), "%s must view the hex grid", role)
	}
}

func TestHasCapabilitySignalsConfigurationBugs(t *testing.T) {
	_, err := HasCapability(Role("insurance"), CapViewHexGrid)
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, err = HasCapability(RoleAdmin, Capability("viewEverything"))
	assert.ErrorIs(t, err, ErrUnknownCapability)
}

func TestAllowsFailsClosed(t *testing.T) {
	assert.False(t, Allows(Role("insurance"), CapViewHexGrid))
	assert.False(t, Allows(RoleAdmin, Capability("viewEverything")))
}

func TestAllowedRolesOrdering(t *testing.T) {
	got, err := AllowedRoles(CapSubmitEvidenceRequest)
	require.NoError(t, err)
	assert.Equal(t, []Role{RolePremiumBusiness, RolePolice}, got)
}

func TestCallerSuppressesCapabilitiesWhenInactive(t *testing.T) {
	active := Caller{UID: "u1", Role: RoleSuperAdmin, Active: true}
	suspended := Caller{UID: "u1", Role: RoleSuperAdmin, Active: false}

	assert.True(t, active.Can(CapManageBlockedDomains))
	assert.False(t, suspended.Can(CapManageBlockedDomains))
	assert.False(t, suspended.AtLeast(RankUser))

	var anonymous Caller
	assert.False(t, anonymous.Can(CapViewHexGrid))
}
