package roles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAcceptsClosedSet(t *testing.T) {
	for _, role := range All() {
		parsed, err := Parse(string(role))
		require.NoError(t, err)
		assert.Equal(t, role, parsed)
	}
}

func TestParseRejectsUnknownValues(t *testing.T) {
	for _, value := range []string{"", "insurance", "security", "Admin", "super-admin", "root"} {
		_, err := Parse(value)
		assert.ErrorIs(t, err, ErrInvalidRole, "value %q", value)
	}
}

func TestRankIsReflexive(t *testing.T) {
	for _, role := range All() {
		rank, err := GetRank(role)
		require.NoError(t, err)
		assert.True(t, AtLeast(role, rank), "atLeast(%s, rank(%s))", role, role)
	}
}

func TestRankOrdering(t *testing.T) {
	assert.True(t, AtLeast(RoleSuperAdmin, RankAdmin))
	assert.True(t, AtLeast(RoleAdmin, RankAdmin))
	assert.False(t, AtLeast(RolePolice, RankAdmin))
	assert.False(t, AtLeast(RoleBusiness, RankProfessional))

	// police and premium_business are siblings: same rank, neither
	// dominates.
	policeRank, err := GetRank(RolePolice)
	require.NoError(t, err)
	premiumRank, err := GetRank(RolePremiumBusiness)
	require.NoError(t, err)
	assert.Equal(t, policeRank, premiumRank)
}

func TestAtLeastFailsClosedForUnknownRole(t *testing.T) {
	assert.False(t, AtLeast(Role("insurance"), RankUser))
}

func TestRequiredGrantRank(t *testing.T) {
	cases := []struct {
		newRole Role
		want    Rank
	}{
		{RoleUser, RankAdmin},
		{RoleBusiness, RankAdmin},
		{RolePremiumBusiness, RankAdmin},
		{RolePolice, RankAdmin},
		{RoleAdmin, RankSuperAdmin},
		{RoleSuperAdmin, RankSuperAdmin},
	}
	for _, tc := range cases {
		got, err := RequiredGrantRank(tc.newRole)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "grant rank for %s", tc.newRole)
	}

	_, err := RequiredGrantRank(Role("security"))
	assert.ErrorIs(t, err, ErrInvalidRole)
}
