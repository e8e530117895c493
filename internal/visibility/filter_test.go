package visibility

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchplus/watchplus/internal/roles"
)

func sampleIncident() Incident {
	return Incident{
		ID:           "inc-1",
		ReporterUID:  "reporter-uid",
		ReporterName: "Jo Reporter",
		Exact:        Coordinates{Lat: 51.5007, Lng: -0.1246},
		HexCell:      "8928308280fffff",
		Category:     "vandalism",
		Description:  "broken window",
		CreatedAt:    time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestRedactIncidentForCommunityUser(t *testing.T) {
	out := RedactIncident(sampleIncident(), roles.RoleUser)

	assert.Nil(t, out.Exact, "community tier must not see coordinates")
	assert.Equal(t, "8928308280fffff", out.HexCell)
	assert.Empty(t, out.ReporterUID)
	assert.Equal(t, AnonymousReporter, out.ReporterName)
	assert.Equal(t, "vandalism", out.Category)
}

func TestRedactIncidentForBusiness(t *testing.T) {
	out := RedactIncident(sampleIncident(), roles.RoleBusiness)

	assert.Nil(t, out.Exact)
	// Business accounts see reporter identity, just not coordinates.
	assert.Equal(t, "Jo Reporter", out.ReporterName)
}

func TestRedactIncidentForPolice(t *testing.T) {
	out := RedactIncident(sampleIncident(), roles.RolePolice)

	require.NotNil(t, out.Exact)
	assert.InDelta(t, 51.5007, out.Exact.Lat, 1e-9)
	assert.InDelta(t, -0.1246, out.Exact.Lng, 1e-9)
	assert.Equal(t, "reporter-uid", out.ReporterUID)
}

func TestRedactIncidentForElevatedRoles(t *testing.T) {
	for _, role := range []roles.Role{roles.RolePremiumBusiness, roles.RoleAdmin, roles.RoleSuperAdmin} {
		out := RedactIncident(sampleIncident(), role)
		assert.NotNil(t, out.Exact, "%s should see exact coordinates", role)
	}
}

func TestAddressedTo(t *testing.T) {
	scoped := []roles.Role{roles.RolePolice, roles.RolePremiumBusiness}

	assert.True(t, AddressedTo(scoped, roles.RolePolice))
	assert.True(t, AddressedTo(scoped, roles.RolePremiumBusiness))
	assert.False(t, AddressedTo(scoped, roles.RoleAdmin))
	assert.True(t, AddressedTo(nil, roles.RoleUser), "unscoped records are visible")
}

func TestCanViewEvidenceRequestIntersectsCapability(t *testing.T) {
	scoped := []roles.Role{roles.RolePolice}

	assert.True(t, CanViewEvidenceRequest(scoped, roles.RolePolice))
	// premium_business holds the capability but is not addressed.
	assert.False(t, CanViewEvidenceRequest(scoped, roles.RolePremiumBusiness))
	// admin is addressed by nothing here and lacks the capability; the
	// allow-list never substitutes for it.
	assert.False(t, CanViewEvidenceRequest(scoped, roles.RoleAdmin))
	assert.False(t, CanViewEvidenceRequest(nil, roles.RoleUser))
}
