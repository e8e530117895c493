// Package visibility shapes records for a requesting role: exact
// coordinates and reporter identity are stripped unless the requester
// holds the matching capability, and per-record allow-lists are
// intersected with, never substituted for, capability checks.
package visibility

import (
	"time"

	"github.com/watchplus/watchplus/internal/roles"
)

// Coordinates is an exact GPS position.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Incident is the unredacted view of an incident record.
type Incident struct {
	ID           string
	ReporterUID  string
	ReporterName string
	Exact        Coordinates
	HexCell      string
	Category     string
	Description  string
	VisibleTo    []roles.Role
	CreatedAt    time.Time
}

// RedactedIncident is what a requester is allowed to observe. Exact is
// nil when the requester may only see the coarse hex cell.
type RedactedIncident struct {
	ID           string       `json:"id"`
	ReporterUID  string       `json:"reporterUid,omitempty"`
	ReporterName string       `json:"reporterName,omitempty"`
	Exact        *Coordinates `json:"exactLocation,omitempty"`
	HexCell      string       `json:"hexCell"`
	Category     string       `json:"category"`
	Description  string       `json:"description"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// AnonymousReporter replaces reporter identity for community-tier
// requesters.
const AnonymousReporter = "anonymous"

// RedactIncident produces the view of rec permitted to requester.
func RedactIncident(rec Incident, requester roles.Role) RedactedIncident {
	out := RedactedIncident{
		ID:           rec.ID,
		ReporterUID:  rec.ReporterUID,
		ReporterName: rec.ReporterName,
		HexCell:      rec.HexCell,
		Category:     rec.Category,
		Description:  rec.Description,
		CreatedAt:    rec.CreatedAt,
	}
	if roles.Allows(requester, roles.CapViewExactLocation) {
		exact := rec.Exact
		out.Exact = &exact
	}
	// Community requesters never learn who reported, whatever other
	// capabilities they hold.
	if requester == roles.RoleUser {
		out.ReporterUID = ""
		out.ReporterName = AnonymousReporter
	}
	return out
}

// AddressedTo evaluates a record's visibleTo allow-list for requester.
// An empty list means the record is not scoped.
func AddressedTo(visibleTo []roles.Role, requester roles.Role) bool {
	if len(visibleTo) == 0 {
		return true
	}
	for _, role := range visibleTo {
		if role == requester {
			return true
		}
	}
	return false
}

// CanViewEvidenceRequest intersects the allow-list with the capability
// check: a requester must hold submitEvidenceRequest AND be addressed
// by the record. Elevated capabilities alone do not widen the list.
func CanViewEvidenceRequest(visibleTo []roles.Role, requester roles.Role) bool {
	if !roles.Allows(requester, roles.CapSubmitEvidenceRequest) {
		return false
	}
	return AddressedTo(visibleTo, requester)
}
