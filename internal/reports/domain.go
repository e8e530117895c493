// Package reports manages incident reports and the evidence requests
// scoped to them. Reads are shaped by the visibility filter; writes are
// gated by the rule engine.
package reports

import (
	"errors"
	"time"

	"github.com/watchplus/watchplus/internal/roles"
	"github.com/watchplus/watchplus/internal/visibility"
)

// ErrExpired indicates an evidence request past its expiry.
var ErrExpired = errors.New("reports: evidence request expired")

// IncidentReport is the stored, unredacted incident record. HexCell is
// the opaque coarse-grid identifier computed upstream; it is safe to
// show to every tier.
type IncidentReport struct {
	ID           string       `json:"id"`
	ReporterUID  string       `json:"reporterUid"`
	ReporterName string       `json:"reporterName"`
	Lat          float64      `json:"lat"`
	Lng          float64      `json:"lng"`
	HexCell      string       `json:"hexCell"`
	Category     string       `json:"category"`
	Description  string       `json:"description"`
	VisibleTo    []roles.Role `json:"visibleTo,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// EvidenceRequest asks holders of the footage capability for material
// related to an incident. VisibleTo is an explicit allow-list; the
// request disappears from feeds after ExpiresAt and is archived by a
// background job.
type EvidenceRequest struct {
	ID           string       `json:"id"`
	IncidentID   string       `json:"incidentId"`
	RequesterUID string       `json:"requesterUid"`
	Description  string       `json:"description"`
	VisibleTo    []roles.Role `json:"visibleTo"`
	ExpiresAt    time.Time    `json:"expiresAt"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// ArchivedRequest is an evidence request moved out of the live
// collection after expiry.
type ArchivedRequest struct {
	EvidenceRequest
	ArchivedAt time.Time `json:"archivedAt"`
}

// ListFilters narrows report listings.
type ListFilters struct {
	Category string
	HexCell  string
	Page     int
	PageSize int
}

// HexCellCount is one heatmap bucket: how many incidents fall in a
// hex cell. Cells carry no exact coordinates, so the aggregate is safe
// for every tier that may see the grid at all.
type HexCellCount struct {
	HexCell string `json:"hexCell"`
	Count   int    `json:"count"`
}

// asVisibility maps the stored record into the filter's input shape.
func (rec IncidentReport) asVisibility() visibility.Incident {
	return visibility.Incident{
		ID:           rec.ID,
		ReporterUID:  rec.ReporterUID,
		ReporterName: rec.ReporterName,
		Exact:        visibility.Coordinates{Lat: rec.Lat, Lng: rec.Lng},
		HexCell:      rec.HexCell,
		Category:     rec.Category,
		Description:  rec.Description,
		VisibleTo:    rec.VisibleTo,
		CreatedAt:    rec.CreatedAt,
	}
}
