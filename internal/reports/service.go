package reports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/watchplus/watchplus/internal/roles"
	"github.com/watchplus/watchplus/internal/rules"
	"github.com/watchplus/watchplus/internal/visibility"
)

// ErrPermissionDenied indicates the caller may not perform the
// operation.
var ErrPermissionDenied = errors.New("reports: permission denied")

// DefaultEvidenceTTL is how long an evidence request stays live when
// the requester does not say otherwise.
const DefaultEvidenceTTL = 7 * 24 * time.Hour

// Service coordinates report workflows: every read passes through the
// visibility filter and every write through the rule engine.
type Service struct {
	repo   Repository
	engine *rules.Engine
}

// NewService constructs the service.
func NewService(repo Repository, engine *rules.Engine) *Service {
	return &Service{repo: repo, engine: engine}
}

// CreateReportInput carries the fields a reporter supplies.
type CreateReportInput struct {
	ReporterName string
	Lat          float64
	Lng          float64
	HexCell      string
	Category     string
	Description  string
	VisibleTo    []string
}

// CreateReport files a new incident report for the caller.
func (s *Service) CreateReport(ctx context.Context, caller roles.Caller, in CreateReportInput) (*IncidentReport, error) {
	if err := s.engine.Allow(rules.CollectionIncidentReports, rules.OpCreate, caller, rules.Document{}); err != nil {
		return nil, err
	}
	visibleTo, err := parseRoles(in.VisibleTo)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	rec := IncidentReport{
		ID:           uuid.NewString(),
		ReporterUID:  caller.UID,
		ReporterName: in.ReporterName,
		Lat:          in.Lat,
		Lng:          in.Lng,
		HexCell:      in.HexCell,
		Category:     in.Category,
		Description:  in.Description,
		VisibleTo:    visibleTo,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.CreateReport(ctx, rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetReport returns the caller's permitted view of one report. The
// reporter always sees their own submission unredacted.
func (s *Service) GetReport(ctx context.Context, caller roles.Caller, id string) (*visibility.RedactedIncident, error) {
	rec, err := s.repo.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.engine.Allow(rules.CollectionIncidentReports, rules.OpRead, caller, documentOf(*rec)); err != nil {
		return nil, err
	}
	view := s.redact(*rec, caller)
	return &view, nil
}

// ListReports returns the page of reports the caller may see, each
// shaped for the caller's role. Records the rule engine denies are
// dropped from the page rather than failing the request.
func (s *Service) ListReports(ctx context.Context, caller roles.Caller, f ListFilters) ([]visibility.RedactedIncident, bool, error) {
	if err := s.engine.Allow(rules.CollectionIncidentReports, rules.OpRead, caller, rules.Document{}); err != nil {
		return nil, false, err
	}
	records, hasNext, err := s.repo.ListReports(ctx, f)
	if err != nil {
		return nil, false, err
	}
	views := make([]visibility.RedactedIncident, 0, len(records))
	for _, rec := range records {
		if s.engine.Allow(rules.CollectionIncidentReports, rules.OpRead, caller, documentOf(rec)) != nil {
			continue
		}
		views = append(views, s.redact(rec, caller))
	}
	return views, hasNext, nil
}

// Heatmap returns per-cell incident counts for the hex-grid view.
// Cells are coarse by construction so no redaction applies, but the
// grid itself is a premium surface: the caller must hold viewHexGrid.
func (s *Service) Heatmap(ctx context.Context, caller roles.Caller, category string) ([]HexCellCount, error) {
	if !caller.Can(roles.CapViewHexGrid) {
		return nil, fmt.Errorf("%w: heatmap requires viewHexGrid", ErrPermissionDenied)
	}
	return s.repo.CountByHexCell(ctx, category)
}

// UpdateReportInput carries the mutable report fields.
type UpdateReportInput struct {
	Category    string
	Description string
	VisibleTo   []string
}

// UpdateReport rewrites a report; owner or admin rank and above.
func (s *Service) UpdateReport(ctx context.Context, caller roles.Caller, id string, in UpdateReportInput) (*IncidentReport, error) {
	rec, err := s.repo.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.engine.Allow(rules.CollectionIncidentReports, rules.OpUpdate, caller, documentOf(*rec)); err != nil {
		return nil, err
	}
	visibleTo, err := parseRoles(in.VisibleTo)
	if err != nil {
		return nil, err
	}
	rec.Category = in.Category
	rec.Description = in.Description
	rec.VisibleTo = visibleTo
	rec.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateReport(ctx, *rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// DeleteReport removes a report; owner or admin rank and above.
func (s *Service) DeleteReport(ctx context.Context, caller roles.Caller, id string) error {
	rec, err := s.repo.GetReport(ctx, id)
	if err != nil {
		return err
	}
	if err := s.engine.Allow(rules.CollectionIncidentReports, rules.OpDelete, caller, documentOf(*rec)); err != nil {
		return err
	}
	return s.repo.DeleteReport(ctx, id)
}

// EvidenceRequestInput carries the fields of a new footage request.
type EvidenceRequestInput struct {
	Description string
	VisibleTo   []string
	TTL         time.Duration
}

// SubmitEvidenceRequest files a footage request against an incident.
// Only holders of the evidence capability may submit; when no
// allow-list is given the request is addressed to the professional
// tier.
func (s *Service) SubmitEvidenceRequest(ctx context.Context, caller roles.Caller, incidentID string, in EvidenceRequestInput) (*EvidenceRequest, error) {
	if !caller.Can(roles.CapSubmitEvidenceRequest) {
		return nil, fmt.Errorf("%w: submit evidence request", ErrPermissionDenied)
	}
	if _, err := s.repo.GetReport(ctx, incidentID); err != nil {
		return nil, err
	}
	visibleTo, err := parseRoles(in.VisibleTo)
	if err != nil {
		return nil, err
	}
	if len(visibleTo) == 0 {
		if visibleTo, err = roles.AllowedRoles(roles.CapSubmitEvidenceRequest); err != nil {
			return nil, err
		}
	}
	ttl := in.TTL
	if ttl <= 0 {
		ttl = DefaultEvidenceTTL
	}
	now := time.Now().UTC()
	req := EvidenceRequest{
		ID:           uuid.NewString(),
		IncidentID:   incidentID,
		RequesterUID: caller.UID,
		Description:  in.Description,
		VisibleTo:    visibleTo,
		ExpiresAt:    now.Add(ttl),
		CreatedAt:    now,
	}
	if err := s.repo.CreateEvidenceRequest(ctx, req); err != nil {
		return nil, err
	}
	return &req, nil
}

// GetEvidenceRequest returns a live request when the caller is its
// requester or both holds the capability and is on its allow-list.
func (s *Service) GetEvidenceRequest(ctx context.Context, caller roles.Caller, id string) (*EvidenceRequest, error) {
	req, err := s.repo.GetEvidenceRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if caller.UID != req.RequesterUID && !visibility.CanViewEvidenceRequest(req.VisibleTo, caller.Role) {
		return nil, fmt.Errorf("%w: evidence request %s", ErrPermissionDenied, id)
	}
	if !caller.Active {
		return nil, fmt.Errorf("%w: account suspended", ErrPermissionDenied)
	}
	return req, nil
}

// ListOpenEvidenceRequests returns the live requests addressed to the
// caller, plus the caller's own.
func (s *Service) ListOpenEvidenceRequests(ctx context.Context, caller roles.Caller) ([]EvidenceRequest, error) {
	if !caller.Authenticated() || !caller.Active {
		return nil, fmt.Errorf("%w: list evidence requests", ErrPermissionDenied)
	}
	requests, err := s.repo.ListOpenEvidenceRequests(ctx, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	visible := requests[:0]
	for _, req := range requests {
		if req.RequesterUID == caller.UID || visibility.CanViewEvidenceRequest(req.VisibleTo, caller.Role) {
			visible = append(visible, req)
		}
	}
	return visible, nil
}

// ListArchived returns archived requests: all of them for admin rank
// and above, the caller's own otherwise.
func (s *Service) ListArchived(ctx context.Context, caller roles.Caller) ([]ArchivedRequest, error) {
	if err := s.engine.Allow(rules.CollectionArchivedRequests, rules.OpRead, caller, rules.Document{OwnerUID: caller.UID}); err != nil {
		return nil, err
	}
	if rules.IsAdmin(caller) {
		return s.repo.ListArchived(ctx, "")
	}
	return s.repo.ListArchived(ctx, caller.UID)
}

// ArchiveExpired moves expired evidence requests to the archive. Run
// by the background worker, not by request callers.
func (s *Service) ArchiveExpired(ctx context.Context, now time.Time) (int, error) {
	return s.repo.ArchiveExpired(ctx, now)
}

// redact shapes a record for the caller; reporters keep the full view
// of their own submissions.
func (s *Service) redact(rec IncidentReport, caller roles.Caller) visibility.RedactedIncident {
	view := visibility.RedactIncident(rec.asVisibility(), caller.Role)
	if caller.UID == rec.ReporterUID {
		exact := visibility.Coordinates{Lat: rec.Lat, Lng: rec.Lng}
		view.Exact = &exact
		view.ReporterUID = rec.ReporterUID
		view.ReporterName = rec.ReporterName
	}
	return view
}

func documentOf(rec IncidentReport) rules.Document {
	return rules.Document{OwnerUID: rec.ReporterUID, VisibleTo: rec.VisibleTo}
}

func parseRoles(raw []string) ([]roles.Role, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]roles.Role, 0, len(raw))
	for _, value := range raw {
		role, err := roles.Parse(value)
		if err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	return out, nil
}
