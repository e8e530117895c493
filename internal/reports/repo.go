package reports

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/watchplus/watchplus/internal/platform/db"
	"github.com/watchplus/watchplus/internal/roles"
	"github.com/watchplus/watchplus/internal/shared"
)

// Repository defines persistence operations for incident reports and
// evidence requests.
type Repository interface {
	GetReport(ctx context.Context, id string) (*IncidentReport, error)
	ListReports(ctx context.Context, f ListFilters) ([]IncidentReport, bool, error)
	CountByHexCell(ctx context.Context, category string) ([]HexCellCount, error)
	CreateReport(ctx context.Context, rec IncidentReport) error
	UpdateReport(ctx context.Context, rec IncidentReport) error
	DeleteReport(ctx context.Context, id string) error

	CreateEvidenceRequest(ctx context.Context, req EvidenceRequest) error
	GetEvidenceRequest(ctx context.Context, id string) (*EvidenceRequest, error)
	ListOpenEvidenceRequests(ctx context.Context, now time.Time) ([]EvidenceRequest, error)

	ListArchived(ctx context.Context, requesterUID string) ([]ArchivedRequest, error)
	ArchiveExpired(ctx context.Context, now time.Time) (int, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const reportColumns = `id, reporter_uid, reporter_name, lat, lng, hex_cell, category, description, visible_to, created_at, updated_at`

// GetReport fetches a report by id.
func (r *PGRepository) GetReport(ctx context.Context, id string) (*IncidentReport, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+reportColumns+` FROM incident_reports WHERE id = $1`, id)
	return scanReport(row)
}

// ListReports returns a page of reports, newest first, plus a hasNext
// flag obtained by fetching one row beyond the page.
func (r *PGRepository) ListReports(ctx context.Context, f ListFilters) ([]IncidentReport, bool, error) {
	page := shared.NormalizePage(f.Page, f.PageSize, 25)

	query := `SELECT ` + reportColumns + ` FROM incident_reports WHERE 1=1`
	args := []any{}
	if f.Category != "" {
		args = append(args, f.Category)
		query += ` AND category = $1`
	}
	if f.HexCell != "" {
		args = append(args, f.HexCell)
		query += ` AND hex_cell = ` + placeholder(len(args))
	}
	args = append(args, page.Limit(), page.Offset())
	query += ` ORDER BY created_at DESC LIMIT ` + placeholder(len(args)-1) + ` OFFSET ` + placeholder(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	var records []IncidentReport
	for rows.Next() {
		rec, err := scanReport(rows)
		if err != nil {
			return nil, false, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	hasNext := len(records) > page.Size
	if hasNext {
		records = records[:page.Size]
	}
	return records, hasNext, nil
}

// CreateReport inserts a report.
func (r *PGRepository) CreateReport(ctx context.Context, rec IncidentReport) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO incident_reports (`+reportColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID, rec.ReporterUID, rec.ReporterName, rec.Lat, rec.Lng, rec.HexCell,
		rec.Category, rec.Description, rolesToStrings(rec.VisibleTo), rec.CreatedAt, rec.UpdatedAt)
	return err
}

// CountByHexCell aggregates incident counts per hex cell, busiest
// cells first.
func (r *PGRepository) CountByHexCell(ctx context.Context, category string) ([]HexCellCount, error) {
	query := `SELECT hex_cell, COUNT(*) FROM incident_reports`
	args := []any{}
	if category != "" {
		args = append(args, category)
		query += ` WHERE category = $1`
	}
	query += ` GROUP BY hex_cell ORDER BY COUNT(*) DESC, hex_cell`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cells []HexCellCount
	for rows.Next() {
		var cell HexCellCount
		if err := rows.Scan(&cell.HexCell, &cell.Count); err != nil {
			return nil, err
		}
		cells = append(cells, cell)
	}
	return cells, rows.Err()
}

// UpdateReport rewrites the mutable fields of a report.
func (r *PGRepository) UpdateReport(ctx context.Context, rec IncidentReport) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE incident_reports
		SET category = $2, description = $3, visible_to = $4, updated_at = $5
		WHERE id = $1`,
		rec.ID, rec.Category, rec.Description, rolesToStrings(rec.VisibleTo), time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// DeleteReport removes a report.
func (r *PGRepository) DeleteReport(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM incident_reports WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

const evidenceColumns = `id, incident_id, requester_uid, description, visible_to, expires_at, created_at`

// CreateEvidenceRequest inserts an evidence request.
func (r *PGRepository) CreateEvidenceRequest(ctx context.Context, req EvidenceRequest) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO evidence_requests (`+evidenceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		req.ID, req.IncidentID, req.RequesterUID, req.Description,
		rolesToStrings(req.VisibleTo), req.ExpiresAt, req.CreatedAt)
	return err
}

// GetEvidenceRequest fetches a live evidence request by id.
func (r *PGRepository) GetEvidenceRequest(ctx context.Context, id string) (*EvidenceRequest, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+evidenceColumns+` FROM evidence_requests WHERE id = $1`, id)
	return scanEvidenceRequest(row)
}

// ListOpenEvidenceRequests returns requests that have not yet expired.
func (r *PGRepository) ListOpenEvidenceRequests(ctx context.Context, now time.Time) ([]EvidenceRequest, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+evidenceColumns+` FROM evidence_requests
		WHERE expires_at > $1 ORDER BY created_at DESC`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []EvidenceRequest
	for rows.Next() {
		req, err := scanEvidenceRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

// ListArchived returns archived requests, optionally scoped to the
// original requester.
func (r *PGRepository) ListArchived(ctx context.Context, requesterUID string) ([]ArchivedRequest, error) {
	query := `SELECT ` + evidenceColumns + `, archived_at FROM archived_requests`
	args := []any{}
	if requesterUID != "" {
		query += ` WHERE requester_uid = $1`
		args = append(args, requesterUID)
	}
	query += ` ORDER BY archived_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var archived []ArchivedRequest
	for rows.Next() {
		var (
			rec     ArchivedRequest
			visible []string
		)
		err := rows.Scan(&rec.ID, &rec.IncidentID, &rec.RequesterUID, &rec.Description,
			&visible, &rec.ExpiresAt, &rec.CreatedAt, &rec.ArchivedAt)
		if err != nil {
			return nil, err
		}
		rec.VisibleTo = stringsToRoles(visible)
		archived = append(archived, rec)
	}
	return archived, rows.Err()
}

// ArchiveExpired moves expired evidence requests into the archive in a
// single transaction and reports how many were moved.
func (r *PGRepository) ArchiveExpired(ctx context.Context, now time.Time) (int, error) {
	var moved int
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO archived_requests (`+evidenceColumns+`, archived_at)
			SELECT `+evidenceColumns+`, $2 FROM evidence_requests WHERE expires_at <= $1`,
			now, now)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM evidence_requests WHERE expires_at <= $1`, now); err != nil {
			return err
		}
		moved = int(tag.RowsAffected())
		return nil
	})
	return moved, err
}

func scanReport(row pgx.Row) (*IncidentReport, error) {
	var (
		rec     IncidentReport
		visible []string
	)
	err := row.Scan(&rec.ID, &rec.ReporterUID, &rec.ReporterName, &rec.Lat, &rec.Lng,
		&rec.HexCell, &rec.Category, &rec.Description, &visible, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	rec.VisibleTo = stringsToRoles(visible)
	return &rec, nil
}

func scanEvidenceRequest(row pgx.Row) (*EvidenceRequest, error) {
	var (
		req     EvidenceRequest
		visible []string
	)
	err := row.Scan(&req.ID, &req.IncidentID, &req.RequesterUID, &req.Description,
		&visible, &req.ExpiresAt, &req.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	req.VisibleTo = stringsToRoles(visible)
	return &req, nil
}

func rolesToStrings(in []roles.Role) []string {
	out := make([]string, len(in))
	for i, role := range in {
		out[i] = string(role)
	}
	return out
}

func stringsToRoles(in []string) []roles.Role {
	if len(in) == 0 {
		return nil
	}
	out := make([]roles.Role, len(in))
	for i, raw := range in {
		out[i] = roles.Role(raw)
	}
	return out
}

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

var _ Repository = (*PGRepository)(nil)
