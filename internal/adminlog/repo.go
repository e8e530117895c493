package adminlog

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/watchplus/watchplus/internal/roles"
	"github.com/watchplus/watchplus/internal/shared"
)

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx so an append
// can ride inside the same transaction as the mutation it records.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides PostgreSQL backed persistence for audit entries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Append writes a new entry through q. The entry ID is generated here
// when absent.
func Append(ctx context.Context, q Querier, entry Entry) (string, error) {
	if entry.ActorUID == "" || entry.Action == "" {
		return "", errors.New("adminlog: entry requires actor and action")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := q.Exec(ctx, `
		INSERT INTO admin_logs (id, actor_uid, actor_role, action, target_uid, previous_role, new_role, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, entry.ActorUID, string(entry.ActorRole), entry.Action,
		nullable(entry.TargetUID), nullable(string(entry.PreviousRole)), nullable(string(entry.NewRole)),
		nullable(entry.Note), entry.CreatedAt)
	if err != nil {
		return "", err
	}
	return entry.ID, nil
}

// Append on the repository's own pool, outside any transaction.
func (r *Repository) Append(ctx context.Context, entry Entry) (string, error) {
	return Append(ctx, r.pool, entry)
}

// Get fetches a single entry.
func (r *Repository) Get(ctx context.Context, id string) (Entry, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, actor_uid, actor_role, action,
		       COALESCE(target_uid, ''), COALESCE(previous_role, ''), COALESCE(new_role, ''),
		       COALESCE(note, ''), created_at
		FROM admin_logs WHERE id = $1`, id)
	return scanEntry(row)
}

// List returns a filtered page of entries, newest first. One extra row
// is fetched to detect whether a next page exists.
func (r *Repository) List(ctx context.Context, f ListFilters) ([]Entry, bool, error) {
	page := shared.NormalizePage(f.Page, f.PageSize, 20)

	var (
		clauses []string
		args    []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, strings.Replace(clause, "?", placeholder(len(args)), 1))
	}
	if f.ActorUID != "" {
		add("actor_uid = ?", f.ActorUID)
	}
	if f.TargetUID != "" {
		add("target_uid = ?", f.TargetUID)
	}
	if f.Action != "" {
		add("action = ?", f.Action)
	}
	if !f.From.IsZero() {
		add("created_at >= ?", f.From)
	}
	if !f.To.IsZero() {
		add("created_at <= ?", f.To)
	}

	query := `
		SELECT id, actor_uid, actor_role, action,
		       COALESCE(target_uid, ''), COALESCE(previous_role, ''), COALESCE(new_role, ''),
		       COALESCE(note, ''), created_at
		FROM admin_logs`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	args = append(args, page.Limit(), page.Offset())
	query += " ORDER BY created_at DESC LIMIT " + placeholder(len(args)-1) + " OFFSET " + placeholder(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, false, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	hasNext := len(entries) > page.Size
	if hasNext {
		entries = entries[:page.Size]
	}
	return entries, hasNext, nil
}

// Correct rewrites the note of an erroneous entry.
func (r *Repository) Correct(ctx context.Context, id, note string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE admin_logs SET note = $2 WHERE id = $1`, id, note)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes an entry.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM admin_logs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var (
		entry                            Entry
		actorRole, previousRole, newRole string
	)
	err := row.Scan(&entry.ID, &entry.ActorUID, &actorRole, &entry.Action,
		&entry.TargetUID, &previousRole, &newRole, &entry.Note, &entry.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, shared.ErrNotFound
		}
		return Entry{}, err
	}
	entry.ActorRole = roles.Role(actorRole)
	entry.PreviousRole = roles.Role(previousRole)
	entry.NewRole = roles.Role(newRole)
	return entry, nil
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}
