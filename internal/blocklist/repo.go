package blocklist

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/watchplus/watchplus/internal/shared"
)

// ErrAlreadyBlocked indicates the domain is already on the list.
var ErrAlreadyBlocked = errors.New("blocklist: domain already blocked")

// Store is the persistence surface for blocked domains.
type Store interface {
	Insert(ctx context.Context, record BlockedDomain) error
	Remove(ctx context.Context, domain string) error
	Exists(ctx context.Context, domain string) (bool, error)
	List(ctx context.Context) ([]BlockedDomain, error)
}

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewStore constructs a PostgreSQL store.
func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Insert adds a domain to the list.
func (s *PGStore) Insert(ctx context.Context, record BlockedDomain) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO blocked_emails (domain, blocked_by, created_at) VALUES ($1, $2, $3)`,
		record.Domain, record.BlockedBy, record.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyBlocked
		}
		return err
	}
	return nil
}

// Remove deletes a domain from the list.
func (s *PGStore) Remove(ctx context.Context, domain string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM blocked_emails WHERE domain = $1`, domain)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Exists reports whether a domain is blocked.
func (s *PGStore) Exists(ctx context.Context, domain string) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx, `SELECT 1 FROM blocked_emails WHERE domain = $1`, domain).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// List returns all blocked domains.
func (s *PGStore) List(ctx context.Context) ([]BlockedDomain, error) {
	rows, err := s.pool.Query(ctx, `SELECT domain, blocked_by, created_at FROM blocked_emails ORDER BY domain`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []BlockedDomain
	for rows.Next() {
		var record BlockedDomain
		if err := rows.Scan(&record.Domain, &record.BlockedBy, &record.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

var _ Store = (*PGStore)(nil)
