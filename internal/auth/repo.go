package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/watchplus/watchplus/internal/shared"
)

// Repository defines persistence operations for the auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*Credential, error)
	SetPassword(ctx context.Context, uid, passwordHash string) error
	CreateSession(ctx context.Context, id, uid string, expiresAt time.Time, ip, ua string) error
	DeleteSession(ctx context.Context, id string) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByEmail fetches login credentials by email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*Credential, error) {
	var cred Credential
	err := r.pool.QueryRow(ctx, `
		SELECT uid, email, COALESCE(password_hash, ''), is_active
		FROM users WHERE email = $1`, strings.ToLower(email)).
		Scan(&cred.UID, &cred.Email, &cred.PasswordHash, &cred.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &cred, nil
}

// SetPassword stores the bcrypt hash for an account.
func (r *PGRepository) SetPassword(ctx context.Context, uid, passwordHash string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = $3 WHERE uid = $1`,
		uid, passwordHash, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CreateSession persists login session metadata for auditing.
func (r *PGRepository) CreateSession(ctx context.Context, id, uid string, expiresAt time.Time, ip, ua string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sessions (id, uid, created_at, expires_at, ip, ua)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''))`,
		id, uid, time.Now().UTC(), expiresAt.UTC(), ip, ua)
	return err
}

// DeleteSession removes a session record.
func (r *PGRepository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

var _ Repository = (*PGRepository)(nil)
