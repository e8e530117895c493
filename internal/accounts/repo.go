package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/watchplus/watchplus/internal/adminlog"
	"github.com/watchplus/watchplus/internal/platform/db"
	"github.com/watchplus/watchplus/internal/roles"
	"github.com/watchplus/watchplus/internal/shared"
)

// Repository defines persistence operations for accounts.
type Repository interface {
	Get(ctx context.Context, uid string) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	List(ctx context.Context, f ListFilters) ([]Account, int, error)
	Create(ctx context.Context, account Account) error
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the transactional unit of a role mutation: the
// conditional account update and the audit append, both or neither.
type TxRepository interface {
	UpdateRole(ctx context.Context, uid string, newRole roles.Role, expectedVersion int64) error
	SetActive(ctx context.Context, uid string, active bool, expectedVersion int64) error
	AppendLog(ctx context.Context, entry adminlog.Entry) (string, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const accountColumns = `uid, email, COALESCE(display_name, ''), role, is_active, role_version, created_at, updated_at`

// Get fetches an account by uid.
func (r *PGRepository) Get(ctx context.Context, uid string) (*Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM users WHERE uid = $1`, uid)
	return scanAccount(row)
}

// GetByEmail fetches an account by email.
func (r *PGRepository) GetByEmail(ctx context.Context, email string) (*Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM users WHERE email = $1`, strings.ToLower(email))
	return scanAccount(row)
}

// FindCaller resolves the request caller from current storage state.
// The stored role is validated against the closed set; an unknown
// value is a data bug and surfaces as an error rather than a deny.
func (r *PGRepository) FindCaller(ctx context.Context, uid string) (roles.Caller, error) {
	account, err := r.Get(ctx, uid)
	if err != nil {
		return roles.Caller{}, err
	}
	role, err := roles.Parse(string(account.Role))
	if err != nil {
		return roles.Caller{}, fmt.Errorf("account %s: %w", uid, err)
	}
	return roles.Caller{UID: account.UID, Role: role, Active: account.IsActive}, nil
}

// List returns a page of accounts plus the total matching the same
// filters, fetching both concurrently.
func (r *PGRepository) List(ctx context.Context, f ListFilters) ([]Account, int, error) {
	page := shared.NormalizePage(f.Page, f.PageSize, 25)

	where := ""
	var args []any
	if f.Role != "" {
		args = append(args, string(f.Role))
		where = " WHERE role = $1"
	}
	if f.Search != "" {
		args = append(args, "%"+strings.ToLower(f.Search)+"%")
		clause := fmt.Sprintf("email LIKE $%d", len(args))
		if where == "" {
			where = " WHERE " + clause
		} else {
			where += " AND " + clause
		}
	}

	var (
		accounts []Account
		total    int
	)
	pageArgs := append(append([]any{}, args...), page.Size, page.Offset())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		query := fmt.Sprintf(`SELECT %s FROM users%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
			accountColumns, where, len(args)+1, len(args)+2)
		rows, err := r.pool.Query(gctx, query, pageArgs...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			account, err := scanAccount(rows)
			if err != nil {
				return err
			}
			accounts = append(accounts, *account)
		}
		return rows.Err()
	})
	g.Go(func() error {
		return r.pool.QueryRow(gctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&total)
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return accounts, total, nil
}

// Create inserts a new account. New accounts start at role user.
func (r *PGRepository) Create(ctx context.Context, account Account) error {
	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (uid, email, display_name, role, is_active, role_version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $6)`,
		account.UID, strings.ToLower(account.Email), account.DisplayName,
		string(account.Role), account.IsActive, now)
	return err
}

type pgTxRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTxRepo{tx: tx})
	})
}

// UpdateRole applies the mutation only when role_version still matches
// the value the service read; a losing concurrent writer sees
// ErrConflict.
func (t *pgTxRepo) UpdateRole(ctx context.Context, uid string, newRole roles.Role, expectedVersion int64) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE users SET role = $2, role_version = role_version + 1, updated_at = NOW()
		WHERE uid = $1 AND role_version = $3`,
		uid, string(newRole), expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// SetActive follows the same conditional-write contract as UpdateRole.
func (t *pgTxRepo) SetActive(ctx context.Context, uid string, active bool, expectedVersion int64) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE users SET is_active = $2, role_version = role_version + 1, updated_at = NOW()
		WHERE uid = $1 AND role_version = $3`,
		uid, active, expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// AppendLog writes the audit entry inside the same transaction.
func (t *pgTxRepo) AppendLog(ctx context.Context, entry adminlog.Entry) (string, error) {
	return adminlog.Append(ctx, t.tx, entry)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*Account, error) {
	var (
		account Account
		role    string
	)
	err := row.Scan(&account.UID, &account.Email, &account.DisplayName, &role,
		&account.IsActive, &account.RoleVersion, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	account.Role = roles.Role(role)
	return &account, nil
}

var _ Repository = (*PGRepository)(nil)
