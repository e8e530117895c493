// Package cli holds operational helpers invoked through the main
// binary's subcommands.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/watchplus/watchplus/internal/adminlog"
	"github.com/watchplus/watchplus/internal/roles"
)

// BootstrapAdmin creates or promotes the first super_admin account.
// It writes storage directly: the normal mutation path requires an
// existing super_admin actor, which a fresh deployment does not have.
// The promotion is still recorded in the admin log.
func BootstrapAdmin(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("bootstrap-admin", flag.ContinueOnError)
	email := fs.String("email", "", "email of the account to create or promote")
	password := fs.String("password", "", "initial password when creating a new account")
	name := fs.String("name", "Platform Admin", "display name for a newly created account")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return errors.New("bootstrap-admin: -email is required")
	}
	normalized := strings.ToLower(strings.TrimSpace(*email))

	var (
		uid      string
		prevRole string
	)
	err := pool.QueryRow(ctx, `SELECT uid, role FROM users WHERE email = $1`, normalized).Scan(&uid, &prevRole)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		if *password == "" {
			return errors.New("bootstrap-admin: -password is required when the account does not exist")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		uid = uuid.NewString()
		now := time.Now().UTC()
		_, err = pool.Exec(ctx, `
			INSERT INTO users (uid, email, display_name, role, is_active, role_version, password_hash, created_at, updated_at)
			VALUES ($1, $2, $3, $4, TRUE, 0, $5, $6, $6)`,
			uid, normalized, strings.TrimSpace(*name), string(roles.RoleSuperAdmin), string(hash), now)
		if err != nil {
			return fmt.Errorf("create account: %w", err)
		}
		logger.Info("created super admin", slog.String("uid", uid), slog.String("email", normalized))
	case err != nil:
		return err
	default:
		if prevRole == string(roles.RoleSuperAdmin) {
			logger.Info("account already super admin", slog.String("uid", uid))
			return nil
		}
		tag, err := pool.Exec(ctx, `
			UPDATE users SET role = $2, is_active = TRUE, role_version = role_version + 1, updated_at = $3
			WHERE uid = $1`,
			uid, string(roles.RoleSuperAdmin), time.Now().UTC())
		if err != nil {
			return fmt.Errorf("promote account: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return errors.New("bootstrap-admin: account vanished during promotion")
		}
		logger.Info("promoted to super admin", slog.String("uid", uid), slog.String("from", prevRole))
	}

	_, err = adminlog.Append(ctx, pool, adminlog.Entry{
		ActorUID:     "bootstrap",
		ActorRole:    roles.RoleSuperAdmin,
		Action:       adminlog.ActionAssignRole,
		TargetUID:    uid,
		PreviousRole: roles.Role(prevRole),
		NewRole:      roles.RoleSuperAdmin,
		Note:         "bootstrap-admin",
	})
	return err
}
