// Package auth establishes identity: signup, credential login, and
// session bookkeeping. Everything role-related lives elsewhere; a
// session carries only the account uid so the effective role is
// re-read from storage on every request.
package auth

import "errors"

// ErrDomainBlocked indicates the signup email belongs to a blocked
// domain.
var ErrDomainBlocked = errors.New("auth: email domain is blocked")

// ErrEmailTaken indicates the signup email is already registered.
var ErrEmailTaken = errors.New("auth: email already registered")

// Credential is the login-relevant slice of an account record.
type Credential struct {
	UID          string
	Email        string
	PasswordHash string
	IsActive     bool
}
