package shared

import "errors"

// Sentinel errors shared across packages. Handlers translate these to
// problem responses; services wrap them with context where useful.
var (
	// ErrNotFound signals a missing record.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials covers every login failure. Callers get no
	// hint whether the email or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing signals a mutation without a CSRF token.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch signals a token that does not match the session.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)
