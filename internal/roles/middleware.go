package roles

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/watchplus/watchplus/internal/shared"
)

// AccountSource resolves the current account state for a uid. The
// lookup happens on every request: the session only carries identity,
// never a cached role.
type AccountSource interface {
	FindCaller(ctx context.Context, uid string) (Caller, error)
}

// Middleware wires capability checks into HTTP handlers.
type Middleware struct {
	Accounts AccountSource
	Logger   *slog.Logger
}

// WithCaller resolves the session user into a Caller and attaches it to
// the request context. Anonymous requests pass through with the zero
// Caller; handlers decide whether that is acceptable.
func (m Middleware) WithCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil || sess.User() == "" {
			next.ServeHTTP(w, r)
			return
		}
		caller, err := m.Accounts.FindCaller(r.Context(), sess.User())
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				next.ServeHTTP(w, r)
				return
			}
			if m.Logger != nil {
				m.Logger.Error("resolve caller", slog.String("uid", sess.User()), slog.Any("error", err))
			}
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithCaller(r.Context(), caller)))
	})
}

// RequireAuthenticated rejects anonymous requests.
func (m Middleware) RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !CallerFromContext(r.Context()).Authenticated() {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireCapability ensures the caller holds cap. Inactive accounts and
// anonymous callers are refused.
func (m Middleware) RequireCapability(cap Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := CallerFromContext(r.Context())
			if !caller.Authenticated() {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			granted, err := HasCapability(caller.Role, cap)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("capability check", slog.String("capability", string(cap)), slog.Any("error", err))
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if !granted || !caller.Active {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRank ensures the caller's role meets threshold.
func (m Middleware) RequireRank(threshold Rank) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := CallerFromContext(r.Context())
			if !caller.Authenticated() {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			if !caller.AtLeast(threshold) {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
