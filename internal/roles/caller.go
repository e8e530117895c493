package roles

import "context"

// Caller describes the authenticated actor for a single request. It is
// rebuilt from storage on every request so a revoked role never
// survives in a long-lived session.
type Caller struct {
	UID    string
	Role   Role
	Active bool
}

// Authenticated reports whether the caller carries an identity.
func (c Caller) Authenticated() bool {
	return c.UID != ""
}

// Can reports whether the caller may exercise cap. Inactive accounts
// hold no capabilities regardless of role.
func (c Caller) Can(cap Capability) bool {
	if !c.Authenticated() || !c.Active {
		return false
	}
	return Allows(c.Role, cap)
}

// AtLeast reports whether the caller's role meets threshold. Inactive
// accounts meet no threshold.
func (c Caller) AtLeast(threshold Rank) bool {
	if !c.Authenticated() || !c.Active {
		return false
	}
	return AtLeast(c.Role, threshold)
}

type callerContextKey struct{}

// ContextWithCaller stores the caller in context.
func ContextWithCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, callerContextKey{}, caller)
}

// CallerFromContext extracts the caller from context. The zero Caller
// is returned for anonymous requests.
func CallerFromContext(ctx context.Context) Caller {
	caller, _ := ctx.Value(callerContextKey{}).(Caller)
	return caller
}
