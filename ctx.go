package access

import (
	"context"
)

var sessionCtxKey = &contextKey{"session"}

type contextKey struct {
	name string
}

// WithSession sets the session view in the given context.
func WithSession(ctx context.Context, session SessionReader) context.Context {
	return context.WithValue(ctx, sessionCtxKey, session)
}

// SessionFromContext finds the session view stashed by the route guard.
func SessionFromContext(ctx context.Context) (SessionReader, bool) {
	raw, ok := ctx.Value(sessionCtxKey).(SessionReader)
	return raw, ok
}

// Can is a convenience check for rendering code: does the current session
// hold the given permission on the given route right now. Anonymous contexts
// hold nothing.
func Can(ctx context.Context, engine *DecisionEngine, path string, permission Permission) bool {
	session, ok := SessionFromContext(ctx)
	if !ok {
		return false
	}

	role, ok := session.Role()
	if !ok {
		return false
	}

	perms, ok := engine.RoutePermissions(role, path, session.HasActiveSubscription())
	if !ok {
		return false
	}

	return perms.Has(permission)
}
