package session

import (
	"context"

	"github.com/goliatone/go-router"
)

// LocalsKey is the router locals key guarded handlers find the snapshot under.
var LocalsKey = "session"

var snapshotCtxKey = &contextKey{"session"}

type contextKey struct {
	name string
}

// WithSnapshot sets the Snapshot in the given context
func WithSnapshot(ctx context.Context, s Snapshot) context.Context {
	return context.WithValue(ctx, snapshotCtxKey, s)
}

// FromContext finds the Snapshot in the context.
func FromContext(ctx context.Context) (Snapshot, bool) {
	if ctx == nil {
		return Snapshot{}, false
	}
	s, ok := ctx.Value(snapshotCtxKey).(Snapshot)
	return s, ok
}

// FromRouter extracts the Snapshot a RouteGuard stored in the router locals.
func FromRouter(c router.Context) (Snapshot, bool) {
	raw := c.Locals(LocalsKey)
	if raw == nil {
		return Snapshot{}, false
	}
	s, ok := raw.(Snapshot)
	return s, ok
}

// CurrentUser returns the authenticated user in ctx, if any.
func CurrentUser(ctx context.Context) (*User, bool) {
	s, ok := FromContext(ctx)
	if !ok || !s.IsAuthenticated || s.User == nil {
		return nil, false
	}
	return s.User.Clone(), true
}
