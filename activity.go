package session

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventLogin         ActivityEventType = "session.login"
	ActivityEventLoginFailure  ActivityEventType = "session.login.failure"
	ActivityEventLogout        ActivityEventType = "session.logout"
	ActivityEventRehydrated    ActivityEventType = "session.rehydrated"
	ActivityEventCorrupted     ActivityEventType = "session.corrupted"
	ActivityEventStoreFailure  ActivityEventType = "session.store.failure"
	ActivityEventErrorCleared  ActivityEventType = "session.error.cleared"
	ActivityEventLoadingToggle ActivityEventType = "session.loading"
)

// ActivityEvent captures audit-friendly information about a transition.
type ActivityEvent struct {
	EventType  ActivityEventType
	SessionID  string
	UserID     string
	Role       UserRole
	FromState  State
	ToState    State
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
// Sinks run best-effort: errors are logged and never fail a transition.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
