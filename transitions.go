package session

// Action is a session transition request. The set is closed: only the
// types in this file implement it, and Dispatch switches over all of them.
type Action interface {
	actionName() string
}

// LoginAction establishes an authenticated session.
type LoginAction struct {
	User  *User
	Token string
}

// LogoutAction discards the session, persisted state included.
type LogoutAction struct{}

// SetErrorAction reports a failed authentication attempt made elsewhere,
// typically a rejected credential exchange.
type SetErrorAction struct {
	Err error
}

// ClearErrorAction dismisses a failure.
type ClearErrorAction struct{}

// SetLoadingAction brackets an operation owned by the caller.
type SetLoadingAction struct {
	Loading bool
}

func (LoginAction) actionName() string      { return "login" }
func (LogoutAction) actionName() string     { return "logout" }
func (SetErrorAction) actionName() string   { return "set_error" }
func (ClearErrorAction) actionName() string { return "clear_error" }
func (SetLoadingAction) actionName() string { return "set_loading" }

// rehydrateAction is internal; callers go through Manager.Rehydrate.
type rehydrateAction struct{}

func (rehydrateAction) actionName() string { return "rehydrate" }

// ActionName returns the stable name of an action, used in logs and events.
func ActionName(a Action) string {
	if a == nil {
		return ""
	}
	return a.actionName()
}

// TransitionEvent is handed to transition hooks after a new snapshot has
// been published.
type TransitionEvent struct {
	Action string
	From   Snapshot
	To     Snapshot
}

// Changed reports whether the transition produced a new snapshot.
func (e TransitionEvent) Changed() bool {
	return e.From.Version != e.To.Version
}
