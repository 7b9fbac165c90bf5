package session

import (
	"fmt"
)

// State names the phase a Snapshot is in.
type State string

const (
	StateAnonymous      State = "anonymous"
	StateAuthenticating State = "authenticating"
	StateAuthenticated  State = "authenticated"
	StateFailed         State = "failed"
)

// Snapshot is the read-only projection of a session. Every transition
// publishes a new value; a Snapshot is never mutated after publication.
type Snapshot struct {
	User            *User  `json:"user,omitempty"`
	Token           string `json:"-"`
	IsAuthenticated bool   `json:"is_authenticated"`
	Loading         bool   `json:"loading"`
	Error           string `json:"error,omitempty"`
	ErrorCode       string `json:"error_code,omitempty"`
	Version         uint64 `json:"version"`
}

// State derives the machine phase. Loading takes precedence so a guarded
// view shows progress instead of a stale outcome.
func (s Snapshot) State() State {
	switch {
	case s.Loading:
		return StateAuthenticating
	case s.IsAuthenticated:
		return StateAuthenticated
	case s.Error != "":
		return StateFailed
	default:
		return StateAnonymous
	}
}

// HasError reports whether the last operation failed.
func (s Snapshot) HasError() bool {
	return s.Error != ""
}

// Role returns the authenticated user's role, or the empty role.
func (s Snapshot) Role() UserRole {
	if !s.IsAuthenticated || s.User == nil {
		return ""
	}
	return s.User.Role
}

// GetUserID returns the authenticated user's id, or an empty string.
func (s Snapshot) GetUserID() string {
	if s.User == nil {
		return ""
	}
	return s.User.ID
}

// HasRole checks if the authenticated user has role
func (s Snapshot) HasRole(role UserRole) bool {
	return s.IsAuthenticated && s.Role() == role
}

func (s Snapshot) String() string {
	user := "<nil>"
	if s.User != nil {
		user = fmt.Sprintf("%s(%s)", s.User.ID, s.User.Role)
	}
	return fmt.Sprintf(
		"state=%s user=%s loading=%t error=%q v=%d",
		s.State(),
		user,
		s.Loading,
		s.Error,
		s.Version,
	)
}

func (s Snapshot) clone() Snapshot {
	s.User = s.User.Clone()
	return s
}

func anonymousSnapshot() Snapshot {
	return Snapshot{}
}
