package session

import "strings"

// UserIdentity adapts a User into the Identity interface.
type UserIdentity struct {
	user *User
}

// NewIdentityFromUser returns an Identity adapter for the provided user.
func NewIdentityFromUser(user *User) Identity {
	if user == nil {
		return nil
	}
	return UserIdentity{user: user}
}

// ID returns the user's ID.
func (u UserIdentity) ID() string {
	if u.user == nil {
		return ""
	}
	return u.user.ID
}

// Username returns the user's display name.
func (u UserIdentity) Username() string {
	if u.user == nil {
		return ""
	}
	return u.user.Name
}

// Email returns the user's email address.
func (u UserIdentity) Email() string {
	if u.user == nil {
		return ""
	}
	return u.user.Email
}

// Role returns the user's role.
func (u UserIdentity) Role() string {
	if u.user == nil {
		return ""
	}
	return u.user.Role
}

// UserFromIdentity copies an Identity into a session User. Known role names
// are normalized, so "teacher" becomes RoleTeacher; unknown roles are kept
// verbatim and later land on the root path.
func UserFromIdentity(identity Identity) *User {
	if identity == nil {
		return nil
	}
	if u, ok := identity.(UserIdentity); ok {
		return u.user.Clone()
	}

	role, _ := ParseRole(identity.Role())
	return &User{
		ID:    strings.TrimSpace(identity.ID()),
		Name:  identity.Username(),
		Email: identity.Email(),
		Role:  role,
	}
}
