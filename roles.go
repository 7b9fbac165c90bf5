package session

import "strings"

// RoleHomes maps a role to the landing path of its area.
type RoleHomes map[UserRole]string

// DefaultRoleHomes returns the stock landing paths.
func DefaultRoleHomes() RoleHomes {
	return RoleHomes{
		RoleStudent: "/student/dashboard",
		RoleTeacher: "/teacher/dashboard",
		RoleAdmin:   "/admin/dashboard",
	}
}

// Lookup returns the home for role, or fallback when the role is unmapped.
func (h RoleHomes) Lookup(role UserRole, fallback string) string {
	if path, ok := h[role]; ok && path != "" {
		return path
	}
	return fallback
}

// IsValidRole checks if the role is one of the predefined roles
func IsValidRole(r UserRole) bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return true
	default:
		return false
	}
}

// GetAllRoles returns all predefined roles
func GetAllRoles() []UserRole {
	return []UserRole{
		RoleStudent,
		RoleTeacher,
		RoleAdmin,
	}
}

// ParseRole parses a role name case-insensitively, so "teacher" and
// "TEACHER" both resolve to RoleTeacher.
func ParseRole(roleStr string) (UserRole, bool) {
	for _, role := range GetAllRoles() {
		if strings.EqualFold(role, strings.TrimSpace(roleStr)) {
			return role, true
		}
	}
	return UserRole(roleStr), false
}
