package session

import (
	"net/url"
	"strings"
)

// PostLoginPath resolves where to send user after signing in. The origin
// remembered by a login redirect wins when it is a local path other than
// the login page and not the home of another role; otherwise the user
// lands on their role home.
func (g Guard) PostLoginPath(origin string, user *User) string {
	if p, ok := g.safeOrigin(origin); ok && !g.isForeignHome(p, user) {
		return p
	}
	return g.RoleHome(user)
}

// isForeignHome reports whether origin is the landing page of a role other
// than user's, which the guard would bounce straight back.
func (g Guard) isForeignHome(origin string, user *User) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return true
	}

	role := ""
	if user != nil {
		role = user.Role
	}
	for r, home := range g.RoleHomes {
		if home == u.Path && r != role {
			return true
		}
	}
	return false
}

func (g Guard) safeOrigin(origin string) (string, bool) {
	origin = strings.TrimSpace(origin)
	if origin == "" || !strings.HasPrefix(origin, "/") {
		return "", false
	}

	// protocol relative and backslash tricks leave the site
	if strings.HasPrefix(origin, "//") || strings.HasPrefix(origin, "/\\") {
		return "", false
	}

	u, err := url.Parse(origin)
	if err != nil || u.IsAbs() || u.Host != "" {
		return "", false
	}

	if u.Path == g.loginPath() {
		return "", false
	}

	return origin, true
}
