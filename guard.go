package session

import (
	"fmt"
	"slices"
	"strings"
)

// DecisionKind is what the router should do with a navigation.
type DecisionKind int

const (
	// Render shows the requested content.
	Render DecisionKind = iota
	// Redirect sends the user to Decision.Path.
	Redirect
	// ShowLoading holds the navigation until the session settles.
	ShowLoading
)

func (k DecisionKind) String() string {
	switch k {
	case Render:
		return "render"
	case Redirect:
		return "redirect"
	case ShowLoading:
		return "loading"
	default:
		return fmt.Sprintf("decision(%d)", int(k))
	}
}

// Decision is the outcome of a guard evaluation. Login marks redirects to
// the login page; only those carry Origin, the path the user asked for.
type Decision struct {
	Kind   DecisionKind `json:"kind"`
	Path   string       `json:"path,omitempty"`
	Origin string       `json:"origin,omitempty"`
	Login  bool         `json:"login,omitempty"`
}

// ToLogin reports whether the decision sends the user to sign in.
func (d Decision) ToLogin() bool {
	return d.Kind == Redirect && d.Login
}

func (d Decision) String() string {
	switch d.Kind {
	case Redirect:
		if d.Origin != "" {
			return fmt.Sprintf("redirect %s (from %s)", d.Path, d.Origin)
		}
		return "redirect " + d.Path
	default:
		return d.Kind.String()
	}
}

type constraintKind int

const (
	unconstrained constraintKind = iota
	requiredRole
	allowedRoles
)

// Constraint is the role requirement attached to a navigation target. The
// zero value is unconstrained.
type Constraint struct {
	kind  constraintKind
	roles []UserRole
}

// Unconstrained admits any authenticated user.
func Unconstrained() Constraint {
	return Constraint{kind: unconstrained}
}

// RequireRole admits only users with role.
func RequireRole(role UserRole) Constraint {
	return Constraint{kind: requiredRole, roles: []UserRole{role}}
}

// AllowRoles admits users whose role is in roles. An empty set admits no
// one.
func AllowRoles(roles ...UserRole) Constraint {
	return Constraint{kind: allowedRoles, roles: slices.Clone(roles)}
}

// Allows reports whether role satisfies the constraint.
func (c Constraint) Allows(role UserRole) bool {
	switch c.kind {
	case requiredRole:
		return len(c.roles) == 1 && c.roles[0] == role
	case allowedRoles:
		return slices.Contains(c.roles, role)
	default:
		return true
	}
}

// Roles returns a copy of the roles named by the constraint.
func (c Constraint) Roles() []UserRole {
	return slices.Clone(c.roles)
}

func (c Constraint) String() string {
	switch c.kind {
	case requiredRole:
		return "role=" + strings.Join(c.roles, "")
	case allowedRoles:
		return "roles=[" + strings.Join(c.roles, ",") + "]"
	default:
		return "unconstrained"
	}
}

// Guard holds the paths used to resolve redirects.
type Guard struct {
	LoginPath string
	RootPath  string
	RoleHomes RoleHomes
}

// DefaultGuard returns a Guard with /login, / and the stock role homes.
func DefaultGuard() Guard {
	return Guard{
		LoginPath: "/login",
		RootPath:  "/",
		RoleHomes: DefaultRoleHomes(),
	}
}

// NewGuard builds a Guard from cfg, using defaults for empty values.
func NewGuard(cfg Config) Guard {
	g := DefaultGuard()
	if cfg == nil {
		return g
	}
	if p := cfg.GetLoginPath(); p != "" {
		g.LoginPath = p
	}
	if p := cfg.GetRootPath(); p != "" {
		g.RootPath = p
	}
	if homes := cfg.GetRoleHomes(); len(homes) > 0 {
		g.RoleHomes = RoleHomes(homes)
	}
	return g
}

// Decide evaluates a navigation to currentPath guarded by constraint. It
// has no side effects.
func (g Guard) Decide(s Snapshot, constraint Constraint, currentPath string) Decision {
	if s.Loading {
		return Decision{Kind: ShowLoading}
	}

	if !s.IsAuthenticated {
		return Decision{Kind: Redirect, Path: g.loginPath(), Origin: currentPath, Login: true}
	}

	if constraint.Allows(s.Role()) {
		return Decision{Kind: Render}
	}

	return Decision{Kind: Redirect, Path: g.RoleHome(s.User)}
}

// RoleHome maps a user to the landing page of their role. Unknown roles
// and a nil user land on the root path.
func (g Guard) RoleHome(user *User) string {
	if user == nil {
		return g.rootPath()
	}
	return g.RoleHomes.Lookup(user.Role, g.rootPath())
}

func (g Guard) loginPath() string {
	if g.LoginPath == "" {
		return "/login"
	}
	return g.LoginPath
}

func (g Guard) rootPath() string {
	if g.RootPath == "" {
		return "/"
	}
	return g.RootPath
}

// Decide evaluates with DefaultGuard.
func Decide(s Snapshot, constraint Constraint, currentPath string) Decision {
	return DefaultGuard().Decide(s, constraint, currentPath)
}
