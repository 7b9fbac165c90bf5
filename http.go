package session

import (
	"net/http"
	"time"

	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// SnapshotSource is anything that can report the current session state.
// *Manager satisfies it.
type SnapshotSource interface {
	Snapshot() Snapshot
}

// RouteGuard applies Guard decisions to go-router routes.
type RouteGuard struct {
	source           SnapshotSource
	guard            Guard
	rejectedRouteKey string
	redirectTTL      time.Duration
	cookieSecure     bool
	Logger           Logger
	LoadingHandler   func(c router.Context) error
}

// NewRouteGuard returns a RouteGuard reading state from source.
func NewRouteGuard(source SnapshotSource, cfg Config) *RouteGuard {
	rejected := "login_redirect"
	if cfg != nil && cfg.GetRejectedRouteKey() != "" {
		rejected = cfg.GetRejectedRouteKey()
	}
	secure := cfg == nil || cfg.GetCookieSecure()

	g := &RouteGuard{
		source:           source,
		guard:            NewGuard(cfg),
		rejectedRouteKey: rejected,
		redirectTTL:      5 * time.Minute,
		cookieSecure:     secure,
		Logger:           defLogger{},
	}
	g.LoadingHandler = g.defaultLoadingHandler
	return g
}

// Guard returns the decision function in use.
func (a *RouteGuard) Guard() Guard {
	return a.guard
}

// Protect returns middleware guarding a route with constraint.
func (a *RouteGuard) Protect(constraint Constraint) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			return a.Handle(c, constraint, next)
		}
	}
}

// Handle evaluates one navigation and either calls next, redirects, or
// answers with the loading handler.
func (a *RouteGuard) Handle(c router.Context, constraint Constraint, next router.HandlerFunc) error {
	snap := a.source.Snapshot()
	decision := a.guard.Decide(snap, constraint, c.OriginalURL())

	switch decision.Kind {
	case Render:
		c.Locals(LocalsKey, snap)
		c.SetContext(WithSnapshot(c.Context(), snap))
		if next == nil {
			return c.Next()
		}
		return next(c)
	case ShowLoading:
		return a.LoadingHandler(c)
	default:
		a.Logger.Info("route guard redirect: %s", print.MaybePrettyJSON(map[string]any{
			"path":       c.OriginalURL(),
			"constraint": constraint.String(),
			"decision":   decision.String(),
		}))

		if decision.ToLogin() {
			a.SetRedirect(c, decision.Origin)
		}
		return c.Redirect(decision.Path, redirectStatus(c))
	}
}

// SetRedirect remembers origin so the user returns there after login.
func (a *RouteGuard) SetRedirect(c router.Context, origin string) {
	c.Cookie(&router.Cookie{
		Name:     a.rejectedRouteKey,
		Value:    origin,
		Expires:  time.Now().Add(a.redirectTTL),
		HTTPOnly: true,
		Secure:   a.cookieSecure,
		SameSite: "Lax",
	})
}

// GetRedirect consumes the remembered origin and resolves the post login
// destination for user.
func (a *RouteGuard) GetRedirect(c router.Context, user *User) string {
	origin := c.Cookies(a.rejectedRouteKey)
	if origin != "" {
		a.cookieDel(c, a.rejectedRouteKey)
	}
	return a.guard.PostLoginPath(origin, user)
}

func (a *RouteGuard) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   a.cookieSecure,
		SameSite: "Lax",
	})
}

func (a *RouteGuard) defaultLoadingHandler(c router.Context) error {
	c.SetHeader("Retry-After", "1")
	return c.Status(http.StatusServiceUnavailable).SendString("session is loading")
}

func redirectStatus(c router.Context) int {
	if c.Method() == string(router.GET) {
		return http.StatusFound
	}
	return http.StatusSeeOther
}
