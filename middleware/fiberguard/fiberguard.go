// Package fiberguard applies session guard decisions to fiber routes.
package fiberguard

import (
	"time"

	"github.com/gofiber/fiber/v2"
	session "github.com/goliatone/go-auth-session"
)

// Config defines the config for the middleware.
type Config struct {
	// Next defines a function to skip this middleware when it returns true.
	Next func(c *fiber.Ctx) bool

	// Snapshot returns the session state serving the request. Required.
	Snapshot func(c *fiber.Ctx) session.Snapshot

	// Guard resolves redirect targets. Zero value uses session.DefaultGuard().
	Guard session.Guard

	// Constraint is the role requirement of the guarded routes.
	Constraint session.Constraint

	// RejectedRouteKey names the cookie remembering the origin of a login
	// redirect. Default "login_redirect".
	RejectedRouteKey string

	// RedirectTTL bounds how long the origin is remembered. Default 5m.
	RedirectTTL time.Duration

	// CookieSecure marks the origin cookie Secure.
	CookieSecure bool

	// LoadingHandler answers while the session is still loading. The
	// default replies 503 with Retry-After.
	LoadingHandler fiber.Handler
}

func configDefault(cfg Config) Config {
	if cfg.Snapshot == nil {
		panic("fiberguard: Config.Snapshot is required")
	}
	if cfg.Guard.LoginPath == "" && cfg.Guard.RootPath == "" && len(cfg.Guard.RoleHomes) == 0 {
		cfg.Guard = session.DefaultGuard()
	}
	if cfg.RejectedRouteKey == "" {
		cfg.RejectedRouteKey = "login_redirect"
	}
	if cfg.RedirectTTL <= 0 {
		cfg.RedirectTTL = 5 * time.Minute
	}
	if cfg.LoadingHandler == nil {
		cfg.LoadingHandler = func(c *fiber.Ctx) error {
			c.Set(fiber.HeaderRetryAfter, "1")
			return c.Status(fiber.StatusServiceUnavailable).SendString("session is loading")
		}
	}
	return cfg
}

// New creates a guard middleware.
func New(config Config) fiber.Handler {
	cfg := configDefault(config)

	return func(c *fiber.Ctx) error {
		if cfg.Next != nil && cfg.Next(c) {
			return c.Next()
		}

		snap := cfg.Snapshot(c)
		decision := cfg.Guard.Decide(snap, cfg.Constraint, c.OriginalURL())

		switch decision.Kind {
		case session.Render:
			c.Locals(session.LocalsKey, snap)
			c.SetUserContext(session.WithSnapshot(c.UserContext(), snap))
			return c.Next()
		case session.ShowLoading:
			return cfg.LoadingHandler(c)
		}

		if decision.ToLogin() {
			c.Cookie(&fiber.Cookie{
				Name:     cfg.RejectedRouteKey,
				Value:    decision.Origin,
				Expires:  time.Now().Add(cfg.RedirectTTL),
				HTTPOnly: true,
				Secure:   cfg.CookieSecure,
				SameSite: fiber.CookieSameSiteLaxMode,
			})
		}

		status := fiber.StatusSeeOther
		if c.Method() == fiber.MethodGet {
			status = fiber.StatusFound
		}
		return c.Redirect(decision.Path, status)
	}
}

// PostLoginPath consumes the remembered origin and resolves where user
// should land after signing in.
func PostLoginPath(c *fiber.Ctx, guard session.Guard, rejectedRouteKey string, user *session.User) string {
	if rejectedRouteKey == "" {
		rejectedRouteKey = "login_redirect"
	}
	origin := c.Cookies(rejectedRouteKey)
	if origin != "" {
		c.ClearCookie(rejectedRouteKey)
	}
	return guard.PostLoginPath(origin, user)
}

// FromLocals returns the snapshot a guarded route stored for its handler.
func FromLocals(c *fiber.Ctx) (session.Snapshot, bool) {
	snap, ok := c.Locals(session.LocalsKey).(session.Snapshot)
	return snap, ok
}
