package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	session "github.com/goliatone/go-auth-session"
	"github.com/goliatone/go-auth-session/middleware/fiberguard"
	"github.com/urfave/cli/v2"
)

type loginRequest struct {
	User  *session.User `json:"user"`
	Token string        `json:"token"`
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve the role dashboards behind the session guard",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: ":8978", Usage: "listen address", EnvVars: []string{"SESSION_ADDR"}},
		},
		Action: withEnv(func(c *cli.Context, e *env) error {
			app := newServer(e)

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			go func() {
				<-ctx.Done()
				_ = app.ShutdownWithTimeout(5 * time.Second)
			}()

			return app.Listen(c.String("addr"))
		}),
	}
}

func newServer(e *env) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "sessionctl",
		DisableStartupMessage: true,
	})

	current := func(*fiber.Ctx) session.Snapshot {
		return e.manager.Snapshot()
	}

	app.Get("/session", func(c *fiber.Ctx) error {
		return c.JSON(snapshotView(e.manager.Snapshot()))
	})

	app.Get(e.guard.LoginPath, func(c *fiber.Ctx) error {
		snap := e.manager.Snapshot()
		if snap.IsAuthenticated {
			return c.Redirect(e.guard.RoleHome(snap.User), fiber.StatusFound)
		}
		return c.JSON(snapshotView(snap))
	})

	app.Post(e.guard.LoginPath, func(c *fiber.Ctx) error {
		req := loginRequest{}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}

		snap, err := e.manager.Login(ctxOf(c), req.User, req.Token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(snapshotView(snap))
		}

		target := fiberguard.PostLoginPath(c, e.guard, e.opts.RejectedRouteKey, snap.User)
		return c.Redirect(target, fiber.StatusSeeOther)
	})

	app.Post("/logout", func(c *fiber.Ctx) error {
		if _, err := e.manager.Logout(ctxOf(c)); err != nil {
			return err
		}
		return c.Redirect(e.guard.LoginPath, fiber.StatusSeeOther)
	})

	for _, role := range session.GetAllRoles() {
		home, ok := e.guard.RoleHomes[role]
		if !ok {
			continue
		}
		app.Get(home, fiberguard.New(fiberguard.Config{
			Snapshot:         current,
			Guard:            e.guard,
			Constraint:       session.RequireRole(role),
			RejectedRouteKey: e.opts.RejectedRouteKey,
			CookieSecure:     e.opts.CookieSecure,
		}), dashboard(role))
	}

	return app
}

func dashboard(role session.UserRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		snap, _ := fiberguard.FromLocals(c)
		return c.JSON(fiber.Map{
			"dashboard": role,
			"user":      snap.User,
		})
	}
}

func ctxOf(c *fiber.Ctx) context.Context {
	if ctx := c.UserContext(); ctx != nil {
		return ctx
	}
	return context.Background()
}
