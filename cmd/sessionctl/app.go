package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	session "github.com/goliatone/go-auth-session"
	"github.com/goliatone/go-auth-session/activitymap"
	"github.com/goliatone/go-auth-session/store"
	"github.com/urfave/cli/v2"
)

const version = "0.1.0"

// env holds what every command needs: the loaded options and a Manager
// that has already rehydrated from the configured store.
type env struct {
	opts    session.Options
	manager *session.Manager
	guard   session.Guard
	close   func() error
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "sessionctl",
		Usage:   "inspect and drive the persisted client session",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "env-file", Value: ".env", Usage: "dotenv file loaded before the environment"},
			&cli.StringFlag{Name: "store", Usage: "store driver: file, memory, redis, sql", EnvVars: []string{"SESSION_STORE"}},
			&cli.StringFlag{Name: "file", Usage: "file store path", EnvVars: []string{"SESSION_FILE_PATH"}},
			&cli.BoolFlag{Name: "verbose", Usage: "log store and transition details"},
			&cli.BoolFlag{Name: "audit", Usage: "write session activity as JSON lines to stderr"},
		},
		Commands: []*cli.Command{
			statusCommand(),
			loginCommand(),
			logoutCommand(),
			decideCommand(),
			serveCommand(),
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "rehydrate the session and print it",
		Action: withEnv(func(c *cli.Context, e *env) error {
			return printJSON(c.App.Writer, snapshotView(e.manager.Snapshot()))
		}),
	}
}

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "persist a user and token as the current session",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user", Required: true, Usage: `user record, e.g. {"id":"1","name":"Ada","role":"Teacher"}`},
			&cli.StringFlag{Name: "token", Required: true, Usage: "credential in header.payload.signature form"},
		},
		Action: withEnv(func(c *cli.Context, e *env) error {
			user := &session.User{}
			if err := json.Unmarshal([]byte(c.String("user")), user); err != nil {
				return cli.Exit(fmt.Sprintf("invalid --user: %v", err), 2)
			}

			snap, err := e.manager.Login(c.Context, user, c.String("token"))
			if perr := printJSON(c.App.Writer, snapshotView(snap)); perr != nil {
				return perr
			}
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			return nil
		}),
	}
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "discard the persisted session",
		Action: withEnv(func(c *cli.Context, e *env) error {
			snap, err := e.manager.Logout(c.Context)
			if err != nil {
				return err
			}
			return printJSON(c.App.Writer, snapshotView(snap))
		}),
	}
}

func decideCommand() *cli.Command {
	return &cli.Command{
		Name:  "decide",
		Usage: "evaluate the guard for a navigation",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Value: "/", Usage: "path being navigated to"},
			&cli.StringSliceFlag{Name: "role", Usage: "required role, repeat with --any for a set"},
			&cli.BoolFlag{Name: "any", Usage: "treat the roles as an allowed set"},
		},
		Action: withEnv(func(c *cli.Context, e *env) error {
			constraint, err := parseConstraint(c.StringSlice("role"), c.Bool("any"))
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}
			decision := e.guard.Decide(e.manager.Snapshot(), constraint, c.String("path"))
			return printJSON(c.App.Writer, map[string]any{
				"decision":   decision.Kind.String(),
				"path":       decision.Path,
				"origin":     decision.Origin,
				"constraint": constraint.String(),
			})
		}),
	}
}

func parseConstraint(names []string, anyOf bool) (session.Constraint, error) {
	roles := make([]session.UserRole, 0, len(names))
	for _, name := range names {
		role, ok := session.ParseRole(name)
		if !ok {
			return session.Constraint{}, fmt.Errorf("unknown role %q", name)
		}
		roles = append(roles, role)
	}

	switch {
	case len(roles) == 0:
		return session.Unconstrained(), nil
	case len(roles) == 1 && !anyOf:
		return session.RequireRole(roles[0]), nil
	case !anyOf:
		return session.Constraint{}, fmt.Errorf("several roles need --any")
	default:
		return session.AllowRoles(roles...), nil
	}
}

func withEnv(fn func(c *cli.Context, e *env) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		e, err := openEnv(c)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		defer e.close()
		return fn(c, e)
	}
}

func openEnv(c *cli.Context) (*env, error) {
	opts, err := session.LoadOptions(c.String("env-file"))
	if err != nil {
		return nil, fmt.Errorf("load options: %w", err)
	}
	if c.IsSet("store") {
		opts.StoreDriver = c.String("store")
	}
	if c.IsSet("file") {
		opts.FilePath = c.String("file")
	}

	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}

	backend, closeFn, err := store.Open(ctx, store.Settings{
		Driver:      opts.StoreDriver,
		FilePath:    opts.FilePath,
		RedisURL:    opts.RedisURL,
		RedisPrefix: opts.RedisPrefix,
		SQLDSN:      opts.SQLDSN,
	})
	if err != nil {
		return nil, err
	}

	managerOpts := []session.Option{session.WithConfig(opts)}
	if !c.Bool("verbose") {
		managerOpts = append(managerOpts, session.WithLogger(session.NoopLogger()))
	}
	if c.Bool("audit") {
		managerOpts = append(managerOpts, session.WithActivitySink(auditSink(c.App.ErrWriter)))
	}

	m := session.NewManager(backend, managerOpts...)
	m.Rehydrate(ctx)

	return &env{
		opts:    opts,
		manager: m,
		guard:   session.NewGuard(opts),
		close: func() error {
			m.Dispose()
			return closeFn()
		},
	}, nil
}

func auditSink(w io.Writer) session.ActivitySink {
	if w == nil {
		w = os.Stderr
	}
	enc := json.NewEncoder(w)
	return activitymap.Sink(func(_ context.Context, record activitymap.Normalized) error {
		return enc.Encode(record)
	})
}

func snapshotView(s session.Snapshot) map[string]any {
	view := map[string]any{
		"state":            string(s.State()),
		"is_authenticated": s.IsAuthenticated,
		"loading":          s.Loading,
	}
	if s.User != nil {
		view["user"] = s.User
	}
	if s.Token != "" {
		view["token"] = maskToken(s.Token)
	}
	if s.Error != "" {
		view["error"] = s.Error
		view["error_code"] = s.ErrorCode
	}
	return view
}

// maskToken keeps the header visible and hides the rest.
func maskToken(token string) string {
	head, _, found := strings.Cut(token, ".")
	if !found {
		return "***"
	}
	return head + ".***"
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
