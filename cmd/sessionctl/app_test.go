package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	session "github.com/goliatone/go-auth-session"
	"github.com/goliatone/go-auth-session/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func run(t *testing.T, path string, args ...string) (map[string]any, error) {
	t.Helper()

	out := &bytes.Buffer{}
	app := newApp()
	app.Writer = out
	app.ExitErrHandler = func(*cli.Context, error) {}

	argv := append([]string{"sessionctl", "--env-file", "", "--store", "file", "--file", path}, args...)
	err := app.Run(argv)

	result := map[string]any{}
	if out.Len() > 0 {
		require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	}
	return result, err
}

func TestLoginStatusLogout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	status, err := run(t, path, "status")
	require.NoError(t, err)
	assert.Equal(t, "anonymous", status["state"])

	login, err := run(t, path, "login", "--user", `{"id":"1","name":"X","role":"Student"}`, "--token", "hdr.payload.sig")
	require.NoError(t, err)
	assert.Equal(t, "authenticated", login["state"])
	assert.Equal(t, "hdr.***", login["token"])

	status, err = run(t, path, "status")
	require.NoError(t, err)
	assert.Equal(t, "authenticated", status["state"])
	user, ok := status["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Student", user["role"])

	logout, err := run(t, path, "logout")
	require.NoError(t, err)
	assert.Equal(t, "anonymous", logout["state"])

	status, err = run(t, path, "status")
	require.NoError(t, err)
	assert.Equal(t, "anonymous", status["state"])
}

func TestVerboseAndVersionFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	status, err := run(t, path, "--verbose", "--audit", "status")
	require.NoError(t, err)
	assert.Equal(t, "anonymous", status["state"])

	out := &bytes.Buffer{}
	app := newApp()
	app.Writer = out
	require.NoError(t, app.Run([]string{"sessionctl", "-v"}))
	assert.Contains(t, out.String(), version)
}

func TestLoginRejectsMalformedToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	result, err := run(t, path, "login", "--user", `{"id":"1","role":"Student"}`, "--token", "opaque")
	require.Error(t, err)
	assert.Equal(t, "failed", result["state"])
	assert.Equal(t, session.TextCodeTokenMalformed, result["error_code"])
}

func TestDecide(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	decision, err := run(t, path, "decide", "--path", "/teacher/dashboard", "--role", "teacher")
	require.NoError(t, err)
	assert.Equal(t, "redirect", decision["decision"])
	assert.Equal(t, "/login", decision["path"])
	assert.Equal(t, "/teacher/dashboard", decision["origin"])

	_, err = run(t, path, "login", "--user", `{"id":"1","role":"Admin"}`, "--token", "a.b.c")
	require.NoError(t, err)

	decision, err = run(t, path, "decide", "--path", "/reports", "--role", "Teacher", "--role", "Admin", "--any")
	require.NoError(t, err)
	assert.Equal(t, "render", decision["decision"])

	decision, err = run(t, path, "decide", "--path", "/student/dashboard", "--role", "Student")
	require.NoError(t, err)
	assert.Equal(t, "redirect", decision["decision"])
	assert.Equal(t, "/admin/dashboard", decision["path"])
}

func TestParseConstraint(t *testing.T) {
	c, err := parseConstraint(nil, false)
	require.NoError(t, err)
	assert.Equal(t, "unconstrained", c.String())

	_, err = parseConstraint([]string{"Teacher", "Admin"}, false)
	assert.Error(t, err)

	_, err = parseConstraint([]string{"Parent"}, false)
	assert.Error(t, err)
}

func testEnv(t *testing.T) *env {
	t.Helper()
	opts := session.DefaultOptions()
	m := session.NewManager(store.NewMemory(nil), session.WithLogger(session.NoopLogger()))
	m.Rehydrate(context.Background())
	return &env{
		opts:    opts,
		manager: m,
		guard:   session.NewGuard(opts),
		close:   func() error { return nil },
	}
}

func TestServerFlow(t *testing.T) {
	e := testEnv(t)
	app := newServer(e)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/teacher/dashboard", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get(fiber.HeaderLocation))

	var origin *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "login_redirect" {
			origin = c
		}
	}
	require.NotNil(t, origin)

	body := `{"user":{"id":"5","name":"T","role":"Teacher"},"token":"a.b.c"}`
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.AddCookie(origin)

	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/teacher/dashboard", resp.Header.Get(fiber.HeaderLocation))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/teacher/dashboard", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/teacher/dashboard", resp.Header.Get(fiber.HeaderLocation))

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/logout", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.False(t, e.manager.Snapshot().IsAuthenticated)
}

func TestServerRejectsBadLogin(t *testing.T) {
	app := newServer(testEnv(t))

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"user":null,"token":""}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), session.TextCodeMissingCredentials)
}
