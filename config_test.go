package session_test

import (
	"os"
	"path/filepath"
	"testing"

	session "github.com/goliatone/go-auth-session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOptionsDefaults(t *testing.T) {
	opts, err := session.LoadOptions()
	require.NoError(t, err)

	assert.Equal(t, "token", opts.GetTokenKey())
	assert.Equal(t, "user", opts.GetUserKey())
	assert.Equal(t, "/login", opts.GetLoginPath())
	assert.Equal(t, "/", opts.GetRootPath())
	assert.Equal(t, "login_redirect", opts.GetRejectedRouteKey())
	assert.False(t, opts.GetEvictExpiredTokens())
	assert.True(t, opts.GetCookieSecure())
	assert.Equal(t, session.DefaultOptions().GetCookieSecure(), opts.GetCookieSecure())
	assert.Equal(t, "file", opts.StoreDriver)
	assert.Equal(t, session.DefaultRoleHomes(), session.RoleHomes(opts.GetRoleHomes()))
}

func TestLoadOptionsFromEnvironment(t *testing.T) {
	t.Setenv("SESSION_TOKEN_KEY", "auth_token")
	t.Setenv("SESSION_LOGIN_PATH", "/signin")
	t.Setenv("SESSION_EVICT_EXPIRED", "true")
	t.Setenv("SESSION_ROLE_HOMES", "teacher=/classes,Admin=/ops")
	t.Setenv("SESSION_STORE", "redis")
	t.Setenv("SESSION_COOKIE_SECURE", "false")

	opts, err := session.LoadOptions()
	require.NoError(t, err)

	assert.Equal(t, "auth_token", opts.GetTokenKey())
	assert.Equal(t, "/signin", opts.GetLoginPath())
	assert.True(t, opts.GetEvictExpiredTokens())
	assert.Equal(t, "redis", opts.StoreDriver)
	assert.False(t, opts.GetCookieSecure())

	homes := opts.GetRoleHomes()
	assert.Equal(t, "/classes", homes[session.RoleTeacher])
	assert.Equal(t, "/ops", homes[session.RoleAdmin])
	assert.Equal(t, "/student/dashboard", homes[session.RoleStudent])
}

func TestLoadOptionsFromDotenv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(file, []byte("SESSION_ROOT_PATH=/home\nSESSION_USER_KEY=profile\n"), 0o600))

	// variables set by the process win over the dotenv file
	t.Setenv("SESSION_USER_KEY", "account")
	t.Setenv("SESSION_ROOT_PATH", "")
	os.Unsetenv("SESSION_ROOT_PATH")

	opts, err := session.LoadOptions(file, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "/home", opts.GetRootPath())
	assert.Equal(t, "account", opts.GetUserKey())
}
