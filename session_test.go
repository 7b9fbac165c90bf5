package session_test

import (
	"context"
	"encoding/json"
	"testing"

	session "github.com/goliatone/go-auth-session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotState(t *testing.T) {
	tests := []struct {
		name     string
		snapshot session.Snapshot
		expected session.State
	}{
		{"zero value", session.Snapshot{}, session.StateAnonymous},
		{"loading", session.Snapshot{Loading: true}, session.StateAuthenticating},
		{"loading with error", session.Snapshot{Loading: true, Error: "x"}, session.StateAuthenticating},
		{"authenticated", authenticatedAs(session.RoleAdmin), session.StateAuthenticated},
		{"failed", session.Snapshot{Error: "invalid email or password"}, session.StateFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.snapshot.State())
		})
	}
}

func TestSnapshotAccessors(t *testing.T) {
	snap := authenticatedAs(session.RoleTeacher)
	assert.Equal(t, session.RoleTeacher, snap.Role())
	assert.Equal(t, "1", snap.GetUserID())
	assert.True(t, snap.HasRole(session.RoleTeacher))
	assert.False(t, snap.HasRole(session.RoleAdmin))
	assert.False(t, snap.HasError())

	anon := session.Snapshot{}
	assert.Equal(t, "", anon.Role())
	assert.Equal(t, "", anon.GetUserID())
	assert.False(t, anon.HasRole(""))
}

func TestSnapshotJSONOmitsToken(t *testing.T) {
	raw, err := json.Marshal(authenticatedAs(session.RoleStudent))
	require.NoError(t, err)

	assert.NotContains(t, string(raw), wellFormedToken)
	assert.Contains(t, string(raw), `"is_authenticated":true`)
}

func TestSnapshotsAreIsolated(t *testing.T) {
	m := newTestManager(nil)
	_, err := m.Login(context.Background(), teacher(), wellFormedToken)
	require.NoError(t, err)

	snap := m.Snapshot()
	snap.User.Role = session.RoleAdmin

	assert.Equal(t, session.RoleTeacher, m.Snapshot().Role())
}

func TestUserEqualAndClone(t *testing.T) {
	u := teacher()
	c := u.Clone()

	assert.True(t, u.Equal(c))
	c.Name = "Other"
	assert.False(t, u.Equal(c))

	var nilUser *session.User
	assert.Nil(t, nilUser.Clone())
	assert.True(t, nilUser.Equal(nil))
	assert.False(t, nilUser.Equal(u))
}

func TestUserUnmarshalID(t *testing.T) {
	cases := []struct {
		raw      string
		expected string
	}{
		{`{"id":"7","role":"Admin"}`, "7"},
		{`{"id":7,"role":"Admin"}`, "7"},
		{`{"id":12345678901234567890,"role":"Admin"}`, "12345678901234567890"},
		{`{"role":"Admin"}`, ""},
		{`{"id":null,"role":"Admin"}`, ""},
	}

	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			u := &session.User{}
			require.NoError(t, json.Unmarshal([]byte(tc.raw), u))
			assert.Equal(t, tc.expected, u.ID)
			assert.Equal(t, session.RoleAdmin, u.Role)
		})
	}

	assert.Error(t, json.Unmarshal([]byte(`{"id":{"n":1}}`), &session.User{}))
}

func TestParseRole(t *testing.T) {
	role, ok := session.ParseRole("teacher")
	assert.True(t, ok)
	assert.Equal(t, session.RoleTeacher, role)

	role, ok = session.ParseRole(" ADMIN ")
	assert.True(t, ok)
	assert.Equal(t, session.RoleAdmin, role)

	role, ok = session.ParseRole("Parent")
	assert.False(t, ok)
	assert.Equal(t, "Parent", role)

	assert.True(t, session.IsValidRole(session.RoleStudent))
	assert.False(t, session.IsValidRole("student"))
	assert.Len(t, session.GetAllRoles(), 3)
}

func TestUserFromIdentity(t *testing.T) {
	original := &session.User{ID: "3", Name: "Kim", Email: "kim@example.com", Role: session.RoleStudent}
	identity := session.NewIdentityFromUser(original)

	assert.Equal(t, "3", identity.ID())
	assert.Equal(t, "Kim", identity.Username())
	assert.Equal(t, "kim@example.com", identity.Email())
	assert.Equal(t, session.RoleStudent, identity.Role())

	back := session.UserFromIdentity(identity)
	assert.True(t, original.Equal(back))
	assert.NotSame(t, original, back)

	assert.Nil(t, session.NewIdentityFromUser(nil))
	assert.Nil(t, session.UserFromIdentity(nil))
}

type claimsIdentity struct {
	sub, name, email, role string
}

func (c claimsIdentity) ID() string       { return c.sub }
func (c claimsIdentity) Username() string { return c.name }
func (c claimsIdentity) Email() string    { return c.email }
func (c claimsIdentity) Role() string     { return c.role }

func TestUserFromForeignIdentity(t *testing.T) {
	u := session.UserFromIdentity(claimsIdentity{sub: " 11 ", name: "Ola", role: "admin"})

	require.NotNil(t, u)
	assert.Equal(t, "11", u.ID)
	assert.Equal(t, "Ola", u.Name)
	assert.Equal(t, session.RoleAdmin, u.Role)
}

func TestContextHelpers(t *testing.T) {
	_, ok := session.FromContext(context.Background())
	assert.False(t, ok)

	_, ok = session.CurrentUser(session.WithSnapshot(context.Background(), session.Snapshot{}))
	assert.False(t, ok)

	ctx := session.WithSnapshot(context.Background(), authenticatedAs(session.RoleAdmin))
	user, ok := session.CurrentUser(ctx)
	require.True(t, ok)
	assert.Equal(t, session.RoleAdmin, user.Role)
}

func TestErrorHelpers(t *testing.T) {
	assert.True(t, session.IsCorruptedSession(session.ErrCorruptedSession))
	assert.True(t, session.IsTokenMalformedError(session.ErrTokenMalformed))
	assert.False(t, session.IsStoreWriteError(session.ErrStoreRead))
	assert.False(t, session.IsStoreWriteError(nil))
	assert.Equal(t, session.TextCodeDisposed, session.ErrDisposed.TextCode)
}
