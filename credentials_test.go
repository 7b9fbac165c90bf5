package session_test

import (
	"context"
	"errors"
	"testing"

	session "github.com/goliatone/go-auth-session"
	"github.com/goliatone/go-auth-session/store"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newAuthenticator(t *testing.T) (*session.Authenticator, *session.Manager, *MockExchanger, *store.Memory) {
	t.Helper()
	mem := store.NewMemory(nil)
	m := newTestManager(mem)
	m.Rehydrate(context.Background())

	ex := &MockExchanger{}
	a := session.NewAuthenticator(m, ex).WithLogger(session.NoopLogger())
	return a, m, ex, mem
}

func TestAuthenticatorLoginSuccess(t *testing.T) {
	a, m, ex, mem := newAuthenticator(t)

	var states []session.State
	m.Subscribe(func(s session.Snapshot) { states = append(states, s.State()) })

	creds := session.LoginCredentials{Email: "ada@example.com", Password: "secret"}
	ex.On("Login", mock.Anything, creds).Return(session.ExchangeResult{
		User:  teacher(),
		Token: wellFormedToken,
	}, nil).Once()

	snap, err := a.Login(context.Background(), session.LoginCredentials{Email: " ada@example.com ", Password: "secret"})

	require.NoError(t, err)
	assert.True(t, snap.IsAuthenticated)
	assert.False(t, snap.Loading)
	assert.Len(t, mem.Entries(), 2)
	assert.Equal(t, []session.State{
		session.StateAnonymous,
		session.StateAuthenticating,
		session.StateAuthenticated,
	}, states)
	ex.AssertExpectations(t)
}

func TestAuthenticatorLoginWithIdentity(t *testing.T) {
	a, _, ex, _ := newAuthenticator(t)

	identity := session.NewIdentityFromUser(&session.User{ID: "7", Name: "Grace", Email: "grace@example.com", Role: session.RoleAdmin})
	ex.On("Login", mock.Anything, mock.Anything).Return(session.ExchangeResult{
		Identity: identity,
		Token:    wellFormedToken,
	}, nil).Once()

	snap, err := a.Login(context.Background(), session.LoginCredentials{Email: "grace@example.com", Password: "pw"})

	require.NoError(t, err)
	assert.Equal(t, "7", snap.GetUserID())
	assert.Equal(t, session.RoleAdmin, snap.Role())
}

func TestAuthenticatorLoginValidationFailure(t *testing.T) {
	a, _, ex, mem := newAuthenticator(t)

	snap, err := a.Login(context.Background(), session.LoginCredentials{Email: "not-an-email"})

	require.Error(t, err)
	var exErr *session.ExchangeError
	require.True(t, errors.As(err, &exErr))
	assert.Equal(t, session.ExchangeValidation, exErr.Kind)
	assert.Contains(t, exErr.Fields, "email")
	assert.Contains(t, exErr.Fields, "password")

	assert.Equal(t, session.StateFailed, snap.State())
	assert.False(t, snap.Loading)
	assert.NotEmpty(t, snap.Error)
	assert.Equal(t, "SESSION_EXCHANGE_VALIDATION", snap.ErrorCode)
	assert.Empty(t, mem.Entries())
	ex.AssertNotCalled(t, "Login", mock.Anything, mock.Anything)
}

func TestAuthenticatorLoginRejected(t *testing.T) {
	a, _, ex, _ := newAuthenticator(t)

	ex.On("Login", mock.Anything, mock.Anything).Return(
		session.ExchangeResult{},
		session.NewExchangeError(session.ExchangeInvalidCredentials, ""),
	).Once()

	snap, err := a.Login(context.Background(), session.LoginCredentials{Email: "ada@example.com", Password: "wrong"})

	require.Error(t, err)
	assert.Equal(t, session.StateFailed, snap.State())
	assert.Equal(t, "invalid email or password", snap.Error)
	assert.Equal(t, "SESSION_EXCHANGE_INVALID_CREDENTIALS", snap.ErrorCode)
}

func TestAuthenticatorNormalizesExchangeErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		kind     session.ExchangeErrorKind
		message  string
		textCode string
	}{
		{
			name:     "auth category",
			err:      goerrors.New("bad password", goerrors.CategoryAuth),
			kind:     session.ExchangeInvalidCredentials,
			message:  "bad password",
			textCode: "SESSION_EXCHANGE_INVALID_CREDENTIALS",
		},
		{
			name:     "conflict category",
			err:      goerrors.New("", goerrors.CategoryConflict),
			kind:     session.ExchangeConflict,
			message:  "an account with this email already exists",
			textCode: "SESSION_EXCHANGE_CONFLICT",
		},
		{
			name:     "plain error",
			err:      errors.New("connection refused"),
			kind:     session.ExchangeUnknown,
			message:  "login failed",
			textCode: "SESSION_EXCHANGE_UNKNOWN",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _, ex, _ := newAuthenticator(t)
			ex.On("Login", mock.Anything, mock.Anything).Return(session.ExchangeResult{}, tt.err).Once()

			snap, err := a.Login(context.Background(), session.LoginCredentials{Email: "ada@example.com", Password: "pw"})

			var exErr *session.ExchangeError
			require.True(t, errors.As(err, &exErr))
			assert.Equal(t, tt.kind, exErr.Kind)
			assert.Equal(t, tt.message, snap.Error)
			assert.Equal(t, tt.textCode, snap.ErrorCode)
		})
	}
}

func TestAuthenticatorRegister(t *testing.T) {
	a, _, ex, _ := newAuthenticator(t)

	ex.On("Register", mock.Anything, mock.MatchedBy(func(r session.Registration) bool {
		return r.Role == session.RoleStudent
	})).Return(session.ExchangeResult{
		User:  &session.User{ID: "9", Name: "Lin", Role: session.RoleStudent},
		Token: wellFormedToken,
	}, nil).Once()

	snap, err := a.Register(context.Background(), session.Registration{
		Name:            "Lin",
		Email:           "lin@example.com",
		Password:        "secret1",
		ConfirmPassword: "secret1",
		Role:            "student",
	})

	require.NoError(t, err)
	assert.Equal(t, session.RoleStudent, snap.Role())
	ex.AssertExpectations(t)
}

func TestRegistrationValidate(t *testing.T) {
	valid := session.Registration{
		Name:            "Lin",
		Email:           "lin@example.com",
		Password:        "secret1",
		ConfirmPassword: "secret1",
		Role:            session.RoleTeacher,
	}
	assert.NoError(t, valid.Validate())

	mismatch := valid
	mismatch.ConfirmPassword = "other"
	assert.Error(t, mismatch.Validate())

	badRole := valid
	badRole.Role = "Parent"
	assert.Error(t, badRole.Validate())

	short := valid
	short.Password = "123"
	short.ConfirmPassword = "123"
	assert.Error(t, short.Validate())
}

func TestExchangeErrorMessages(t *testing.T) {
	err := &session.ExchangeError{Kind: session.ExchangeUnavailable, Err: errors.New("503")}
	assert.Equal(t, "authentication service is unavailable, try again later", err.UserMessage())
	assert.Equal(t, "SESSION_EXCHANGE_UNAVAILABLE", err.TextCode())
	assert.ErrorContains(t, err, "503")

	unknown := &session.ExchangeError{Kind: "weird", Message: "custom"}
	assert.Equal(t, "custom", unknown.UserMessage())
	assert.Equal(t, "SESSION_EXCHANGE_UNKNOWN", unknown.TextCode())
}
