package session_test

import (
	"context"

	session "github.com/goliatone/go-auth-session"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/mock"
)

// MockStore implements session.Store without the batch methods
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Get(ctx context.Context, key string) (string, bool, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockStore) Set(ctx context.Context, key, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockStore) Remove(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

type panickingStore struct{}

func (panickingStore) Get(context.Context, string) (string, bool, error) {
	panic("store exploded")
}

func (panickingStore) Set(context.Context, string, string) error {
	panic("store exploded")
}

func (panickingStore) Remove(context.Context, string) error {
	panic("store exploded")
}

// MockExchanger implements session.CredentialExchanger
type MockExchanger struct {
	mock.Mock
}

func (m *MockExchanger) Login(ctx context.Context, creds session.LoginCredentials) (session.ExchangeResult, error) {
	args := m.Called(ctx, creds)
	return args.Get(0).(session.ExchangeResult), args.Error(1)
}

func (m *MockExchanger) Register(ctx context.Context, reg session.Registration) (session.ExchangeResult, error) {
	args := m.Called(ctx, reg)
	return args.Get(0).(session.ExchangeResult), args.Error(1)
}

// MockSnapshotSource implements session.SnapshotSource
type MockSnapshotSource struct {
	snap session.Snapshot
}

func (m MockSnapshotSource) Snapshot() session.Snapshot {
	return m.snap
}

type routerContext = router.Context

// MockContext mocks the router.Context. Methods the guard never calls fall
// through to the embedded nil interface.
type MockContext struct {
	routerContext
	mock.Mock
	NextCalled bool
}

func (m *MockContext) Next() error {
	m.NextCalled = true
	return nil
}

func (m *MockContext) Context() context.Context {
	args := m.Called()
	c, ok := args.Get(0).(context.Context)
	if !ok {
		panic("arg needs to be context.Context")
	}
	return c
}

func (m *MockContext) SetContext(ctx context.Context) {
	m.Called(ctx)
}

func (m *MockContext) Method() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) Status(code int) router.Context {
	m.Called(code)
	return m
}

func (m *MockContext) SendString(s string) error {
	args := m.Called(s)
	return args.Error(0)
}

func (m *MockContext) Redirect(path string, status ...int) error {
	if len(status) > 0 {
		args := m.Called(path, status)
		return args.Error(0)
	}
	args := m.Called(path)
	return args.Error(0)
}

func (m *MockContext) SetHeader(key, val string) router.Context {
	m.Called(key, val)
	return m
}

func (m *MockContext) Cookie(cookie *router.Cookie) {
	m.Called(cookie)
}

func (m *MockContext) Cookies(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) Locals(key any, value ...any) any {
	if len(value) > 0 {
		m.Called(key, value[0])
		return nil
	}
	args := m.Called(key)
	return args.Get(0)
}

func (m *MockContext) OriginalURL() string {
	args := m.Called()
	return args.String(0)
}
