package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/google/uuid"
)

const (
	// DefaultTokenKey is the store key holding the raw credential.
	DefaultTokenKey = "token"
	// DefaultUserKey is the store key holding the JSON user record.
	DefaultUserKey = "user"
)

// TransitionHook runs after a transition has been published.
type TransitionHook func(ctx context.Context, event TransitionEvent)

// Option customizes Manager construction.
type Option func(*Manager)

// WithLogger overrides the logger used for store and sink failures.
func WithLogger(logger Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithActivitySink sets the ActivitySink used to publish session events.
func WithActivitySink(sink ActivitySink) Option {
	return func(m *Manager) {
		m.activitySink = normalizeActivitySink(sink)
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) {
		if clock != nil {
			m.now = clock
		}
	}
}

// WithStoreKeys overrides the keys the token and user are persisted under.
func WithStoreKeys(tokenKey, userKey string) Option {
	return func(m *Manager) {
		if tokenKey != "" {
			m.tokenKey = tokenKey
		}
		if userKey != "" {
			m.userKey = userKey
		}
	}
}

// WithExpiredTokenEviction makes Rehydrate discard tokens that decode as a
// JWT whose exp claim has passed. Opaque tokens are unaffected.
func WithExpiredTokenEviction() Option {
	return func(m *Manager) {
		m.evictExpired = true
	}
}

// WithTransitionHook adds a hook executed after every published transition.
func WithTransitionHook(h TransitionHook) Option {
	return func(m *Manager) {
		if h != nil {
			m.hooks = append(m.hooks, h)
		}
	}
}

// WithConfig applies store keys and eviction settings from cfg.
func WithConfig(cfg Config) Option {
	return func(m *Manager) {
		if cfg == nil {
			return
		}
		WithStoreKeys(cfg.GetTokenKey(), cfg.GetUserKey())(m)
		if cfg.GetEvictExpiredTokens() {
			m.evictExpired = true
		}
	}
}

// Manager owns the session of a single user agent. It rehydrates from a
// Store once at startup, writes every login and logout through to the
// Store, and publishes an immutable Snapshot per transition.
//
// A Manager starts out Loading so guards wait for Rehydrate instead of
// redirecting a returning user to the login page.
type Manager struct {
	id           string
	store        Store
	tokenKey     string
	userKey      string
	logger       Logger
	activitySink ActivitySink
	now          func() time.Time
	evictExpired bool
	hooks        []TransitionHook

	mu         sync.Mutex
	state      atomic.Value
	rehydrated bool
	disposed   bool
	activity   []ActivityEvent

	subsMu sync.RWMutex
	subs   []*subscription
}

type subscription struct {
	id string
	fn func(Snapshot)

	mu         sync.Mutex
	last       uint64
	pending    *Snapshot
	delivering bool
}

// NewManager returns a Manager persisting to store. A nil store keeps the
// session in memory only.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		id:           uuid.NewString(),
		store:        store,
		tokenKey:     DefaultTokenKey,
		userKey:      DefaultUserKey,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		now:          time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	m.state.Store(Snapshot{Loading: true, Version: 1})
	return m
}

// ID identifies this Manager instance in activity events.
func (m *Manager) ID() string {
	return m.id
}

// Snapshot returns the current session state.
func (m *Manager) Snapshot() Snapshot {
	return m.load().clone()
}

// Subscribe registers fn to receive every published snapshot, starting with
// the current one. fn runs outside the Manager's locks and may call back
// into the Manager. The returned function removes the subscription.
func (m *Manager) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}

	sub := &subscription{id: uuid.NewString(), fn: fn}

	m.subsMu.Lock()
	m.subs = append(m.subs, sub)
	m.subsMu.Unlock()

	m.deliverTo(sub, m.load())

	return func() {
		m.subsMu.Lock()
		defer m.subsMu.Unlock()
		for i, s := range m.subs {
			if s.id == sub.id {
				m.subs = append(m.subs[:i], m.subs[i+1:]...)
				return
			}
		}
	}
}

// Dispose drops all subscribers. Later transitions fail with ErrDisposed;
// Snapshot keeps returning the last state.
func (m *Manager) Dispose() {
	m.mu.Lock()
	m.disposed = true
	m.mu.Unlock()

	m.subsMu.Lock()
	m.subs = nil
	m.subsMu.Unlock()
}

// Rehydrate restores the session persisted in the Store. Only the first
// call reads the Store; later calls return the current snapshot. It never
// fails: unreadable or corrupted state resolves to an anonymous session and
// corrupted keys are removed. On a disposed Manager the Store is not read
// and the session settles as it is, without Loading.
func (m *Manager) Rehydrate(ctx context.Context) Snapshot {
	if ctx == nil {
		ctx = context.Background()
	}

	m.mu.Lock()
	if m.rehydrated {
		snap := m.load()
		m.mu.Unlock()
		m.logger.Debug("rehydrate skipped, session already initialized (%s)", snap)
		return snap.clone()
	}
	m.rehydrated = true

	if m.disposed {
		// the store is not read anymore, settle so guards stop waiting
		snap := m.load()
		if snap.Loading {
			snap.Loading = false
			snap = m.publish(snap)
		}
		m.mu.Unlock()
		m.logger.Debug("rehydrate on disposed session, store not read (%s)", snap)
		return snap.clone()
	}

	prev := m.load()
	next := m.rehydrate(ctx, prev)
	next = m.publish(next)
	m.unlockAndFlush(ctx)

	m.afterTransition(ctx, rehydrateAction{}, prev, next)
	return next.clone()
}

// Login establishes an authenticated session for user and token.
func (m *Manager) Login(ctx context.Context, user *User, token string) (Snapshot, error) {
	return m.Dispatch(ctx, LoginAction{User: user, Token: token})
}

// Logout discards the session. Store failures are logged, never returned.
func (m *Manager) Logout(ctx context.Context) (Snapshot, error) {
	return m.Dispatch(ctx, LogoutAction{})
}

// SetError moves the session to the failed state with err's message.
func (m *Manager) SetError(ctx context.Context, err error) (Snapshot, error) {
	return m.Dispatch(ctx, SetErrorAction{Err: err})
}

// ClearError dismisses a failure. It is a no-op outside the failed state.
func (m *Manager) ClearError(ctx context.Context) (Snapshot, error) {
	return m.Dispatch(ctx, ClearErrorAction{})
}

// SetLoading toggles the loading flag around a caller-owned operation.
func (m *Manager) SetLoading(ctx context.Context, loading bool) (Snapshot, error) {
	return m.Dispatch(ctx, SetLoadingAction{Loading: loading})
}

// Dispatch applies action and returns the resulting snapshot. The error is
// the reason a login was rejected, or ErrDisposed; in both cases the
// returned snapshot is the state now observable.
func (m *Manager) Dispatch(ctx context.Context, action Action) (Snapshot, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	m.mu.Lock()
	prev := m.load()
	if m.disposed {
		m.mu.Unlock()
		return prev.clone(), ErrDisposed
	}

	var next Snapshot
	var err error
	changed := true

	switch a := action.(type) {
	case LoginAction:
		next, err = m.login(ctx, prev, a)
	case LogoutAction:
		next = m.logout(ctx, prev)
	case SetErrorAction:
		next = m.setError(ctx, prev, a)
	case ClearErrorAction:
		next, changed = m.clearError(ctx, prev)
	case SetLoadingAction:
		next, changed = m.setLoading(ctx, prev, a)
	default:
		m.mu.Unlock()
		return prev.clone(), goerrors.New(
			fmt.Sprintf("unsupported session action %T", action),
			goerrors.CategoryBadInput,
		)
	}

	if !changed {
		m.unlockAndFlush(ctx)
		return prev.clone(), nil
	}

	next = m.publish(next)
	m.unlockAndFlush(ctx)

	m.afterTransition(ctx, action, prev, next)
	return next.clone(), err
}

func (m *Manager) login(ctx context.Context, prev Snapshot, a LoginAction) (Snapshot, error) {
	if a.User == nil || strings.TrimSpace(a.User.ID) == "" || strings.TrimSpace(a.Token) == "" {
		m.logger.Warn("login rejected: %s", ErrMissingCredentials.Message)
		m.recordFailure(ctx, prev, ErrMissingCredentials)
		return failedSnapshot(ErrMissingCredentials.Message, ErrMissingCredentials.TextCode), ErrMissingCredentials
	}

	if !IsWellFormedToken(a.Token) {
		m.logger.Warn("login rejected: %s", ErrTokenMalformed.Message)
		m.recordFailure(ctx, prev, ErrTokenMalformed)
		return failedSnapshot(ErrTokenMalformed.Message, ErrTokenMalformed.TextCode), ErrTokenMalformed
	}

	user := a.User.Clone()
	next := Snapshot{
		User:            user,
		Token:           a.Token,
		IsAuthenticated: true,
	}

	raw, err := encodeUser(user)
	if err != nil {
		m.reportStoreFailure(ctx, prev, wrapStoreError(ErrStoreWrite, "encode", m.userKey, err))
		return next, nil
	}

	if err := m.writePair(ctx, a.Token, raw); err != nil {
		// the session still holds in memory; a reload will not recover it
		m.reportStoreFailure(ctx, prev, err)
	}

	m.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventLogin,
		UserID:    user.ID,
		Role:      user.Role,
		FromState: prev.State(),
		ToState:   next.State(),
	})

	return next, nil
}

func (m *Manager) logout(ctx context.Context, prev Snapshot) Snapshot {
	if err := m.removePair(ctx); err != nil {
		m.reportStoreFailure(ctx, prev, err)
	}

	next := anonymousSnapshot()
	m.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventLogout,
		UserID:    prev.GetUserID(),
		Role:      prev.Role(),
		FromState: prev.State(),
		ToState:   next.State(),
	})
	return next
}

func (m *Manager) setError(ctx context.Context, prev Snapshot, a SetErrorAction) Snapshot {
	msg, code := errorMessage(a.Err)
	next := failedSnapshot(msg, code)

	m.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventLoginFailure,
		FromState: prev.State(),
		ToState:   next.State(),
		Metadata: map[string]any{
			"error":      msg,
			"error_code": code,
		},
	})
	return next
}

func (m *Manager) clearError(ctx context.Context, prev Snapshot) (Snapshot, bool) {
	if prev.State() != StateFailed {
		return prev, false
	}

	next := anonymousSnapshot()
	m.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventErrorCleared,
		FromState: prev.State(),
		ToState:   next.State(),
	})
	return next, true
}

func (m *Manager) setLoading(ctx context.Context, prev Snapshot, a SetLoadingAction) (Snapshot, bool) {
	if prev.Loading == a.Loading {
		return prev, false
	}

	next := prev
	next.Loading = a.Loading
	if a.Loading {
		next.Error = ""
		next.ErrorCode = ""
	}

	m.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventLoadingToggle,
		UserID:    prev.GetUserID(),
		FromState: prev.State(),
		ToState:   next.State(),
		Metadata:  map[string]any{"loading": a.Loading},
	})
	return next, true
}

func (m *Manager) rehydrate(ctx context.Context, prev Snapshot) Snapshot {
	if prev.IsAuthenticated {
		next := prev
		next.Loading = false
		return next
	}

	// a failure recorded while the check was in flight survives an empty store
	anon := Snapshot{Error: prev.Error, ErrorCode: prev.ErrorCode}

	token, hasToken, err := m.get(ctx, m.tokenKey)
	if err != nil {
		m.reportStoreFailure(ctx, prev, err)
		return anon
	}

	rawUser, hasUser, err := m.get(ctx, m.userKey)
	if err != nil {
		m.reportStoreFailure(ctx, prev, err)
		return anon
	}

	if !hasToken && !hasUser {
		return anon
	}

	if !hasToken || !hasUser || token == "" || rawUser == "" {
		m.logger.Debug("rehydrate found a partial session, clearing it")
		if err := m.removePair(ctx); err != nil {
			m.reportStoreFailure(ctx, prev, err)
		}
		return anon
	}

	user, err := decodeUser(rawUser)
	if err != nil {
		m.discardCorrupted(ctx, prev, "user record is not parseable", err)
		return anon
	}

	if !IsWellFormedToken(token) {
		m.discardCorrupted(ctx, prev, "token is not well formed", ErrTokenMalformed)
		return anon
	}

	if m.evictExpired && IsTokenExpiredAt(token, m.now()) {
		m.discardCorrupted(ctx, prev, "token is expired", nil)
		return anon
	}

	next := Snapshot{
		User:            user,
		Token:           token,
		IsAuthenticated: true,
	}

	m.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventRehydrated,
		UserID:    user.ID,
		Role:      user.Role,
		FromState: prev.State(),
		ToState:   next.State(),
	})

	return next
}

func (m *Manager) discardCorrupted(ctx context.Context, prev Snapshot, reason string, cause error) {
	meta := map[string]any{
		"reason":    reason,
		"token_key": m.tokenKey,
		"user_key":  m.userKey,
	}
	if cause != nil {
		meta["cause"] = cause.Error()
	}

	err := withMetadata(ErrCorruptedSession, meta)
	m.logger.Warn("discarding corrupted session: %s", print.MaybePrettyJSON(meta))

	if rmErr := m.removePair(ctx); rmErr != nil {
		m.reportStoreFailure(ctx, prev, rmErr)
	}

	m.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventCorrupted,
		FromState: prev.State(),
		ToState:   StateAnonymous,
		Metadata: map[string]any{
			"reason":    reason,
			"text_code": err.TextCode,
		},
	})
}

func (m *Manager) writePair(ctx context.Context, token, rawUser string) error {
	if m.store == nil {
		return nil
	}
	if bs, ok := m.store.(BatchStore); ok {
		err := safeStoreCall(func() error {
			return bs.SetMany(ctx, map[string]string{
				m.tokenKey: token,
				m.userKey:  rawUser,
			})
		})
		if err != nil {
			return wrapStoreError(ErrStoreWrite, "set_many", m.tokenKey+","+m.userKey, err)
		}
		return nil
	}

	if err := safeStoreCall(func() error { return m.store.Set(ctx, m.userKey, rawUser) }); err != nil {
		_ = safeStoreCall(func() error { return m.store.Remove(ctx, m.tokenKey) })
		return wrapStoreError(ErrStoreWrite, "set", m.userKey, err)
	}

	if err := safeStoreCall(func() error { return m.store.Set(ctx, m.tokenKey, token) }); err != nil {
		// never leave a user record behind without its token
		_ = safeStoreCall(func() error { return m.store.Remove(ctx, m.userKey) })
		return wrapStoreError(ErrStoreWrite, "set", m.tokenKey, err)
	}

	return nil
}

func (m *Manager) removePair(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	if bs, ok := m.store.(BatchStore); ok {
		err := safeStoreCall(func() error { return bs.RemoveMany(ctx, m.tokenKey, m.userKey) })
		if err != nil {
			return wrapStoreError(ErrStoreWrite, "remove_many", m.tokenKey+","+m.userKey, err)
		}
		return nil
	}

	tokenErr := safeStoreCall(func() error { return m.store.Remove(ctx, m.tokenKey) })
	userErr := safeStoreCall(func() error { return m.store.Remove(ctx, m.userKey) })

	if tokenErr != nil {
		return wrapStoreError(ErrStoreWrite, "remove", m.tokenKey, tokenErr)
	}
	if userErr != nil {
		return wrapStoreError(ErrStoreWrite, "remove", m.userKey, userErr)
	}
	return nil
}

func (m *Manager) get(ctx context.Context, key string) (string, bool, error) {
	if m.store == nil {
		return "", false, nil
	}

	var value string
	var ok bool
	err := safeStoreCall(func() error {
		var err error
		value, ok, err = m.store.Get(ctx, key)
		return err
	})
	if err != nil {
		return "", false, wrapStoreError(ErrStoreRead, "get", key, err)
	}
	return value, ok, nil
}

// safeStoreCall turns a panicking store into an error so a broken backend
// can never abort a transition.
func safeStoreCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("store panic: %v", r)
		}
	}()
	return fn()
}

func (m *Manager) reportStoreFailure(ctx context.Context, prev Snapshot, err error) {
	m.logger.Error("session store failure: %v", err)

	meta := map[string]any{"error": err.Error()}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		meta["text_code"] = richErr.TextCode
		for k, v := range richErr.Metadata {
			meta[k] = v
		}
	}

	m.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventStoreFailure,
		UserID:    prev.GetUserID(),
		FromState: prev.State(),
		Metadata:  meta,
	})
}

func (m *Manager) recordFailure(ctx context.Context, prev Snapshot, err *goerrors.Error) {
	m.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventLoginFailure,
		FromState: prev.State(),
		ToState:   StateFailed,
		Metadata: map[string]any{
			"error":      err.Message,
			"error_code": err.TextCode,
		},
	})
}

// recordActivity queues event for the sink. It must be called with mu held;
// the queue is flushed by unlockAndFlush.
func (m *Manager) recordActivity(_ context.Context, event ActivityEvent) {
	event.SessionID = m.id
	if event.OccurredAt.IsZero() {
		event.OccurredAt = m.now()
	}
	m.activity = append(m.activity, event)
}

// unlockAndFlush releases mu, then hands the queued events to the sink. The
// sink may call back into the Manager.
func (m *Manager) unlockAndFlush(ctx context.Context) {
	events := m.activity
	m.activity = nil
	m.mu.Unlock()

	if len(events) == 0 {
		return
	}

	sink := normalizeActivitySink(m.activitySink)
	for _, event := range events {
		if err := sink.Record(ctx, event); err != nil {
			m.logger.Warn("session activity sink error: %v", err)
		}
	}
}

func (m *Manager) load() Snapshot {
	return m.state.Load().(Snapshot)
}

// publish must be called with mu held.
func (m *Manager) publish(next Snapshot) Snapshot {
	next.Version = m.load().Version + 1
	m.state.Store(next)
	return next
}

func (m *Manager) afterTransition(ctx context.Context, action Action, prev, next Snapshot) {
	event := TransitionEvent{
		Action: ActionName(action),
		From:   prev.clone(),
		To:     next.clone(),
	}
	for _, hook := range m.hooks {
		hook(ctx, event)
	}

	m.subsMu.RLock()
	subs := make([]*subscription, len(m.subs))
	copy(subs, m.subs)
	m.subsMu.RUnlock()

	for _, sub := range subs {
		m.deliverTo(sub, next)
	}
}

// deliverTo hands snap to sub unless a newer snapshot was already handed
// over. Calls for one subscriber never overlap: a delivery arriving while
// fn runs is queued, and only the newest queued snapshot is delivered once
// fn returns.
func (m *Manager) deliverTo(sub *subscription, snap Snapshot) {
	sub.mu.Lock()
	if snap.Version <= sub.last || (sub.pending != nil && snap.Version <= sub.pending.Version) {
		sub.mu.Unlock()
		return
	}
	sub.pending = &snap
	if sub.delivering {
		sub.mu.Unlock()
		return
	}
	sub.delivering = true

	for sub.pending != nil {
		next := *sub.pending
		sub.pending = nil
		sub.last = next.Version
		sub.mu.Unlock()

		sub.fn(next.clone())

		sub.mu.Lock()
	}
	sub.delivering = false
	sub.mu.Unlock()
}

func failedSnapshot(msg, code string) Snapshot {
	return Snapshot{Error: msg, ErrorCode: code}
}

func errorMessage(err error) (string, string) {
	if err == nil {
		return ErrLoginFailed.Message, ErrLoginFailed.TextCode
	}

	var exErr *ExchangeError
	if goerrors.As(err, &exErr) {
		return exErr.UserMessage(), exErr.TextCode()
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Message != "" {
		return richErr.Message, richErr.TextCode
	}

	if msg := err.Error(); msg != "" {
		return msg, ""
	}
	return ErrLoginFailed.Message, ErrLoginFailed.TextCode
}
