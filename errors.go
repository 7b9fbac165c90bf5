package session

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeMissingCredentials = "SESSION_MISSING_CREDENTIALS"
	TextCodeTokenMalformed     = "SESSION_TOKEN_MALFORMED"
	TextCodeCorruptedSession   = "SESSION_CORRUPTED"
	TextCodeStoreWrite         = "SESSION_STORE_WRITE_FAILED"
	TextCodeStoreRead          = "SESSION_STORE_READ_FAILED"
	TextCodeDisposed           = "SESSION_DISPOSED"
	TextCodeLoginFailed        = "SESSION_LOGIN_FAILED"
)

// ErrMissingCredentials is returned by Login when the user or token is absent.
var ErrMissingCredentials = goerrors.New("user and token are required to log in", goerrors.CategoryValidation).
	WithTextCode(TextCodeMissingCredentials).
	WithCode(goerrors.CodeBadRequest)

// ErrTokenMalformed is returned when a token is not shaped header.payload.signature.
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryBadInput).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeBadRequest)

// ErrCorruptedSession describes persisted state that could not be rehydrated.
// It is logged and reported to the activity sink, never surfaced in a Snapshot.
var ErrCorruptedSession = goerrors.New("persisted session is corrupted", goerrors.CategoryBadInput).
	WithTextCode(TextCodeCorruptedSession).
	WithCode(goerrors.CodeBadRequest)

// ErrStoreWrite wraps a failed Set or Remove. It never blocks a transition.
var ErrStoreWrite = goerrors.New("session store write failed", goerrors.CategoryOperation).
	WithTextCode(TextCodeStoreWrite).
	WithCode(goerrors.CodeInternal)

// ErrStoreRead wraps a failed Get during rehydration.
var ErrStoreRead = goerrors.New("session store read failed", goerrors.CategoryOperation).
	WithTextCode(TextCodeStoreRead).
	WithCode(goerrors.CodeInternal)

// ErrDisposed is returned by transitions on a disposed Manager.
var ErrDisposed = goerrors.New("session manager is disposed", goerrors.CategoryConflict).
	WithTextCode(TextCodeDisposed).
	WithCode(goerrors.CodeConflict)

// ErrLoginFailed is the fallback used by SetError when no message is available.
var ErrLoginFailed = goerrors.New("login failed", goerrors.CategoryAuth).
	WithTextCode(TextCodeLoginFailed).
	WithCode(goerrors.CodeUnauthorized)

// IsCorruptedSession reports whether err describes corrupted persisted state.
func IsCorruptedSession(err error) bool {
	return hasTextCode(err, TextCodeCorruptedSession)
}

// IsStoreWriteError reports whether err is a wrapped store write failure.
func IsStoreWriteError(err error) bool {
	return hasTextCode(err, TextCodeStoreWrite)
}

// IsTokenMalformedError reports whether err is a structural token failure.
func IsTokenMalformedError(err error) bool {
	return hasTextCode(err, TextCodeTokenMalformed)
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == code
}

func withMetadata(base *goerrors.Error, meta map[string]any) *goerrors.Error {
	clone := base.Clone()
	if clone == nil {
		return base
	}
	return clone.WithMetadata(meta)
}

func wrapStoreError(base *goerrors.Error, op, key string, err error) error {
	wrapped := goerrors.Wrap(err, base.Category, base.Message).
		WithTextCode(base.TextCode).
		WithCode(base.Code)
	return wrapped.WithMetadata(map[string]any{
		"operation": op,
		"key":       key,
	})
}
