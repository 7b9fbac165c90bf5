package store

import (
	"context"
	"fmt"
	"strings"
)

// Backend is the method set every adapter in this package provides.
type Backend interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	SetMany(ctx context.Context, values map[string]string) error
	RemoveMany(ctx context.Context, keys ...string) error
}

var (
	_ Backend = (*Memory)(nil)
	_ Backend = (*File)(nil)
	_ Backend = (*Redis)(nil)
	_ Backend = (*SQL)(nil)
)

// Settings selects and configures a backend.
type Settings struct {
	Driver      string
	FilePath    string
	RedisURL    string
	RedisPrefix string
	SQLDSN      string
}

// Open returns the backend named by s.Driver and a function releasing it.
func Open(ctx context.Context, s Settings) (Backend, func() error, error) {
	noop := func() error { return nil }

	switch strings.ToLower(strings.TrimSpace(s.Driver)) {
	case "", "file":
		if s.FilePath == "" {
			return nil, nil, fmt.Errorf("file store requires a path")
		}
		return NewFile(s.FilePath), noop, nil
	case "memory":
		return NewMemory(nil), noop, nil
	case "redis":
		var opts []RedisOption
		if s.RedisPrefix != "" {
			opts = append(opts, WithPrefix(s.RedisPrefix))
		}
		r, err := NewRedisFromURL(s.RedisURL, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("open redis store: %w", err)
		}
		if err := r.Ping(ctx); err != nil {
			_ = r.Close()
			return nil, nil, fmt.Errorf("ping redis store: %w", err)
		}
		return r, r.Close, nil
	case "sql", "sqlite":
		q, err := OpenSQLite(ctx, s.SQLDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open sql store: %w", err)
		}
		return q, q.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown session store driver %q", s.Driver)
	}
}
