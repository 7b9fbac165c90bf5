package store

import (
	"context"
	"errors"
	"maps"
	"sync"
)

// ErrQuotaExceeded is returned by a Memory store with failing writes.
var ErrQuotaExceeded = errors.New("store quota exceeded")

// Memory is a map backed store safe for concurrent use.
type Memory struct {
	mu            sync.RWMutex
	entries       map[string]string
	failingWrites error
}

// NewMemory returns a Memory store seeded with entries.
func NewMemory(entries map[string]string) *Memory {
	m := &Memory{entries: map[string]string{}}
	maps.Copy(m.entries, entries)
	return m
}

// FailWrites makes every Set, Remove and batch call return err. Pass nil
// to restore normal behavior.
func (m *Memory) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failingWrites = err
}

func (m *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	return v, ok, nil
}

func (m *Memory) Set(ctx context.Context, key, value string) error {
	return m.SetMany(ctx, map[string]string{key: value})
}

func (m *Memory) Remove(ctx context.Context, key string) error {
	return m.RemoveMany(ctx, key)
}

func (m *Memory) SetMany(ctx context.Context, values map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failingWrites != nil {
		return m.failingWrites
	}
	maps.Copy(m.entries, values)
	return nil
}

func (m *Memory) RemoveMany(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failingWrites != nil {
		return m.failingWrites
	}
	for _, key := range keys {
		delete(m.entries, key)
	}
	return nil
}

// Entries returns a copy of the stored values.
func (m *Memory) Entries() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.entries)
}
