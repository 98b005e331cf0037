package kv

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	count     int64
	expiresAt time.Time // zero means no expiry
}

// Memory implements Store with an in-process map. Expired entries are
// dropped lazily on access. Thread-safe for concurrent use.
type Memory struct {
	mu   sync.Mutex
	data map[string]memoryEntry
	now  func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return NewMemoryWithClock(time.Now)
}

// NewMemoryWithClock creates an in-memory store that reads the current
// time from now, so tests can advance time without sleeping.
func NewMemoryWithClock(now func() time.Time) *Memory {
	return &Memory{
		data: make(map[string]memoryEntry),
		now:  now,
	}
}

// live returns the entry at key, dropping it first if expired.
// Callers must hold mu.
func (m *Memory) live(key string) (memoryEntry, bool) {
	e, ok := m.data[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !e.expiresAt.IsZero() && m.now().After(e.expiresAt) {
		delete(m.data, key)
		return memoryEntry{}, false
	}
	return e, true
}

func (m *Memory) Incr(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, _ := m.live(key)
	e.count++
	m.data[key] = e
	return e.count, nil
}

func (m *Memory) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live(key)
	e.count++
	if !ok {
		e.expiresAt = m.now().Add(window)
	}
	m.data[key] = e
	return e.count, nil
}

func (m *Memory) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = memoryEntry{
		value:     value,
		expiresAt: m.now().Add(ttl),
	}
	return nil
}

func (m *Memory) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.live(key)
	return ok, nil
}

func (m *Memory) TTL(ctx context.Context, key string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live(key)
	if !ok || e.expiresAt.IsZero() {
		return 0, nil
	}
	return e.expiresAt.Sub(m.now()), nil
}

func (m *Memory) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *Memory) Ping(ctx context.Context) error {
	return nil
}

func (m *Memory) Close() error {
	return nil
}
