// internal/state/mock.go
package state

import (
	"context"
	"database/sql"
	"maps"
	"slices"
	"sync"

	"github.com/samber/mo"
)

// Mock is an in-memory test double for Manager. PutLater writes immediately.
type Mock struct {
	mu     sync.Mutex
	values map[string][]byte
	puts   int
	closed bool
}

// NewMock creates a new mock state manager for testing.
func NewMock() *Mock {
	return &Mock{values: make(map[string][]byte)}
}

func (m *Mock) DB() *sql.DB { return nil }

func (m *Mock) Get(key string) (mo.Option[[]byte], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return mo.None[[]byte](), nil
	}
	return mo.Some(slices.Clone(v)), nil
}

func (m *Mock) Put(key string, value []byte) error {
	return m.PutMany(context.Background(), map[string][]byte{key: value})
}

func (m *Mock) PutMany(_ context.Context, values map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range values {
		m.puts++
		if v == nil {
			delete(m.values, k)
			continue
		}
		m.values[k] = slices.Clone(v)
	}
	return nil
}

func (m *Mock) PutLater(key string, value []byte) {
	_ = m.Put(key, value)
}

func (m *Mock) Delete(key string) error {
	return m.Put(key, nil)
}

func (m *Mock) Flush() error { return nil }

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Test helpers

// SetRaw stores a raw value, bypassing encoding.
func (m *Mock) SetRaw(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}

// Keys returns the stored keys.
func (m *Mock) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Sorted(maps.Keys(m.values))
}

// Puts returns the number of key writes.
func (m *Mock) Puts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}
