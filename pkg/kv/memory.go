package kv

import (
	"context"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// Memory holds values in a concurrent map.
// Values are copied on Set and Get so callers can reuse their buffers.
type Memory struct {
	data   *xsync.MapOf[string, []byte]
	closed atomic.Bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: xsync.NewMapOf[string, []byte]()}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	if m.closed.Load() {
		return nil, false, ErrClosed
	}
	v, ok := m.data.Load(key)
	if !ok {
		return nil, false, nil
	}
	return clone(v), true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	if m.closed.Load() {
		return ErrClosed
	}
	m.data.Store(key, clone(value))
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	if m.closed.Load() {
		return ErrClosed
	}
	m.data.Delete(key)
	return nil
}

func (m *Memory) Keys(_ context.Context) ([]string, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	keys := make([]string, 0, m.data.Size())
	m.data.Range(func(k string, _ []byte) bool {
		keys = append(keys, k)
		return true
	})
	return keys, nil
}

// Close drops all values.
func (m *Memory) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	m.data.Clear()
	return nil
}

func clone(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

var _ Store = (*Memory)(nil)
