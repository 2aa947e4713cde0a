// Package kv provides flat string-keyed storage engines.
//
// A Store is the Go counterpart of browser local key-value storage: every
// value is an opaque byte string stored whole under one key. There is no
// indexing and no partial update; callers serialize what they need.
//
// Three engines are available:
//
//   - Memory: a concurrent in-process map, lost on exit.
//   - File: one file per key under a directory, written atomically.
//   - Redis: string keys on a redis server under a common prefix.
package kv

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("kv: store closed")

// Store is a flat key-value store.
type Store interface {
	// Get returns the value stored under key. The boolean reports whether
	// the key exists.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys lists every key currently stored, in no particular order.
	Keys(ctx context.Context) ([]string, error)
	// Close releases resources held by the store.
	Close() error
}

// NopCloser returns s with a Close that does nothing. Use it to share one
// store between owners that each close what they are given.
func NopCloser(s Store) Store {
	return nopCloser{s}
}

type nopCloser struct {
	Store
}

func (nopCloser) Close() error { return nil }
