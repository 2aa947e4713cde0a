//go:build js && wasm

package main

import (
	"context"
	"errors"
	"strings"
	"syscall/js"

	"github.com/kittclouds/novelkit/pkg/kv"
)

// localStorageKV is a kv.Store over window.localStorage. Values must be
// UTF-8; every value novelkit writes is JSON.
type localStorageKV struct {
	ls     js.Value
	prefix string
}

var _ kv.Store = (*localStorageKV)(nil)

func newLocalStorageKV(prefix string) (*localStorageKV, error) {
	ls := js.Global().Get("localStorage")
	if ls.IsUndefined() || ls.IsNull() {
		return nil, errors.New("localStorage is not available")
	}
	return &localStorageKV{ls: ls, prefix: prefix}, nil
}

func (l *localStorageKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	v := l.ls.Call("getItem", l.prefix+key)
	if v.IsNull() {
		return nil, false, nil
	}
	return []byte(v.String()), true, nil
}

func (l *localStorageKV) Set(_ context.Context, key string, value []byte) (err error) {
	// setItem throws QuotaExceededError when storage is full
	defer func() {
		if r := recover(); r != nil {
			err = jsError(r)
		}
	}()
	l.ls.Call("setItem", l.prefix+key, string(value))
	return nil
}

func (l *localStorageKV) Delete(_ context.Context, key string) error {
	l.ls.Call("removeItem", l.prefix+key)
	return nil
}

func (l *localStorageKV) Keys(_ context.Context) ([]string, error) {
	n := l.ls.Get("length").Int()
	var keys []string
	for i := 0; i < n; i++ {
		k := l.ls.Call("key", i)
		if k.IsNull() {
			continue
		}
		if s := k.String(); strings.HasPrefix(s, l.prefix) {
			keys = append(keys, strings.TrimPrefix(s, l.prefix))
		}
	}
	return keys, nil
}

func (l *localStorageKV) Close() error { return nil }

func jsError(r any) error {
	if e, ok := r.(js.Error); ok {
		return errors.New(e.Error())
	}
	if e, ok := r.(error); ok {
		return e
	}
	return errors.New("javascript exception")
}
