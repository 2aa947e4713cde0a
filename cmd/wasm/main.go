//go:build js && wasm

package main

import (
	"context"
	"fmt"
	"syscall/js"

	"github.com/kittclouds/novelkit/internal/store"
	"github.com/kittclouds/novelkit/pkg/kv"
	"github.com/kittclouds/novelkit/pkg/logger"
)

// Version info
const Version = "0.3.0"

// indexedSnapshotKey holds the indexed backend's snapshot in localStorage.
const indexedSnapshotKey = "indexed-db"

// Global state
var facade *store.Facade

func main() {
	log := logger.Init("info", "text")

	flat, err := newLocalStorageKV("novelkit:")
	var settingsKV kv.Store = flat
	if err != nil {
		// workers have no localStorage; data lives for the page only
		log.Warn("falling back to in-memory storage", "error", err)
		settingsKV = kv.NewMemory()
	}

	facade, err = store.Open(context.Background(), store.Options{
		Settings: settingsKV,
		Backends: map[store.Mode]store.BackendFactory{
			store.ModeFlatKV: func(ctx context.Context) (store.Backend, error) {
				return store.NewFlatStore(kv.NopCloser(settingsKV)), nil
			},
			// SQLite runs in memory; every write is mirrored into
			// localStorage and loaded back on the next page load
			store.ModeIndexedDocument: func(ctx context.Context) (store.Backend, error) {
				db, err := store.NewSQLiteStore(ctx)
				if err != nil {
					return nil, err
				}
				synced, err := store.NewSyncedStore(ctx, db, settingsKV, indexedSnapshotKey)
				if err != nil {
					db.Close()
					return nil, err
				}
				return synced, nil
			},
		},
		Logger: log,
	})
	if err != nil {
		fmt.Println("[NovelKit] FATAL: open storage:", err.Error())
	}

	fmt.Println("[NovelKit] WASM Ready v" + Version)

	js.Global().Set("NovelKit", js.ValueOf(exports()))

	select {}
}
