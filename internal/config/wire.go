package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kittclouds/novelkit/internal/store"
	"github.com/kittclouds/novelkit/pkg/kv"
)

// OpenSettingsKV opens the flat key-value engine named by
// storage.flat.engine. It holds the settings blob and, through the flat
// backend, the flat-kv entity collections.
func (c *Config) OpenSettingsKV(ctx context.Context) (kv.Store, error) {
	switch c.Storage.Flat.Engine {
	case EngineMemory:
		return kv.NewMemory(), nil
	case EngineFile:
		return kv.NewFile(filepath.Join(c.Storage.DataDir, "kv"))
	case EngineRedis:
		r := c.Storage.Redis
		return kv.DialRedis(ctx, kv.RedisConfig{
			Addr:     r.Addr,
			Password: r.Password,
			DB:       r.DB,
			Prefix:   r.Prefix,
		})
	default:
		return nil, fmt.Errorf("unknown flat engine %q", c.Storage.Flat.Engine)
	}
}

// Backends returns the backend factory of every mode this config can
// serve. flat is the engine from OpenSettingsKV; the flat backend shares
// it without taking ownership. The remote document mode is only offered
// when a mongo uri is set.
func (c *Config) Backends(flat kv.Store) map[store.Mode]store.BackendFactory {
	backends := map[store.Mode]store.BackendFactory{
		store.ModeFlatKV: func(ctx context.Context) (store.Backend, error) {
			return store.NewFlatStore(kv.NopCloser(flat)), nil
		},
		store.ModeIndexedDocument: func(ctx context.Context) (store.Backend, error) {
			path := c.Storage.SQLite.Path
			if path != ":memory:" {
				if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
					return nil, fmt.Errorf("create sqlite dir: %w", err)
				}
			}
			return store.NewSQLiteStoreWithDSN(ctx, path)
		},
	}
	if m := c.Storage.Mongo; m.URI != "" {
		backends[store.ModeRemoteDocument] = func(ctx context.Context) (store.Backend, error) {
			return store.NewMongoStore(ctx, store.MongoConfig{
				URI:      m.URI,
				Database: m.Database,
				Timeout:  m.Timeout,
			})
		}
	}
	return backends
}

// Runtime is an open facade together with the engine it reads settings
// from.
type Runtime struct {
	Facade   *store.Facade
	Settings kv.Store
}

// Open opens the settings engine and a facade over every configured
// backend.
func (c *Config) Open(ctx context.Context, log *slog.Logger) (*Runtime, error) {
	flat, err := c.OpenSettingsKV(ctx)
	if err != nil {
		return nil, fmt.Errorf("open %s engine: %w", c.Storage.Flat.Engine, err)
	}
	f, err := store.Open(ctx, store.Options{
		Settings:           flat,
		Backends:           c.Backends(flat),
		DefaultStorageType: c.DefaultStorageType(),
		Logger:             log,
	})
	if err != nil {
		flat.Close()
		return nil, err
	}
	log.Debug("runtime opened", "engine", c.Storage.Flat.Engine, "storage_type", f.StorageType(), "modes", f.Modes())
	return &Runtime{Facade: f, Settings: flat}, nil
}

// Close closes the facade, then the settings engine.
func (r *Runtime) Close() error {
	return errors.Join(r.Facade.Close(), r.Settings.Close())
}
