package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/novelkit/internal/store"
	"github.com/kittclouds/novelkit/pkg/logger"
	"github.com/kittclouds/novelkit/pkg/settings"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, "localStorage", cfg.Storage.DefaultType)
	assert.Equal(t, settings.StorageLocal, cfg.DefaultStorageType())
	assert.Equal(t, EngineFile, cfg.Storage.Flat.Engine)
	assert.Equal(t, filepath.Join("data", "novelkit.db"), cfg.Storage.SQLite.Path)
	assert.Equal(t, "novelkit:", cfg.Storage.Redis.Prefix)
	assert.Equal(t, 10*time.Second, cfg.Storage.Mongo.Timeout)
	assert.Equal(t, "novelkit", cfg.Storage.Mongo.Database)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("NOVELKIT_STORAGE_DATA_DIR", dir)
	t.Setenv("NOVELKIT_STORAGE_DEFAULT_TYPE", "indexedDB")
	t.Setenv("NOVELKIT_STORAGE_MONGO_TIMEOUT", "3s")
	t.Setenv("NOVELKIT_LOG_FORMAT", "json")

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.Storage.DataDir)
	assert.Equal(t, filepath.Join(dir, "novelkit.db"), cfg.Storage.SQLite.Path)
	assert.Equal(t, settings.StorageIndexed, cfg.DefaultStorageType())
	assert.Equal(t, 3*time.Second, cfg.Storage.Mongo.Timeout)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "novelkit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  flat:
    engine: memory
  sqlite:
    path: ":memory:"
  mongo:
    uri: mongodb://example:27017
log:
  level: debug
`), 0o644))

	cfg, err := Load(New(), path)
	require.NoError(t, err)
	assert.Equal(t, EngineMemory, cfg.Storage.Flat.Engine)
	assert.Equal(t, ":memory:", cfg.Storage.SQLite.Path)
	assert.Equal(t, "mongodb://example:27017", cfg.Storage.Mongo.URI)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	env := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(env, []byte("NOVELKIT_STORAGE_FLAT_ENGINE=memory\n"), 0o644))
	t.Setenv("NOVELKIT_STORAGE_FLAT_ENGINE", "")
	os.Unsetenv("NOVELKIT_STORAGE_FLAT_ENGINE")

	LoadEnvFiles(env, filepath.Join(dir, "missing.env"))
	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, EngineMemory, cfg.Storage.Flat.Engine)
}

func TestValidate(t *testing.T) {
	cfg := Config{
		Storage: StorageConfig{DefaultType: "webSQL", Flat: FlatConfig{Engine: "etcd"}},
		Log:     LogConfig{Format: "xml"},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.default-type")
	assert.Contains(t, err.Error(), "storage.flat.engine")
	assert.Contains(t, err.Error(), "log.format")
}

func TestBackendsWithoutMongo(t *testing.T) {
	cfg := &Config{Storage: StorageConfig{SQLite: SQLiteConfig{Path: ":memory:"}}}
	b := cfg.Backends(nil)
	assert.Contains(t, b, store.ModeFlatKV)
	assert.Contains(t, b, store.ModeIndexedDocument)
	assert.NotContains(t, b, store.ModeRemoteDocument)

	cfg.Storage.Mongo.URI = "mongodb://localhost:27017"
	assert.Contains(t, cfg.Backends(nil), store.ModeRemoteDocument)
}

func TestOpenRuntime(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := &Config{Storage: StorageConfig{
		DefaultType: "indexedDB",
		DataDir:     dir,
		Flat:        FlatConfig{Engine: EngineFile},
		SQLite:      SQLiteConfig{Path: filepath.Join(dir, "db", "novelkit.db")},
	}}

	rt, err := cfg.Open(ctx, logger.Discard())
	require.NoError(t, err)
	assert.Equal(t, store.ModeIndexedDocument, rt.Facade.Mode())

	n, err := rt.Facade.CreateNovel(ctx, store.Novel{Title: "Persisted"})
	require.NoError(t, err)
	require.NoError(t, rt.Facade.SaveSettings(ctx, rt.Facade.Settings()))
	require.NoError(t, rt.Close())

	// reopening reads the settings blob and the sqlite file back
	rt, err = cfg.Open(ctx, logger.Discard())
	require.NoError(t, err)
	defer rt.Close()
	got, err := rt.Facade.Novel(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, "Persisted", got.Title)
}
