package store_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/novelkit/internal/store"
	"github.com/kittclouds/novelkit/internal/store/storetest"
	"github.com/kittclouds/novelkit/pkg/apperr"
	"github.com/kittclouds/novelkit/pkg/kv"
)

func TestFlatStoreMemory(t *testing.T) {
	storetest.RunBackendTests(t, "FlatMemory", func(t *testing.T) store.Backend {
		return store.NewFlatStore(kv.NewMemory())
	})
}

func TestFlatStoreFile(t *testing.T) {
	storetest.RunBackendTests(t, "FlatFile", func(t *testing.T) store.Backend {
		f, err := kv.NewFile(t.TempDir())
		require.NoError(t, err)
		return store.NewFlatStore(f)
	})
}

func TestFlatStoreRedis(t *testing.T) {
	storetest.RunBackendTests(t, "FlatRedis", func(t *testing.T) store.Backend {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { rdb.Close() })
		return store.NewFlatStore(kv.NewRedis(rdb, "novelkit:"))
	})
}

func TestSQLiteStore(t *testing.T) {
	storetest.RunBackendTests(t, "SQLite", func(t *testing.T) store.Backend {
		s, err := store.NewSQLiteStore(context.Background())
		require.NoError(t, err)
		return s
	})
}

func TestSQLiteStoreFile(t *testing.T) {
	storetest.RunBackendTests(t, "SQLiteFile", func(t *testing.T) store.Backend {
		s, err := store.NewSQLiteStoreWithDSN(context.Background(), filepath.Join(t.TempDir(), "novelkit.db"))
		require.NoError(t, err)
		return s
	})
}

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("NOVELKIT_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("NOVELKIT_TEST_MONGO_URI not set")
	}
	storetest.RunBackendTests(t, "Mongo", func(t *testing.T) store.Backend {
		ctx := context.Background()
		db := fmt.Sprintf("novelkit_test_%d", time.Now().UnixNano())
		s, err := store.NewMongoStore(ctx, store.MongoConfig{URI: uri, Database: db})
		require.NoError(t, err)
		return s
	})
}

func TestMongoStoreWithoutURI(t *testing.T) {
	_, err := store.NewMongoStore(context.Background(), store.MongoConfig{})
	assert.ErrorIs(t, err, apperr.ErrBackendUnavailable)
}

// Reopening a file database keeps its rows and does not rerun finished
// schema steps.
func TestSQLiteReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "novelkit.db")

	s, err := store.NewSQLiteStoreWithDSN(ctx, path)
	require.NoError(t, err)
	g := storetest.SampleGraph()
	require.NoError(t, s.Replace(ctx, g))
	require.NoError(t, s.Close())

	s, err = store.NewSQLiteStoreWithDSN(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	chs, err := s.Chapters(ctx, "n1")
	require.NoError(t, err)
	require.Len(t, chs, 2)
	assert.Equal(t, "b", chs[0].ID)
}

// A database written by the first schema version gains the later tables
// and columns on open.
func TestSQLiteUpgradeFromVersion1(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "old.db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`
		CREATE TABLE novels (id TEXT PRIMARY KEY, title TEXT NOT NULL DEFAULT '', description TEXT NOT NULL DEFAULT '',
			cover TEXT NOT NULL DEFAULT '', created_at INTEGER NOT NULL, updated_at INTEGER NOT NULL);
		CREATE TABLE characters (id TEXT PRIMARY KEY, novel_id TEXT NOT NULL, name TEXT NOT NULL DEFAULT '',
			gender TEXT NOT NULL DEFAULT '', personality TEXT NOT NULL DEFAULT '', background TEXT NOT NULL DEFAULT '',
			relationships TEXT NOT NULL DEFAULT '', notes TEXT NOT NULL DEFAULT '', created_at INTEGER NOT NULL);
		CREATE TABLE chapters (id TEXT PRIMARY KEY, novel_id TEXT NOT NULL, title TEXT NOT NULL DEFAULT '',
			"order" INTEGER NOT NULL DEFAULT 0, description TEXT NOT NULL DEFAULT '', content TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'draft', created_at INTEGER NOT NULL, updated_at INTEGER NOT NULL);
		INSERT INTO novels (id, title, created_at, updated_at) VALUES ('n1', 'Old', 1, 1);
		INSERT INTO characters (id, novel_id, name, created_at) VALUES ('c1', 'n1', 'Mira', 1);
		PRAGMA user_version = 1;
	`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := store.NewSQLiteStoreWithDSN(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	chars, err := s.Characters(ctx, "n1")
	require.NoError(t, err)
	require.Len(t, chars, 1)
	assert.Equal(t, "", chars[0].Summary)

	summary := "now with a summary"
	_, err = s.UpdateCharacter(ctx, "c1", func(c *store.Character) { c.Summary = summary })
	require.NoError(t, err)

	require.NoError(t, s.PutPlot(ctx, store.Plot{ID: "p1", NovelID: "n1", CreatedAt: 2, UpdatedAt: 2}))
	plots, err := s.Plots(ctx, "n1")
	require.NoError(t, err)
	assert.Len(t, plots, 1)
}

func TestSQLiteBadPath(t *testing.T) {
	_, err := store.NewSQLiteStoreWithDSN(context.Background(), filepath.Join(t.TempDir(), "missing", "dir", "x.db"))
	assert.ErrorIs(t, err, apperr.ErrBackendUnavailable)
}

func TestFlatStoreCollectionKeys(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	b := store.NewFlatStore(kv.NopCloser(mem))
	storetest.Seed(t, b, storetest.SampleGraph())

	keys, err := mem.Keys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{store.KeyNovels, store.KeyCharacters, store.KeyChapters, store.KeyPlots}, keys)

	// closing the backend leaves a shared store usable
	require.NoError(t, b.Close())
	_, _, err = mem.Get(ctx, store.KeyNovels)
	assert.NoError(t, err)
}

// failingKV fails every Set of one key.
type failingKV struct {
	kv.Store
	key string
}

func (f failingKV) Set(ctx context.Context, key string, value []byte) error {
	if key == f.key {
		return fmt.Errorf("disk full writing %s", key)
	}
	return f.Store.Set(ctx, key, value)
}

func TestFlatDeleteNovelKeepsChildrenWhenNovelWriteFails(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	storetest.Seed(t, store.NewFlatStore(kv.NopCloser(mem)), storetest.SampleGraph())

	s := store.NewFlatStore(failingKV{Store: mem, key: store.KeyNovels})
	err := s.DeleteNovel(ctx, "n1")
	assert.ErrorIs(t, err, apperr.ErrTransactionFailed)

	_, err = s.Novel(ctx, "n1")
	require.NoError(t, err)
	chars, err := s.Characters(ctx, "n1")
	require.NoError(t, err)
	assert.Len(t, chars, 2)
	chs, err := s.Chapters(ctx, "n1")
	require.NoError(t, err)
	assert.Len(t, chs, 2)
}
