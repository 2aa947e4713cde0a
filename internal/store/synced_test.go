package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/novelkit/internal/store"
	"github.com/kittclouds/novelkit/internal/store/storetest"
	"github.com/kittclouds/novelkit/pkg/apperr"
	"github.com/kittclouds/novelkit/pkg/kv"
)

func openSynced(t *testing.T, s kv.Store) *store.SyncedStore {
	t.Helper()
	ctx := context.Background()
	inner, err := store.NewSQLiteStore(ctx)
	require.NoError(t, err)
	synced, err := store.NewSyncedStore(ctx, inner, s, "indexed-db")
	require.NoError(t, err)
	return synced
}

func TestSyncedStore(t *testing.T) {
	storetest.RunBackendTests(t, "SyncedSQLite", func(t *testing.T) store.Backend {
		return openSynced(t, kv.NewMemory())
	})
}

func TestSyncedStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	g := storetest.SampleGraph()

	first := openSynced(t, mem)
	storetest.Seed(t, first, g)
	_, err := first.UpdateChapter(ctx, "a", func(c *store.Chapter) { c.Content = "rewritten" })
	require.NoError(t, err)
	require.NoError(t, first.SetChapterOrders(ctx, map[string]int{"a": 1, "b": 2}))
	require.NoError(t, first.Close())

	g.Chapters[0].Content = "rewritten"
	g.Chapters[0].Order, g.Chapters[1].Order = 1, 2

	second := openSynced(t, mem)
	defer second.Close()
	storetest.AssertGraphEqual(t, g, storetest.ReadGraph(t, second))

	require.NoError(t, second.DeleteNovel(ctx, "n1"))
	third := openSynced(t, mem)
	defer third.Close()
	got := storetest.ReadGraph(t, third)
	assert.Len(t, got.Novels, 1)
	assert.Len(t, got.Chapters, 1)
}

func TestSyncedStoreFlushFailure(t *testing.T) {
	s := openSynced(t, failingKV{Store: kv.NewMemory(), key: "indexed-db"})
	defer s.Close()

	err := s.PutNovel(context.Background(), store.Novel{ID: "n1", Title: "T"})
	assert.ErrorIs(t, err, apperr.ErrTransactionFailed)
	assert.True(t, apperr.Retryable(err))
}

func TestSyncedStoreBadSnapshot(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	require.NoError(t, mem.Set(ctx, "indexed-db", []byte("{not json")))

	inner, err := store.NewSQLiteStore(ctx)
	require.NoError(t, err)
	defer inner.Close()
	_, err = store.NewSyncedStore(ctx, inner, mem, "indexed-db")
	assert.ErrorIs(t, err, apperr.ErrBackendUnavailable)
}

func TestSQLiteExportImport(t *testing.T) {
	ctx := context.Background()
	src, err := store.NewSQLiteStore(ctx)
	require.NoError(t, err)
	defer src.Close()
	storetest.Seed(t, src, storetest.SampleGraph())

	data, err := src.Export(ctx)
	require.NoError(t, err)

	dst, err := store.NewSQLiteStore(ctx)
	require.NoError(t, err)
	defer dst.Close()
	require.NoError(t, dst.Import(ctx, data))
	storetest.AssertGraphEqual(t, storetest.SampleGraph(), storetest.ReadGraph(t, dst))

	require.NoError(t, dst.Import(ctx, nil))
	assert.ErrorIs(t, dst.Import(ctx, []byte("[")), apperr.ErrValidation)
}
