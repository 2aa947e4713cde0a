// Package storetest provides a conformance suite that every store.Backend
// must pass, plus shared fixtures.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/novelkit/internal/store"
	"github.com/kittclouds/novelkit/pkg/apperr"
)

// BackendFactory creates a fresh, empty backend for one test.
type BackendFactory func(t *testing.T) store.Backend

// RunBackendTests runs the conformance suite against a backend.
func RunBackendTests(t *testing.T, name string, factory BackendFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Empty", func(t *testing.T) {
			testEmpty(t, factory(t))
		})

		t.Run("Novels", func(t *testing.T) {
			testNovels(t, factory(t))
		})

		t.Run("SaveNovelsReplaces", func(t *testing.T) {
			testSaveNovels(t, factory(t))
		})

		t.Run("CascadeDelete", func(t *testing.T) {
			testCascadeDelete(t, factory(t))
		})

		t.Run("CharacterMergePatch", func(t *testing.T) {
			testCharacterMergePatch(t, factory(t))
		})

		t.Run("FilteredChapters", func(t *testing.T) {
			testFilteredChapters(t, factory(t))
		})

		t.Run("SaveChaptersUpserts", func(t *testing.T) {
			testSaveChaptersUpserts(t, factory(t))
		})

		t.Run("SetChapterOrders", func(t *testing.T) {
			testSetChapterOrders(t, factory(t))
		})

		t.Run("Plots", func(t *testing.T) {
			testPlots(t, factory(t))
		})

		t.Run("NotFound", func(t *testing.T) {
			testNotFound(t, factory(t))
		})

		t.Run("Replace", func(t *testing.T) {
			testReplace(t, factory(t))
		})

		t.Run("ConcurrentWrites", func(t *testing.T) {
			testConcurrentWrites(t, factory(t))
		})
	})
}

// SampleGraph returns a small graph with two novels and dependents of each.
func SampleGraph() store.Graph {
	return store.Graph{
		Novels: []store.Novel{
			{ID: "n1", Title: "The Long Road", Description: "A journey", Cover: "https://example.com/c.png", CreatedAt: 1700000000000, UpdatedAt: 1700000000500},
			{ID: "n2", Title: "Second", Description: "", CreatedAt: 1700000001000, UpdatedAt: 1700000001000},
		},
		Characters: []store.Character{
			{ID: "c1", NovelID: "n1", Name: "Mira", Gender: "female", Personality: "stubborn",
				Background: "raised by wolves", Relationships: "sister of Tam", Notes: "left-handed",
				Summary: "A stubborn guide.", CreatedAt: 1700000000100},
			{ID: "c2", NovelID: "n1", Name: "Tam", CreatedAt: 1700000000200},
			{ID: "c3", NovelID: "n2", Name: "Other", CreatedAt: 1700000001100},
		},
		Chapters: []store.Chapter{
			{ID: "a", NovelID: "n1", Title: "Two", Order: 2, Content: "Mira and Tam set out.\n\nUnicode: café ✓",
				Status: store.StatusInProgress, CreatedAt: 1700000000300, UpdatedAt: 1700000000400},
			{ID: "b", NovelID: "n1", Title: "One", Order: 1, Description: "opening",
				Status: store.StatusDraft, CreatedAt: 1700000000300, UpdatedAt: 1700000000300},
			{ID: "c", NovelID: "n2", Title: "Only", Order: 1, Status: store.StatusCompleted,
				CreatedAt: 1700000001200, UpdatedAt: 1700000001200},
		},
		Plots: []store.Plot{
			{ID: "p1", NovelID: "n1", Title: "Twist", Content: "Tam is the heir", CreatedAt: 1700000000600, UpdatedAt: 1700000000700},
			{ID: "p2", NovelID: "n2", Title: "Idea", CreatedAt: 1700000001300, UpdatedAt: 1700000001300},
		},
	}
}

// Seed writes g through the backend's single-row operations.
func Seed(t *testing.T, b store.Backend, g store.Graph) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, b.SaveNovels(ctx, g.Novels))
	for _, c := range g.Characters {
		require.NoError(t, b.PutCharacter(ctx, c))
	}
	require.NoError(t, b.SaveChapters(ctx, g.Chapters))
	for _, p := range g.Plots {
		require.NoError(t, b.PutPlot(ctx, p))
	}
}

// AssertGraphEqual compares two graphs ignoring the order of rows.
func AssertGraphEqual(t *testing.T, want, got store.Graph) {
	t.Helper()
	want.Normalize()
	got.Normalize()
	assert.ElementsMatch(t, want.Novels, got.Novels, "novels")
	assert.ElementsMatch(t, want.Characters, got.Characters, "characters")
	assert.ElementsMatch(t, want.Chapters, got.Chapters, "chapters")
	assert.ElementsMatch(t, want.Plots, got.Plots, "plots")
}

// ReadGraph reads every collection of b.
func ReadGraph(t *testing.T, b store.Backend) store.Graph {
	t.Helper()
	ctx := context.Background()
	var g store.Graph
	var err error
	g.Novels, err = b.Novels(ctx)
	require.NoError(t, err)
	g.Characters, err = b.Characters(ctx, "")
	require.NoError(t, err)
	g.Chapters, err = b.Chapters(ctx, "")
	require.NoError(t, err)
	g.Plots, err = b.Plots(ctx, "")
	require.NoError(t, err)
	return g
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testEmpty(t *testing.T, b store.Backend) {
	defer b.Close()
	ctx := context.Background()

	novels, err := b.Novels(ctx)
	require.NoError(t, err)
	assert.NotNil(t, novels)
	assert.Empty(t, novels)

	chs, err := b.Chapters(ctx, "n1")
	require.NoError(t, err)
	assert.Empty(t, chs)
}

func testNovels(t *testing.T, b store.Backend) {
	defer b.Close()
	ctx := context.Background()
	g := SampleGraph()

	require.NoError(t, b.PutNovel(ctx, g.Novels[0]))
	got, err := b.Novel(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, g.Novels[0], got)

	updated, err := b.UpdateNovel(ctx, "n1", func(n *store.Novel) {
		n.Title = "Renamed"
		n.UpdatedAt = 1800000000000
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, g.Novels[0].Description, updated.Description)

	got, err = b.Novel(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, updated, got)
}

func testSaveNovels(t *testing.T, b store.Backend) {
	defer b.Close()
	ctx := context.Background()
	g := SampleGraph()

	require.NoError(t, b.SaveNovels(ctx, g.Novels))
	require.NoError(t, b.SaveNovels(ctx, g.Novels[1:]))

	novels, err := b.Novels(ctx)
	require.NoError(t, err)
	assert.Equal(t, g.Novels[1:], novels)
}

func testCascadeDelete(t *testing.T, b store.Backend) {
	defer b.Close()
	ctx := context.Background()
	g := SampleGraph()
	Seed(t, b, g)

	require.NoError(t, b.DeleteNovel(ctx, "n1"))

	got := ReadGraph(t, b)
	want := store.Graph{
		Novels:     g.Novels[1:],
		Characters: g.Characters[2:],
		Chapters:   g.Chapters[2:],
		Plots:      g.Plots[1:],
	}
	AssertGraphEqual(t, want, got)
}

func testCharacterMergePatch(t *testing.T, b store.Backend) {
	defer b.Close()
	ctx := context.Background()
	orig := SampleGraph().Characters[0]
	require.NoError(t, b.PutCharacter(ctx, orig))

	updated, err := b.UpdateCharacter(ctx, orig.ID, func(c *store.Character) {
		c.Personality = "X"
	})
	require.NoError(t, err)

	want := orig
	want.Personality = "X"
	assert.Equal(t, want, updated)

	all, err := b.Characters(ctx, orig.NovelID)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, want, all[0])
}

func testFilteredChapters(t *testing.T, b store.Backend) {
	defer b.Close()
	ctx := context.Background()

	require.NoError(t, b.SaveChapters(ctx, []store.Chapter{
		{ID: "a", NovelID: "n1", Order: 2, Status: store.StatusDraft},
		{ID: "b", NovelID: "n1", Order: 1, Status: store.StatusDraft},
		{ID: "c", NovelID: "n2", Order: 1, Status: store.StatusDraft},
	}))

	chs, err := b.Chapters(ctx, "n1")
	require.NoError(t, err)
	require.Len(t, chs, 2)
	assert.Equal(t, "b", chs[0].ID)
	assert.Equal(t, "a", chs[1].ID)

	all, err := b.Chapters(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func testSaveChaptersUpserts(t *testing.T, b store.Backend) {
	defer b.Close()
	ctx := context.Background()
	g := SampleGraph()
	require.NoError(t, b.SaveChapters(ctx, g.Chapters))

	changed := g.Chapters[0]
	changed.Title = "Two (revised)"
	require.NoError(t, b.SaveChapters(ctx, []store.Chapter{changed}))

	got := ReadGraph(t, b)
	AssertGraphEqual(t, store.Graph{Chapters: []store.Chapter{changed, g.Chapters[1], g.Chapters[2]}}, got)

	one, err := b.Chapter(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, changed, one)
}

func testSetChapterOrders(t *testing.T, b store.Backend) {
	defer b.Close()
	ctx := context.Background()
	g := SampleGraph()
	require.NoError(t, b.SaveChapters(ctx, g.Chapters))

	require.NoError(t, b.SetChapterOrders(ctx, map[string]int{"a": 1, "b": 2, "missing": 9}))

	got, err := b.Chapters(ctx, "n1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	want := []store.Chapter{g.Chapters[0], g.Chapters[1]}
	want[0].Order, want[1].Order = 1, 2
	assert.Equal(t, want, got)

	_, err = b.Chapter(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	require.NoError(t, b.SetChapterOrders(ctx, nil))
}

func testPlots(t *testing.T, b store.Backend) {
	defer b.Close()
	ctx := context.Background()
	g := SampleGraph()
	for _, p := range g.Plots {
		require.NoError(t, b.PutPlot(ctx, p))
	}

	plots, err := b.Plots(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, g.Plots[:1], plots)

	updated, err := b.UpdatePlot(ctx, "p1", func(p *store.Plot) { p.Content = "revised" })
	require.NoError(t, err)
	assert.Equal(t, "Twist", updated.Title)
	assert.Equal(t, "revised", updated.Content)

	require.NoError(t, b.DeletePlot(ctx, "p1"))
	plots, err = b.Plots(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, g.Plots[1:], plots)
}

func testNotFound(t *testing.T, b store.Backend) {
	defer b.Close()
	ctx := context.Background()

	_, err := b.Novel(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = b.UpdateNovel(ctx, "missing", func(*store.Novel) {})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, b.DeleteNovel(ctx, "missing"), apperr.ErrNotFound)

	_, err = b.UpdateCharacter(ctx, "missing", func(*store.Character) {})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, b.DeleteCharacter(ctx, "missing"), apperr.ErrNotFound)

	_, err = b.Chapter(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = b.UpdateChapter(ctx, "missing", func(*store.Chapter) {})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, b.DeleteChapter(ctx, "missing"), apperr.ErrNotFound)

	_, err = b.UpdatePlot(ctx, "missing", func(*store.Plot) {})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, b.DeletePlot(ctx, "missing"), apperr.ErrNotFound)

	assert.False(t, apperr.Retryable(err))
}

func testReplace(t *testing.T, b store.Backend) {
	defer b.Close()
	ctx := context.Background()
	g := SampleGraph()

	Seed(t, b, store.Graph{Novels: []store.Novel{{ID: "stale", CreatedAt: 1, UpdatedAt: 1}}})
	require.NoError(t, b.Replace(ctx, g))
	AssertGraphEqual(t, g, ReadGraph(t, b))

	require.NoError(t, b.Replace(ctx, store.Graph{}))
	AssertGraphEqual(t, store.Graph{}, ReadGraph(t, b))
}

func testConcurrentWrites(t *testing.T, b store.Backend) {
	defer b.Close()
	ctx := context.Background()
	const n = 25

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := store.Character{ID: fmt.Sprintf("c%02d", i), NovelID: "n1", Name: fmt.Sprintf("Name %d", i)}
			assert.NoError(t, b.PutCharacter(ctx, c))
		}(i)
	}
	wg.Wait()

	all, err := b.Characters(ctx, "n1")
	require.NoError(t, err)
	assert.Len(t, all, n)
}
