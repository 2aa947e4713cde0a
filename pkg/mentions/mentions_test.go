package mentions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/novelkit/internal/store"
)

func chars(names ...string) []store.Character {
	out := make([]store.Character, len(names))
	for i, n := range names {
		out[i] = store.Character{ID: "c" + string(rune('1'+i)), NovelID: "n1", Name: n}
	}
	return out
}

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Hello, World!", "hello world"},
		{"  Jean-Luc   Picard  ", "jean-luc picard"},
		{"O’Brien", "o'brien"},
		{"St. Clair", "st. clair"},
		{"¡¿?!", ""},
		{"ÉLODIE", "élodie"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Canonicalize(tt.in), tt.in)
	}
}

func TestOffsetMapLength(t *testing.T) {
	for _, s := range []string{"", "abc", "  abc  ", "Ünïcødé text, here.", "...", "a—b"} {
		m := offsetMap(s)
		assert.Len(t, m, len(Canonicalize(s))+1, s)
		assert.Equal(t, len(s), m[len(m)-1], s)
	}
}

func TestScanOffsets(t *testing.T) {
	idx, err := Build(chars("Mira Vale", "Oskar"))
	require.NoError(t, err)

	text := "At dawn, MIRA VALE met Oskar. Oskar's horse waited."
	got := idx.Scan(text)
	require.Len(t, got, 3)

	assert.Equal(t, "MIRA VALE", got[0].Text)
	assert.Equal(t, []string{"c1"}, got[0].CharacterIDs)
	assert.Equal(t, "Oskar", text[got[1].Start:got[1].End])
	assert.Equal(t, []string{"c2"}, got[1].CharacterIDs)
	assert.Equal(t, 30, got[2].Start)
}

func TestScanMultiwordPrefersLongest(t *testing.T) {
	idx, err := Build(chars("Mira Vale"))
	require.NoError(t, err)

	got := idx.Scan("Mira Vale, later just Mira, and once Vale.")
	require.Len(t, got, 3)
	assert.Equal(t, "Mira Vale", got[0].Text)
	assert.Equal(t, "Mira", got[1].Text)
	assert.Equal(t, "Vale", got[2].Text)
}

func TestScanWordBoundaries(t *testing.T) {
	idx, err := Build(chars("Ann"))
	require.NoError(t, err)

	assert.Empty(t, idx.Scan("The annual banner was planned."))
	got := idx.Scan("Ann, annoyed, left.")
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].Start)
}

func TestStopwordNamesSkipped(t *testing.T) {
	cs := chars("It", "The", "Mira")
	idx, err := Build(cs)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"c1", "c2"}, idx.Skipped())
	_, ok := idx.Name("c1")
	assert.False(t, ok)
	assert.Empty(t, idx.Count("It was the best of times."))
	assert.Equal(t, map[string]int{"c3": 1}, idx.Count("It was Mira."))
}

func TestSharedSurfaceHasBothOwners(t *testing.T) {
	idx, err := Build(chars("Arya Stark", "Sansa Stark"))
	require.NoError(t, err)

	got := idx.Scan("Stark")
	require.Len(t, got, 1)
	assert.ElementsMatch(t, []string{"c1", "c2"}, got[0].CharacterIDs)
}

func TestWithoutAliases(t *testing.T) {
	idx, err := Build(chars("Mira Vale"), WithAliases(false))
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Len())
	assert.Empty(t, idx.Scan("Mira walked alone."))
}

func TestEmptyIndex(t *testing.T) {
	idx, err := Build(nil)
	require.NoError(t, err)
	assert.Nil(t, idx.Scan("anything"))
	assert.Empty(t, idx.Chapters(nil))
}

func TestChapters(t *testing.T) {
	idx, err := Build(chars("Mira Vale", "Oskar"))
	require.NoError(t, err)

	got := idx.Chapters([]store.Chapter{
		{ID: "b", Order: 2, Title: "Two", Content: "Oskar and Mira. Oskar again."},
		{ID: "a", Order: 1, Title: "One", Content: "Mira Vale alone."},
		{ID: "c", Order: 3, Title: "Three"},
	})
	require.Len(t, got, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{got[0].ChapterID, got[1].ChapterID, got[2].ChapterID})
	assert.Equal(t, map[string]int{"c1": 1}, got[0].Counts)
	assert.Equal(t, map[string]int{"c1": 1, "c2": 2}, got[1].Counts)
	assert.Equal(t, 3, got[1].Total)
	assert.Empty(t, got[2].Counts)
}
