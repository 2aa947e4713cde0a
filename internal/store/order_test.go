package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenumber(t *testing.T) {
	chs := []Chapter{{ID: "a", Order: 1}, {ID: "b", Order: 3}, {ID: "c", Order: 3}}
	changed := renumber(chs)
	assert.Equal(t, []Chapter{{ID: "b", Order: 2}}, changed)
	assert.Equal(t, []int{1, 2, 3}, []int{chs[0].Order, chs[1].Order, chs[2].Order})

	assert.Empty(t, renumber(chs))
}

func TestSwapNeighbour(t *testing.T) {
	chs := []Chapter{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	assert.False(t, swapNeighbour(chs, 0, -1))
	assert.False(t, swapNeighbour(chs, 2, 1))
	assert.True(t, swapNeighbour(chs, 1, -1))
	assert.Equal(t, "b", chs[0].ID)
	assert.Equal(t, "a", chs[1].ID)
	assert.Equal(t, -1, indexOfChapter(chs, "zz"))
}

func TestSortChapters(t *testing.T) {
	chs := []Chapter{{ID: "z", Order: 1}, {ID: "a", Order: 2}, {ID: "b", Order: 1}}
	sortChapters(chs)
	assert.Equal(t, []string{"b", "z", "a"}, []string{chs[0].ID, chs[1].ID, chs[2].ID})
}

func TestPatchesLeaveNilFields(t *testing.T) {
	c := Character{Name: "Mira", Personality: "calm", Notes: "n"}
	p := "X"
	CharacterPatch{Personality: &p}.Apply(&c)
	assert.Equal(t, Character{Name: "Mira", Personality: "X", Notes: "n"}, c)

	empty := ""
	n := Novel{Title: "T", Cover: "url"}
	NovelPatch{Cover: &empty}.Apply(&n)
	assert.Equal(t, Novel{Title: "T"}, n)
}

func TestGraphValidate(t *testing.T) {
	assert.NoError(t, Graph{}.Validate())
	assert.Error(t, Graph{Characters: []Character{{ID: ""}}}.Validate())
	assert.Error(t, Graph{Plots: []Plot{{ID: "p"}, {ID: "p"}}}.Validate())
}
