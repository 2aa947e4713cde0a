package mentions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/novelkit/internal/store"
)

func TestRegistryPromotion(t *testing.T) {
	r := NewRegistry(2)

	assert.False(t, r.AddToken("Kaido", "ch1"))
	assert.True(t, r.AddToken("Kaido's", "ch2"))
	assert.False(t, r.AddToken("Kaido", "ch2"), "promotes only once")

	got := r.Candidates()
	require.Len(t, got, 1)
	assert.Equal(t, Candidate{Token: "Kaido", Count: 3, Status: StatusPromoted, Chapters: []string{"ch1", "ch2"}}, got[0])
}

func TestRegistryStopWords(t *testing.T) {
	r := NewRegistry(1)
	r.Ignore("Mira Vale")

	assert.False(t, r.AddToken("The", ""))
	assert.False(t, r.AddToken("Mr", ""))
	assert.False(t, r.AddToken("Vale", ""))
	assert.Empty(t, r.Candidates())
}

func TestRegistryObserveSkipsSentenceStarts(t *testing.T) {
	r := NewRegistry(1)
	r.Observe("Suddenly the door opened. Kaido stood there with Jinbe. Later, Jinbe left.", "c")

	var tokens []string
	for _, c := range r.Candidates() {
		tokens = append(tokens, c.Token)
	}
	// Suddenly, Kaido and Later open sentences
	assert.Equal(t, []string{"Jinbe"}, tokens)
}

func TestDiscover(t *testing.T) {
	idx, err := Build(chars("Mira Vale"))
	require.NoError(t, err)

	got := idx.Discover([]store.Chapter{
		{ID: "a", Content: "At noon Mira met Oskar. She thanked Oskar twice."},
		{ID: "b", Content: "Then Vale and Oskar sailed, with Petra watching."},
	}, 2)

	require.Len(t, got, 1)
	assert.Equal(t, "Oskar", got[0].Token)
	assert.Equal(t, 3, got[0].Count)
	assert.Equal(t, []string{"a", "b"}, got[0].Chapters)
	assert.Equal(t, "promoted", got[0].Status.String())
}
