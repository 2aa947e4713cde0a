// Package mentions finds character names in chapter text.
//
// One Aho-Corasick automaton is compiled from every character's name and
// its derived short forms. Text is canonicalized the same way as the
// names, scanned once, and matches are mapped back to byte offsets in the
// original text.
package mentions

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/coregx/ahocorasick"
	"github.com/orsinium-labs/stopwords"

	"github.com/kittclouds/novelkit/internal/store"
)

// honorifics never become a short form on their own.
var honorifics = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "miss": true, "dr": true, "prof": true,
	"sir": true, "lady": true, "lord": true, "mr.": true, "mrs.": true, "ms.": true, "dr.": true,
}

var english = sync.OnceValue(func() *stopwords.Stopwords { return stopwords.MustGet("en") })

// isStopword reports whether every token of a canonical surface is an
// English stopword or honorific. Such surfaces would match ordinary prose.
func isStopword(surface string) bool {
	for _, tok := range strings.Fields(surface) {
		if !honorifics[tok] && !english().Contains(tok) {
			return false
		}
	}
	return true
}

// Match is one mention found in text.
type Match struct {
	Start        int      `json:"start"`
	End          int      `json:"end"`
	Text         string   `json:"text"`
	CharacterIDs []string `json:"characterIds"`
}

// ChapterMentions are the mention counts of one chapter, keyed by
// character id.
type ChapterMentions struct {
	ChapterID string         `json:"chapterId"`
	Title     string         `json:"title"`
	Order     int            `json:"order"`
	Counts    map[string]int `json:"counts"`
	Total     int            `json:"total"`
}

// Option configures Build.
type Option func(*options)

type options struct {
	aliases bool
}

// WithAliases toggles derived short forms (first and last name of a
// multiword name). They are on by default.
func WithAliases(on bool) Option {
	return func(o *options) { o.aliases = on }
}

// Index is a compiled name automaton. It is safe for concurrent use.
type Index struct {
	ac       *ahocorasick.Automaton
	patterns []string
	owners   [][]string
	byKey    map[string]int
	names    map[string]string
	skipped  []string
}

// Build compiles characters into an Index. Characters whose name
// canonicalizes to nothing, or only to stopwords, are skipped and listed
// by Skipped.
func Build(characters []store.Character, opts ...Option) (*Index, error) {
	o := options{aliases: true}
	for _, opt := range opts {
		opt(&o)
	}

	idx := &Index{
		byKey: make(map[string]int),
		names: make(map[string]string, len(characters)),
	}
	for _, c := range characters {
		full := Canonicalize(c.Name)
		if full == "" || isStopword(full) {
			idx.skipped = append(idx.skipped, c.ID)
			continue
		}
		idx.names[c.ID] = c.Name

		surfaces := []string{full}
		if o.aliases {
			surfaces = append(surfaces, shortForms(full)...)
		}
		for _, s := range surfaces {
			idx.add(s, c.ID)
		}
	}

	if len(idx.patterns) == 0 {
		return idx, nil
	}
	ac, err := ahocorasick.NewBuilder().
		AddStrings(idx.patterns).
		SetMatchKind(ahocorasick.LeftmostLongest).
		SetPrefilter(true).
		Build()
	if err != nil {
		return nil, fmt.Errorf("compile name automaton: %w", err)
	}
	idx.ac = ac
	return idx, nil
}

func (idx *Index) add(surface, id string) {
	if i, ok := idx.byKey[surface]; ok {
		if !slices.Contains(idx.owners[i], id) {
			idx.owners[i] = append(idx.owners[i], id)
		}
		return
	}
	idx.byKey[surface] = len(idx.patterns)
	idx.patterns = append(idx.patterns, surface)
	idx.owners = append(idx.owners, []string{id})
}

// shortForms derives the last name (three or more bytes), the first name
// (four or more) and, for three or more tokens, first plus last.
func shortForms(full string) []string {
	var tokens []string
	for _, t := range strings.Fields(full) {
		if !honorifics[t] {
			tokens = append(tokens, t)
		}
	}
	if len(tokens) <= 1 {
		return nil
	}

	first, last := tokens[0], tokens[len(tokens)-1]
	var out []string
	if len(last) >= 3 && !isStopword(last) {
		out = append(out, last)
	}
	if len(tokens) >= 3 && first != last {
		out = append(out, first+" "+last)
	}
	if len(first) >= 4 && first != last && !isStopword(first) {
		out = append(out, first)
	}
	return out
}

// Skipped returns the ids of characters left out of the automaton.
func (idx *Index) Skipped() []string {
	return slices.Clone(idx.skipped)
}

// Name returns the display name of an indexed character.
func (idx *Index) Name(id string) (string, bool) {
	n, ok := idx.names[id]
	return n, ok
}

// Len is the number of compiled surface forms.
func (idx *Index) Len() int { return len(idx.patterns) }

// Scan returns the mentions in text, left to right and non-overlapping.
// Where candidates overlap the leftmost wins, then the longest.
func (idx *Index) Scan(text string) []Match {
	if idx.ac == nil || text == "" {
		return nil
	}

	haystack := []byte(Canonicalize(text))
	mapping := offsetMap(text)

	type hit struct{ start, end, pattern int }
	var hits []hit
	for _, m := range idx.ac.FindAllOverlapping(haystack) {
		if atBoundary(haystack, m.Start, m.End) {
			hits = append(hits, hit{m.Start, m.End, m.PatternID})
		}
	}
	slices.SortFunc(hits, func(a, b hit) int {
		return cmp.Or(cmp.Compare(a.start, b.start), cmp.Compare(b.end, a.end))
	})

	var out []Match
	next := 0
	for _, h := range hits {
		if h.start < next {
			continue
		}
		next = h.end

		start := mapOffset(h.start, mapping)
		end := mapOffset(h.end, mapping)
		if start >= end || end > len(text) {
			continue
		}
		out = append(out, Match{
			Start:        start,
			End:          end,
			Text:         text[start:end],
			CharacterIDs: slices.Clone(idx.owners[h.pattern]),
		})
	}
	return out
}

// Count returns mention counts per character id for text.
func (idx *Index) Count(text string) map[string]int {
	counts := make(map[string]int)
	for _, m := range idx.Scan(text) {
		for _, id := range m.CharacterIDs {
			counts[id]++
		}
	}
	return counts
}

// Chapters counts mentions in each chapter's content. The result is
// ordered by chapter order, then id.
func (idx *Index) Chapters(chapters []store.Chapter) []ChapterMentions {
	sorted := slices.Clone(chapters)
	slices.SortStableFunc(sorted, func(a, b store.Chapter) int {
		return cmp.Or(cmp.Compare(a.Order, b.Order), cmp.Compare(a.ID, b.ID))
	})

	out := make([]ChapterMentions, 0, len(sorted))
	for _, ch := range sorted {
		counts := idx.Count(ch.Content)
		total := 0
		for _, n := range counts {
			total += n
		}
		out = append(out, ChapterMentions{
			ChapterID: ch.ID,
			Title:     ch.Title,
			Order:     ch.Order,
			Counts:    counts,
			Total:     total,
		})
	}
	return out
}
