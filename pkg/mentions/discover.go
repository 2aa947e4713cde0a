package mentions

import (
	"cmp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kittclouds/novelkit/internal/store"
)

// CandidateStatus tracks the lifecycle of a discovery candidate.
type CandidateStatus int

const (
	StatusWatching CandidateStatus = iota
	StatusPromoted
)

func (s CandidateStatus) String() string {
	if s == StatusPromoted {
		return "promoted"
	}
	return "watching"
}

func (s CandidateStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Candidate is a capitalized word seen in chapter text that is not yet a
// character.
type Candidate struct {
	Token    string          `json:"token"`
	Count    int             `json:"count"`
	Status   CandidateStatus `json:"status"`
	Chapters []string        `json:"chapters"`
}

type candidateStats struct {
	count    int
	status   CandidateStatus
	display  string
	chapters []string
}

// Registry counts candidate names. It is not safe for concurrent use.
type Registry struct {
	threshold int
	stats     map[string]*candidateStats
	ignored   map[string]bool
}

// NewRegistry creates a registry that promotes a candidate once it has
// been seen threshold times.
func NewRegistry(threshold int) *Registry {
	if threshold < 1 {
		threshold = 1
	}
	r := &Registry{
		threshold: threshold,
		stats:     make(map[string]*candidateStats),
		ignored:   make(map[string]bool),
	}
	for w := range honorifics {
		r.ignored[w] = true
	}
	return r
}

// Ignore adds words that never become candidates. Multiword input is
// split; known character names go here.
func (r *Registry) Ignore(words ...string) {
	for _, w := range words {
		for _, tok := range strings.Fields(Canonicalize(w)) {
			r.ignored[tok] = true
		}
	}
}

// AddToken records one occurrence of raw in a chapter. It returns true
// when this occurrence promoted the candidate.
func (r *Registry) AddToken(raw, chapterID string) bool {
	display := strings.TrimSuffix(strings.TrimSuffix(raw, "'s"), "’s")
	key := Canonicalize(display)
	if key == "" || strings.ContainsRune(key, ' ') {
		return false
	}
	if r.ignored[key] || english().Contains(key) {
		return false
	}

	st, ok := r.stats[key]
	if !ok {
		st = &candidateStats{display: display}
		r.stats[key] = st
	}
	st.count++
	if chapterID != "" && !slices.Contains(st.chapters, chapterID) {
		st.chapters = append(st.chapters, chapterID)
	}
	if st.status == StatusWatching && st.count >= r.threshold {
		st.status = StatusPromoted
		return true
	}
	return false
}

// Observe feeds every capitalized word of text that does not open a
// sentence.
func (r *Registry) Observe(text, chapterID string) {
	sentenceStart := true
	i := 0
	for i < len(text) {
		c, w := utf8.DecodeRuneInString(text[i:])
		if !isTokenRune(c) {
			switch c {
			case '.', '!', '?', '\n', '…':
				sentenceStart = true
			}
			i += w
			continue
		}

		start := i
		for i < len(text) {
			c, w := utf8.DecodeRuneInString(text[i:])
			if !isTokenRune(c) {
				break
			}
			i += w
		}
		tok := text[start:i]
		first, _ := utf8.DecodeRuneInString(tok)
		if !sentenceStart && unicode.IsUpper(first) {
			r.AddToken(tok, chapterID)
		}
		sentenceStart = false
	}
}

func isTokenRune(r rune) bool {
	return isWordRune(r) || r == '\'' || r == '’' || r == '-'
}

// Candidates returns every tracked candidate, most frequent first.
func (r *Registry) Candidates() []Candidate {
	list := make([]Candidate, 0, len(r.stats))
	for _, st := range r.stats {
		list = append(list, Candidate{
			Token:    st.display,
			Count:    st.count,
			Status:   st.status,
			Chapters: slices.Clone(st.chapters),
		})
	}
	slices.SortFunc(list, func(a, b Candidate) int {
		return cmp.Or(cmp.Compare(b.Count, a.Count), cmp.Compare(a.Token, b.Token))
	})
	return list
}

// Promoted returns the candidates that reached the threshold.
func (r *Registry) Promoted() []Candidate {
	var out []Candidate
	for _, c := range r.Candidates() {
		if c.Status == StatusPromoted {
			out = append(out, c)
		}
	}
	return out
}

// Discover suggests names that appear at least threshold times in the
// chapters and belong to no indexed character.
func (idx *Index) Discover(chapters []store.Chapter, threshold int) []Candidate {
	r := NewRegistry(threshold)
	for _, name := range idx.names {
		r.Ignore(name)
	}
	for _, ch := range chapters {
		r.Observe(ch.Content, ch.ID)
	}
	return r.Promoted()
}
