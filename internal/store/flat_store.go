package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/kittclouds/novelkit/pkg/apperr"
	"github.com/kittclouds/novelkit/pkg/kv"
)

// Collection keys used by the flat backend.
const (
	KeyNovels     = "novels"
	KeyCharacters = "characters"
	KeyChapters   = "chapters"
	KeyPlots      = "plots"
)

// collection is one JSON array stored whole under one key.
// Callers hold mu for the entire read-modify-write.
type collection[T any] struct {
	key string
	mu  sync.Mutex
	kv  kv.Store
}

func (c *collection[T]) load(ctx context.Context) ([]T, error) {
	data, ok, err := c.kv.Get(ctx, c.key)
	if err != nil {
		return nil, apperr.BackendUnavailable("flat-kv", fmt.Errorf("read %s: %w", c.key, err))
	}
	if !ok || len(data) == 0 {
		return []T{}, nil
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, apperr.Wrap(err, apperr.CodeUnknown, "decode "+c.key)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func (c *collection[T]) save(ctx context.Context, items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeUnknown, "encode "+c.key)
	}
	if err := c.kv.Set(ctx, c.key, data); err != nil {
		return apperr.TransactionFailed("write "+c.key, err)
	}
	return nil
}

func (c *collection[T]) read(ctx context.Context) ([]T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load(ctx)
}

// update applies fn to the item with the given id and writes the collection.
func (c *collection[T]) update(ctx context.Context, kind, id string, idOf func(T) string, fn func(*T)) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	items, err := c.load(ctx)
	if err != nil {
		return zero, err
	}
	for i := range items {
		if idOf(items[i]) == id {
			fn(&items[i])
			if err := c.save(ctx, items); err != nil {
				return zero, err
			}
			return items[i], nil
		}
	}
	return zero, apperr.NotFound(kind, id)
}

// upsert replaces items with matching ids and appends the rest.
func (c *collection[T]) upsert(ctx context.Context, idOf func(T) string, rows ...T) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.load(ctx)
	if err != nil {
		return err
	}
	pos := make(map[string]int, len(items))
	for i, it := range items {
		pos[idOf(it)] = i
	}
	for _, r := range rows {
		if i, ok := pos[idOf(r)]; ok {
			items[i] = r
			continue
		}
		pos[idOf(r)] = len(items)
		items = append(items, r)
	}
	return c.save(ctx, items)
}

func (c *collection[T]) remove(ctx context.Context, kind, id string, idOf func(T) string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.load(ctx)
	if err != nil {
		return err
	}
	kept, n := dropWhere(items, func(it T) bool { return idOf(it) == id })
	if n == 0 {
		return apperr.NotFound(kind, id)
	}
	return c.save(ctx, kept)
}

// removeNovel drops every item owned by novelID. Caller holds mu.
func (c *collection[T]) removeNovel(ctx context.Context, novelID string, owner func(T) string) error {
	items, err := c.load(ctx)
	if err != nil {
		return err
	}
	kept, n := dropWhere(items, func(it T) bool { return owner(it) == novelID })
	if n == 0 {
		return nil
	}
	return c.save(ctx, kept)
}

func dropWhere[T any](items []T, match func(T) bool) ([]T, int) {
	kept := make([]T, 0, len(items))
	for _, it := range items {
		if !match(it) {
			kept = append(kept, it)
		}
	}
	return kept, len(items) - len(kept)
}

func idOfNovel(n Novel) string         { return n.ID }
func idOfCharacter(c Character) string { return c.ID }
func idOfChapter(c Chapter) string     { return c.ID }
func idOfPlot(p Plot) string           { return p.ID }

func characterNovel(c Character) string { return c.NovelID }
func chapterNovel(c Chapter) string     { return c.NovelID }
func plotNovel(p Plot) string           { return p.NovelID }

// FlatStore keeps each collection as one JSON array under one key of a
// kv.Store. Every write rewrites the whole collection. Filtering by novel
// is a linear scan.
//
// Read-modify-write sequences hold a per-collection mutex, so concurrent
// writers in one process never drop each other's changes. Operations that
// touch several collections lock them in the order novels, characters,
// chapters, plots.
type FlatStore struct {
	kv         kv.Store
	novels     collection[Novel]
	characters collection[Character]
	chapters   collection[Chapter]
	plots      collection[Plot]
}

// NewFlatStore creates a flat backend over s. Closing the backend closes s.
func NewFlatStore(s kv.Store) *FlatStore {
	return &FlatStore{
		kv:         s,
		novels:     collection[Novel]{key: KeyNovels, kv: s},
		characters: collection[Character]{key: KeyCharacters, kv: s},
		chapters:   collection[Chapter]{key: KeyChapters, kv: s},
		plots:      collection[Plot]{key: KeyPlots, kv: s},
	}
}

func (s *FlatStore) Name() string { return string(ModeFlatKV) }

func (s *FlatStore) Close() error { return s.kv.Close() }

// =============================================================================
// Novels
// =============================================================================

func (s *FlatStore) Novels(ctx context.Context) ([]Novel, error) {
	return s.novels.read(ctx)
}

func (s *FlatStore) Novel(ctx context.Context, id string) (Novel, error) {
	novels, err := s.novels.read(ctx)
	if err != nil {
		return Novel{}, err
	}
	for _, n := range novels {
		if n.ID == id {
			return n, nil
		}
	}
	return Novel{}, apperr.NotFound("novel", id)
}

func (s *FlatStore) SaveNovels(ctx context.Context, novels []Novel) error {
	s.novels.mu.Lock()
	defer s.novels.mu.Unlock()
	return s.novels.save(ctx, novels)
}

func (s *FlatStore) PutNovel(ctx context.Context, n Novel) error {
	return s.novels.upsert(ctx, idOfNovel, n)
}

func (s *FlatStore) UpdateNovel(ctx context.Context, id string, apply func(*Novel)) (Novel, error) {
	return s.novels.update(ctx, "novel", id, idOfNovel, apply)
}

func (s *FlatStore) DeleteNovel(ctx context.Context, id string) error {
	s.lockAll()
	defer s.unlockAll()

	novels, err := s.novels.load(ctx)
	if err != nil {
		return err
	}
	kept, n := dropWhere(novels, func(x Novel) bool { return x.ID == id })
	if n == 0 {
		return apperr.NotFound("novel", id)
	}
	// novel first: a failed cascade leaves orphans, never a novel whose
	// children are already gone
	if err := s.novels.save(ctx, kept); err != nil {
		return err
	}
	if err := s.characters.removeNovel(ctx, id, characterNovel); err != nil {
		return err
	}
	if err := s.chapters.removeNovel(ctx, id, chapterNovel); err != nil {
		return err
	}
	return s.plots.removeNovel(ctx, id, plotNovel)
}

// =============================================================================
// Characters
// =============================================================================

func (s *FlatStore) Characters(ctx context.Context, novelID string) ([]Character, error) {
	all, err := s.characters.read(ctx)
	if err != nil || novelID == "" {
		return all, err
	}
	return filterNovel(all, novelID, characterNovel), nil
}

func (s *FlatStore) PutCharacter(ctx context.Context, c Character) error {
	return s.characters.upsert(ctx, idOfCharacter, c)
}

func (s *FlatStore) UpdateCharacter(ctx context.Context, id string, apply func(*Character)) (Character, error) {
	return s.characters.update(ctx, "character", id, idOfCharacter, apply)
}

func (s *FlatStore) DeleteCharacter(ctx context.Context, id string) error {
	return s.characters.remove(ctx, "character", id, idOfCharacter)
}

// =============================================================================
// Chapters
// =============================================================================

func (s *FlatStore) Chapters(ctx context.Context, novelID string) ([]Chapter, error) {
	all, err := s.chapters.read(ctx)
	if err != nil || novelID == "" {
		return all, err
	}
	out := filterNovel(all, novelID, chapterNovel)
	sortChapters(out)
	return out, nil
}

func (s *FlatStore) Chapter(ctx context.Context, id string) (Chapter, error) {
	all, err := s.chapters.read(ctx)
	if err != nil {
		return Chapter{}, err
	}
	for _, c := range all {
		if c.ID == id {
			return c, nil
		}
	}
	return Chapter{}, apperr.NotFound("chapter", id)
}

func (s *FlatStore) SaveChapters(ctx context.Context, chapters []Chapter) error {
	if len(chapters) == 0 {
		return nil
	}
	return s.chapters.upsert(ctx, idOfChapter, chapters...)
}

func (s *FlatStore) SetChapterOrders(ctx context.Context, orders map[string]int) error {
	if len(orders) == 0 {
		return nil
	}
	s.chapters.mu.Lock()
	defer s.chapters.mu.Unlock()

	items, err := s.chapters.load(ctx)
	if err != nil {
		return err
	}
	for i := range items {
		if o, ok := orders[items[i].ID]; ok {
			items[i].Order = o
		}
	}
	return s.chapters.save(ctx, items)
}

func (s *FlatStore) UpdateChapter(ctx context.Context, id string, apply func(*Chapter)) (Chapter, error) {
	return s.chapters.update(ctx, "chapter", id, idOfChapter, apply)
}

func (s *FlatStore) DeleteChapter(ctx context.Context, id string) error {
	return s.chapters.remove(ctx, "chapter", id, idOfChapter)
}

// =============================================================================
// Plots
// =============================================================================

func (s *FlatStore) Plots(ctx context.Context, novelID string) ([]Plot, error) {
	all, err := s.plots.read(ctx)
	if err != nil || novelID == "" {
		return all, err
	}
	return filterNovel(all, novelID, plotNovel), nil
}

func (s *FlatStore) PutPlot(ctx context.Context, p Plot) error {
	return s.plots.upsert(ctx, idOfPlot, p)
}

func (s *FlatStore) UpdatePlot(ctx context.Context, id string, apply func(*Plot)) (Plot, error) {
	return s.plots.update(ctx, "plot", id, idOfPlot, apply)
}

func (s *FlatStore) DeletePlot(ctx context.Context, id string) error {
	return s.plots.remove(ctx, "plot", id, idOfPlot)
}

// =============================================================================
// Graph
// =============================================================================

func (s *FlatStore) Replace(ctx context.Context, g Graph) error {
	s.lockAll()
	defer s.unlockAll()

	g.Normalize()
	if err := s.novels.save(ctx, g.Novels); err != nil {
		return err
	}
	if err := s.characters.save(ctx, g.Characters); err != nil {
		return err
	}
	if err := s.chapters.save(ctx, g.Chapters); err != nil {
		return err
	}
	return s.plots.save(ctx, g.Plots)
}

func (s *FlatStore) lockAll() {
	s.novels.mu.Lock()
	s.characters.mu.Lock()
	s.chapters.mu.Lock()
	s.plots.mu.Lock()
}

func (s *FlatStore) unlockAll() {
	s.plots.mu.Unlock()
	s.chapters.mu.Unlock()
	s.characters.mu.Unlock()
	s.novels.mu.Unlock()
}

func filterNovel[T any](items []T, novelID string, owner func(T) string) []T {
	out := make([]T, 0)
	for _, it := range items {
		if owner(it) == novelID {
			out = append(out, it)
		}
	}
	return out
}

var _ Backend = (*FlatStore)(nil)
