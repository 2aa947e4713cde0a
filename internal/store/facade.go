package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/errgroup"

	"github.com/kittclouds/novelkit/pkg/apperr"
	"github.com/kittclouds/novelkit/pkg/kv"
	"github.com/kittclouds/novelkit/pkg/logger"
	"github.com/kittclouds/novelkit/pkg/metrics"
	"github.com/kittclouds/novelkit/pkg/settings"
)

// Options configures a Facade.
type Options struct {
	// Settings holds the settings blob under settings.SettingsKey.
	// The Facade does not close it.
	Settings kv.Store
	// Backends maps each supported mode to the factory that opens it.
	// A mode without a factory reports ErrInvalidBackend.
	Backends map[Mode]BackendFactory
	// DefaultStorageType is used when no settings blob exists yet.
	DefaultStorageType settings.StorageType

	Logger *slog.Logger
	Now    func() time.Time
	NewID  func() string
}

// Facade is the single storage contract. Every call is dispatched to the
// backend selected by the storageType of the current settings blob.
// Reads always go to the backend; nothing is cached except open backends.
type Facade struct {
	settingsKV kv.Store
	factories  map[Mode]BackendFactory
	log        *slog.Logger
	now        func() time.Time
	newID      func() string

	mu       sync.RWMutex
	settings settings.AppSettings
	backends map[Mode]Backend
	closed   bool

	// serializes read-modify-save chapter sequences per novel
	novelLocks *xsync.MapOf[string, *sync.Mutex]
}

// Open loads and migrates the settings blob and returns a Facade. Backends
// are opened on first use.
func Open(ctx context.Context, opts Options) (*Facade, error) {
	if opts.Settings == nil {
		return nil, apperr.Validation("store: Options.Settings is required")
	}
	f := &Facade{
		settingsKV: opts.Settings,
		factories:  make(map[Mode]BackendFactory, len(opts.Backends)),
		log:        opts.Logger,
		now:        opts.Now,
		newID:      opts.NewID,
		backends:   make(map[Mode]Backend),
		novelLocks: xsync.NewMapOf[string, *sync.Mutex](),
	}
	for m, fac := range opts.Backends {
		if fac != nil {
			f.factories[m] = fac
		}
	}
	if f.log == nil {
		f.log = logger.Default()
	}
	if f.now == nil {
		f.now = time.Now
	}
	if f.newID == nil {
		f.newID = uuid.NewString
	}

	s, err := f.loadSettings(ctx, opts.DefaultStorageType)
	if err != nil {
		return nil, err
	}
	f.settings = s
	return f, nil
}

func (f *Facade) loadSettings(ctx context.Context, def settings.StorageType) (settings.AppSettings, error) {
	data, ok, err := f.settingsKV.Get(ctx, settings.SettingsKey)
	if err != nil {
		return settings.AppSettings{}, apperr.BackendUnavailable("settings", err)
	}
	if !ok {
		s := settings.Defaults()
		if def != "" {
			s.StorageType = def
		}
		f.log.Debug("no settings blob, using defaults", "storage_type", s.StorageType)
		return s, nil
	}

	s, rep := settings.MigrateJSONWithReport(data)
	metrics.SettingsMigrationsTotal.WithLabelValues(boolLabel(rep.Changed())).Inc()
	if rep.Newer() {
		f.log.Warn("settings blob is from a newer schema, reading best-effort",
			"version", rep.FromVersion, "supported", settings.CurrentSchemaVersion)
		return s, nil
	}
	if rep.Changed() {
		f.log.Info("settings migrated",
			"from_version", rep.FromVersion,
			"to_version", settings.CurrentSchemaVersion,
			"legacy", rep.Legacy,
			"rules", rep.Applied)
		if err := f.writeSettings(ctx, s); err != nil {
			// the migrated value is still usable; it is rewritten on next save
			f.log.Warn("persist migrated settings failed", "error", err)
		}
	}
	return s, nil
}

func (f *Facade) writeSettings(ctx context.Context, s settings.AppSettings) error {
	data, err := json.Marshal(s)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeUnknown, "encode settings")
	}
	if err := f.settingsKV.Set(ctx, settings.SettingsKey, data); err != nil {
		return apperr.TransactionFailed("save settings", err)
	}
	return nil
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// =============================================================================
// Settings & mode
// =============================================================================

// Settings returns a copy of the current settings blob.
func (f *Facade) Settings() settings.AppSettings {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.settings.Clone()
}

// ReloadSettings re-reads and re-migrates the persisted blob.
func (f *Facade) ReloadSettings(ctx context.Context) (settings.AppSettings, error) {
	f.mu.RLock()
	def := f.settings.StorageType
	f.mu.RUnlock()

	s, err := f.loadSettings(ctx, def)
	if err != nil {
		return settings.AppSettings{}, err
	}
	f.mu.Lock()
	f.switchSettings(s)
	f.mu.Unlock()
	return s.Clone(), nil
}

// SaveSettings replaces the whole blob. A changed storageType switches the
// active backend for every later call.
func (f *Facade) SaveSettings(ctx context.Context, s settings.AppSettings) error {
	start := time.Now()
	s = s.Clone()
	s.SchemaVersion = max(s.SchemaVersion, settings.CurrentSchemaVersion)
	if s.StorageType == "" {
		s.StorageType = settings.StorageLocal
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	err := f.writeSettings(ctx, s)
	metrics.ObserveStorage("settings", "save_settings", start, err)
	if err != nil {
		return err
	}
	f.switchSettings(s)
	return nil
}

// switchSettings installs s. Caller holds mu.
func (f *Facade) switchSettings(s settings.AppSettings) {
	if s.StorageType != f.settings.StorageType {
		f.log.Info("storage mode switched", "from", f.settings.StorageType, "to", s.StorageType)
	}
	f.settings = s
}

// StorageType returns the storage type of the current settings.
func (f *Facade) StorageType() settings.StorageType {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.settings.StorageType
}

// Mode returns the active mode, or "" when the storage type is unknown.
func (f *Facade) Mode() Mode {
	m, _ := f.StorageType().Mode()
	return m
}

// Modes lists the modes that have a backend factory.
func (f *Facade) Modes() []Mode {
	out := make([]Mode, 0, len(f.factories))
	for m := range f.factories {
		out = append(out, m)
	}
	slices.Sort(out)
	return out
}

// backend returns the active backend, opening it on first use.
func (f *Facade) backend(ctx context.Context) (Backend, error) {
	f.mu.RLock()
	st := f.settings.StorageType
	closed := f.closed
	f.mu.RUnlock()
	if closed {
		return nil, apperr.BackendUnavailable("facade", errors.New("facade closed"))
	}

	mode, ok := st.Mode()
	if !ok {
		return nil, apperr.InvalidBackend(string(st))
	}
	factory, ok := f.factories[mode]
	if !ok {
		return nil, apperr.InvalidBackend(string(mode))
	}

	f.mu.RLock()
	b := f.backends[mode]
	f.mu.RUnlock()
	if b != nil {
		return b, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if b := f.backends[mode]; b != nil {
		return b, nil
	}
	b, err := factory(ctx)
	metrics.BackendOpensTotal.WithLabelValues(string(mode), metrics.Status(err)).Inc()
	if err != nil {
		f.log.Error("open backend failed", "mode", mode, "error", err)
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, apperr.BackendUnavailable(string(mode), err)
	}
	f.log.Info("backend opened", "mode", mode, "backend", b.Name())
	f.backends[mode] = b
	return b, nil
}

// do runs fn against the active backend and records metrics.
func (f *Facade) do(ctx context.Context, op string, fn func(ctx context.Context, b Backend) error) error {
	start := time.Now()
	name := "none"
	b, err := f.backend(ctx)
	if err == nil {
		name = b.Name()
		err = fn(ctx, b)
	}
	metrics.ObserveStorage(name, op, start, err)
	if err != nil {
		logger.FromContext(ctx, f.log).Debug("storage operation failed",
			"op", op, "backend", name, "error", err)
	}
	return err
}

func (f *Facade) lockNovel(novelID string) func() {
	mu, _ := f.novelLocks.LoadOrCompute(novelID, func() *sync.Mutex { return &sync.Mutex{} })
	mu.Lock()
	return mu.Unlock
}

func (f *Facade) stamp() int64 {
	return f.now().UnixMilli()
}

// Close closes every backend that was opened.
func (f *Facade) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true

	var errs []error
	for mode, b := range f.backends {
		if err := b.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(f.backends, mode)
	}
	return errors.Join(errs...)
}

// =============================================================================
// Novels
// =============================================================================

func (f *Facade) Novels(ctx context.Context) ([]Novel, error) {
	var out []Novel
	err := f.do(ctx, "novels", func(ctx context.Context, b Backend) error {
		var err error
		out, err = b.Novels(ctx)
		return err
	})
	return out, err
}

func (f *Facade) Novel(ctx context.Context, id string) (Novel, error) {
	var out Novel
	err := f.do(ctx, "novel", func(ctx context.Context, b Backend) error {
		var err error
		out, err = b.Novel(ctx, id)
		return err
	})
	return out, err
}

// SaveNovels replaces the whole novel collection. Dependents are untouched.
func (f *Facade) SaveNovels(ctx context.Context, novels []Novel) error {
	if err := (Graph{Novels: novels}).Validate(); err != nil {
		return err
	}
	return f.do(ctx, "save_novels", func(ctx context.Context, b Backend) error {
		return b.SaveNovels(ctx, novels)
	})
}

// CreateNovel stores a new novel. A missing id and timestamps are filled in.
func (f *Facade) CreateNovel(ctx context.Context, n Novel) (Novel, error) {
	if n.ID == "" {
		n.ID = f.newID()
	}
	ts := f.stamp()
	if n.CreatedAt == 0 {
		n.CreatedAt = ts
	}
	if n.UpdatedAt == 0 {
		n.UpdatedAt = n.CreatedAt
	}
	err := f.do(ctx, "create_novel", func(ctx context.Context, b Backend) error {
		if _, err := b.Novel(ctx, n.ID); err == nil {
			return apperr.Validation("novel %q already exists", n.ID)
		} else if !errors.Is(err, apperr.ErrNotFound) {
			return err
		}
		return b.PutNovel(ctx, n)
	})
	return n, err
}

func (f *Facade) UpdateNovel(ctx context.Context, id string, patch NovelPatch) (Novel, error) {
	var out Novel
	ts := f.stamp()
	err := f.do(ctx, "update_novel", func(ctx context.Context, b Backend) error {
		var err error
		out, err = b.UpdateNovel(ctx, id, func(n *Novel) {
			patch.Apply(n)
			n.UpdatedAt = ts
		})
		return err
	})
	return out, err
}

// DeleteNovel removes the novel with its characters, chapters and plots.
func (f *Facade) DeleteNovel(ctx context.Context, id string) error {
	unlock := f.lockNovel(id)
	defer unlock()

	ctx = logger.WithContext(ctx, logger.NovelIDKey, id)
	err := f.do(ctx, "delete_novel", func(ctx context.Context, b Backend) error {
		return b.DeleteNovel(ctx, id)
	})
	if err == nil {
		logger.FromContext(ctx, f.log).Info("novel deleted with dependents")
	}
	return err
}

// requireNovel reports NotFound for a missing parent novel.
func requireNovel(ctx context.Context, b Backend, novelID string) error {
	if novelID == "" {
		return apperr.Validation("novelId is required")
	}
	_, err := b.Novel(ctx, novelID)
	return err
}

// =============================================================================
// Characters
// =============================================================================

// Characters returns every character when novelID is empty.
func (f *Facade) Characters(ctx context.Context, novelID string) ([]Character, error) {
	var out []Character
	err := f.do(ctx, "characters", func(ctx context.Context, b Backend) error {
		var err error
		out, err = b.Characters(ctx, novelID)
		return err
	})
	return out, err
}

func (f *Facade) CreateCharacter(ctx context.Context, c Character) (Character, error) {
	if c.ID == "" {
		c.ID = f.newID()
	}
	if c.CreatedAt == 0 {
		c.CreatedAt = f.stamp()
	}
	err := f.do(ctx, "create_character", func(ctx context.Context, b Backend) error {
		if err := requireNovel(ctx, b, c.NovelID); err != nil {
			return err
		}
		return b.PutCharacter(ctx, c)
	})
	return c, err
}

// UpdateCharacter merges patch into the stored character. Fields the patch
// leaves nil keep their stored values.
func (f *Facade) UpdateCharacter(ctx context.Context, id string, patch CharacterPatch) (Character, error) {
	var out Character
	err := f.do(ctx, "update_character", func(ctx context.Context, b Backend) error {
		var err error
		out, err = b.UpdateCharacter(ctx, id, patch.Apply)
		return err
	})
	return out, err
}

func (f *Facade) DeleteCharacter(ctx context.Context, id string) error {
	return f.do(ctx, "delete_character", func(ctx context.Context, b Backend) error {
		return b.DeleteCharacter(ctx, id)
	})
}

// =============================================================================
// Chapters
// =============================================================================

// Chapters returns every chapter when novelID is empty, in no particular
// order. Chapters of one novel are sorted by order.
func (f *Facade) Chapters(ctx context.Context, novelID string) ([]Chapter, error) {
	var out []Chapter
	err := f.do(ctx, "chapters", func(ctx context.Context, b Backend) error {
		var err error
		out, err = b.Chapters(ctx, novelID)
		return err
	})
	return out, err
}

func (f *Facade) Chapter(ctx context.Context, id string) (Chapter, error) {
	var out Chapter
	err := f.do(ctx, "chapter", func(ctx context.Context, b Backend) error {
		var err error
		out, err = b.Chapter(ctx, id)
		return err
	})
	return out, err
}

// SaveChapters upserts the supplied rows only. Callers pass the full
// up-to-date set for a novel; rows they omit are kept as stored.
func (f *Facade) SaveChapters(ctx context.Context, chapters []Chapter) error {
	if err := (Graph{Chapters: chapters}).Validate(); err != nil {
		return err
	}
	novels := make([]string, 0)
	for _, c := range chapters {
		if c.NovelID == "" {
			return apperr.Validation("chapter %q has no novelId", c.ID)
		}
		if c.Status != "" && !c.Status.Valid() {
			return apperr.Validation("chapter %q has unknown status %q", c.ID, c.Status)
		}
		if !slices.Contains(novels, c.NovelID) {
			novels = append(novels, c.NovelID)
		}
	}
	// fixed lock order across novels
	slices.Sort(novels)
	for _, id := range novels {
		unlock := f.lockNovel(id)
		defer unlock()
	}
	return f.do(ctx, "save_chapters", func(ctx context.Context, b Backend) error {
		return b.SaveChapters(ctx, chapters)
	})
}

// CreateChapter appends a chapter to its novel with order N+1.
func (f *Facade) CreateChapter(ctx context.Context, c Chapter) (Chapter, error) {
	if c.Status == "" {
		c.Status = StatusDraft
	}
	if !c.Status.Valid() {
		return Chapter{}, apperr.Validation("unknown chapter status %q", c.Status)
	}
	if c.ID == "" {
		c.ID = f.newID()
	}
	ts := f.stamp()
	if c.CreatedAt == 0 {
		c.CreatedAt = ts
	}
	if c.UpdatedAt == 0 {
		c.UpdatedAt = c.CreatedAt
	}

	if c.NovelID != "" {
		unlock := f.lockNovel(c.NovelID)
		defer unlock()
	}
	err := f.do(ctx, "create_chapter", func(ctx context.Context, b Backend) error {
		if err := requireNovel(ctx, b, c.NovelID); err != nil {
			return err
		}
		existing, err := b.Chapters(ctx, c.NovelID)
		if err != nil {
			return err
		}
		if indexOfChapter(existing, c.ID) >= 0 {
			return apperr.Validation("chapter %q already exists", c.ID)
		}
		if err := b.SetChapterOrders(ctx, orderMap(renumber(existing))); err != nil {
			return err
		}
		c.Order = len(existing) + 1
		return b.SaveChapters(ctx, []Chapter{c})
	})
	return c, err
}

func (f *Facade) UpdateChapter(ctx context.Context, id string, patch ChapterPatch) (Chapter, error) {
	if patch.Status != nil && !patch.Status.Valid() {
		return Chapter{}, apperr.Validation("unknown chapter status %q", *patch.Status)
	}
	var out Chapter
	ts := f.stamp()
	err := f.do(ctx, "update_chapter", func(ctx context.Context, b Backend) error {
		ch, err := b.Chapter(ctx, id)
		if err != nil {
			return err
		}
		// a reorder of the same novel must not interleave with the edit
		unlock := f.lockNovel(ch.NovelID)
		defer unlock()

		out, err = b.UpdateChapter(ctx, id, func(c *Chapter) {
			patch.Apply(c)
			c.UpdatedAt = ts
		})
		return err
	})
	return out, err
}

// DeleteChapter removes the chapter and renumbers the rest of its novel.
func (f *Facade) DeleteChapter(ctx context.Context, id string) error {
	return f.do(ctx, "delete_chapter", func(ctx context.Context, b Backend) error {
		ch, err := b.Chapter(ctx, id)
		if err != nil {
			return err
		}
		unlock := f.lockNovel(ch.NovelID)
		defer unlock()

		if err := b.DeleteChapter(ctx, id); err != nil {
			return err
		}
		rest, err := b.Chapters(ctx, ch.NovelID)
		if err != nil {
			return err
		}
		return b.SetChapterOrders(ctx, orderMap(renumber(rest)))
	})
}

// MoveChapterUp swaps the chapter with its predecessor and returns the
// novel's chapters in their new order. The first chapter stays put.
func (f *Facade) MoveChapterUp(ctx context.Context, id string) ([]Chapter, error) {
	return f.moveChapter(ctx, "move_chapter_up", id, -1)
}

// MoveChapterDown swaps the chapter with its successor. The last chapter
// stays put.
func (f *Facade) MoveChapterDown(ctx context.Context, id string) ([]Chapter, error) {
	return f.moveChapter(ctx, "move_chapter_down", id, 1)
}

func (f *Facade) moveChapter(ctx context.Context, op, id string, delta int) ([]Chapter, error) {
	var out []Chapter
	err := f.do(ctx, op, func(ctx context.Context, b Backend) error {
		ch, err := b.Chapter(ctx, id)
		if err != nil {
			return err
		}
		unlock := f.lockNovel(ch.NovelID)
		defer unlock()

		chs, err := b.Chapters(ctx, ch.NovelID)
		if err != nil {
			return err
		}
		i := indexOfChapter(chs, id)
		if i < 0 {
			return apperr.NotFound("chapter", id)
		}
		swapNeighbour(chs, i, delta)
		if err := b.SetChapterOrders(ctx, orderMap(renumber(chs))); err != nil {
			return err
		}
		out = chs
		return nil
	})
	return out, err
}

// =============================================================================
// Plots
// =============================================================================

func (f *Facade) Plots(ctx context.Context, novelID string) ([]Plot, error) {
	var out []Plot
	err := f.do(ctx, "plots", func(ctx context.Context, b Backend) error {
		var err error
		out, err = b.Plots(ctx, novelID)
		return err
	})
	return out, err
}

func (f *Facade) CreatePlot(ctx context.Context, p Plot) (Plot, error) {
	if p.ID == "" {
		p.ID = f.newID()
	}
	ts := f.stamp()
	if p.CreatedAt == 0 {
		p.CreatedAt = ts
	}
	if p.UpdatedAt == 0 {
		p.UpdatedAt = p.CreatedAt
	}
	err := f.do(ctx, "create_plot", func(ctx context.Context, b Backend) error {
		if err := requireNovel(ctx, b, p.NovelID); err != nil {
			return err
		}
		return b.PutPlot(ctx, p)
	})
	return p, err
}

func (f *Facade) UpdatePlot(ctx context.Context, id string, patch PlotPatch) (Plot, error) {
	var out Plot
	ts := f.stamp()
	err := f.do(ctx, "update_plot", func(ctx context.Context, b Backend) error {
		var err error
		out, err = b.UpdatePlot(ctx, id, func(p *Plot) {
			patch.Apply(p)
			p.UpdatedAt = ts
		})
		return err
	})
	return out, err
}

func (f *Facade) DeletePlot(ctx context.Context, id string) error {
	return f.do(ctx, "delete_plot", func(ctx context.Context, b Backend) error {
		return b.DeletePlot(ctx, id)
	})
}

// =============================================================================
// Graph
// =============================================================================

// Snapshot reads the four collections concurrently.
func (f *Facade) Snapshot(ctx context.Context) (Graph, error) {
	var g Graph
	err := f.do(ctx, "snapshot", func(ctx context.Context, b Backend) error {
		eg, ctx := errgroup.WithContext(ctx)
		eg.Go(func() (err error) {
			g.Novels, err = b.Novels(ctx)
			return err
		})
		eg.Go(func() (err error) {
			g.Characters, err = b.Characters(ctx, "")
			return err
		})
		eg.Go(func() (err error) {
			g.Chapters, err = b.Chapters(ctx, "")
			return err
		})
		eg.Go(func() (err error) {
			g.Plots, err = b.Plots(ctx, "")
			return err
		})
		return eg.Wait()
	})
	if err != nil {
		return Graph{}, err
	}
	g.Normalize()
	return g, nil
}

// Restore replaces the active backend's contents with g. It is a full
// overwrite, not a merge.
func (f *Facade) Restore(ctx context.Context, g Graph) error {
	g.Normalize()
	if err := g.Validate(); err != nil {
		return err
	}
	err := f.do(ctx, "restore", func(ctx context.Context, b Backend) error {
		return b.Replace(ctx, g)
	})
	if err == nil {
		f.log.Info("entity graph restored",
			"novels", len(g.Novels),
			"characters", len(g.Characters),
			"chapters", len(g.Chapters),
			"plots", len(g.Plots))
	}
	return err
}

// Clear deletes every entity in the active backend.
func (f *Facade) Clear(ctx context.Context) error {
	err := f.do(ctx, "clear", func(ctx context.Context, b Backend) error {
		return b.Replace(ctx, Graph{})
	})
	if err == nil {
		f.log.Warn("active backend cleared", "mode", f.Mode())
	}
	return err
}
