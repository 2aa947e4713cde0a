package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	_ "github.com/asg017/sqlite-vec-go-bindings/ncruces"
	_ "github.com/ncruces/go-sqlite3/driver"

	"github.com/kittclouds/novelkit/pkg/apperr"
)

// SQLiteStore is the indexed document backend. Each collection is a table
// keyed by id with a secondary index on novel_id.
// Thread-safe for concurrent WASM callbacks.
type SQLiteStore struct {
	mu sync.RWMutex
	db *sql.DB
}

// schemaStep is one versioned upgrade. Steps must be safe to run against a
// database that already has their changes.
type schemaStep struct {
	version int
	name    string
	apply   func(ctx context.Context, tx *sql.Tx) error
}

var schemaSteps = []schemaStep{
	{1, "core collections", execSQL(`
CREATE TABLE IF NOT EXISTS novels (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    cover TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS characters (
    id TEXT PRIMARY KEY,
    novel_id TEXT NOT NULL,
    name TEXT NOT NULL DEFAULT '',
    gender TEXT NOT NULL DEFAULT '',
    personality TEXT NOT NULL DEFAULT '',
    background TEXT NOT NULL DEFAULT '',
    relationships TEXT NOT NULL DEFAULT '',
    notes TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_characters_novel ON characters(novel_id);

-- No foreign keys: referential integrity is managed by the facade
CREATE TABLE IF NOT EXISTS chapters (
    id TEXT PRIMARY KEY,
    novel_id TEXT NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    "order" INTEGER NOT NULL DEFAULT 0,
    description TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'draft',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chapters_novel ON chapters(novel_id);
`)},
	{2, "plots", execSQL(`
CREATE TABLE IF NOT EXISTS plots (
    id TEXT PRIMARY KEY,
    novel_id TEXT NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_plots_novel ON plots(novel_id);
CREATE INDEX IF NOT EXISTS idx_chapters_novel_order ON chapters(novel_id, "order");
`)},
	{3, "character summary", addColumn("characters", "summary", "TEXT NOT NULL DEFAULT ''")},
}

// SchemaVersion is the user_version of a fully upgraded database.
func SchemaVersion() int {
	return schemaSteps[len(schemaSteps)-1].version
}

func execSQL(stmt string) func(context.Context, *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, stmt)
		return err
	}
}

// addColumn adds a column unless PRAGMA table_info already lists it.
func addColumn(table, column, decl string) func(context.Context, *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		has, err := hasColumn(ctx, tx, table, column)
		if err != nil || has {
			return err
		}
		_, err = tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, decl))
		return err
	}
}

func hasColumn(ctx context.Context, tx *sql.Tx, table, column string) (bool, error) {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var cid, notnull, pk int
		var name, ctype string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// NewSQLiteStore creates a new in-memory SQLite store.
func NewSQLiteStore(ctx context.Context) (*SQLiteStore, error) {
	return NewSQLiteStoreWithDSN(ctx, ":memory:")
}

// NewSQLiteStoreWithDSN opens the database at dsn and upgrades its schema.
// Use ":memory:" for in-memory or a file path for persistent storage.
func NewSQLiteStoreWithDSN(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, apperr.BackendUnavailable("indexed-document", fmt.Errorf("open %s: %w", dsn, err))
	}
	// every :memory: connection is its own database
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.upgrade(ctx); err != nil {
		db.Close()
		return nil, apperr.BackendUnavailable("indexed-document", err)
	}
	return s, nil
}

// upgrade runs every schema step newer than the stored user_version.
func (s *SQLiteStore) upgrade(ctx context.Context) error {
	var current int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for _, step := range schemaSteps {
		if step.version <= current {
			continue
		}
		err := s.withTx(ctx, "upgrade", func(tx *sql.Tx) error {
			if err := step.apply(ctx, tx); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", step.version))
			return err
		})
		if err != nil {
			return fmt.Errorf("schema step %d (%s): %w", step.version, step.name, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Name() string { return string(ModeIndexedDocument) }

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

// withTx runs fn inside one read-write transaction. fn must use tx only;
// the pool has a single connection. Application errors returned by fn pass
// through unchanged, anything else becomes a transaction failure.
func (s *SQLiteStore) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	if s.db == nil {
		return apperr.BackendUnavailable("indexed-document", errors.New("store closed"))
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.TransactionFailed(op, err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return err
		}
		return apperr.TransactionFailed(op, err)
	}
	if err := tx.Commit(); err != nil {
		return apperr.TransactionFailed(op, err)
	}
	return nil
}

func (s *SQLiteStore) write(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.withTx(ctx, op, fn)
}

// query runs a read against the database.
func (s *SQLiteStore) query(ctx context.Context, op string, fn func(q querier) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return apperr.BackendUnavailable("indexed-document", errors.New("store closed"))
	}
	if err := fn(s.db); err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return err
		}
		return apperr.TransactionFailed(op, err)
	}
	return nil
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// =============================================================================
// Novels
// =============================================================================

const novelColumns = `id, title, description, cover, created_at, updated_at`

func scanNovel(r rowScanner) (Novel, error) {
	var n Novel
	err := r.Scan(&n.ID, &n.Title, &n.Description, &n.Cover, &n.CreatedAt, &n.UpdatedAt)
	return n, err
}

func upsertNovel(ctx context.Context, q querier, n Novel) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO novels (`+novelColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			cover = excluded.cover,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at
	`, n.ID, n.Title, n.Description, n.Cover, n.CreatedAt, n.UpdatedAt)
	return err
}

func getNovel(ctx context.Context, q querier, id string) (Novel, error) {
	n, err := scanNovel(q.QueryRowContext(ctx, `SELECT `+novelColumns+` FROM novels WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Novel{}, apperr.NotFound("novel", id)
	}
	return n, err
}

func (s *SQLiteStore) Novels(ctx context.Context) ([]Novel, error) {
	var out []Novel
	err := s.query(ctx, "list novels", func(q querier) error {
		var err error
		out, err = queryAll(ctx, q, scanNovel, `SELECT `+novelColumns+` FROM novels ORDER BY rowid`)
		return err
	})
	return out, err
}

func (s *SQLiteStore) Novel(ctx context.Context, id string) (Novel, error) {
	var n Novel
	err := s.query(ctx, "get novel", func(q querier) error {
		var err error
		n, err = getNovel(ctx, q, id)
		return err
	})
	return n, err
}

func (s *SQLiteStore) SaveNovels(ctx context.Context, novels []Novel) error {
	return s.write(ctx, "save novels", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM novels"); err != nil {
			return err
		}
		for _, n := range novels {
			if err := upsertNovel(ctx, tx, n); err != nil {
				return fmt.Errorf("novel %s: %w", n.ID, err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) PutNovel(ctx context.Context, n Novel) error {
	return s.write(ctx, "put novel", func(tx *sql.Tx) error {
		return upsertNovel(ctx, tx, n)
	})
}

func (s *SQLiteStore) UpdateNovel(ctx context.Context, id string, apply func(*Novel)) (Novel, error) {
	var n Novel
	err := s.write(ctx, "update novel", func(tx *sql.Tx) error {
		var err error
		if n, err = getNovel(ctx, tx, id); err != nil {
			return err
		}
		apply(&n)
		n.ID = id
		return upsertNovel(ctx, tx, n)
	})
	return n, err
}

// DeleteNovel removes the novel and its dependents in one transaction.
func (s *SQLiteStore) DeleteNovel(ctx context.Context, id string) error {
	return s.write(ctx, "delete novel", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM novels WHERE id = ?", id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.NotFound("novel", id)
		}
		for _, table := range []string{"characters", "chapters", "plots"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE novel_id = ?", id); err != nil {
				return fmt.Errorf("cascade %s: %w", table, err)
			}
		}
		return nil
	})
}

// =============================================================================
// Characters
// =============================================================================

const characterColumns = `id, novel_id, name, gender, personality, background, relationships, notes, summary, created_at`

func scanCharacter(r rowScanner) (Character, error) {
	var c Character
	err := r.Scan(&c.ID, &c.NovelID, &c.Name, &c.Gender, &c.Personality, &c.Background,
		&c.Relationships, &c.Notes, &c.Summary, &c.CreatedAt)
	return c, err
}

func upsertCharacter(ctx context.Context, q querier, c Character) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO characters (`+characterColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			novel_id = excluded.novel_id,
			name = excluded.name,
			gender = excluded.gender,
			personality = excluded.personality,
			background = excluded.background,
			relationships = excluded.relationships,
			notes = excluded.notes,
			summary = excluded.summary,
			created_at = excluded.created_at
	`, c.ID, c.NovelID, c.Name, c.Gender, c.Personality, c.Background,
		c.Relationships, c.Notes, c.Summary, c.CreatedAt)
	return err
}

func (s *SQLiteStore) Characters(ctx context.Context, novelID string) ([]Character, error) {
	var out []Character
	err := s.query(ctx, "list characters", func(q querier) error {
		var err error
		if novelID == "" {
			out, err = queryAll(ctx, q, scanCharacter, `SELECT `+characterColumns+` FROM characters ORDER BY rowid`)
		} else {
			out, err = queryAll(ctx, q, scanCharacter,
				`SELECT `+characterColumns+` FROM characters WHERE novel_id = ? ORDER BY rowid`, novelID)
		}
		return err
	})
	return out, err
}

func (s *SQLiteStore) PutCharacter(ctx context.Context, c Character) error {
	return s.write(ctx, "put character", func(tx *sql.Tx) error {
		return upsertCharacter(ctx, tx, c)
	})
}

func (s *SQLiteStore) UpdateCharacter(ctx context.Context, id string, apply func(*Character)) (Character, error) {
	var c Character
	err := s.write(ctx, "update character", func(tx *sql.Tx) error {
		var err error
		c, err = scanCharacter(tx.QueryRowContext(ctx, `SELECT `+characterColumns+` FROM characters WHERE id = ?`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("character", id)
		}
		if err != nil {
			return err
		}
		apply(&c)
		c.ID = id
		return upsertCharacter(ctx, tx, c)
	})
	return c, err
}

func (s *SQLiteStore) DeleteCharacter(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "characters", "character", id)
}

// =============================================================================
// Chapters
// =============================================================================

const chapterColumns = `id, novel_id, title, "order", description, content, status, created_at, updated_at`

func scanChapter(r rowScanner) (Chapter, error) {
	var c Chapter
	err := r.Scan(&c.ID, &c.NovelID, &c.Title, &c.Order, &c.Description, &c.Content,
		&c.Status, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func upsertChapter(ctx context.Context, q querier, c Chapter) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO chapters (`+chapterColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			novel_id = excluded.novel_id,
			title = excluded.title,
			"order" = excluded."order",
			description = excluded.description,
			content = excluded.content,
			status = excluded.status,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at
	`, c.ID, c.NovelID, c.Title, c.Order, c.Description, c.Content,
		string(c.Status), c.CreatedAt, c.UpdatedAt)
	return err
}

func (s *SQLiteStore) Chapters(ctx context.Context, novelID string) ([]Chapter, error) {
	var out []Chapter
	err := s.query(ctx, "list chapters", func(q querier) error {
		var err error
		if novelID == "" {
			out, err = queryAll(ctx, q, scanChapter, `SELECT `+chapterColumns+` FROM chapters ORDER BY rowid`)
		} else {
			out, err = queryAll(ctx, q, scanChapter,
				`SELECT `+chapterColumns+` FROM chapters WHERE novel_id = ? ORDER BY "order", id`, novelID)
		}
		return err
	})
	return out, err
}

func (s *SQLiteStore) Chapter(ctx context.Context, id string) (Chapter, error) {
	var c Chapter
	err := s.query(ctx, "get chapter", func(q querier) error {
		var err error
		c, err = scanChapter(q.QueryRowContext(ctx, `SELECT `+chapterColumns+` FROM chapters WHERE id = ?`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("chapter", id)
		}
		return err
	})
	return c, err
}

// SaveChapters upserts the supplied rows in one transaction.
func (s *SQLiteStore) SaveChapters(ctx context.Context, chapters []Chapter) error {
	if len(chapters) == 0 {
		return nil
	}
	return s.write(ctx, "save chapters", func(tx *sql.Tx) error {
		for _, c := range chapters {
			if err := upsertChapter(ctx, tx, c); err != nil {
				return fmt.Errorf("chapter %s: %w", c.ID, err)
			}
		}
		return nil
	})
}

// SetChapterOrders updates the order column only, in one transaction.
func (s *SQLiteStore) SetChapterOrders(ctx context.Context, orders map[string]int) error {
	if len(orders) == 0 {
		return nil
	}
	return s.write(ctx, "set chapter orders", func(tx *sql.Tx) error {
		for id, o := range orders {
			if _, err := tx.ExecContext(ctx, `UPDATE chapters SET "order" = ? WHERE id = ?`, o, id); err != nil {
				return fmt.Errorf("chapter %s: %w", id, err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) UpdateChapter(ctx context.Context, id string, apply func(*Chapter)) (Chapter, error) {
	var c Chapter
	err := s.write(ctx, "update chapter", func(tx *sql.Tx) error {
		var err error
		c, err = scanChapter(tx.QueryRowContext(ctx, `SELECT `+chapterColumns+` FROM chapters WHERE id = ?`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("chapter", id)
		}
		if err != nil {
			return err
		}
		apply(&c)
		c.ID = id
		return upsertChapter(ctx, tx, c)
	})
	return c, err
}

func (s *SQLiteStore) DeleteChapter(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "chapters", "chapter", id)
}

// =============================================================================
// Plots
// =============================================================================

const plotColumns = `id, novel_id, title, content, created_at, updated_at`

func scanPlot(r rowScanner) (Plot, error) {
	var p Plot
	err := r.Scan(&p.ID, &p.NovelID, &p.Title, &p.Content, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func upsertPlot(ctx context.Context, q querier, p Plot) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO plots (`+plotColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			novel_id = excluded.novel_id,
			title = excluded.title,
			content = excluded.content,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at
	`, p.ID, p.NovelID, p.Title, p.Content, p.CreatedAt, p.UpdatedAt)
	return err
}

func (s *SQLiteStore) Plots(ctx context.Context, novelID string) ([]Plot, error) {
	var out []Plot
	err := s.query(ctx, "list plots", func(q querier) error {
		var err error
		if novelID == "" {
			out, err = queryAll(ctx, q, scanPlot, `SELECT `+plotColumns+` FROM plots ORDER BY rowid`)
		} else {
			out, err = queryAll(ctx, q, scanPlot,
				`SELECT `+plotColumns+` FROM plots WHERE novel_id = ? ORDER BY rowid`, novelID)
		}
		return err
	})
	return out, err
}

func (s *SQLiteStore) PutPlot(ctx context.Context, p Plot) error {
	return s.write(ctx, "put plot", func(tx *sql.Tx) error {
		return upsertPlot(ctx, tx, p)
	})
}

func (s *SQLiteStore) UpdatePlot(ctx context.Context, id string, apply func(*Plot)) (Plot, error) {
	var p Plot
	err := s.write(ctx, "update plot", func(tx *sql.Tx) error {
		var err error
		p, err = scanPlot(tx.QueryRowContext(ctx, `SELECT `+plotColumns+` FROM plots WHERE id = ?`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("plot", id)
		}
		if err != nil {
			return err
		}
		apply(&p)
		p.ID = id
		return upsertPlot(ctx, tx, p)
	})
	return p, err
}

func (s *SQLiteStore) DeletePlot(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "plots", "plot", id)
}

// =============================================================================
// Graph
// =============================================================================

// Replace clears every table and re-inserts g in a single transaction.
func (s *SQLiteStore) Replace(ctx context.Context, g Graph) error {
	return s.write(ctx, "replace", func(tx *sql.Tx) error {
		for _, table := range []string{"plots", "chapters", "characters", "novels"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		for _, n := range g.Novels {
			if err := upsertNovel(ctx, tx, n); err != nil {
				return fmt.Errorf("import novel %s: %w", n.ID, err)
			}
		}
		for _, c := range g.Characters {
			if err := upsertCharacter(ctx, tx, c); err != nil {
				return fmt.Errorf("import character %s: %w", c.ID, err)
			}
		}
		for _, c := range g.Chapters {
			if err := upsertChapter(ctx, tx, c); err != nil {
				return fmt.Errorf("import chapter %s: %w", c.ID, err)
			}
		}
		for _, p := range g.Plots {
			if err := upsertPlot(ctx, tx, p); err != nil {
				return fmt.Errorf("import plot %s: %w", p.ID, err)
			}
		}
		return nil
	})
}

// Export serializes every table to JSON, for hosts that persist the
// database outside SQLite (browser storage).
func (s *SQLiteStore) Export(ctx context.Context) ([]byte, error) {
	var g Graph
	err := s.query(ctx, "export", func(q querier) error {
		var err error
		if g.Novels, err = queryAll(ctx, q, scanNovel, `SELECT `+novelColumns+` FROM novels ORDER BY rowid`); err != nil {
			return fmt.Errorf("export novels: %w", err)
		}
		if g.Characters, err = queryAll(ctx, q, scanCharacter, `SELECT `+characterColumns+` FROM characters ORDER BY rowid`); err != nil {
			return fmt.Errorf("export characters: %w", err)
		}
		if g.Chapters, err = queryAll(ctx, q, scanChapter, `SELECT `+chapterColumns+` FROM chapters ORDER BY rowid`); err != nil {
			return fmt.Errorf("export chapters: %w", err)
		}
		if g.Plots, err = queryAll(ctx, q, scanPlot, `SELECT `+plotColumns+` FROM plots ORDER BY rowid`); err != nil {
			return fmt.Errorf("export plots: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	g.Normalize()
	data, err := json.Marshal(g)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeUnknown, "encode export")
	}
	return data, nil
}

// Import replaces the database contents with an Export payload. Empty
// input is a no-op.
func (s *SQLiteStore) Import(ctx context.Context, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return apperr.Wrap(err, apperr.CodeValidation, "import unmarshal")
	}
	return s.Replace(ctx, g)
}

func (s *SQLiteStore) deleteByID(ctx context.Context, table, kind, id string) error {
	return s.write(ctx, "delete "+kind, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.NotFound(kind, id)
		}
		return nil
	})
}

func queryAll[T any](ctx context.Context, q querier, scan func(rowScanner) (T, error), query string, args ...any) ([]T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]T, 0)
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

var _ Backend = (*SQLiteStore)(nil)
