package store

import (
	"context"

	"github.com/kittclouds/novelkit/pkg/settings"
)

// Mode selects a backend. The values are shared with the settings blob.
type Mode = settings.Mode

const (
	ModeFlatKV          = settings.ModeFlatKV
	ModeIndexedDocument = settings.ModeIndexedDocument
	ModeRemoteDocument  = settings.ModeRemoteDocument
)

// Backend is implemented by every storage engine behind the Facade.
//
// Backends store what they are given. Id generation, timestamps, foreign
// key checks and chapter numbering belong to the Facade.
type Backend interface {
	// Name identifies the backend in logs and metrics.
	Name() string

	Novels(ctx context.Context) ([]Novel, error)
	Novel(ctx context.Context, id string) (Novel, error)
	// SaveNovels replaces the whole novel collection.
	SaveNovels(ctx context.Context, novels []Novel) error
	PutNovel(ctx context.Context, n Novel) error
	UpdateNovel(ctx context.Context, id string, apply func(*Novel)) (Novel, error)
	// DeleteNovel removes the novel and every character, chapter and plot
	// that references it.
	DeleteNovel(ctx context.Context, id string) error

	// Characters returns all characters when novelID is empty.
	Characters(ctx context.Context, novelID string) ([]Character, error)
	PutCharacter(ctx context.Context, c Character) error
	UpdateCharacter(ctx context.Context, id string, apply func(*Character)) (Character, error)
	DeleteCharacter(ctx context.Context, id string) error

	// Chapters returns all chapters when novelID is empty. Filtered results
	// are sorted by Order.
	Chapters(ctx context.Context, novelID string) ([]Chapter, error)
	Chapter(ctx context.Context, id string) (Chapter, error)
	// SaveChapters upserts the supplied rows and leaves all others alone.
	SaveChapters(ctx context.Context, chapters []Chapter) error
	// SetChapterOrders writes only the order field of the listed chapters.
	// Unknown ids are skipped.
	SetChapterOrders(ctx context.Context, orders map[string]int) error
	UpdateChapter(ctx context.Context, id string, apply func(*Chapter)) (Chapter, error)
	DeleteChapter(ctx context.Context, id string) error

	Plots(ctx context.Context, novelID string) ([]Plot, error)
	PutPlot(ctx context.Context, p Plot) error
	UpdatePlot(ctx context.Context, id string, apply func(*Plot)) (Plot, error)
	DeletePlot(ctx context.Context, id string) error

	// Replace swaps the backend's entire contents for g.
	Replace(ctx context.Context, g Graph) error

	Close() error
}

// BackendFactory opens a backend. The Facade calls it the first time a
// mode is used.
type BackendFactory func(ctx context.Context) (Backend, error)
