// Package store provides persistence for novelkit.
// A Facade sits in front of pluggable backends (flat key-value, SQLite,
// MongoDB) and is the only contract hosts depend on.
package store

import (
	"slices"

	"github.com/kittclouds/novelkit/pkg/apperr"
)

// Novel is the root entity. It owns characters, chapters and plots.
type Novel struct {
	ID          string `json:"id" bson:"_id"`
	Title       string `json:"title" bson:"title"`
	Description string `json:"description" bson:"description"`
	Cover       string `json:"cover,omitempty" bson:"cover,omitempty"`
	CreatedAt   int64  `json:"createdAt" bson:"created_at"`
	UpdatedAt   int64  `json:"updatedAt" bson:"updated_at"`
}

// Character belongs to a novel. Characters are overwritten in place on
// edit and carry no updatedAt.
type Character struct {
	ID            string `json:"id" bson:"_id"`
	NovelID       string `json:"novelId" bson:"novel_id"`
	Name          string `json:"name" bson:"name"`
	Gender        string `json:"gender" bson:"gender"`
	Personality   string `json:"personality" bson:"personality"`
	Background    string `json:"background" bson:"background"`
	Relationships string `json:"relationships" bson:"relationships"`
	Notes         string `json:"notes" bson:"notes"`
	Summary       string `json:"summary,omitempty" bson:"summary,omitempty"`
	CreatedAt     int64  `json:"createdAt" bson:"created_at"`
}

// ChapterStatus is the writing state of a chapter.
type ChapterStatus string

const (
	StatusDraft      ChapterStatus = "draft"
	StatusInProgress ChapterStatus = "in-progress"
	StatusCompleted  ChapterStatus = "completed"
)

// Valid reports whether s is a known status.
func (s ChapterStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Chapter belongs to a novel. Order is 1-based and dense within the novel.
type Chapter struct {
	ID          string        `json:"id" bson:"_id"`
	NovelID     string        `json:"novelId" bson:"novel_id"`
	Title       string        `json:"title" bson:"title"`
	Order       int           `json:"order" bson:"order"`
	Description string        `json:"description" bson:"description"`
	Content     string        `json:"content" bson:"content"`
	Status      ChapterStatus `json:"status" bson:"status"`
	CreatedAt   int64         `json:"createdAt" bson:"created_at"`
	UpdatedAt   int64         `json:"updatedAt" bson:"updated_at"`
}

// Plot is a free-text note attached to a novel.
type Plot struct {
	ID        string `json:"id" bson:"_id"`
	NovelID   string `json:"novelId" bson:"novel_id"`
	Title     string `json:"title" bson:"title"`
	Content   string `json:"content" bson:"content"`
	CreatedAt int64  `json:"createdAt" bson:"created_at"`
	UpdatedAt int64  `json:"updatedAt" bson:"updated_at"`
}

// Graph is the full entity graph of one backend.
type Graph struct {
	Novels     []Novel     `json:"novels"`
	Characters []Character `json:"characters"`
	Chapters   []Chapter   `json:"chapters"`
	Plots      []Plot      `json:"plots"`
}

// Normalize replaces nil collections with empty ones.
func (g *Graph) Normalize() {
	if g.Novels == nil {
		g.Novels = []Novel{}
	}
	if g.Characters == nil {
		g.Characters = []Character{}
	}
	if g.Chapters == nil {
		g.Chapters = []Chapter{}
	}
	if g.Plots == nil {
		g.Plots = []Plot{}
	}
}

// Validate checks that every id is set and unique per collection.
// Foreign keys are not checked; backups may legitimately hold orphans.
func (g Graph) Validate() error {
	check := func(kind string, ids []string) error {
		seen := make(map[string]struct{}, len(ids))
		for i, id := range ids {
			if id == "" {
				return apperr.Validation("%s[%d] has an empty id", kind, i)
			}
			if _, dup := seen[id]; dup {
				return apperr.Validation("%s id %q appears twice", kind, id)
			}
			seen[id] = struct{}{}
		}
		return nil
	}
	if err := check("novels", collectIDs(g.Novels, func(n Novel) string { return n.ID })); err != nil {
		return err
	}
	if err := check("characters", collectIDs(g.Characters, func(c Character) string { return c.ID })); err != nil {
		return err
	}
	if err := check("chapters", collectIDs(g.Chapters, func(c Chapter) string { return c.ID })); err != nil {
		return err
	}
	return check("plots", collectIDs(g.Plots, func(p Plot) string { return p.ID }))
}

func collectIDs[T any](items []T, id func(T) string) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = id(it)
	}
	return out
}

// NovelPatch is a merge-patch for a Novel. Nil fields are left unchanged.
type NovelPatch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Cover       *string `json:"cover,omitempty"`
}

// Apply merges p into n.
func (p NovelPatch) Apply(n *Novel) {
	setIf(&n.Title, p.Title)
	setIf(&n.Description, p.Description)
	setIf(&n.Cover, p.Cover)
}

// CharacterPatch is a merge-patch for a Character.
type CharacterPatch struct {
	Name          *string `json:"name,omitempty"`
	Gender        *string `json:"gender,omitempty"`
	Personality   *string `json:"personality,omitempty"`
	Background    *string `json:"background,omitempty"`
	Relationships *string `json:"relationships,omitempty"`
	Notes         *string `json:"notes,omitempty"`
	Summary       *string `json:"summary,omitempty"`
}

// Apply merges p into c.
func (p CharacterPatch) Apply(c *Character) {
	setIf(&c.Name, p.Name)
	setIf(&c.Gender, p.Gender)
	setIf(&c.Personality, p.Personality)
	setIf(&c.Background, p.Background)
	setIf(&c.Relationships, p.Relationships)
	setIf(&c.Notes, p.Notes)
	setIf(&c.Summary, p.Summary)
}

// ChapterPatch is a merge-patch for a Chapter. Order is changed through
// the move operations, not patched.
type ChapterPatch struct {
	Title       *string        `json:"title,omitempty"`
	Description *string        `json:"description,omitempty"`
	Content     *string        `json:"content,omitempty"`
	Status      *ChapterStatus `json:"status,omitempty"`
}

// Apply merges p into c.
func (p ChapterPatch) Apply(c *Chapter) {
	setIf(&c.Title, p.Title)
	setIf(&c.Description, p.Description)
	setIf(&c.Content, p.Content)
	setIf(&c.Status, p.Status)
}

// PlotPatch is a merge-patch for a Plot.
type PlotPatch struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
}

// Apply merges p into pl.
func (p PlotPatch) Apply(pl *Plot) {
	setIf(&pl.Title, p.Title)
	setIf(&pl.Content, p.Content)
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// sortChapters orders chapters by Order, then by ID for a stable result.
func sortChapters(chs []Chapter) {
	slices.SortStableFunc(chs, func(a, b Chapter) int {
		if a.Order != b.Order {
			return a.Order - b.Order
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}
