// Package backup serializes the entity graph and the settings blob to
// portable JSON documents and restores them.
//
// Two document kinds share one envelope. The entity-graph kind carries the
// novels, characters, chapters and plots arrays. The settings kind carries
// type "settings" and a data object; importing it never touches entities.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/kittclouds/novelkit/internal/store"
	"github.com/kittclouds/novelkit/pkg/apperr"
	"github.com/kittclouds/novelkit/pkg/logger"
	"github.com/kittclouds/novelkit/pkg/metrics"
	"github.com/kittclouds/novelkit/pkg/settings"
)

const (
	// Version is the format tag written into every document.
	Version = "1.0"
	// TypeSettings marks a settings-kind document.
	TypeSettings = "settings"
)

// Document is the entity-graph backup.
type Document struct {
	Version    string            `json:"version"`
	Timestamp  int64             `json:"timestamp"`
	Novels     []store.Novel     `json:"novels"`
	Characters []store.Character `json:"characters"`
	Chapters   []store.Chapter   `json:"chapters"`
	Plots      []store.Plot      `json:"plots"`
}

// SettingsData is the portion of the settings blob carried by a settings
// backup. The selected novel and model parameters stay local.
type SettingsData struct {
	APIs               []settings.APIConfig      `json:"apis"`
	SelectedAPIID      string                    `json:"selectedApiId"`
	Databases          []settings.DatabaseConfig `json:"databases"`
	SelectedDatabaseID string                    `json:"selectedDatabaseId"`
	StorageType        settings.StorageType      `json:"storageType"`
	Prompts            settings.PromptConfig     `json:"prompts"`
}

// SettingsDocument is the settings backup.
type SettingsDocument struct {
	Version   string       `json:"version"`
	Timestamp int64        `json:"timestamp"`
	Type      string       `json:"type"`
	Data      SettingsData `json:"data"`
}

// Summary counts the rows written by an import.
type Summary struct {
	Novels     int `json:"novels"`
	Characters int `json:"characters"`
	Chapters   int `json:"chapters"`
	Plots      int `json:"plots"`
}

// Source is the storage the codec reads from and restores into.
// *store.Facade implements it.
type Source interface {
	Snapshot(ctx context.Context) (store.Graph, error)
	Restore(ctx context.Context, g store.Graph) error
	Settings() settings.AppSettings
	SaveSettings(ctx context.Context, s settings.AppSettings) error
}

// Codec exports and imports backups for one Source.
type Codec struct {
	src Source
	now func() time.Time
	log *slog.Logger
}

// Option configures a Codec.
type Option func(*Codec)

// WithClock sets the clock used for document timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Codec) { c.log = l }
}

// New creates a Codec over src.
func New(src Source, opts ...Option) *Codec {
	c := &Codec{src: src, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	if c.log == nil {
		c.log = logger.Default()
	}
	return c
}

// Export writes the full entity graph as a pretty-printed document.
func (c *Codec) Export(ctx context.Context, w io.Writer) (err error) {
	defer func() { observe("graph", "export", err) }()

	g, err := c.src.Snapshot(ctx)
	if err != nil {
		return err
	}
	g.Normalize()
	doc := Document{
		Version:    Version,
		Timestamp:  c.now().UnixMilli(),
		Novels:     g.Novels,
		Characters: g.Characters,
		Chapters:   g.Chapters,
		Plots:      g.Plots,
	}
	return writeIndented(w, doc)
}

// envelope decodes either document kind while keeping track of which
// fields were present.
type envelope struct {
	Version    string          `json:"version"`
	Type       string          `json:"type"`
	Novels     json.RawMessage `json:"novels"`
	Characters json.RawMessage `json:"characters"`
	Chapters   json.RawMessage `json:"chapters"`
	Plots      json.RawMessage `json:"plots"`
	Data       json.RawMessage `json:"data"`
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && !bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func readEnvelope(r io.Reader) (envelope, error) {
	var env envelope
	data, err := io.ReadAll(r)
	if err != nil {
		return env, apperr.Validation("read backup: %v", err)
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return env, apperr.Validation("backup is not a JSON object: %v", err)
	}
	return env, nil
}

// Import validates a graph document and replaces the source's entire
// contents with it. Nothing is written when validation fails. Documents
// without plots restore with no plots.
func (c *Codec) Import(ctx context.Context, r io.Reader) (sum Summary, err error) {
	defer func() { observe("graph", "import", err) }()

	env, err := readEnvelope(r)
	if err != nil {
		return sum, err
	}
	if env.Type == TypeSettings {
		return sum, apperr.Validation("document is a settings backup, not a data backup")
	}

	var missing []string
	for _, f := range []struct {
		name string
		raw  json.RawMessage
	}{
		{"novels", env.Novels},
		{"characters", env.Characters},
		{"chapters", env.Chapters},
	} {
		if !present(f.raw) {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return sum, apperr.Validation("backup is missing required arrays: %s", strings.Join(missing, ", "))
	}

	var g store.Graph
	if err := decodeArray("novels", env.Novels, &g.Novels); err != nil {
		return sum, err
	}
	if err := decodeArray("characters", env.Characters, &g.Characters); err != nil {
		return sum, err
	}
	if err := decodeArray("chapters", env.Chapters, &g.Chapters); err != nil {
		return sum, err
	}
	if present(env.Plots) {
		if err := decodeArray("plots", env.Plots, &g.Plots); err != nil {
			return sum, err
		}
	}
	g.Normalize()

	if err := c.src.Restore(ctx, g); err != nil {
		return sum, err
	}
	sum = Summary{
		Novels:     len(g.Novels),
		Characters: len(g.Characters),
		Chapters:   len(g.Chapters),
		Plots:      len(g.Plots),
	}
	c.log.Info("backup imported", "version", env.Version, "novels", sum.Novels,
		"characters", sum.Characters, "chapters", sum.Chapters, "plots", sum.Plots)
	return sum, nil
}

func decodeArray[T any](name string, raw json.RawMessage, dst *[]T) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return apperr.Validation("%s is not a valid array: %v", name, err)
	}
	return nil
}

// ExportSettings writes the settings-kind document.
func (c *Codec) ExportSettings(ctx context.Context, w io.Writer) (err error) {
	defer func() { observe("settings", "export", err) }()

	s := c.src.Settings()
	doc := SettingsDocument{
		Version:   Version,
		Timestamp: c.now().UnixMilli(),
		Type:      TypeSettings,
		Data: SettingsData{
			APIs:               s.APIs,
			SelectedAPIID:      s.SelectedAPIID,
			Databases:          s.Databases,
			SelectedDatabaseID: s.SelectedDatabaseID,
			StorageType:        s.StorageType,
			Prompts:            s.Prompts,
		},
	}
	return writeIndented(w, doc)
}

// ImportSettings migrates the document's data and saves it as the new
// settings blob. The current selected novel and model parameters are kept,
// as is the current storage type when the document has none.
func (c *Codec) ImportSettings(ctx context.Context, r io.Reader) (s settings.AppSettings, err error) {
	defer func() { observe("settings", "import", err) }()

	env, err := readEnvelope(r)
	if err != nil {
		return s, err
	}
	if env.Type != TypeSettings {
		return s, apperr.Validation("document type is %q, want %q", env.Type, TypeSettings)
	}
	if !present(env.Data) {
		return s, apperr.Validation("settings backup has no data")
	}
	var raw map[string]any
	if err := json.Unmarshal(env.Data, &raw); err != nil {
		return s, apperr.Validation("settings data is not an object: %v", err)
	}

	current := c.src.Settings()
	s = settings.Migrate(raw)
	s.SelectedNovelID = current.SelectedNovelID
	s.ModelParameters = current.ModelParameters
	if _, ok := raw["storageType"].(string); !ok {
		s.StorageType = current.StorageType
	}

	if err := c.src.SaveSettings(ctx, s); err != nil {
		return s, err
	}
	c.log.Info("settings imported", "apis", len(s.APIs), "storage_type", s.StorageType)
	return s, nil
}

func writeIndented(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	return nil
}

func observe(kind, op string, err error) {
	metrics.BackupOperationsTotal.WithLabelValues(kind, op, metrics.Status(err)).Inc()
}
