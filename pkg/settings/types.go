// Package settings holds the persisted application settings blob and the
// routine that upgrades older shapes of it to the current one.
//
// The blob is user data, not process configuration: it lives in the flat
// key-value engine under SettingsKey and is replaced whole on every save.
package settings

import (
	"encoding/json"
	"maps"
)

// SettingsKey is the key the blob is stored under.
const SettingsKey = "settings"

// ModelConfig describes one model offered by an API provider.
type ModelConfig struct {
	Name              string `json:"name" yaml:"name"`
	SupportsReasoning bool   `json:"supportsReasoning" yaml:"supportsReasoning"`
	SupportsTools     bool   `json:"supportsTools" yaml:"supportsTools"`
	MaxTokens         int    `json:"maxTokens" yaml:"maxTokens"`

	Extra map[string]json.RawMessage `json:"-" yaml:"-"`
}

func (m ModelConfig) MarshalJSON() ([]byte, error) {
	type plain ModelConfig
	return marshalWithExtra(plain(m), m.Extra)
}

// APIConfig is one LLM provider entry.
type APIConfig struct {
	ID            string        `json:"id" yaml:"id"`
	Name          string        `json:"name" yaml:"name"`
	Provider      string        `json:"provider" yaml:"provider"`
	BaseURL       string        `json:"baseUrl" yaml:"baseUrl"`
	APIKey        string        `json:"apiKey" yaml:"apiKey"`
	Models        []ModelConfig `json:"models" yaml:"models"`
	SelectedModel string        `json:"selectedModel" yaml:"selectedModel"`

	Extra map[string]json.RawMessage `json:"-" yaml:"-"`
}

func (a APIConfig) MarshalJSON() ([]byte, error) {
	type plain APIConfig
	return marshalWithExtra(plain(a), a.Extra)
}

// Model returns the named model config.
func (a APIConfig) Model(name string) (ModelConfig, bool) {
	for _, m := range a.Models {
		if m.Name == name {
			return m, true
		}
	}
	return ModelConfig{}, false
}

// DatabaseConfig is a remote database connection entry.
type DatabaseConfig struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Type     string `json:"type" yaml:"type"`
	URI      string `json:"uri" yaml:"uri"`
	Database string `json:"database" yaml:"database"`

	Extra map[string]json.RawMessage `json:"-" yaml:"-"`
}

func (d DatabaseConfig) MarshalJSON() ([]byte, error) {
	type plain DatabaseConfig
	return marshalWithExtra(plain(d), d.Extra)
}

// PromptConfig is the prompt template set. Templates contain {placeholders}
// substituted by the caller before generation.
type PromptConfig struct {
	ChapterGeneration   string `json:"chapterGeneration" yaml:"chapterGeneration"`
	ChapterSummary      string `json:"chapterSummary" yaml:"chapterSummary"`
	CharacterGeneration string `json:"characterGeneration" yaml:"characterGeneration"`
	CharacterSummary    string `json:"characterSummary" yaml:"characterSummary"`
	PlotGeneration      string `json:"plotGeneration" yaml:"plotGeneration"`
	Continuation        string `json:"continuation" yaml:"continuation"`

	Extra map[string]json.RawMessage `json:"-" yaml:"-"`
}

func (p PromptConfig) MarshalJSON() ([]byte, error) {
	type plain PromptConfig
	return marshalWithExtra(plain(p), p.Extra)
}

// ModelParameters are the sampling parameters passed to generation calls.
type ModelParameters struct {
	Temperature float64 `json:"temperature" yaml:"temperature"`
	TopP        float64 `json:"topP" yaml:"topP"`
	MaxTokens   int     `json:"maxTokens" yaml:"maxTokens"`
	Stream      bool    `json:"stream" yaml:"stream"`

	Extra map[string]json.RawMessage `json:"-" yaml:"-"`
}

func (m ModelParameters) MarshalJSON() ([]byte, error) {
	type plain ModelParameters
	return marshalWithExtra(plain(m), m.Extra)
}

// AppSettings is the current shape of the settings blob.
//
// Keys the struct does not model are kept in Extra (filled by Migrate) and
// written back on every save, so a blob from a newer release survives a
// round trip through this one.
type AppSettings struct {
	SchemaVersion      int              `json:"schemaVersion" yaml:"schemaVersion"`
	APIs               []APIConfig      `json:"apis" yaml:"apis"`
	SelectedAPIID      string           `json:"selectedApiId" yaml:"selectedApiId"`
	Databases          []DatabaseConfig `json:"databases" yaml:"databases"`
	SelectedDatabaseID string           `json:"selectedDatabaseId" yaml:"selectedDatabaseId"`
	StorageType        StorageType      `json:"storageType" yaml:"storageType"`
	SelectedNovelID    string           `json:"selectedNovelId" yaml:"selectedNovelId"`
	Prompts            PromptConfig     `json:"prompts" yaml:"prompts"`
	ModelParameters    ModelParameters  `json:"modelParameters" yaml:"modelParameters"`

	Extra map[string]json.RawMessage `json:"-" yaml:"-"`
}

func (s AppSettings) MarshalJSON() ([]byte, error) {
	type plain AppSettings
	return marshalWithExtra(plain(s), s.Extra)
}

// marshalWithExtra encodes v, then adds every extra key v does not define.
func marshalWithExtra(v any, extra map[string]json.RawMessage) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return data, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	for k, raw := range extra {
		if _, ok := fields[k]; !ok {
			fields[k] = raw
		}
	}
	return json.Marshal(fields)
}

// SelectedAPI returns the API entry named by SelectedAPIID.
func (s AppSettings) SelectedAPI() (APIConfig, bool) {
	for _, a := range s.APIs {
		if a.ID == s.SelectedAPIID {
			return a, true
		}
	}
	return APIConfig{}, false
}

// SelectedDatabase returns the database entry named by SelectedDatabaseID.
func (s AppSettings) SelectedDatabase() (DatabaseConfig, bool) {
	for _, d := range s.Databases {
		if d.ID == s.SelectedDatabaseID {
			return d, true
		}
	}
	return DatabaseConfig{}, false
}

// Clone returns a deep copy so callers cannot alias slices held elsewhere.
func (s AppSettings) Clone() AppSettings {
	out := s
	out.Extra = maps.Clone(s.Extra)
	out.APIs = make([]APIConfig, len(s.APIs))
	for i, a := range s.APIs {
		a.Extra = maps.Clone(a.Extra)
		a.Models = append([]ModelConfig{}, a.Models...)
		for j := range a.Models {
			a.Models[j].Extra = maps.Clone(a.Models[j].Extra)
		}
		out.APIs[i] = a
	}
	out.Databases = append([]DatabaseConfig{}, s.Databases...)
	for i := range out.Databases {
		out.Databases[i].Extra = maps.Clone(out.Databases[i].Extra)
	}
	out.Prompts.Extra = maps.Clone(s.Prompts.Extra)
	out.ModelParameters.Extra = maps.Clone(s.ModelParameters.Extra)
	return out
}
