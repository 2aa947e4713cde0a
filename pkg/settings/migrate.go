package settings

import (
	"encoding/json"
	"math"
	"slices"
	"strings"
)

// Migration rule names reported in Report.Applied.
const (
	RuleModelRecords  = "model-records"
	RuleSelectedModel = "selected-model"
	RuleDefaultPrompt = "default-prompts"
	RulePromptKeys    = "prompt-keys"
	RuleFillDefaults  = "fill-defaults"
)

// Report describes what a migration changed.
type Report struct {
	// FromVersion is the schemaVersion found in the input, 0 if absent.
	FromVersion int
	// Legacy is true when the input predates schema versioning and its
	// shape was detected structurally.
	Legacy bool
	// Applied lists the rules that changed something, in order.
	Applied []string
}

// Changed reports whether the migration altered the input.
func (r Report) Changed() bool {
	return len(r.Applied) > 0 || r.FromVersion < CurrentSchemaVersion
}

// Newer reports whether the input was written by a later schema version.
// Such blobs are read best-effort and never written back by a load.
func (r Report) Newer() bool {
	return r.FromVersion > CurrentSchemaVersion
}

func (r *Report) note(rule string) {
	for _, a := range r.Applied {
		if a == rule {
			return
		}
	}
	r.Applied = append(r.Applied, rule)
}

// MigrateJSON decodes a persisted blob and migrates it. Anything that is not
// a JSON object yields Defaults().
func MigrateJSON(data []byte) AppSettings {
	s, _ := MigrateJSONWithReport(data)
	return s
}

// MigrateJSONWithReport is MigrateJSON that also returns the Report.
func MigrateJSONWithReport(data []byte) (AppSettings, Report) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		rep := Report{Legacy: true}
		rep.note(RuleFillDefaults)
		return Defaults(), rep
	}
	return MigrateWithReport(raw)
}

// Migrate upgrades a decoded blob of any vintage to the current shape.
// It never fails: fields of the wrong type are replaced by defaults and
// unknown keys are carried in the Extra maps.
func Migrate(raw map[string]any) AppSettings {
	s, _ := MigrateWithReport(raw)
	return s
}

// MigrateWithReport is Migrate that also returns the Report.
func MigrateWithReport(raw map[string]any) (AppSettings, Report) {
	var rep Report
	def := Defaults()
	out := def

	if v, ok := toInt(raw["schemaVersion"]); ok {
		rep.FromVersion = v
	}
	rep.Legacy = rep.FromVersion == 0

	if list, ok := toSlice(raw["apis"]); ok {
		out.APIs = make([]APIConfig, 0, len(list))
		for _, item := range list {
			m, ok := item.(map[string]any)
			if !ok {
				rep.note(RuleFillDefaults)
				continue
			}
			out.APIs = append(out.APIs, migrateAPI(m, &rep))
		}
	} else {
		rep.note(RuleFillDefaults)
	}

	out.SelectedAPIID = stringField(raw, "selectedApiId", &rep)
	if out.SelectedAPIID == "" && len(out.APIs) > 0 && out.APIs[0].ID != "" {
		out.SelectedAPIID = out.APIs[0].ID
		rep.note(RuleFillDefaults)
	}

	if list, ok := toSlice(raw["databases"]); ok {
		out.Databases = make([]DatabaseConfig, 0, len(list))
		for _, item := range list {
			m, ok := item.(map[string]any)
			if !ok {
				rep.note(RuleFillDefaults)
				continue
			}
			out.Databases = append(out.Databases, DatabaseConfig{
				ID:       str(m["id"]),
				Name:     str(m["name"]),
				Type:     str(m["type"]),
				URI:      str(m["uri"]),
				Database: str(m["database"]),
				Extra:    extraKeys(m, databaseKeys),
			})
		}
	} else {
		rep.note(RuleFillDefaults)
	}
	out.SelectedDatabaseID = stringField(raw, "selectedDatabaseId", &rep)

	// unknown values pass through; the facade rejects them when used
	if st := str(raw["storageType"]); st != "" {
		out.StorageType = StorageType(st)
	} else {
		rep.note(RuleFillDefaults)
	}
	out.SelectedNovelID = stringField(raw, "selectedNovelId", &rep)

	if p, ok := raw["prompts"].(map[string]any); ok {
		out.Prompts = migratePrompts(p, def.Prompts, &rep)
	} else {
		rep.note(RuleDefaultPrompt)
	}

	if mp, ok := raw["modelParameters"].(map[string]any); ok {
		out.ModelParameters = migrateModelParameters(mp, def.ModelParameters, &rep)
	} else {
		rep.note(RuleFillDefaults)
	}

	out.Extra = extraKeys(raw, appKeys)
	// a newer blob keeps its version so it is never downgraded on save
	out.SchemaVersion = max(CurrentSchemaVersion, rep.FromVersion)
	return out, rep
}

var (
	apiKeys       = []string{"id", "name", "provider", "baseUrl", "apiKey", "models", "selectedModel"}
	modelKeys     = []string{"name", "supportsReasoning", "supportsTools", "maxTokens"}
	databaseKeys  = []string{"id", "name", "type", "uri", "database"}
	parameterKeys = []string{"temperature", "topP", "maxTokens", "stream"}

	appKeys = []string{"schemaVersion", "apis", "selectedApiId", "databases", "selectedDatabaseId",
		"storageType", "selectedNovelId", "prompts", "modelParameters"}
	promptKeys = []string{"chapterGeneration", "chapterSummary", "characterGeneration",
		"characterSummary", "plotGeneration", "continuation"}
)

// extraKeys re-encodes every key of m that is not in known. It returns nil
// when there is none.
func extraKeys(m map[string]any, known []string) map[string]json.RawMessage {
	var out map[string]json.RawMessage
	for k, v := range m {
		if slices.Contains(known, k) {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			continue
		}
		if out == nil {
			out = make(map[string]json.RawMessage)
		}
		out[k] = raw
	}
	return out
}

func migrateAPI(m map[string]any, rep *Report) APIConfig {
	api := APIConfig{
		ID:            str(m["id"]),
		Name:          str(m["name"]),
		Provider:      str(m["provider"]),
		BaseURL:       str(m["baseUrl"]),
		APIKey:        str(m["apiKey"]),
		SelectedModel: str(m["selectedModel"]),
		Models:        []ModelConfig{},
		Extra:         extraKeys(m, apiKeys),
	}

	if list, ok := toSlice(m["models"]); ok {
		for _, item := range list {
			switch v := item.(type) {
			case string:
				// oldest shape: plain model names
				api.Models = append(api.Models, modelFromName(v))
				rep.note(RuleModelRecords)
			case map[string]any:
				api.Models = append(api.Models, migrateModel(v, rep))
			default:
				rep.note(RuleFillDefaults)
			}
		}
	}

	if api.SelectedModel == "" && len(api.Models) > 0 {
		api.SelectedModel = api.Models[0].Name
		rep.note(RuleSelectedModel)
	}
	return api
}

func modelFromName(name string) ModelConfig {
	return ModelConfig{
		Name:              name,
		SupportsReasoning: inferReasoning(name),
		SupportsTools:     false,
		MaxTokens:         DefaultMaxTokens,
	}
}

func migrateModel(m map[string]any, rep *Report) ModelConfig {
	mc := ModelConfig{Name: str(m["name"]), Extra: extraKeys(m, modelKeys)}

	if b, ok := m["supportsReasoning"].(bool); ok {
		mc.SupportsReasoning = b
	} else {
		mc.SupportsReasoning = inferReasoning(mc.Name)
		rep.note(RuleModelRecords)
	}
	if b, ok := m["supportsTools"].(bool); ok {
		mc.SupportsTools = b
	} else {
		rep.note(RuleModelRecords)
	}
	if n, ok := toInt(m["maxTokens"]); ok && n > 0 {
		mc.MaxTokens = n
	} else {
		mc.MaxTokens = DefaultMaxTokens
		rep.note(RuleModelRecords)
	}
	return mc
}

func inferReasoning(name string) bool {
	n := strings.ToLower(name)
	return strings.Contains(n, "think") || strings.Contains(n, "reason")
}

func migratePrompts(m map[string]any, def PromptConfig, rep *Report) PromptConfig {
	pick := func(key, fallback string) string {
		if s, ok := m[key].(string); ok {
			return s
		}
		rep.note(RulePromptKeys)
		return fallback
	}
	return PromptConfig{
		Extra:               extraKeys(m, promptKeys),
		ChapterGeneration:   pick("chapterGeneration", def.ChapterGeneration),
		ChapterSummary:      pick("chapterSummary", def.ChapterSummary),
		CharacterGeneration: pick("characterGeneration", def.CharacterGeneration),
		CharacterSummary:    pick("characterSummary", def.CharacterSummary),
		PlotGeneration:      pick("plotGeneration", def.PlotGeneration),
		Continuation:        pick("continuation", def.Continuation),
	}
}

func migrateModelParameters(m map[string]any, def ModelParameters, rep *Report) ModelParameters {
	out := def
	out.Extra = extraKeys(m, parameterKeys)
	if f, ok := toFloat(m["temperature"]); ok {
		out.Temperature = f
	} else {
		rep.note(RuleFillDefaults)
	}
	if f, ok := toFloat(m["topP"]); ok {
		out.TopP = f
	} else {
		rep.note(RuleFillDefaults)
	}
	if n, ok := toInt(m["maxTokens"]); ok && n > 0 {
		out.MaxTokens = n
	} else {
		rep.note(RuleFillDefaults)
	}
	if b, ok := m["stream"].(bool); ok {
		out.Stream = b
	} else {
		rep.note(RuleFillDefaults)
	}
	return out
}

func stringField(raw map[string]any, key string, rep *Report) string {
	s, ok := raw[key].(string)
	if !ok {
		rep.note(RuleFillDefaults)
	}
	return s
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func toSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i, x := range s {
			out[i] = x
		}
		return out, true
	case []map[string]any:
		out := make([]any, len(s))
		for i, x := range s {
			out[i] = x
		}
		return out, true
	}
	return nil, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func toInt(v any) (int, bool) {
	f, ok := toFloat(v)
	if !ok || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}
