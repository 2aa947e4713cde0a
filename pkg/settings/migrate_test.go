package settings

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &raw))
	return raw
}

func remigrate(t *testing.T, s AppSettings) AppSettings {
	t.Helper()
	data, err := json.Marshal(s)
	require.NoError(t, err)
	return MigrateJSON(data)
}

func TestMigrateOldModelList(t *testing.T) {
	got := Migrate(decode(t, `{"apis":[{"models":["gpt-4","gpt-4-thinking"]}]}`))

	require.Len(t, got.APIs, 1)
	api := got.APIs[0]
	require.Len(t, api.Models, 2)

	assert.Equal(t, ModelConfig{Name: "gpt-4", MaxTokens: DefaultMaxTokens}, api.Models[0])
	assert.Equal(t, "gpt-4-thinking", api.Models[1].Name)
	assert.True(t, api.Models[1].SupportsReasoning)
	assert.False(t, api.Models[1].SupportsTools)
	assert.Equal(t, DefaultMaxTokens, api.Models[1].MaxTokens)
	assert.Equal(t, "gpt-4", api.SelectedModel)

	assert.Equal(t, DefaultPrompts(), got.Prompts)
	assert.Equal(t, CurrentSchemaVersion, got.SchemaVersion)
}

func TestMigrateReasoningHeuristic(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"o1-reasoning", true},
		{"DeepSeek-Reasoner", true},
		{"claude-THINK", true},
		{"gpt-4o", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, inferReasoning(tt.name))
		})
	}
}

func TestMigrateMixedModelList(t *testing.T) {
	got := Migrate(decode(t, `{"apis":[{"selectedModel":"b","models":[
		"a",
		{"name":"b","supportsReasoning":false,"supportsTools":true,"maxTokens":8000},
		42
	]}]}`))

	require.Len(t, got.APIs[0].Models, 2)
	assert.Equal(t, "a", got.APIs[0].Models[0].Name)
	assert.Equal(t, ModelConfig{Name: "b", SupportsTools: true, MaxTokens: 8000}, got.APIs[0].Models[1])
	assert.Equal(t, "b", got.APIs[0].SelectedModel)
}

func TestMigrateIdempotent(t *testing.T) {
	inputs := map[string]string{
		"empty":     `{}`,
		"old":       `{"apis":[{"models":["gpt-4","gpt-4-thinking"]}]}`,
		"extraKeys": `{"theme":"dark","apis":"nope","prompts":{"chapterSummary":"S"},"storageType":"indexedDB"}`,
		"current": `{"schemaVersion":2,"apis":[{"id":"x","models":[{"name":"m","supportsReasoning":true,"supportsTools":true,"maxTokens":100}],"selectedModel":"m"}],
			"selectedApiId":"x","storageType":"mongodb","modelParameters":{"temperature":0.2,"topP":0.9,"maxTokens":10,"stream":false}}`,
		"unknownStorage": `{"storageType":"webSQL"}`,
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			once := Migrate(decode(t, in))
			twice := Migrate(decode(t, in))
			assert.Equal(t, once, twice)
			assert.Equal(t, once, remigrate(t, once))
		})
	}
}

func TestMigrateTotal(t *testing.T) {
	inputs := []string{
		`{}`,
		`{"unrelated":{"nested":[1,2,3]}}`,
		`{"apis":null,"prompts":null,"modelParameters":null}`,
		`{"apis":[null,1,"x",{"models":{"not":"a list"}}]}`,
		`{"apis":[{"models":[null,true,{"name":5,"maxTokens":"lots"}]}]}`,
		`{"schemaVersion":"two","storageType":7,"selectedApiId":[]}`,
		`{"modelParameters":{"temperature":"hot","maxTokens":1.5}}`,
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() {
			got := Migrate(decode(t, in))
			assert.NotNil(t, got.APIs)
			assert.NotNil(t, got.Databases)
			assert.NotEmpty(t, got.Prompts.ChapterGeneration)
			assert.NotEmpty(t, got.StorageType)
			assert.Equal(t, CurrentSchemaVersion, got.SchemaVersion)
		}, in)
	}

	assert.NotPanics(t, func() { Migrate(nil) })
	assert.Equal(t, Defaults(), MigrateJSON([]byte("not json")))
	assert.Equal(t, Defaults(), MigrateJSON([]byte(`[1,2]`)))
	assert.Equal(t, Defaults(), MigrateJSON([]byte(`null`)))
}

func TestMigrateFillsPromptKeys(t *testing.T) {
	got := Migrate(decode(t, `{"prompts":{"chapterSummary":"custom","continuation":7}}`))
	def := DefaultPrompts()
	assert.Equal(t, "custom", got.Prompts.ChapterSummary)
	assert.Equal(t, def.Continuation, got.Prompts.Continuation)
	assert.Equal(t, def.ChapterGeneration, got.Prompts.ChapterGeneration)
}

func TestMigratePreservesStorageType(t *testing.T) {
	assert.Equal(t, StorageIndexed, Migrate(decode(t, `{"storageType":"indexedDB"}`)).StorageType)
	assert.Equal(t, StorageType("webSQL"), Migrate(decode(t, `{"storageType":"webSQL"}`)).StorageType)
	assert.Equal(t, StorageLocal, Migrate(decode(t, `{}`)).StorageType)
}

func TestMigrateReport(t *testing.T) {
	_, rep := MigrateWithReport(decode(t, `{"apis":[{"models":["a"]}]}`))
	assert.True(t, rep.Legacy)
	assert.Equal(t, 0, rep.FromVersion)
	assert.Contains(t, rep.Applied, RuleModelRecords)
	assert.Contains(t, rep.Applied, RuleSelectedModel)
	assert.Contains(t, rep.Applied, RuleDefaultPrompt)
	assert.True(t, rep.Changed())

	current := Migrate(decode(t, `{"apis":[{"id":"a","models":["a"]}]}`))
	data, err := json.Marshal(current)
	require.NoError(t, err)
	_, rep = MigrateJSONWithReport(data)
	assert.False(t, rep.Legacy)
	assert.Empty(t, rep.Applied)
	assert.False(t, rep.Changed())
}

func TestStorageTypeModes(t *testing.T) {
	for _, st := range StorageTypes() {
		m, ok := st.Mode()
		require.True(t, ok)
		back, ok := m.StorageType()
		require.True(t, ok)
		assert.Equal(t, st, back)
	}

	st, ok := ParseStorageType("indexed-document")
	assert.True(t, ok)
	assert.Equal(t, StorageIndexed, st)

	_, ok = ParseStorageType("webSQL")
	assert.False(t, ok)
	_, ok = StorageType("webSQL").Mode()
	assert.False(t, ok)
}

func TestClone(t *testing.T) {
	s := Migrate(decode(t, `{"apis":[{"id":"a","models":["m"]}]}`))
	c := s.Clone()
	c.APIs[0].Models[0].Name = "changed"
	assert.Equal(t, "m", s.APIs[0].Models[0].Name)

	api, ok := s.SelectedAPI()
	require.True(t, ok)
	assert.Equal(t, "a", api.ID)
	_, ok = api.Model("m")
	assert.True(t, ok)
}

func TestMigrateKeepsUnknownKeys(t *testing.T) {
	got := Migrate(decode(t, `{"theme":"dark","apis":[{"id":"a","timeoutMs":30000,
		"models":[{"name":"m","contextWindow":128000}]}],
		"prompts":{"outline":"O"},"modelParameters":{"seed":7}}`))

	assert.JSONEq(t, `"dark"`, string(got.Extra["theme"]))
	assert.JSONEq(t, `30000`, string(got.APIs[0].Extra["timeoutMs"]))
	assert.JSONEq(t, `128000`, string(got.APIs[0].Models[0].Extra["contextWindow"]))
	assert.JSONEq(t, `"O"`, string(got.Prompts.Extra["outline"]))
	assert.JSONEq(t, `7`, string(got.ModelParameters.Extra["seed"]))

	data, err := json.Marshal(got)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "dark", m["theme"])
	assert.Equal(t, "O", m["prompts"].(map[string]any)["outline"])

	c := got.Clone()
	c.Extra["theme"] = json.RawMessage(`"light"`)
	assert.JSONEq(t, `"dark"`, string(got.Extra["theme"]))

	assert.Nil(t, Migrate(decode(t, `{}`)).Extra)
}

func TestMigrateNewerVersion(t *testing.T) {
	got, rep := MigrateWithReport(decode(t, `{"schemaVersion":5,"storageType":"indexedDB"}`))
	assert.True(t, rep.Newer())
	assert.Equal(t, 5, got.SchemaVersion)
	assert.Equal(t, StorageIndexed, got.StorageType)

	_, rep = MigrateWithReport(decode(t, `{"schemaVersion":1}`))
	assert.False(t, rep.Newer())
	assert.True(t, rep.Changed())
}

func TestMigrateRulesRunOnVersionedBlob(t *testing.T) {
	got, rep := MigrateWithReport(decode(t, `{"schemaVersion":2,"apis":[{"id":"a","models":["deep-think"]}]}`))
	assert.False(t, rep.Legacy)
	assert.Contains(t, rep.Applied, RuleModelRecords)
	assert.Equal(t, ModelConfig{Name: "deep-think", SupportsReasoning: true, MaxTokens: DefaultMaxTokens}, got.APIs[0].Models[0])
	assert.True(t, rep.Changed())
}
