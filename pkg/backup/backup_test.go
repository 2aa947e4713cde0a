package backup_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/novelkit/internal/store"
	"github.com/kittclouds/novelkit/internal/store/storetest"
	"github.com/kittclouds/novelkit/pkg/apperr"
	"github.com/kittclouds/novelkit/pkg/backup"
	"github.com/kittclouds/novelkit/pkg/kv"
	"github.com/kittclouds/novelkit/pkg/logger"
	"github.com/kittclouds/novelkit/pkg/settings"
)

var fixed = time.UnixMilli(1700000000000)

func openFacade(t *testing.T, storage settings.StorageType) *store.Facade {
	t.Helper()
	mem := kv.NewMemory()
	f, err := store.Open(context.Background(), store.Options{
		Settings: mem,
		Backends: map[store.Mode]store.BackendFactory{
			store.ModeFlatKV: func(ctx context.Context) (store.Backend, error) {
				return store.NewFlatStore(kv.NopCloser(mem)), nil
			},
			store.ModeIndexedDocument: func(ctx context.Context) (store.Backend, error) {
				return store.NewSQLiteStore(ctx)
			},
		},
		DefaultStorageType: storage,
		Logger:             logger.Discard(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func newCodec(f *store.Facade) *backup.Codec {
	return backup.New(f, backup.WithClock(func() time.Time { return fixed }), backup.WithLogger(logger.Discard()))
}

func TestRoundTripAcrossBackends(t *testing.T) {
	ctx := context.Background()
	pairs := []struct {
		name     string
		from, to settings.StorageType
	}{
		{"flat to flat", settings.StorageLocal, settings.StorageLocal},
		{"flat to indexed", settings.StorageLocal, settings.StorageIndexed},
		{"indexed to flat", settings.StorageIndexed, settings.StorageLocal},
	}
	for _, p := range pairs {
		t.Run(p.name, func(t *testing.T) {
			src := openFacade(t, p.from)
			want := storetest.SampleGraph()
			require.NoError(t, src.Restore(ctx, want))

			var buf bytes.Buffer
			require.NoError(t, newCodec(src).Export(ctx, &buf))

			dst := openFacade(t, p.to)
			sum, err := newCodec(dst).Import(ctx, bytes.NewReader(buf.Bytes()))
			require.NoError(t, err)
			assert.Equal(t, backup.Summary{Novels: 2, Characters: 3, Chapters: 3, Plots: 2}, sum)

			got, err := dst.Snapshot(ctx)
			require.NoError(t, err)
			storetest.AssertGraphEqual(t, want, got)

			// a second export of the restored graph carries the same arrays
			var again bytes.Buffer
			require.NoError(t, newCodec(dst).Export(ctx, &again))
			var a, b backup.Document
			require.NoError(t, json.Unmarshal(buf.Bytes(), &a))
			require.NoError(t, json.Unmarshal(again.Bytes(), &b))
			assert.ElementsMatch(t, a.Novels, b.Novels)
			assert.ElementsMatch(t, a.Characters, b.Characters)
			assert.ElementsMatch(t, a.Chapters, b.Chapters)
			assert.ElementsMatch(t, a.Plots, b.Plots)
		})
	}
}

func TestExportEmptyHasArrays(t *testing.T) {
	f := openFacade(t, settings.StorageLocal)
	var buf bytes.Buffer
	require.NoError(t, newCodec(f).Export(context.Background(), &buf))

	var raw map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	assert.Equal(t, backup.Version, raw["version"])
	assert.EqualValues(t, fixed.UnixMilli(), raw["timestamp"])
	for _, k := range []string{"novels", "characters", "chapters", "plots"} {
		assert.Equal(t, []any{}, raw[k], k)
	}
	assert.True(t, strings.HasPrefix(buf.String(), "{\n  \""), "two-space indent")
}

func TestImportValidation(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name string
		doc  string
		want []string
	}{
		{"missing chapters", `{"version":"1.0","novels":[],"characters":[]}`, []string{"chapters"}},
		{"missing all", `{"version":"1.0"}`, []string{"novels", "characters", "chapters"}},
		{"null novels", `{"novels":null,"characters":[],"chapters":[]}`, []string{"novels"}},
		{"not json", `not json`, nil},
		{"wrong shape", `{"novels":{},"characters":[],"chapters":[]}`, []string{"novels"}},
		{"settings document", `{"type":"settings","data":{}}`, []string{"settings"}},
		{"duplicate ids", `{"novels":[{"id":"n"},{"id":"n"}],"characters":[],"chapters":[]}`, []string{"twice"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := openFacade(t, settings.StorageLocal)
			require.NoError(t, f.Restore(ctx, storetest.SampleGraph()))

			_, err := newCodec(f).Import(ctx, strings.NewReader(tc.doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, apperr.ErrValidation)
			for _, w := range tc.want {
				assert.Contains(t, err.Error(), w)
			}

			// nothing was written
			novels, err := f.Novels(ctx)
			require.NoError(t, err)
			assert.Len(t, novels, 2)
		})
	}
}

func TestImportWithoutPlots(t *testing.T) {
	ctx := context.Background()
	f := openFacade(t, settings.StorageIndexed)
	require.NoError(t, f.Restore(ctx, storetest.SampleGraph()))

	doc := `{"version":"1.0","timestamp":1,
		"novels":[{"id":"n9","title":"Only","createdAt":1,"updatedAt":1}],
		"characters":[],"chapters":[]}`
	sum, err := newCodec(f).Import(ctx, strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Plots)

	plots, err := f.Plots(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, plots)
	novels, err := f.Novels(ctx)
	require.NoError(t, err)
	require.Len(t, novels, 1)
	assert.Equal(t, "n9", novels[0].ID)
}

func TestSettingsRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := openFacade(t, settings.StorageLocal)
	s := src.Settings()
	s.APIs = []settings.APIConfig{{
		ID: "a1", Name: "Main", BaseURL: "https://api.example", APIKey: "k",
		Models:        []settings.ModelConfig{{Name: "deep-think", SupportsReasoning: true, MaxTokens: 8192}},
		SelectedModel: "deep-think",
	}}
	s.SelectedAPIID = "a1"
	s.Prompts.Continuation = "keep going"
	require.NoError(t, src.SaveSettings(ctx, s))

	var buf bytes.Buffer
	require.NoError(t, newCodec(src).ExportSettings(ctx, &buf))

	var doc backup.SettingsDocument
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, backup.TypeSettings, doc.Type)
	assert.Equal(t, backup.Version, doc.Version)

	dst := openFacade(t, settings.StorageIndexed)
	local := dst.Settings()
	local.SelectedNovelID = "mine"
	local.ModelParameters.Temperature = 0.2
	require.NoError(t, dst.SaveSettings(ctx, local))
	require.NoError(t, dst.Restore(ctx, storetest.SampleGraph()))

	got, err := newCodec(dst).ImportSettings(ctx, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, s.APIs, got.APIs)
	assert.Equal(t, "a1", got.SelectedAPIID)
	assert.Equal(t, "keep going", got.Prompts.Continuation)
	assert.Equal(t, settings.StorageLocal, got.StorageType)
	assert.Equal(t, "mine", got.SelectedNovelID)
	assert.Equal(t, 0.2, got.ModelParameters.Temperature)
	assert.Equal(t, "mine", dst.Settings().SelectedNovelID)
	assert.Equal(t, got.APIs, dst.Settings().APIs)

	// entities were not touched by a settings import; the flat backend is
	// now active and empty, the indexed one still has its rows
	require.NoError(t, dst.SaveSettings(ctx, func() settings.AppSettings {
		s := dst.Settings()
		s.StorageType = settings.StorageIndexed
		return s
	}()))
	novels, err := dst.Novels(ctx)
	require.NoError(t, err)
	assert.Len(t, novels, 2)
}

func TestImportSettingsMigratesLegacyData(t *testing.T) {
	ctx := context.Background()
	f := openFacade(t, settings.StorageIndexed)
	doc := `{"version":"1.0","type":"settings","data":{
		"apis":[{"id":"a","name":"Old","baseUrl":"u","apiKey":"k","models":["gpt-4o","deepseek-reasoner"]}]}}`

	got, err := newCodec(f).ImportSettings(ctx, strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, got.APIs, 1)
	assert.Equal(t, []settings.ModelConfig{
		{Name: "gpt-4o", SupportsReasoning: false, MaxTokens: settings.DefaultMaxTokens},
		{Name: "deepseek-reasoner", SupportsReasoning: true, MaxTokens: settings.DefaultMaxTokens},
	}, got.APIs[0].Models)
	assert.Equal(t, "a", got.SelectedAPIID)
	assert.Equal(t, settings.DefaultPrompts(), got.Prompts)
	// no storageType in the document keeps the current one
	assert.Equal(t, settings.StorageIndexed, got.StorageType)
}

func TestImportSettingsRejectsDataBackup(t *testing.T) {
	f := openFacade(t, settings.StorageLocal)
	_, err := newCodec(f).ImportSettings(context.Background(),
		strings.NewReader(`{"version":"1.0","novels":[],"characters":[],"chapters":[]}`))
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = newCodec(f).ImportSettings(context.Background(), strings.NewReader(`{"type":"settings"}`))
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
