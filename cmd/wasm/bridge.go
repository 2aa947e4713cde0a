//go:build js && wasm

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"syscall/js"

	"github.com/kittclouds/novelkit/internal/store"
	"github.com/kittclouds/novelkit/pkg/apperr"
	"github.com/kittclouds/novelkit/pkg/backup"
	"github.com/kittclouds/novelkit/pkg/mentions"
	"github.com/kittclouds/novelkit/pkg/metrics"
	"github.com/kittclouds/novelkit/pkg/settings"
)

// envelope is the JSON every exported call resolves with.
type envelope struct {
	OK    bool      `json:"ok"`
	Data  any       `json:"data,omitempty"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code    apperr.Code `json:"code"`
	Message string      `json:"message"`
}

type handler func(ctx context.Context, args []js.Value) (any, error)

func encode(data any, err error) string {
	env := envelope{OK: err == nil, Data: data}
	if err != nil {
		env.Data = nil
		env.Error = &apiError{Code: apperr.CodeOf(err), Message: err.Error()}
	}
	out, mErr := json.Marshal(env)
	if mErr != nil {
		out, _ = json.Marshal(envelope{Error: &apiError{Code: apperr.CodeUnknown, Message: mErr.Error()}})
	}
	return string(out)
}

// makePromise creates a JS Promise and returns it along with resolve/reject functions.
func makePromise() (promise js.Value, resolve js.Value, reject js.Value) {
	var resolveFn, rejectFn js.Value
	h := js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		resolveFn = args[0]
		rejectFn = args[1]
		return nil
	})
	defer h.Release()

	promise = js.Global().Get("Promise").New(h)
	return promise, resolveFn, rejectFn
}

// async runs h on its own goroutine; storage calls block and must not run
// on the JS event loop. The promise always resolves, with the envelope.
func async(name string, h handler) js.Func {
	return js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		promise, resolve, _ := makePromise()
		go func() {
			var (
				data any
				err  error
			)
			func() {
				defer func() {
					if r := recover(); r != nil {
						err = apperr.New(apperr.CodeUnknown, fmt.Sprintf("%s: panic: %v", name, r))
					}
				}()
				if facade == nil {
					err = apperr.BackendUnavailable("facade", fmt.Errorf("storage failed to open"))
					return
				}
				data, err = h(context.Background(), args)
			}()
			resolve.Invoke(encode(data, err))
		}()
		return promise
	})
}

func argString(args []js.Value, i int) string {
	if i >= len(args) || args[i].IsUndefined() || args[i].IsNull() {
		return ""
	}
	return args[i].String()
}

func argJSON[T any](args []js.Value, i int, what string) (T, error) {
	var v T
	s := argString(args, i)
	if s == "" {
		return v, apperr.Validation("%s is required", what)
	}
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return v, apperr.Validation("invalid %s json: %v", what, err)
	}
	return v, nil
}

func idArg(args []js.Value, what string) (string, error) {
	id := argString(args, 0)
	if id == "" {
		return "", apperr.Validation("%s is required", what)
	}
	return id, nil
}

type deleted struct {
	Deleted string `json:"deleted"`
}

func exports() map[string]interface{} {
	return map[string]interface{}{
		"version": js.FuncOf(func(this js.Value, args []js.Value) interface{} { return Version }),

		// Settings
		"getSettings":    async("getSettings", getSettings),
		"saveSettings":   async("saveSettings", saveSettings),
		"setStorageType": async("setStorageType", setStorageType),
		"exportSettings": async("exportSettings", exportSettings),
		"importSettings": async("importSettings", importSettings),

		// Novels
		"novels":      async("novels", func(ctx context.Context, _ []js.Value) (any, error) { return facade.Novels(ctx) }),
		"novel":       async("novel", getNovel),
		"saveNovels":  async("saveNovels", saveNovels),
		"createNovel": async("createNovel", createNovel),
		"updateNovel": async("updateNovel", updateNovel),
		"deleteNovel": async("deleteNovel", deleteNovel),

		// Characters
		"characters":      async("characters", listCharacters),
		"createCharacter": async("createCharacter", createCharacter),
		"updateCharacter": async("updateCharacter", updateCharacter),
		"deleteCharacter": async("deleteCharacter", deleteCharacter),

		// Chapters
		"chapters":        async("chapters", listChapters),
		"chapter":         async("chapter", getChapter),
		"saveChapters":    async("saveChapters", saveChapters),
		"createChapter":   async("createChapter", createChapter),
		"updateChapter":   async("updateChapter", updateChapter),
		"deleteChapter":   async("deleteChapter", deleteChapter),
		"moveChapterUp":   async("moveChapterUp", moveChapterUp),
		"moveChapterDown": async("moveChapterDown", moveChapterDown),

		// Plots
		"plots":      async("plots", listPlots),
		"createPlot": async("createPlot", createPlot),
		"updatePlot": async("updatePlot", updatePlot),
		"deletePlot": async("deletePlot", deletePlot),

		// Backup
		"exportData": async("exportData", exportData),
		"importData": async("importData", importData),
		"clearData": async("clearData", func(ctx context.Context, _ []js.Value) (any, error) {
			return nil, facade.Clear(ctx)
		}),

		// Mentions
		"mentions": async("mentions", novelMentions),

		// Diagnostics
		"metrics": async("metrics", metricsText),
	}
}

// =============================================================================
// Settings
// =============================================================================

func getSettings(ctx context.Context, _ []js.Value) (any, error) {
	return facade.Settings(), nil
}

// saveSettings: [settingsJSON string]. The blob is migrated before saving,
// so older shapes are accepted.
func saveSettings(ctx context.Context, args []js.Value) (any, error) {
	s := argString(args, 0)
	if s == "" {
		return nil, apperr.Validation("settings json is required")
	}
	migrated := settings.MigrateJSON([]byte(s))
	if err := facade.SaveSettings(ctx, migrated); err != nil {
		return nil, err
	}
	return facade.Settings(), nil
}

// setStorageType: [storageType string]
func setStorageType(ctx context.Context, args []js.Value) (any, error) {
	st, ok := settings.ParseStorageType(argString(args, 0))
	if !ok {
		return nil, apperr.Validation("unknown storage type %q", argString(args, 0))
	}
	s := facade.Settings()
	s.StorageType = st
	if err := facade.SaveSettings(ctx, s); err != nil {
		return nil, err
	}
	return map[string]any{"storageType": st, "mode": facade.Mode()}, nil
}

func exportSettings(ctx context.Context, _ []js.Value) (any, error) {
	var buf bytes.Buffer
	if err := backup.New(facade).ExportSettings(ctx, &buf); err != nil {
		return nil, err
	}
	return json.RawMessage(buf.Bytes()), nil
}

// importSettings: [documentJSON string]
func importSettings(ctx context.Context, args []js.Value) (any, error) {
	return backup.New(facade).ImportSettings(ctx, strings.NewReader(argString(args, 0)))
}

// =============================================================================
// Novels
// =============================================================================

func getNovel(ctx context.Context, args []js.Value) (any, error) {
	id, err := idArg(args, "novel id")
	if err != nil {
		return nil, err
	}
	return facade.Novel(ctx, id)
}

// saveNovels: [novelsJSON string]; replaces the whole novel collection.
func saveNovels(ctx context.Context, args []js.Value) (any, error) {
	novels, err := argJSON[[]store.Novel](args, 0, "novels")
	if err != nil {
		return nil, err
	}
	return nil, facade.SaveNovels(ctx, novels)
}

// createNovel: [novelJSON string]
func createNovel(ctx context.Context, args []js.Value) (any, error) {
	n, err := argJSON[store.Novel](args, 0, "novel")
	if err != nil {
		return nil, err
	}
	return facade.CreateNovel(ctx, n)
}

// updateNovel: [id string, patchJSON string]
func updateNovel(ctx context.Context, args []js.Value) (any, error) {
	id, err := idArg(args, "novel id")
	if err != nil {
		return nil, err
	}
	patch, err := argJSON[store.NovelPatch](args, 1, "patch")
	if err != nil {
		return nil, err
	}
	return facade.UpdateNovel(ctx, id, patch)
}

func deleteNovel(ctx context.Context, args []js.Value) (any, error) {
	id, err := idArg(args, "novel id")
	if err != nil {
		return nil, err
	}
	return deleted{id}, facade.DeleteNovel(ctx, id)
}

// =============================================================================
// Characters
// =============================================================================

// characters: [novelId string (optional)]
func listCharacters(ctx context.Context, args []js.Value) (any, error) {
	return facade.Characters(ctx, argString(args, 0))
}

func createCharacter(ctx context.Context, args []js.Value) (any, error) {
	c, err := argJSON[store.Character](args, 0, "character")
	if err != nil {
		return nil, err
	}
	return facade.CreateCharacter(ctx, c)
}

func updateCharacter(ctx context.Context, args []js.Value) (any, error) {
	id, err := idArg(args, "character id")
	if err != nil {
		return nil, err
	}
	patch, err := argJSON[store.CharacterPatch](args, 1, "patch")
	if err != nil {
		return nil, err
	}
	return facade.UpdateCharacter(ctx, id, patch)
}

func deleteCharacter(ctx context.Context, args []js.Value) (any, error) {
	id, err := idArg(args, "character id")
	if err != nil {
		return nil, err
	}
	return deleted{id}, facade.DeleteCharacter(ctx, id)
}

// =============================================================================
// Chapters
// =============================================================================

// chapters: [novelId string (optional)]
func listChapters(ctx context.Context, args []js.Value) (any, error) {
	return facade.Chapters(ctx, argString(args, 0))
}

func getChapter(ctx context.Context, args []js.Value) (any, error) {
	id, err := idArg(args, "chapter id")
	if err != nil {
		return nil, err
	}
	return facade.Chapter(ctx, id)
}

// saveChapters: [chaptersJSON string]; upserts by id.
func saveChapters(ctx context.Context, args []js.Value) (any, error) {
	chs, err := argJSON[[]store.Chapter](args, 0, "chapters")
	if err != nil {
		return nil, err
	}
	return nil, facade.SaveChapters(ctx, chs)
}

func createChapter(ctx context.Context, args []js.Value) (any, error) {
	c, err := argJSON[store.Chapter](args, 0, "chapter")
	if err != nil {
		return nil, err
	}
	return facade.CreateChapter(ctx, c)
}

func updateChapter(ctx context.Context, args []js.Value) (any, error) {
	id, err := idArg(args, "chapter id")
	if err != nil {
		return nil, err
	}
	patch, err := argJSON[store.ChapterPatch](args, 1, "patch")
	if err != nil {
		return nil, err
	}
	return facade.UpdateChapter(ctx, id, patch)
}

func deleteChapter(ctx context.Context, args []js.Value) (any, error) {
	id, err := idArg(args, "chapter id")
	if err != nil {
		return nil, err
	}
	return deleted{id}, facade.DeleteChapter(ctx, id)
}

func moveChapterUp(ctx context.Context, args []js.Value) (any, error) {
	id, err := idArg(args, "chapter id")
	if err != nil {
		return nil, err
	}
	return facade.MoveChapterUp(ctx, id)
}

func moveChapterDown(ctx context.Context, args []js.Value) (any, error) {
	id, err := idArg(args, "chapter id")
	if err != nil {
		return nil, err
	}
	return facade.MoveChapterDown(ctx, id)
}

// =============================================================================
// Plots
// =============================================================================

func listPlots(ctx context.Context, args []js.Value) (any, error) {
	return facade.Plots(ctx, argString(args, 0))
}

func createPlot(ctx context.Context, args []js.Value) (any, error) {
	p, err := argJSON[store.Plot](args, 0, "plot")
	if err != nil {
		return nil, err
	}
	return facade.CreatePlot(ctx, p)
}

func updatePlot(ctx context.Context, args []js.Value) (any, error) {
	id, err := idArg(args, "plot id")
	if err != nil {
		return nil, err
	}
	patch, err := argJSON[store.PlotPatch](args, 1, "patch")
	if err != nil {
		return nil, err
	}
	return facade.UpdatePlot(ctx, id, patch)
}

func deletePlot(ctx context.Context, args []js.Value) (any, error) {
	id, err := idArg(args, "plot id")
	if err != nil {
		return nil, err
	}
	return deleted{id}, facade.DeletePlot(ctx, id)
}

// =============================================================================
// Backup & mentions
// =============================================================================

func exportData(ctx context.Context, _ []js.Value) (any, error) {
	var buf bytes.Buffer
	if err := backup.New(facade).Export(ctx, &buf); err != nil {
		return nil, err
	}
	return json.RawMessage(buf.Bytes()), nil
}

// importData: [documentJSON string]; replaces every entity.
func importData(ctx context.Context, args []js.Value) (any, error) {
	return backup.New(facade).Import(ctx, strings.NewReader(argString(args, 0)))
}

// mentions: [novelId string, discoverThreshold? number]. With a threshold
// the result also carries unknown capitalized names.
func novelMentions(ctx context.Context, args []js.Value) (any, error) {
	id, err := idArg(args, "novel id")
	if err != nil {
		return nil, err
	}
	chars, err := facade.Characters(ctx, id)
	if err != nil {
		return nil, err
	}
	chs, err := facade.Chapters(ctx, id)
	if err != nil {
		return nil, err
	}
	idx, err := mentions.Build(chars)
	if err != nil {
		return nil, err
	}
	if len(args) < 2 || args[1].Type() != js.TypeNumber || args[1].Int() < 1 {
		return idx.Chapters(chs), nil
	}
	return struct {
		Chapters   []mentions.ChapterMentions `json:"chapters"`
		Candidates []mentions.Candidate       `json:"candidates"`
	}{idx.Chapters(chs), idx.Discover(chs, args[1].Int())}, nil
}

// metrics: returns the Prometheus text exposition of this page's counters.
func metricsText(ctx context.Context, _ []js.Value) (any, error) {
	var buf bytes.Buffer
	if err := metrics.Dump(&buf); err != nil {
		return nil, err
	}
	return buf.String(), nil
}
