package manifest_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temirov/allcode/internal/manifest"
)

func writeFile(t *testing.T, root string, relativePath string, content string) {
	t.Helper()
	absolutePath := filepath.Join(root, filepath.FromSlash(relativePath))
	require.NoError(t, os.MkdirAll(filepath.Dir(absolutePath), 0o755))
	require.NoError(t, os.WriteFile(absolutePath, []byte(content), 0o644))
}

func newStore(t *testing.T, root string) *manifest.Store {
	t.Helper()
	store, storeError := manifest.NewStore(root, nil)
	require.NoError(t, storeError)
	return store
}

func readDocument(t *testing.T, root string) map[string]json.RawMessage {
	t.Helper()
	data, readError := os.ReadFile(filepath.Join(root, ".allcode"))
	require.NoError(t, readError)
	var document map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &document))
	return document
}

func TestLoadMissingManifestIsDefault(t *testing.T) {
	root := t.TempDir()
	loaded, repaired := newStore(t, root).Load()

	assert.False(t, repaired)
	assert.Empty(t, loaded.SelectedFiles)
	assert.Empty(t, loaded.ExpandedDirectories)
	assert.Equal(t, manifest.UnknownTokens, loaded.TotalTokens)
	assert.Equal(t, "", loaded.IntroText)
	_, statError := os.Stat(filepath.Join(root, ".allcode"))
	assert.True(t, os.IsNotExist(statError), "load must not create the manifest")
}

func TestLoadCorruptManifestIsDefault(t *testing.T) {
	testCases := map[string]string{
		"invalid json":   "{selected_files: [",
		"empty file":     "",
		"not an object":  "[1, 2, 3]",
		"binary garbage": "\x00\xff\xfe",
	}
	for testName, content := range testCases {
		t.Run(testName, func(t *testing.T) {
			root := t.TempDir()
			writeFile(t, root, ".allcode", content)
			loaded, repaired := newStore(t, root).Load()
			assert.False(t, repaired)
			assert.Empty(t, loaded.SelectedFiles)
			assert.Equal(t, manifest.UnknownTokens, loaded.TotalTokens)
		})
	}
}

func TestLoadToleratesByteOrderMarkAndBadFields(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.py", "a")
	writeFile(t, root, ".allcode", "\xEF\xBB\xBF"+`{"selected_files": ["a.py"], "expanded_dirs": "oops", "total_tokens": 12, "intro_text": 5}`)

	loaded, repaired := newStore(t, root).Load()
	assert.False(t, repaired)
	assert.Equal(t, []string{"a.py"}, loaded.SelectedFiles)
	assert.Empty(t, loaded.ExpandedDirectories)
	assert.Equal(t, 12, loaded.TotalTokens)
	assert.Equal(t, "", loaded.IntroText)
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "x.py", "x")
	writeFile(t, root, "pkg/y.py", "y")
	store := newStore(t, root)

	selected := []string{"pkg/y.py", "x.py"}
	expanded := []string{"docs", "pkg"}
	require.NoError(t, store.Save(selected, expanded, 42))

	loaded, repaired := newStore(t, root).Load()
	assert.False(t, repaired)
	assert.Equal(t, selected, loaded.SelectedFiles)
	assert.Equal(t, expanded, loaded.ExpandedDirectories)
	assert.Equal(t, 42, loaded.TotalTokens)
}

func TestSaveCanonicalizesPaths(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/a.go", "package src")
	store := newStore(t, root)

	require.NoError(t, store.Save([]string{"./src/a.go", "src//a.go"}, []string{"./src/", "."}, 42))
	assert.Equal(t, []string{"src/a.go"}, store.Current().SelectedFiles)

	loaded, repaired := newStore(t, root).Load()
	assert.False(t, repaired)
	assert.Equal(t, []string{"src/a.go"}, loaded.SelectedFiles)
	assert.Equal(t, []string{"src"}, loaded.ExpandedDirectories)
	assert.Equal(t, 42, loaded.TotalTokens)
}

func TestSaveKeyOrderAndSorting(t *testing.T) {
	root := t.TempDir()
	store := newStore(t, root)
	require.NoError(t, store.SaveTexts("intro", "outro"))
	require.NoError(t, store.Save([]string{"b.go", "a.go", "b.go"}, []string{"z", "a", "z"}, 7))

	data, readError := os.ReadFile(filepath.Join(root, ".allcode"))
	require.NoError(t, readError)
	text := string(data)
	keyPositions := []int{
		strings.Index(text, `"expanded_dirs"`),
		strings.Index(text, `"selected_files"`),
		strings.Index(text, `"total_tokens"`),
		strings.Index(text, `"intro_text"`),
		strings.Index(text, `"outro_text"`),
	}
	for index := 1; index < len(keyPositions); index++ {
		require.Greater(t, keyPositions[index], keyPositions[index-1], "keys out of order in %s", text)
	}

	document := readDocument(t, root)
	assert.JSONEq(t, `["a","z"]`, string(document["expanded_dirs"]))
	assert.JSONEq(t, `["b.go","a.go"]`, string(document["selected_files"]))
	assert.JSONEq(t, `"intro"`, string(document["intro_text"]))
	assert.JSONEq(t, `"outro"`, string(document["outro_text"]))
}

func TestLoadRepairsMissingSelection(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "x.py", "x")
	writeFile(t, root, "y.py", "y")
	store := newStore(t, root)
	require.NoError(t, store.Save([]string{"x.py", "y.py"}, []string{"src"}, 99))
	require.NoError(t, os.Remove(filepath.Join(root, "y.py")))

	loaded, repaired := newStore(t, root).Load()
	assert.True(t, repaired)
	assert.Equal(t, []string{"x.py"}, loaded.SelectedFiles)
	assert.Equal(t, manifest.UnknownTokens, loaded.TotalTokens)

	document := readDocument(t, root)
	assert.JSONEq(t, `["x.py"]`, string(document["selected_files"]))
	assert.JSONEq(t, `-1`, string(document["total_tokens"]))
	assert.JSONEq(t, `["src"]`, string(document["expanded_dirs"]))
}

func TestLoadDropsInvalidEntries(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "keep.go", "package keep")
	writeFile(t, root, "dir/file.go", "package dir")
	outside := filepath.Join(t.TempDir(), "outside.go")
	require.NoError(t, os.WriteFile(outside, []byte("package outside"), 0o644))

	entries, encodeError := json.Marshal([]string{"keep.go", outside, "../outside.go", "dir", "keep.go", "ghost.go"})
	require.NoError(t, encodeError)
	writeFile(t, root, ".allcode", `{"selected_files": `+string(entries)+`, "total_tokens": 3}`)

	loaded, repaired := newStore(t, root).Load()
	assert.True(t, repaired)
	assert.Equal(t, []string{"keep.go"}, loaded.SelectedFiles)
	assert.Equal(t, manifest.UnknownTokens, loaded.TotalTokens)
}

func TestLoadIsIdempotent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a")
	writeFile(t, root, ".allcode", `{"selected_files": ["a.go", "gone.go"], "total_tokens": 10, "intro_text": "hello"}`)

	first, firstRepaired := newStore(t, root).Load()
	second, secondRepaired := newStore(t, root).Load()
	third, thirdRepaired := newStore(t, root).Load()

	assert.True(t, firstRepaired)
	assert.False(t, secondRepaired)
	assert.False(t, thirdRepaired)
	assert.Equal(t, first, second)
	assert.Equal(t, second, third)
	assert.Equal(t, "hello", second.IntroText)
}

func TestSaveTextsPreservesLoadedState(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a")
	writeFile(t, root, ".allcode", `{"expanded_dirs": ["pkg"], "selected_files": ["a.go"], "total_tokens": 8}`)
	store := newStore(t, root)
	store.Load()

	require.NoError(t, store.SaveTexts("Intro", "Outro"))

	loaded, repaired := newStore(t, root).Load()
	assert.False(t, repaired)
	assert.Equal(t, []string{"a.go"}, loaded.SelectedFiles)
	assert.Equal(t, []string{"pkg"}, loaded.ExpandedDirectories)
	assert.Equal(t, 8, loaded.TotalTokens)
	assert.Equal(t, "Intro", loaded.IntroText)
	assert.Equal(t, "Outro", loaded.OutroText)
}

func TestSaveCarriesTexts(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a")
	writeFile(t, root, ".allcode", `{"selected_files": [], "intro_text": "keep me"}`)
	store := newStore(t, root)
	store.Load()

	require.NoError(t, store.Save([]string{"a.go"}, nil, 0))

	loaded, _ := newStore(t, root).Load()
	assert.Equal(t, "keep me", loaded.IntroText)
	assert.Equal(t, 0, loaded.TotalTokens)
	assert.Empty(t, loaded.ExpandedDirectories)
}

func TestLoadStrict(t *testing.T) {
	root := t.TempDir()
	store := newStore(t, root)

	_, missingError := store.LoadStrict()
	assert.True(t, errors.Is(missingError, manifest.ErrManifestMissing))

	writeFile(t, root, ".allcode", "  \n")
	_, emptyError := store.LoadStrict()
	assert.True(t, errors.Is(emptyError, manifest.ErrManifestEmpty))

	writeFile(t, root, ".allcode", `{"selected_files": "a.go"}`)
	_, corruptError := store.LoadStrict()
	assert.True(t, errors.Is(corruptError, manifest.ErrManifestCorrupt))

	writeFile(t, root, ".allcode", `{"selected_files": ["b.go", "a.go"], "total_tokens": 4}`)
	loaded, loadError := store.LoadStrict()
	require.NoError(t, loadError)
	assert.Equal(t, []string{"b.go", "a.go"}, loaded.SelectedFiles)
	assert.Equal(t, 4, loaded.TotalTokens)
}

func TestSaveLeavesNoTemporaryFiles(t *testing.T) {
	root := t.TempDir()
	store := newStore(t, root)
	require.NoError(t, store.Save(nil, nil, 0))

	entries, readError := os.ReadDir(root)
	require.NoError(t, readError)
	require.Len(t, entries, 1)
	assert.Equal(t, ".allcode", entries[0].Name())
}
