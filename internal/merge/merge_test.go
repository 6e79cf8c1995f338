package merge_test

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/temirov/allcode/internal/manifest"
	"github.com/temirov/allcode/internal/merge"
)

func writeFile(testingInstance *testing.T, root string, relativePath string, content string) {
	testingInstance.Helper()
	absolutePath := filepath.Join(root, filepath.FromSlash(relativePath))
	if mkdirError := os.MkdirAll(filepath.Dir(absolutePath), 0o755); mkdirError != nil {
		testingInstance.Fatalf("mkdir: %v", mkdirError)
	}
	if writeError := os.WriteFile(absolutePath, []byte(content), 0o644); writeError != nil {
		testingInstance.Fatalf("write %s: %v", relativePath, writeError)
	}
}

func TestRenderEmptySelection(testingInstance *testing.T) {
	missingRoot := filepath.Join(testingInstance.TempDir(), "does-not-exist")
	result, renderError := merge.Render(missingRoot, nil, merge.Options{Mode: merge.ModeWrapped, IntroText: "intro"})
	if renderError != nil {
		testingInstance.Fatalf("Render error: %v", renderError)
	}
	if !result.Empty || result.Text != "" || len(result.Included) != 0 || len(result.Skipped) != 0 {
		testingInstance.Fatalf("expected an empty result, got %+v", result)
	}
}

func TestRenderMergedMode(testingInstance *testing.T) {
	root := testingInstance.TempDir()
	writeFile(testingInstance, root, "b.py", "print('b')\n")
	writeFile(testingInstance, root, "pkg/a.go", "package pkg")

	result, renderError := merge.Render(root, []string{"pkg/a.go", "missing.py", "b.py"}, merge.Options{Mode: merge.ModeMerged, IntroText: "ignored in merged mode"})
	if renderError != nil {
		testingInstance.Fatalf("Render error: %v", renderError)
	}
	expected := merge.Introduction + merge.BlockSeparator +
		"File: pkg/a.go\n```go\npackage pkg\n```" + merge.BlockSeparator +
		"File: b.py\n```py\nprint('b')\n```"
	if result.Text != expected {
		testingInstance.Fatalf("unexpected text:\n%s", result.Text)
	}
	if !reflect.DeepEqual(result.Skipped, []string{"missing.py"}) {
		testingInstance.Fatalf("expected missing.py to be skipped, got %v", result.Skipped)
	}
	if len(result.Included) != 2 || result.Included[0].RelativePath != "pkg/a.go" {
		testingInstance.Fatalf("unexpected included blocks: %+v", result.Included)
	}
}

func TestRenderWrappedModeIntroOnly(testingInstance *testing.T) {
	root := testingInstance.TempDir()
	writeFile(testingInstance, root, "x.py", "x = 1\n")

	result, renderError := merge.Render(root, []string{"x.py"}, merge.Options{Mode: merge.ModeWrapped, IntroText: "  Please review.  ", OutroText: "   "})
	if renderError != nil {
		testingInstance.Fatalf("Render error: %v", renderError)
	}
	expected := "Please review." + merge.BlockSeparator + merge.Introduction + merge.BlockSeparator + "File: x.py\n```py\nx = 1\n```"
	if result.Text != expected {
		testingInstance.Fatalf("unexpected text:\n%q", result.Text)
	}
	if strings.HasSuffix(result.Text, merge.BlockSeparator) {
		testingInstance.Fatalf("expected no trailing separator")
	}
}

func TestRenderWrappedModeBothTexts(testingInstance *testing.T) {
	root := testingInstance.TempDir()
	writeFile(testingInstance, root, "x.py", "x = 1\n")

	result, renderError := merge.Render(root, []string{"x.py"}, merge.Options{Mode: merge.ModeWrapped, IntroText: "Start", OutroText: "End"})
	if renderError != nil {
		testingInstance.Fatalf("Render error: %v", renderError)
	}
	parts := strings.Split(result.Text, merge.BlockSeparator)
	if parts[0] != "Start" || parts[len(parts)-1] != "End" {
		testingInstance.Fatalf("expected intro and outro framing, got %q", result.Text)
	}
}

func TestRenderIsDeterministic(testingInstance *testing.T) {
	root := testingInstance.TempDir()
	writeFile(testingInstance, root, "a.md", "# title\n")
	writeFile(testingInstance, root, "b.md", "body")
	selection := []string{"b.md", "a.md"}

	first, firstError := merge.Render(root, selection, merge.Options{Mode: merge.ModeMerged})
	second, secondError := merge.Render(root, selection, merge.Options{Mode: merge.ModeMerged})
	if firstError != nil || secondError != nil {
		testingInstance.Fatalf("Render errors: %v, %v", firstError, secondError)
	}
	if first.Text != second.Text {
		testingInstance.Fatalf("expected identical output")
	}
}

func TestRenderSkipsEscapesAndDirectories(testingInstance *testing.T) {
	root := testingInstance.TempDir()
	writeFile(testingInstance, root, "dir/inner.txt", "inner")
	outside := filepath.Join(testingInstance.TempDir(), "outside.txt")
	if writeError := os.WriteFile(outside, []byte("secret"), 0o644); writeError != nil {
		testingInstance.Fatalf("write outside: %v", writeError)
	}

	result, renderError := merge.Render(root, []string{"dir", "../outside.txt", outside}, merge.Options{})
	if renderError != nil {
		testingInstance.Fatalf("Render error: %v", renderError)
	}
	if !result.Empty || len(result.Skipped) != 3 {
		testingInstance.Fatalf("expected all entries skipped, got %+v", result)
	}
}

func TestRenderSkipsBinaryFiles(testingInstance *testing.T) {
	root := testingInstance.TempDir()
	writeFile(testingInstance, root, "image.txt", "PNG\x00\x01\x02")
	writeFile(testingInstance, root, "main.go", "package main\n")

	result, renderError := merge.Render(root, []string{"image.txt", "main.go"}, merge.Options{})
	if renderError != nil {
		testingInstance.Fatalf("Render error: %v", renderError)
	}
	if !reflect.DeepEqual(result.Skipped, []string{"image.txt"}) {
		testingInstance.Fatalf("expected image.txt to be skipped, got %v", result.Skipped)
	}
	if len(result.Included) != 1 || result.Included[0].RelativePath != "main.go" {
		testingInstance.Fatalf("expected only main.go to be included, got %+v", result.Included)
	}
	if strings.Contains(result.Text, "image.txt") {
		testingInstance.Fatalf("binary file leaked into merge: %q", result.Text)
	}
	if _, loadError := merge.LoadBlock(root, "image.txt"); !errors.Is(loadError, merge.ErrBinaryFile) {
		testingInstance.Fatalf("expected ErrBinaryFile, got %v", loadError)
	}
}

func TestRenderDecodesLeniently(testingInstance *testing.T) {
	root := testingInstance.TempDir()
	writeFile(testingInstance, root, "latin.txt", "caf\xe9")

	result, renderError := merge.Render(root, []string{"latin.txt"}, merge.Options{})
	if renderError != nil {
		testingInstance.Fatalf("Render error: %v", renderError)
	}
	if !strings.Contains(result.Text, "caf�\n") {
		testingInstance.Fatalf("expected replacement character, got %q", result.Text)
	}
}

func TestFormatBlockFence(testingInstance *testing.T) {
	testCases := []struct {
		testName     string
		relativePath string
		content      string
		expected     string
	}{
		{testName: "plain", relativePath: "a.go", content: "package a\n", expected: "File: a.go\n```go\npackage a\n```"},
		{testName: "no trailing newline", relativePath: "a.go", content: "package a", expected: "File: a.go\n```go\npackage a\n```"},
		{testName: "empty content", relativePath: "empty.txt", content: "", expected: "File: empty.txt\n```txt\n```"},
		{testName: "no extension", relativePath: "Makefile", content: "all:\n", expected: "File: Makefile\n```\nall:\n```"},
		{testName: "nested fence", relativePath: "README.md", content: "```sh\nls\n```\n", expected: "File: README.md\n````md\n```sh\nls\n```\n````"},
	}
	for _, testCase := range testCases {
		testingInstance.Run(testCase.testName, func(t *testing.T) {
			if actual := merge.FormatBlock(testCase.relativePath, testCase.content); actual != testCase.expected {
				t.Fatalf("expected %q, got %q", testCase.expected, actual)
			}
		})
	}
}

func TestParseMode(testingInstance *testing.T) {
	if mode, parseError := merge.ParseMode("Wrapped"); parseError != nil || mode != merge.ModeWrapped {
		testingInstance.Fatalf("expected wrapped, got %q, %v", mode, parseError)
	}
	if mode, parseError := merge.ParseMode(""); parseError != nil || mode != merge.ModeMerged {
		testingInstance.Fatalf("expected merged default, got %q, %v", mode, parseError)
	}
	if _, parseError := merge.ParseMode("zipped"); parseError == nil {
		testingInstance.Fatalf("expected error for unknown mode")
	}
}

func TestRenderFromManifestErrors(testingInstance *testing.T) {
	root := testingInstance.TempDir()
	store, storeError := manifest.NewStore(root, nil)
	if storeError != nil {
		testingInstance.Fatalf("NewStore error: %v", storeError)
	}

	_, missingError := merge.RenderFromManifest(store, merge.ModeMerged)
	if !errors.Is(missingError, merge.ErrManifestUnavailable) || !errors.Is(missingError, manifest.ErrManifestMissing) {
		testingInstance.Fatalf("expected missing manifest error, got %v", missingError)
	}

	writeFile(testingInstance, root, ".allcode", "{not json")
	_, corruptError := merge.RenderFromManifest(store, merge.ModeMerged)
	if !errors.Is(corruptError, merge.ErrManifestUnavailable) || !errors.Is(corruptError, manifest.ErrManifestCorrupt) {
		testingInstance.Fatalf("expected corrupt manifest error, got %v", corruptError)
	}

	writeFile(testingInstance, root, ".allcode", `{"selected_files": []}`)
	_, emptyError := merge.RenderFromManifest(store, merge.ModeMerged)
	if !errors.Is(emptyError, merge.ErrNothingToMerge) {
		testingInstance.Fatalf("expected nothing to merge, got %v", emptyError)
	}
}

func TestRenderFromManifestWrapped(testingInstance *testing.T) {
	root := testingInstance.TempDir()
	writeFile(testingInstance, root, "main.go", "package main\n")
	writeFile(testingInstance, root, ".allcode", `{"expanded_dirs": [], "selected_files": ["main.go"], "total_tokens": 5, "intro_text": "Hi", "outro_text": "Bye"}`)
	store, storeError := manifest.NewStore(root, nil)
	if storeError != nil {
		testingInstance.Fatalf("NewStore error: %v", storeError)
	}

	result, renderError := merge.RenderFromManifest(store, merge.ModeWrapped)
	if renderError != nil {
		testingInstance.Fatalf("RenderFromManifest error: %v", renderError)
	}
	expected := "Hi" + merge.BlockSeparator + merge.Introduction + merge.BlockSeparator + "File: main.go\n```go\npackage main\n```" + merge.BlockSeparator + "Bye"
	if result.Text != expected {
		testingInstance.Fatalf("unexpected text:\n%q", result.Text)
	}
}

func TestWriteMarker(testingInstance *testing.T) {
	root := testingInstance.TempDir()
	markerPath, writeError := merge.WriteMarker(root, "merged")
	if writeError != nil {
		testingInstance.Fatalf("WriteMarker error: %v", writeError)
	}
	if filepath.Base(markerPath) != "allcode.txt" {
		testingInstance.Fatalf("unexpected marker path %s", markerPath)
	}
	content, readError := os.ReadFile(markerPath)
	if readError != nil || string(content) != "merged" {
		testingInstance.Fatalf("unexpected marker content %q, %v", content, readError)
	}
}
