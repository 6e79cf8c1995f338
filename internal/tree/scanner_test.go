package tree_test

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/temirov/allcode/internal/tree"
)

func writeProjectFiles(testingInstance *testing.T, root string, files map[string]string) {
	testingInstance.Helper()
	for relativePath, content := range files {
		absolutePath := filepath.Join(root, filepath.FromSlash(relativePath))
		if mkdirError := os.MkdirAll(filepath.Dir(absolutePath), 0o755); mkdirError != nil {
			testingInstance.Fatalf("mkdir %s: %v", relativePath, mkdirError)
		}
		if writeError := os.WriteFile(absolutePath, []byte(content), 0o644); writeError != nil {
			testingInstance.Fatalf("write %s: %v", relativePath, writeError)
		}
	}
}

func assertDirectoriesNonEmpty(testingInstance *testing.T, nodes []*tree.Node) {
	testingInstance.Helper()
	for _, node := range nodes {
		if !node.IsDirectory() {
			continue
		}
		if len(node.Children) == 0 {
			testingInstance.Fatalf("directory %s has no children", node.RelativePath)
		}
		if len(tree.CollectFiles(node.Children)) == 0 {
			testingInstance.Fatalf("directory %s has no file below it", node.RelativePath)
		}
		assertDirectoriesNonEmpty(testingInstance, node.Children)
	}
}

func TestBuildTreeFiltersByExtension(testingInstance *testing.T) {
	root := testingInstance.TempDir()
	writeProjectFiles(testingInstance, root, map[string]string{"a.py": "print(1)", "b.txt": "notes"})

	nodes, buildError := tree.BuildTree(root, []string{".py"}, nil)
	if buildError != nil {
		testingInstance.Fatalf("BuildTree error: %v", buildError)
	}
	if len(nodes) != 1 || nodes[0].Name != "a.py" || nodes[0].Type != tree.NodeTypeFile || nodes[0].RelativePath != "a.py" {
		testingInstance.Fatalf("expected only a.py, got %+v", nodes)
	}
}

func TestBuildTreeDirectoryIgnorePrunesBranch(testingInstance *testing.T) {
	root := testingInstance.TempDir()
	writeProjectFiles(testingInstance, root, map[string]string{"build/out.py": "x = 1", "src/app.py": "y = 2"})

	nodes, buildError := tree.BuildTree(root, []string{".py"}, []string{"build/"})
	if buildError != nil {
		testingInstance.Fatalf("BuildTree error: %v", buildError)
	}
	if directories := tree.DirectoryPaths(nodes); !reflect.DeepEqual(directories, []string{"src"}) {
		testingInstance.Fatalf("expected build to be absent, got %v", directories)
	}
	if files := tree.CollectFiles(nodes); !reflect.DeepEqual(files, []string{"src/app.py"}) {
		testingInstance.Fatalf("expected only src/app.py, got %v", files)
	}
}

func TestBuildTreePrunesEmptyDirectories(testingInstance *testing.T) {
	root := testingInstance.TempDir()
	writeProjectFiles(testingInstance, root, map[string]string{
		"docs/readme.md":         "# docs",
		"deep/er/still/none.txt": "n",
		"deep/er/still/yes/a.go": "package yes",
		"assets/logo.svg":        "<svg/>",
		"pkg/util/strings.go":    "package util",
	})
	if mkdirError := os.MkdirAll(filepath.Join(root, "empty", "nested"), 0o755); mkdirError != nil {
		testingInstance.Fatalf("mkdir: %v", mkdirError)
	}

	nodes, buildError := tree.BuildTree(root, []string{"go"}, nil)
	if buildError != nil {
		testingInstance.Fatalf("BuildTree error: %v", buildError)
	}
	assertDirectoriesNonEmpty(testingInstance, nodes)
	expectedDirectories := []string{"deep", "deep/er", "deep/er/still", "deep/er/still/yes", "pkg", "pkg/util"}
	if actual := tree.DirectoryPaths(nodes); !reflect.DeepEqual(actual, expectedDirectories) {
		testingInstance.Fatalf("expected directories %v, got %v", expectedDirectories, actual)
	}
}

func TestBuildTreeOrdering(testingInstance *testing.T) {
	root := testingInstance.TempDir()
	writeProjectFiles(testingInstance, root, map[string]string{
		"b.go":       "package b",
		"A.go":       "package a",
		"zeta/z.go":  "package zeta",
		"Alpha/a.go": "package alpha",
		"c.GO":       "package c",
	})

	nodes, buildError := tree.BuildTree(root, []string{".go"}, nil)
	if buildError != nil {
		testingInstance.Fatalf("BuildTree error: %v", buildError)
	}
	var names []string
	for _, node := range nodes {
		names = append(names, node.Name)
	}
	expectedNames := []string{"Alpha", "zeta", "A.go", "b.go", "c.GO"}
	if !reflect.DeepEqual(names, expectedNames) {
		testingInstance.Fatalf("expected order %v, got %v", expectedNames, names)
	}
}

func TestBuildTreeExcludesProjectFiles(testingInstance *testing.T) {
	root := testingInstance.TempDir()
	writeProjectFiles(testingInstance, root, map[string]string{
		"allcode.txt": "merged output",
		".allcode":    "{}",
		"notes.txt":   "keep",
	})

	nodes, buildError := tree.BuildTree(root, []string{".txt", ".allcode"}, nil)
	if buildError != nil {
		testingInstance.Fatalf("BuildTree error: %v", buildError)
	}
	if files := tree.CollectFiles(nodes); !reflect.DeepEqual(files, []string{"notes.txt"}) {
		testingInstance.Fatalf("expected only notes.txt, got %v", files)
	}
}

func TestBuildTreeUnreadableDirectoryIsEmpty(testingInstance *testing.T) {
	if os.Geteuid() == 0 {
		testingInstance.Skip("permission checks do not apply to root")
	}
	root := testingInstance.TempDir()
	writeProjectFiles(testingInstance, root, map[string]string{"locked/secret.go": "package locked", "open.go": "package open"})
	lockedDirectory := filepath.Join(root, "locked")
	if chmodError := os.Chmod(lockedDirectory, 0o000); chmodError != nil {
		testingInstance.Fatalf("chmod: %v", chmodError)
	}
	testingInstance.Cleanup(func() { _ = os.Chmod(lockedDirectory, 0o755) })

	nodes, buildError := tree.BuildTree(root, []string{".go"}, nil)
	if buildError != nil {
		testingInstance.Fatalf("BuildTree error: %v", buildError)
	}
	if files := tree.CollectFiles(nodes); !reflect.DeepEqual(files, []string{"open.go"}) {
		testingInstance.Fatalf("expected only open.go, got %v", files)
	}
}

func TestBuildTreeRejectsMissingRoot(testingInstance *testing.T) {
	if _, buildError := tree.BuildTree(filepath.Join(testingInstance.TempDir(), "missing"), []string{".go"}, nil); buildError == nil {
		testingInstance.Fatalf("expected error for a missing root")
	}
}

func TestScannerAdmits(testingInstance *testing.T) {
	root := testingInstance.TempDir()
	writeProjectFiles(testingInstance, root, map[string]string{
		"src/app.py":   "x = 1",
		"build/out.py": "y = 2",
		"allcode.txt":  "merged",
		".allcode":     "{}",
		"notes.env":    "A=1",
	})
	scanner := tree.Scanner{AllowedExtensions: []string{".py", ".txt"}, IgnorePatterns: []string{"build/"}}

	testCases := []struct {
		relativePath string
		expected     bool
	}{
		{relativePath: "src/app.py", expected: true},
		{relativePath: "build/out.py", expected: false},
		{relativePath: "allcode.txt", expected: false},
		{relativePath: ".allcode", expected: false},
		{relativePath: "notes.env", expected: false},
		{relativePath: "", expected: false},
	}
	for _, testCase := range testCases {
		if admitted := scanner.Admits(root, testCase.relativePath); admitted != testCase.expected {
			testingInstance.Fatalf("Admits(%q) = %v, expected %v", testCase.relativePath, admitted, testCase.expected)
		}
	}

	if symlinkError := os.Symlink(filepath.Join(root, "src"), filepath.Join(root, "linked")); symlinkError != nil {
		testingInstance.Skipf("symlinks unavailable: %v", symlinkError)
	}
	if scanner.Admits(root, "linked/app.py") {
		testingInstance.Fatalf("expected files below a linked directory to be rejected")
	}
}

func TestNormalizeExtensions(testingInstance *testing.T) {
	actual := tree.NormalizeExtensions([]string{"PY", ".Go", " .md ", "", ".", "py"})
	expected := []string{".py", ".go", ".md"}
	if !reflect.DeepEqual(actual, expected) {
		testingInstance.Fatalf("expected %v, got %v", expected, actual)
	}
}

func TestRender(testingInstance *testing.T) {
	nodes := []*tree.Node{
		{Name: "pkg", RelativePath: "pkg", Type: tree.NodeTypeDirectory, Children: []*tree.Node{
			{Name: "a.go", RelativePath: "pkg/a.go", Type: tree.NodeTypeFile},
		}},
		{Name: "main.go", RelativePath: "main.go", Type: tree.NodeTypeFile},
	}
	var buffer bytes.Buffer
	renderError := tree.Render(&buffer, nodes, tree.RenderOptions{Selected: map[string]int{"main.go": 1}})
	if renderError != nil {
		testingInstance.Fatalf("Render error: %v", renderError)
	}
	expected := strings.Join([]string{
		"├── pkg/",
		"│   └── [ ] a.go",
		"└── [x] main.go (#1)",
		"",
	}, "\n")
	if buffer.String() != expected {
		testingInstance.Fatalf("unexpected rendering:\n%s", buffer.String())
	}

	buffer.Reset()
	renderError = tree.Render(&buffer, nodes, tree.RenderOptions{HonorExpansion: true})
	if renderError != nil {
		testingInstance.Fatalf("Render error: %v", renderError)
	}
	if !strings.Contains(buffer.String(), "pkg/ …") || strings.Contains(buffer.String(), "a.go") {
		testingInstance.Fatalf("expected collapsed pkg, got:\n%s", buffer.String())
	}
}
