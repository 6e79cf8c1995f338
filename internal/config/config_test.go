package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

// writeTestFile creates a file with the specified content, failing the test on error.
func writeTestFile(testingHandle *testing.T, filePath string, content string) {
	testingHandle.Helper()
	if writeError := os.WriteFile(filePath, []byte(content), 0o644); writeError != nil {
		testingHandle.Fatalf("failed to write %s: %v", filePath, writeError)
	}
}

func TestLoadProjectIgnorePatterns(testingHandle *testing.T) {
	testCases := []struct {
		name             string
		gitignoreContent string
		exclusions       []string
		useGitignore     bool
		expectedPatterns []string
	}{
		{
			name:             "gitignore_then_git_then_exclusions",
			gitignoreContent: "# build output\nbuild/\n\n*.log\nbuild/\n",
			exclusions:       []string{" dist/ ", "", "*.log"},
			useGitignore:     true,
			expectedPatterns: []string{"build/", "*.log", gitDirectoryPattern, "dist/"},
		},
		{
			name:             "gitignore_disabled",
			gitignoreContent: "build/\n",
			exclusions:       []string{"vendor/"},
			useGitignore:     false,
			expectedPatterns: []string{gitDirectoryPattern, "vendor/"},
		},
		{
			name:             "missing_gitignore",
			useGitignore:     true,
			expectedPatterns: []string{gitDirectoryPattern},
		},
	}

	for _, testCase := range testCases {
		testingHandle.Run(testCase.name, func(testingInstance *testing.T) {
			rootDirectory := testingInstance.TempDir()
			if testCase.gitignoreContent != "" {
				writeTestFile(testingInstance, filepath.Join(rootDirectory, ".gitignore"), testCase.gitignoreContent)
			}
			patterns, loadError := LoadProjectIgnorePatterns(rootDirectory, testCase.exclusions, testCase.useGitignore)
			if loadError != nil {
				testingInstance.Fatalf("LoadProjectIgnorePatterns failed: %v", loadError)
			}
			if !reflect.DeepEqual(patterns, testCase.expectedPatterns) {
				testingInstance.Fatalf("unexpected patterns: got %v want %v", patterns, testCase.expectedPatterns)
			}
		})
	}
}

func TestIgnorePatternsUsesConfiguration(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	writeTestFile(testingHandle, filepath.Join(rootDirectory, ".gitignore"), "node_modules/\n")
	configuration := ApplicationConfiguration{Ignore: IgnoreConfiguration{Exclude: []string{"coverage/"}}}

	patterns, loadError := configuration.IgnorePatterns(rootDirectory)
	if loadError != nil {
		testingHandle.Fatalf("IgnorePatterns failed: %v", loadError)
	}
	expected := []string{"node_modules/", gitDirectoryPattern, "coverage/"}
	if !reflect.DeepEqual(patterns, expected) {
		testingHandle.Fatalf("unexpected patterns: got %v want %v", patterns, expected)
	}
}
