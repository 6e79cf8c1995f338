// Package utils contains general helper functions used across allcode.
package utils

import (
	"path/filepath"
	"strings"
)

const (
	pathSegmentSeparator = "/"
	parentDirectoryToken = ".."
)

// DeduplicatePatterns removes duplicate patterns from a slice while preserving order.
// The first occurrence of each unique pattern is kept.
func DeduplicatePatterns(patterns []string) []string {
	encounteredPatterns := make(map[string]struct{})
	result := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		if _, exists := encounteredPatterns[pattern]; !exists {
			encounteredPatterns[pattern] = struct{}{}
			result = append(result, pattern)
		}
	}
	return result
}

// ContainsString checks if a slice of strings contains a specific target string.
func ContainsString(stringSlice []string, targetString string) bool {
	for _, currentString := range stringSlice {
		if currentString == targetString {
			return true
		}
	}
	return false
}

// RelativePathWithin returns the forward-slash path of fullPath relative to root.
// The boolean is false when fullPath does not lie strictly inside root or when
// either path cannot be resolved.
func RelativePathWithin(fullPath, root string) (string, bool) {
	absoluteRoot, rootError := filepath.Abs(root)
	if rootError != nil {
		return "", false
	}
	absolutePath, pathError := filepath.Abs(fullPath)
	if pathError != nil {
		return "", false
	}
	relativePath, relativeError := filepath.Rel(filepath.Clean(absoluteRoot), filepath.Clean(absolutePath))
	if relativeError != nil {
		return "", false
	}
	relativePath = filepath.ToSlash(relativePath)
	if relativePath == "." || relativePath == parentDirectoryToken || strings.HasPrefix(relativePath, parentDirectoryToken+pathSegmentSeparator) {
		return "", false
	}
	return relativePath, true
}

// ResolveProjectPath joins a stored forward-slash relative path onto root.
// Absolute paths and paths escaping root are rejected.
func ResolveProjectPath(root, relativePath string) (string, bool) {
	trimmedPath := strings.TrimSpace(relativePath)
	if trimmedPath == "" {
		return "", false
	}
	if filepath.IsAbs(trimmedPath) || strings.HasPrefix(trimmedPath, pathSegmentSeparator) || filepath.VolumeName(trimmedPath) != "" {
		return "", false
	}
	joinedPath := filepath.Join(root, filepath.FromSlash(trimmedPath))
	if _, inside := RelativePathWithin(joinedPath, root); !inside {
		return "", false
	}
	return joinedPath, true
}

// NormalizeRelativePath converts a user supplied path into the canonical
// forward-slash form stored in the manifest.
func NormalizeRelativePath(relativePath string) string {
	normalizedPath := strings.ReplaceAll(strings.TrimSpace(relativePath), "\\", pathSegmentSeparator)
	if normalizedPath == "" {
		return ""
	}
	cleanedPath := filepath.ToSlash(filepath.Clean(filepath.FromSlash(normalizedPath)))
	return strings.TrimPrefix(cleanedPath, "./")
}
