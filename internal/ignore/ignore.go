// Package ignore parses gitignore-style rules and tests project paths against them.
package ignore

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/temirov/allcode/internal/utils"
)

const (
	commentPrefix        = "#"
	pathSegmentSeparator = "/"
)

// Parse trims each line, drops blank lines and comments, and returns the
// remaining patterns in their original order.
func Parse(lines []string) []string {
	patterns := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmedLine := strings.TrimSpace(line)
		if trimmedLine == "" || strings.HasPrefix(trimmedLine, commentPrefix) {
			continue
		}
		patterns = append(patterns, trimmedLine)
	}
	return patterns
}

// LoadFile reads an ignore file and returns its patterns.
// A missing file yields no patterns and no error.
//
// #nosec G304
func LoadFile(ignoreFilePath string) ([]string, error) {
	fileHandle, openError := os.Open(ignoreFilePath)
	if openError != nil {
		if os.IsNotExist(openError) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", ignoreFilePath, openError)
	}
	defer fileHandle.Close()

	var lines []string
	scanner := bufio.NewScanner(fileHandle)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if scanError := scanner.Err(); scanError != nil {
		return nil, fmt.Errorf("read %s: %w", ignoreFilePath, scanError)
	}
	return Parse(lines), nil
}

// IsIgnored reports whether candidatePath, located under projectRoot, matches
// any of the patterns. Paths outside projectRoot are never ignored.
//
// Directory-only patterns (trailing slash) apply when isDirectory is set.
// Root-anchored patterns (leading slash) match only against the full relative
// path. All other patterns match the relative path at the root or at any depth.
func IsIgnored(candidatePath string, projectRoot string, isDirectory bool, patterns []string) bool {
	relativePath, inside := utils.RelativePathWithin(candidatePath, projectRoot)
	if !inside {
		return false
	}
	return MatchRelative(relativePath, isDirectory, patterns)
}

// MatchRelative applies the patterns to an already computed forward-slash relative path.
func MatchRelative(relativePath string, isDirectory bool, patterns []string) bool {
	for _, pattern := range patterns {
		if matchPattern(relativePath, isDirectory, pattern) {
			return true
		}
	}
	return false
}

func matchPattern(relativePath string, isDirectory bool, pattern string) bool {
	switch {
	case strings.HasSuffix(pattern, pathSegmentSeparator):
		if !isDirectory {
			return false
		}
		trimmedPattern := strings.TrimSuffix(pattern, pathSegmentSeparator)
		if trimmedPattern == "" {
			return false
		}
		return matchAnywhere(relativePath, trimmedPattern)
	case strings.HasPrefix(pattern, pathSegmentSeparator):
		return globMatch(strings.TrimPrefix(pattern, pathSegmentSeparator), relativePath)
	default:
		return matchAnywhere(relativePath, pattern)
	}
}

// matchAnywhere tests the pattern at the root and behind any number of leading
// directories. path.Match never lets "*" cross a separator, so the "*/pattern"
// form is expanded by trimming one leading directory at a time.
func matchAnywhere(relativePath string, pattern string) bool {
	remainingPath := relativePath
	for {
		if globMatch(pattern, remainingPath) {
			return true
		}
		separatorIndex := strings.Index(remainingPath, pathSegmentSeparator)
		if separatorIndex < 0 {
			return false
		}
		remainingPath = remainingPath[separatorIndex+1:]
	}
}

func globMatch(pattern string, name string) bool {
	isMatched, matchError := path.Match(pattern, name)
	return matchError == nil && isMatched
}

// Matcher binds a project root and its patterns.
type Matcher struct {
	projectRoot string
	patterns    []string
}

// NewMatcher constructs a Matcher for projectRoot.
func NewMatcher(projectRoot string, patterns []string) *Matcher {
	return &Matcher{projectRoot: projectRoot, patterns: append([]string(nil), patterns...)}
}

// Match reports whether candidatePath is ignored.
func (matcher *Matcher) Match(candidatePath string, isDirectory bool) bool {
	if matcher == nil {
		return false
	}
	return IsIgnored(candidatePath, matcher.projectRoot, isDirectory, matcher.patterns)
}
