// Package config loads user configuration and the ignore patterns of a project.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/temirov/allcode/internal/ignore"
	"github.com/temirov/allcode/internal/utils"
)

// gitDirectoryPattern represents the pattern that matches the Git directory.
const gitDirectoryPattern = utils.GitDirectoryName + "/"

// LoadProjectIgnorePatterns returns the patterns of the project's root
// .gitignore (when useGitignore is set), the Git directory pattern and the
// provided exclusionPatterns, deduplicated in that order.
func LoadProjectIgnorePatterns(absoluteDirectoryPath string, exclusionPatterns []string, useGitignore bool) ([]string, error) {
	var combinedPatterns []string

	if useGitignore {
		gitIgnoreFilePath := filepath.Join(absoluteDirectoryPath, utils.GitIgnoreFileName)
		gitIgnoreFilePatterns, loadError := ignore.LoadFile(gitIgnoreFilePath)
		if loadError != nil {
			return nil, fmt.Errorf("loading %s from %s: %w", utils.GitIgnoreFileName, absoluteDirectoryPath, loadError)
		}
		combinedPatterns = append(combinedPatterns, gitIgnoreFilePatterns...)
	}
	combinedPatterns = append(combinedPatterns, gitDirectoryPattern)

	deduplicatedFilePatterns := utils.DeduplicatePatterns(combinedPatterns)
	for _, pattern := range exclusionPatterns {
		trimmedPattern := strings.TrimSpace(pattern)
		if trimmedPattern == "" {
			continue
		}
		if !utils.ContainsString(deduplicatedFilePatterns, trimmedPattern) {
			deduplicatedFilePatterns = append(deduplicatedFilePatterns, trimmedPattern)
		}
	}
	return deduplicatedFilePatterns, nil
}

// IgnorePatterns resolves the ignore patterns of projectDirectory for this configuration.
func (config ApplicationConfiguration) IgnorePatterns(projectDirectory string) ([]string, error) {
	return LoadProjectIgnorePatterns(projectDirectory, config.Ignore.Exclude, config.GitignoreEnabled())
}
