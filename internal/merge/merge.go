// Package merge renders an ordered file selection into one text artifact.
package merge

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/temirov/allcode/internal/utils"
)

// Mode selects how the merged text is framed.
type Mode string

const (
	// ModeMerged renders the introduction sentence followed by the file blocks.
	ModeMerged Mode = "merged"
	// ModeWrapped additionally frames the merged text with the project's intro and outro text.
	ModeWrapped Mode = "wrapped"
)

const (
	// BlockSeparator joins file blocks and wrapper parts.
	BlockSeparator = "\n\n\n"
	// Introduction precedes the file blocks in every rendered merge.
	Introduction = "Below are the contents of the selected project files. Each file starts with its path relative to the project root, followed by its content in a code block."

	fileHeaderFormat  = "File: %s"
	minimumFenceWidth = 3
	fenceCharacter    = "`"
	lineBreak         = "\n"
	nulCharacter      = '\x00'

	errorUnknownModeFormat = "unknown merge mode %q"
	errorProjectRootFormat = "resolve project root %s: %w"
)

var (
	// ErrNothingToMerge reports that the selection is empty.
	ErrNothingToMerge = errors.New("no files selected to merge")
	// ErrNotRegularFile reports a selected path that is not a regular file inside the project.
	ErrNotRegularFile = errors.New("not a regular file inside the project")
	// ErrBinaryFile reports a selected file whose decoded content holds NUL characters.
	ErrBinaryFile = errors.New("binary file")
)

// ParseMode converts a textual mode into a Mode.
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case "", ModeMerged:
		return ModeMerged, nil
	case ModeWrapped:
		return ModeWrapped, nil
	default:
		return "", fmt.Errorf(errorUnknownModeFormat, value)
	}
}

// Options configures Render.
type Options struct {
	Mode      Mode
	IntroText string
	OutroText string
}

// Block is one selected file found on disk.
type Block struct {
	RelativePath string
	Content      string
}

// Result is the outcome of a merge.
type Result struct {
	Text     string
	Included []Block
	Skipped  []string
	// Empty is set when no file contributed to the merge.
	Empty bool
}

// Render reads orderedPaths below projectRoot and renders them in order.
// Paths that are not regular text files inside projectRoot are skipped and
// listed in Result.Skipped. An empty selection yields an empty result without
// touching the filesystem.
func Render(projectRoot string, orderedPaths []string, options Options) (Result, error) {
	if len(orderedPaths) == 0 {
		return Result{Empty: true}, nil
	}
	mode, modeError := ParseMode(string(options.Mode))
	if modeError != nil {
		return Result{}, modeError
	}
	absoluteRoot, rootError := filepath.Abs(projectRoot)
	if rootError != nil {
		return Result{}, fmt.Errorf(errorProjectRootFormat, projectRoot, rootError)
	}

	var result Result
	renderedBlocks := make([]string, 0, len(orderedPaths))
	for _, relativePath := range orderedPaths {
		block, loadError := LoadBlock(absoluteRoot, relativePath)
		if loadError != nil {
			result.Skipped = append(result.Skipped, relativePath)
			continue
		}
		result.Included = append(result.Included, block)
		renderedBlocks = append(renderedBlocks, FormatBlock(block.RelativePath, block.Content))
	}
	if len(result.Included) == 0 {
		result.Empty = true
		return result, nil
	}

	mergedText := Introduction + BlockSeparator + strings.Join(renderedBlocks, BlockSeparator)
	if mode != ModeWrapped {
		result.Text = mergedText
		return result, nil
	}

	parts := make([]string, 0, 3)
	if intro := strings.TrimSpace(options.IntroText); intro != "" {
		parts = append(parts, intro)
	}
	parts = append(parts, mergedText)
	if outro := strings.TrimSpace(options.OutroText); outro != "" {
		parts = append(parts, outro)
	}
	result.Text = strings.Join(parts, BlockSeparator)
	return result, nil
}

// LoadBlock reads one selected file. It returns ErrNotRegularFile for paths
// that escape the project, are absolute, or are not regular files, and
// ErrBinaryFile for binary content. Read failures are returned as is.
//
// #nosec G304
func LoadBlock(projectRoot string, relativePath string) (Block, error) {
	normalizedPath := utils.NormalizeRelativePath(relativePath)
	absolutePath, resolved := utils.ResolveProjectPath(projectRoot, normalizedPath)
	if !resolved {
		return Block{}, ErrNotRegularFile
	}
	fileInformation, statError := os.Stat(absolutePath)
	if statError != nil || !fileInformation.Mode().IsRegular() {
		return Block{}, ErrNotRegularFile
	}
	data, readError := os.ReadFile(absolutePath)
	if readError != nil {
		return Block{}, readError
	}
	content := utils.DecodeText(data)
	if strings.ContainsRune(content, nulCharacter) {
		return Block{}, ErrBinaryFile
	}
	return Block{RelativePath: normalizedPath, Content: content}, nil
}

// FormatBlock renders a header naming relativePath followed by content in a
// fenced code block. The fence is longer than any backtick run in content and
// its info string is the file extension.
func FormatBlock(relativePath string, content string) string {
	fence := strings.Repeat(fenceCharacter, fenceWidth(content))
	language := strings.TrimPrefix(strings.ToLower(path.Ext(relativePath)), ".")

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf(fileHeaderFormat, relativePath))
	builder.WriteString(lineBreak)
	builder.WriteString(fence)
	builder.WriteString(language)
	builder.WriteString(lineBreak)
	builder.WriteString(content)
	if content != "" && !strings.HasSuffix(content, lineBreak) {
		builder.WriteString(lineBreak)
	}
	builder.WriteString(fence)
	return builder.String()
}

func fenceWidth(content string) int {
	longestRun := 0
	currentRun := 0
	for _, character := range content {
		if character == '`' {
			currentRun++
			if currentRun > longestRun {
				longestRun = currentRun
			}
			continue
		}
		currentRun = 0
	}
	if longestRun >= minimumFenceWidth {
		return longestRun + 1
	}
	return minimumFenceWidth
}

// WriteMarker stores text in the project's marker file and returns its path.
func WriteMarker(projectRoot string, text string) (string, error) {
	markerPath := filepath.Join(projectRoot, utils.MarkerFileName)
	if writeError := os.WriteFile(markerPath, []byte(text), 0o644); writeError != nil {
		return "", fmt.Errorf("write %s: %w", markerPath, writeError)
	}
	return markerPath, nil
}
