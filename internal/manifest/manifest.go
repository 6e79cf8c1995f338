// Package manifest persists per-project selection state in the .allcode file.
package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/temirov/allcode/internal/utils"
)

// UnknownTokens marks a token count that must be recomputed.
// Zero is always a valid count.
const UnknownTokens = -1

const (
	keyExpandedDirectories = "expanded_dirs"
	keySelectedFiles       = "selected_files"
	keyTotalTokens         = "total_tokens"
	keyIntroText           = "intro_text"
	keyOutroText           = "outro_text"

	manifestFilePermissions = 0o644
	temporaryFilePattern    = ".allcode-*.tmp"
	jsonIndent              = "  "
	currentDirectory        = "."

	logMessageUnreadableManifest = "manifest unreadable, starting from defaults"
	logMessageInvalidField       = "manifest field ignored"
	logMessageRepairSaveFailed   = "failed to persist repaired manifest"
	logMessageManifestRepaired   = "manifest selection repaired"
)

var (
	// ErrManifestMissing reports that the project has no manifest file.
	ErrManifestMissing = errors.New("manifest file not found")
	// ErrManifestEmpty reports an empty manifest file.
	ErrManifestEmpty = errors.New("manifest file is empty")
	// ErrManifestCorrupt reports a manifest that is not a valid document.
	ErrManifestCorrupt = errors.New("manifest file is corrupt")
)

// Manifest is the persisted selection state of one project.
// Field order is the on-disk key order.
type Manifest struct {
	ExpandedDirectories []string `json:"expanded_dirs"`
	SelectedFiles       []string `json:"selected_files"`
	TotalTokens         int      `json:"total_tokens"`
	IntroText           string   `json:"intro_text"`
	OutroText           string   `json:"outro_text"`
}

// Empty returns the all-defaults manifest.
func Empty() Manifest {
	return Manifest{
		ExpandedDirectories: []string{},
		SelectedFiles:       []string{},
		TotalTokens:         UnknownTokens,
	}
}

// Clone returns a deep copy of the manifest.
func (manifest Manifest) Clone() Manifest {
	cloned := manifest
	cloned.ExpandedDirectories = append([]string{}, manifest.ExpandedDirectories...)
	cloned.SelectedFiles = append([]string{}, manifest.SelectedFiles...)
	return cloned
}

// Store loads and saves the manifest of a single project directory.
// It remembers the last loaded or saved state; a Store is owned by one session.
type Store struct {
	projectDirectory string
	manifestPath     string
	current          Manifest
	logger           *zap.Logger
}

// NewStore constructs a Store for projectDirectory.
func NewStore(projectDirectory string, logger *zap.Logger) (*Store, error) {
	absoluteDirectory, absoluteError := filepath.Abs(projectDirectory)
	if absoluteError != nil {
		return nil, fmt.Errorf("resolve project directory %s: %w", projectDirectory, absoluteError)
	}
	return &Store{
		projectDirectory: absoluteDirectory,
		manifestPath:     filepath.Join(absoluteDirectory, utils.ManifestFileName),
		current:          Empty(),
		logger:           utils.LoggerOrNop(logger),
	}, nil
}

// ProjectDirectory returns the absolute project directory.
func (store *Store) ProjectDirectory() string {
	return store.projectDirectory
}

// Path returns the manifest file path.
func (store *Store) Path() string {
	return store.manifestPath
}

// Current returns a copy of the last loaded or saved manifest.
func (store *Store) Current() Manifest {
	return store.current.Clone()
}

// Load reads the manifest, tolerating a missing or corrupt file, and drops
// selected entries that are no longer regular files inside the project.
// When anything was dropped the token count becomes UnknownTokens, the
// repaired manifest is saved immediately, and repaired is true.
func (store *Store) Load() (manifest Manifest, repaired bool) {
	loaded := store.readLenient()
	reconciledFiles, changed := reconcileSelection(store.projectDirectory, loaded.SelectedFiles)
	loaded.SelectedFiles = reconciledFiles
	loaded.ExpandedDirectories = normalizeDirectories(loaded.ExpandedDirectories)
	store.current = loaded

	if !changed {
		return loaded.Clone(), false
	}

	store.logger.Debug(logMessageManifestRepaired, zap.String("path", store.manifestPath), zap.Int("kept", len(reconciledFiles)))
	if saveError := store.Save(loaded.SelectedFiles, loaded.ExpandedDirectories, UnknownTokens); saveError != nil {
		store.logger.Warn(logMessageRepairSaveFailed, zap.String("path", store.manifestPath), zap.Error(saveError))
		store.current.TotalTokens = UnknownTokens
	}
	return store.current.Clone(), true
}

// LoadStrict reads the manifest for operations that require recorded state.
// It reports ErrManifestMissing, ErrManifestEmpty or ErrManifestCorrupt instead
// of falling back to defaults, and does not reconcile the selection.
//
// #nosec G304
func (store *Store) LoadStrict() (Manifest, error) {
	data, readError := os.ReadFile(store.manifestPath)
	if readError != nil {
		if os.IsNotExist(readError) {
			return Manifest{}, fmt.Errorf("%w: %s", ErrManifestMissing, store.manifestPath)
		}
		return Manifest{}, fmt.Errorf("%w: %s: %v", ErrManifestCorrupt, store.manifestPath, readError)
	}
	trimmedData := bytes.TrimSpace(utils.StripByteOrderMark(data))
	if len(trimmedData) == 0 {
		return Manifest{}, fmt.Errorf("%w: %s", ErrManifestEmpty, store.manifestPath)
	}
	loaded := Empty()
	if decodeError := json.Unmarshal(trimmedData, &loaded); decodeError != nil {
		return Manifest{}, fmt.Errorf("%w: %s: %v", ErrManifestCorrupt, store.manifestPath, decodeError)
	}
	if loaded.SelectedFiles == nil {
		loaded.SelectedFiles = []string{}
	}
	loaded.ExpandedDirectories = normalizeDirectories(loaded.ExpandedDirectories)
	if loaded.TotalTokens < 0 {
		loaded.TotalTokens = UnknownTokens
	}
	return loaded, nil
}

// Save overwrites the manifest with the given selection, expansion state and
// token count. Intro and outro text carry over from the last loaded state.
func (store *Store) Save(selectedFiles []string, expandedDirectories []string, totalTokens int) error {
	next := Manifest{
		ExpandedDirectories: normalizeDirectories(expandedDirectories),
		SelectedFiles:       deduplicateSelection(selectedFiles),
		TotalTokens:         normalizeTokens(totalTokens),
		IntroText:           store.current.IntroText,
		OutroText:           store.current.OutroText,
	}
	if writeError := store.write(next); writeError != nil {
		return writeError
	}
	store.current = next
	return nil
}

// SaveTexts updates only the intro and outro text, preserving the selection,
// expansion state and token count of the last loaded state.
func (store *Store) SaveTexts(introText string, outroText string) error {
	next := store.current.Clone()
	next.IntroText = introText
	next.OutroText = outroText
	if writeError := store.write(next); writeError != nil {
		return writeError
	}
	store.current = next
	return nil
}

// write replaces the manifest file through a temporary sibling and rename.
func (store *Store) write(manifest Manifest) error {
	encoded, encodeError := json.MarshalIndent(manifest, "", jsonIndent)
	if encodeError != nil {
		return fmt.Errorf("encode manifest: %w", encodeError)
	}
	encoded = append(encoded, '\n')

	temporaryFile, createError := os.CreateTemp(store.projectDirectory, temporaryFilePattern)
	if createError != nil {
		return fmt.Errorf("create temporary manifest in %s: %w", store.projectDirectory, createError)
	}
	temporaryPath := temporaryFile.Name()
	defer func() {
		_ = os.Remove(temporaryPath)
	}()

	if _, writeError := temporaryFile.Write(encoded); writeError != nil {
		_ = temporaryFile.Close()
		return fmt.Errorf("write temporary manifest: %w", writeError)
	}
	if closeError := temporaryFile.Close(); closeError != nil {
		return fmt.Errorf("close temporary manifest: %w", closeError)
	}
	if chmodError := os.Chmod(temporaryPath, manifestFilePermissions); chmodError != nil {
		return fmt.Errorf("set manifest permissions: %w", chmodError)
	}
	if renameError := os.Rename(temporaryPath, store.manifestPath); renameError != nil {
		return fmt.Errorf("replace manifest %s: %w", store.manifestPath, renameError)
	}
	return nil
}

// readLenient decodes each known key independently so a single malformed
// field falls back to its default instead of discarding the document.
//
// #nosec G304
func (store *Store) readLenient() Manifest {
	loaded := Empty()
	data, readError := os.ReadFile(store.manifestPath)
	if readError != nil {
		if !os.IsNotExist(readError) {
			store.logger.Debug(logMessageUnreadableManifest, zap.String("path", store.manifestPath), zap.Error(readError))
		}
		return loaded
	}
	var document map[string]json.RawMessage
	if decodeError := json.Unmarshal(utils.StripByteOrderMark(data), &document); decodeError != nil {
		store.logger.Debug(logMessageUnreadableManifest, zap.String("path", store.manifestPath), zap.Error(decodeError))
		return loaded
	}

	decodeField := func(key string, target interface{}) {
		rawValue, present := document[key]
		if !present {
			return
		}
		if fieldError := json.Unmarshal(rawValue, target); fieldError != nil {
			store.logger.Debug(logMessageInvalidField, zap.String("key", key), zap.Error(fieldError))
		}
	}

	var expandedDirectories []string
	var selectedFiles []string
	var introText, outroText string
	totalTokens := UnknownTokens
	decodeField(keyExpandedDirectories, &expandedDirectories)
	decodeField(keySelectedFiles, &selectedFiles)
	decodeField(keyTotalTokens, &totalTokens)
	decodeField(keyIntroText, &introText)
	decodeField(keyOutroText, &outroText)

	loaded.ExpandedDirectories = expandedDirectories
	loaded.SelectedFiles = selectedFiles
	loaded.TotalTokens = normalizeTokens(totalTokens)
	loaded.IntroText = introText
	loaded.OutroText = outroText
	return loaded
}

// reconcileSelection keeps entries that are regular files inside
// projectDirectory, in canonical form and without duplicates. changed reports
// whether any entry was dropped or rewritten.
func reconcileSelection(projectDirectory string, selectedFiles []string) ([]string, bool) {
	kept := make([]string, 0, len(selectedFiles))
	seen := make(map[string]struct{}, len(selectedFiles))
	changed := false
	for _, entry := range selectedFiles {
		normalizedEntry := utils.NormalizeRelativePath(entry)
		if normalizedEntry != entry {
			changed = true
		}
		if _, duplicate := seen[normalizedEntry]; duplicate {
			changed = true
			continue
		}
		if !IsSelectableFile(projectDirectory, normalizedEntry) {
			changed = true
			continue
		}
		seen[normalizedEntry] = struct{}{}
		kept = append(kept, normalizedEntry)
	}
	return kept, changed
}

// IsSelectableFile reports whether relativePath names a regular file inside projectDirectory.
func IsSelectableFile(projectDirectory string, relativePath string) bool {
	absolutePath, resolved := utils.ResolveProjectPath(projectDirectory, relativePath)
	if !resolved {
		return false
	}
	fileInformation, statError := os.Stat(absolutePath)
	return statError == nil && fileInformation.Mode().IsRegular()
}

// deduplicateSelection stores entries in the canonical form Load reconciles to.
func deduplicateSelection(selectedFiles []string) []string {
	canonical := make([]string, 0, len(selectedFiles))
	for _, selectedFile := range selectedFiles {
		if normalizedFile := utils.NormalizeRelativePath(selectedFile); normalizedFile != "" {
			canonical = append(canonical, normalizedFile)
		}
	}
	return utils.DeduplicatePatterns(canonical)
}

func normalizeDirectories(directories []string) []string {
	normalized := make([]string, 0, len(directories))
	for _, directory := range directories {
		normalizedDirectory := utils.NormalizeRelativePath(directory)
		if normalizedDirectory == "" || normalizedDirectory == currentDirectory {
			continue
		}
		normalized = append(normalized, normalizedDirectory)
	}
	normalized = utils.DeduplicatePatterns(normalized)
	sort.Strings(normalized)
	return normalized
}

func normalizeTokens(totalTokens int) int {
	if totalTokens < 0 {
		return UnknownTokens
	}
	return totalTokens
}
