// Package session owns the open state of one project: its manifest, its tree
// configuration and the debounced token recount.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/allcode/internal/debounce"
	"github.com/temirov/allcode/internal/manifest"
	"github.com/temirov/allcode/internal/merge"
	"github.com/temirov/allcode/internal/tokenizer"
	"github.com/temirov/allcode/internal/tree"
	"github.com/temirov/allcode/internal/utils"
)

// ErrNotSelectable reports a path that is not a file of the project tree.
var ErrNotSelectable = errors.New("not a selectable file")

// ErrNotSelected reports a path that is not part of the selection.
var ErrNotSelected = errors.New("file is not selected")

const currentDirectory = "."

const (
	logMessageSessionOpened = "session opened"
	logMessageRecounted     = "token count updated"
	logMessageSaveFailed    = "failed to save manifest"
)

// Options configures a Session.
type Options struct {
	AllowedExtensions []string
	IgnorePatterns    []string
	Counter           tokenizer.Counter
	// RecountDelay is the debounce quiet period; zero recounts synchronously.
	RecountDelay time.Duration
	// OnRecount, when set, receives every persisted recount result.
	OnRecount func(totalTokens int)
	Logger    *zap.Logger
}

// Session is the explicitly owned state of one open project.
type Session struct {
	store        *manifest.Store
	scanner      tree.Scanner
	recalculator *tokenizer.Recalculator
	debouncer    *debounce.Debouncer
	onRecount    func(int)
	logger       *zap.Logger

	mutex    sync.Mutex
	state    manifest.Manifest
	repaired bool
}

// Open loads the manifest of projectDirectory and returns a session over it.
func Open(projectDirectory string, options Options) (*Session, error) {
	logger := utils.LoggerOrNop(options.Logger)
	store, storeError := manifest.NewStore(projectDirectory, logger)
	if storeError != nil {
		return nil, storeError
	}
	counter := options.Counter
	if counter == nil {
		defaultCounter, _, counterError := tokenizer.NewCounter(tokenizer.Config{})
		if counterError != nil {
			return nil, counterError
		}
		counter = defaultCounter
	}

	loaded, repaired := store.Load()
	openedSession := &Session{
		store: store,
		scanner: tree.Scanner{
			AllowedExtensions: options.AllowedExtensions,
			IgnorePatterns:    options.IgnorePatterns,
			Logger:            logger,
		},
		recalculator: tokenizer.NewRecalculator(counter, logger),
		onRecount:    options.OnRecount,
		logger:       logger,
		state:        loaded,
		repaired:     repaired,
	}
	if options.RecountDelay > 0 {
		openedSession.debouncer = debounce.New(options.RecountDelay)
	}
	logger.Debug(logMessageSessionOpened,
		zap.String("project", store.ProjectDirectory()),
		zap.Int("selected", len(loaded.SelectedFiles)),
		zap.Bool("repaired", repaired),
	)
	return openedSession, nil
}

// ProjectDirectory returns the absolute project directory.
func (session *Session) ProjectDirectory() string {
	return session.store.ProjectDirectory()
}

// Repaired reports whether opening the session dropped stale selection entries.
func (session *Session) Repaired() bool {
	return session.repaired
}

// Manifest returns a copy of the current state.
func (session *Session) Manifest() manifest.Manifest {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	return session.state.Clone()
}

// Tree scans the project with the session's extensions and ignore rules.
func (session *Session) Tree() ([]*tree.Node, error) {
	return session.scanner.Build(session.store.ProjectDirectory())
}

// Select appends files to the end of the selection, skipping ones already selected.
func (session *Session) Select(relativePaths ...string) error {
	return session.mutateSelection(func(selection []string) ([]string, error) {
		for _, relativePath := range relativePaths {
			normalizedPath, validateError := session.validateSelectable(relativePath)
			if validateError != nil {
				return nil, validateError
			}
			if !utils.ContainsString(selection, normalizedPath) {
				selection = append(selection, normalizedPath)
			}
		}
		return selection, nil
	})
}

// Deselect removes files from the selection. Unknown paths are ignored.
func (session *Session) Deselect(relativePaths ...string) error {
	return session.mutateSelection(func(selection []string) ([]string, error) {
		removed := make(map[string]struct{}, len(relativePaths))
		for _, relativePath := range relativePaths {
			removed[utils.NormalizeRelativePath(relativePath)] = struct{}{}
		}
		kept := make([]string, 0, len(selection))
		for _, selectedPath := range selection {
			if _, isRemoved := removed[selectedPath]; !isRemoved {
				kept = append(kept, selectedPath)
			}
		}
		return kept, nil
	})
}

// Toggle selects unselected files and deselects selected ones.
func (session *Session) Toggle(relativePaths ...string) error {
	return session.mutateSelection(func(selection []string) ([]string, error) {
		for _, relativePath := range relativePaths {
			normalizedPath := utils.NormalizeRelativePath(relativePath)
			if position := indexOf(selection, normalizedPath); position >= 0 {
				selection = append(selection[:position:position], selection[position+1:]...)
				continue
			}
			validatedPath, validateError := session.validateSelectable(normalizedPath)
			if validateError != nil {
				return nil, validateError
			}
			selection = append(selection, validatedPath)
		}
		return selection, nil
	})
}

// SelectAll appends every file of the scanned tree that is not yet selected,
// in tree order, as a single mutation.
func (session *Session) SelectAll() error {
	nodes, treeError := session.Tree()
	if treeError != nil {
		return treeError
	}
	treeFiles := tree.CollectFiles(nodes)
	return session.mutateSelection(func(selection []string) ([]string, error) {
		for _, filePath := range treeFiles {
			if !utils.ContainsString(selection, filePath) {
				selection = append(selection, filePath)
			}
		}
		return selection, nil
	})
}

// DeselectAll clears the selection.
func (session *Session) DeselectAll() error {
	return session.mutateSelection(func([]string) ([]string, error) {
		return []string{}, nil
	})
}

// Move places a selected file at the 1-based position, clamped to the selection bounds.
func (session *Session) Move(relativePath string, position int) error {
	normalizedPath := utils.NormalizeRelativePath(relativePath)
	return session.mutateSelection(func(selection []string) ([]string, error) {
		currentIndex := indexOf(selection, normalizedPath)
		if currentIndex < 0 {
			return nil, fmt.Errorf("%w: %s", ErrNotSelected, relativePath)
		}
		remaining := append(append([]string{}, selection[:currentIndex]...), selection[currentIndex+1:]...)
		targetIndex := position - 1
		if targetIndex < 0 {
			targetIndex = 0
		}
		if targetIndex > len(remaining) {
			targetIndex = len(remaining)
		}
		reordered := make([]string, 0, len(selection))
		reordered = append(reordered, remaining[:targetIndex]...)
		reordered = append(reordered, normalizedPath)
		reordered = append(reordered, remaining[targetIndex:]...)
		return reordered, nil
	})
}

// Expand marks directories as expanded. Expansion has no effect on merges.
func (session *Session) Expand(relativeDirectories ...string) error {
	return session.mutateExpansion(func(expanded map[string]struct{}) {
		for _, directory := range relativeDirectories {
			if normalized := utils.NormalizeRelativePath(directory); normalized != "" && normalized != currentDirectory {
				expanded[normalized] = struct{}{}
			}
		}
	})
}

// Collapse removes directories from the expanded set.
func (session *Session) Collapse(relativeDirectories ...string) error {
	return session.mutateExpansion(func(expanded map[string]struct{}) {
		for _, directory := range relativeDirectories {
			delete(expanded, utils.NormalizeRelativePath(directory))
		}
	})
}

// ExpandAll expands every directory of the scanned tree.
func (session *Session) ExpandAll() error {
	nodes, treeError := session.Tree()
	if treeError != nil {
		return treeError
	}
	return session.Expand(tree.DirectoryPaths(nodes)...)
}

// CollapseAll clears the expanded set.
func (session *Session) CollapseAll() error {
	return session.mutateExpansion(func(expanded map[string]struct{}) {
		clear(expanded)
	})
}

// SetTexts stores the wrapper texts without touching the selection.
func (session *Session) SetTexts(introText string, outroText string) error {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	if saveError := session.store.SaveTexts(introText, outroText); saveError != nil {
		return saveError
	}
	session.state = session.store.Current()
	return nil
}

// Recount recomputes the token count now, persists it and returns it.
func (session *Session) Recount() (int, error) {
	session.mutex.Lock()
	totalTokens := session.recalculator.Recalculate(session.store.ProjectDirectory(), session.state.SelectedFiles)
	saveError := session.persistLocked(session.state.SelectedFiles, session.state.ExpandedDirectories, totalTokens)
	session.mutex.Unlock()
	if saveError != nil {
		return totalTokens, saveError
	}
	session.logger.Debug(logMessageRecounted, zap.Int("tokens", totalTokens))
	if session.onRecount != nil {
		session.onRecount(totalTokens)
	}
	return totalTokens, nil
}

// RequestRecount schedules a debounced recount. Without a debounce delay the
// recount runs immediately.
func (session *Session) RequestRecount() {
	if session.debouncer == nil {
		session.recountAndLog()
		return
	}
	session.debouncer.Schedule(session.recountAndLog)
}

// Flush runs a pending debounced recount immediately.
func (session *Session) Flush() {
	if session.debouncer != nil {
		session.debouncer.Flush()
	}
}

// Close flushes any pending recount and stops the debouncer.
func (session *Session) Close() {
	if session.debouncer == nil {
		return
	}
	session.debouncer.Flush()
	session.debouncer.Stop()
}

// Merge renders the persisted selection. Pending recounts are flushed first
// so the manifest on disk reflects the session.
func (session *Session) Merge(mode merge.Mode) (merge.Result, error) {
	session.Flush()
	return merge.RenderFromManifest(session.store, mode)
}

func (session *Session) recountAndLog() {
	if _, recountError := session.Recount(); recountError != nil {
		session.logger.Warn(logMessageSaveFailed, zap.Error(recountError))
	}
}

// mutateSelection applies change to a copy of the selection, persists the
// result with an unknown token count and requests a recount.
func (session *Session) mutateSelection(change func([]string) ([]string, error)) error {
	session.mutex.Lock()
	nextSelection, changeError := change(append([]string{}, session.state.SelectedFiles...))
	if changeError != nil {
		session.mutex.Unlock()
		return changeError
	}
	saveError := session.persistLocked(nextSelection, session.state.ExpandedDirectories, manifest.UnknownTokens)
	session.mutex.Unlock()
	if saveError != nil {
		return saveError
	}
	session.RequestRecount()
	return nil
}

func (session *Session) mutateExpansion(change func(map[string]struct{})) error {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	expanded := make(map[string]struct{}, len(session.state.ExpandedDirectories))
	for _, directory := range session.state.ExpandedDirectories {
		expanded[directory] = struct{}{}
	}
	change(expanded)
	nextDirectories := make([]string, 0, len(expanded))
	for directory := range expanded {
		nextDirectories = append(nextDirectories, directory)
	}
	return session.persistLocked(session.state.SelectedFiles, nextDirectories, session.state.TotalTokens)
}

func (session *Session) persistLocked(selectedFiles []string, expandedDirectories []string, totalTokens int) error {
	if saveError := session.store.Save(selectedFiles, expandedDirectories, totalTokens); saveError != nil {
		return saveError
	}
	session.state = session.store.Current()
	return nil
}

func (session *Session) validateSelectable(relativePath string) (string, error) {
	normalizedPath := utils.NormalizeRelativePath(relativePath)
	projectDirectory := session.store.ProjectDirectory()
	if !manifest.IsSelectableFile(projectDirectory, normalizedPath) || !session.scanner.Admits(projectDirectory, normalizedPath) {
		return "", fmt.Errorf("%w: %s", ErrNotSelectable, relativePath)
	}
	return normalizedPath, nil
}

func indexOf(values []string, target string) int {
	for index, value := range values {
		if value == target {
			return index
		}
	}
	return -1
}
