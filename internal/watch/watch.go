// Package watch keeps a session's token count fresh while project files change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/temirov/allcode/internal/ignore"
	"github.com/temirov/allcode/internal/session"
	"github.com/temirov/allcode/internal/utils"
)

const (
	logMessageWatchingDirectory = "watching directory"
	logMessageWatchFailed       = "failed to watch directory"
	logMessageWatcherError      = "watcher error"
	logMessageSelectedChanged   = "selected file changed"
	logMessageWatcherStopped    = "watcher stopped"

	watchRelevantOperations = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename
)

// ErrNotStarted is returned by Run when Start has not succeeded.
var ErrNotStarted = errors.New("watcher not started")

// Watcher requests a recount whenever a selected file is written, created,
// removed or renamed. Ignored directories are not watched.
type Watcher struct {
	activeSession *session.Session
	matcher       *ignore.Matcher
	logger        *zap.Logger
	notifier      *fsnotify.Watcher
}

// New constructs a Watcher for activeSession using ignorePatterns to prune directories.
func New(activeSession *session.Session, ignorePatterns []string, logger *zap.Logger) *Watcher {
	return &Watcher{
		activeSession: activeSession,
		matcher:       ignore.NewMatcher(activeSession.ProjectDirectory(), ignorePatterns),
		logger:        utils.LoggerOrNop(logger),
	}
}

// Start registers every non-ignored project directory with the notifier.
func (watcher *Watcher) Start() error {
	notifier, notifierError := fsnotify.NewWatcher()
	if notifierError != nil {
		return fmt.Errorf("create file watcher: %w", notifierError)
	}
	watcher.notifier = notifier
	if addError := watcher.addTree(watcher.activeSession.ProjectDirectory()); addError != nil {
		_ = notifier.Close()
		watcher.notifier = nil
		return addError
	}
	return nil
}

// Run processes events until ctx is cancelled, then closes the notifier.
func (watcher *Watcher) Run(ctx context.Context) error {
	if watcher.notifier == nil {
		return ErrNotStarted
	}
	defer func() {
		_ = watcher.notifier.Close()
		watcher.logger.Debug(logMessageWatcherStopped)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, open := <-watcher.notifier.Events:
			if !open {
				return nil
			}
			watcher.handleEvent(event)
		case watchError, open := <-watcher.notifier.Errors:
			if !open {
				return nil
			}
			watcher.logger.Warn(logMessageWatcherError, zap.Error(watchError))
		}
	}
}

// Watch starts the watcher and runs it until ctx is cancelled.
func (watcher *Watcher) Watch(ctx context.Context) error {
	if startError := watcher.Start(); startError != nil {
		return startError
	}
	return watcher.Run(ctx)
}

// WatchedDirectories lists the directories currently registered.
func (watcher *Watcher) WatchedDirectories() []string {
	if watcher.notifier == nil {
		return nil
	}
	return watcher.notifier.WatchList()
}

func (watcher *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&watchRelevantOperations == 0 {
		return
	}
	if event.Op.Has(fsnotify.Create) && isDirectory(event.Name) {
		if addError := watcher.addTree(event.Name); addError != nil {
			watcher.logger.Debug(logMessageWatchFailed, zap.String("path", event.Name), zap.Error(addError))
		}
		return
	}

	relativePath, inside := utils.RelativePathWithin(event.Name, watcher.activeSession.ProjectDirectory())
	if !inside {
		return
	}
	if !utils.ContainsString(watcher.activeSession.Manifest().SelectedFiles, relativePath) {
		return
	}
	watcher.logger.Debug(logMessageSelectedChanged, zap.String("path", relativePath), zap.String("op", event.Op.String()))
	watcher.activeSession.RequestRecount()
}

// addTree registers rootDirectory and its non-ignored subdirectories.
// Symlinked directories are not followed.
func (watcher *Watcher) addTree(rootDirectory string) error {
	return filepath.WalkDir(rootDirectory, func(currentPath string, directoryEntry fs.DirEntry, walkError error) error {
		if walkError != nil {
			if currentPath == rootDirectory {
				return walkError
			}
			watcher.logger.Debug(logMessageWatchFailed, zap.String("path", currentPath), zap.Error(walkError))
			return fs.SkipDir
		}
		if !directoryEntry.IsDir() {
			return nil
		}
		if directoryEntry.Name() == utils.GitDirectoryName || watcher.matcher.Match(currentPath, true) {
			return fs.SkipDir
		}
		if addError := watcher.notifier.Add(currentPath); addError != nil {
			watcher.logger.Debug(logMessageWatchFailed, zap.String("path", currentPath), zap.Error(addError))
			return fs.SkipDir
		}
		watcher.logger.Debug(logMessageWatchingDirectory, zap.String("path", currentPath))
		return nil
	})
}

func isDirectory(path string) bool {
	fileInformation, statError := os.Lstat(path)
	return statError == nil && fileInformation.IsDir()
}
