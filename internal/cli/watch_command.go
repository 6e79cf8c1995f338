package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/allcode/internal/watch"
)

const (
	watchUse              = "watch"
	watchShortDescription = "keep the token count current while files change"
	watchLongDescription  = `Watch the project and recount the selection whenever a selected file changes.
The updated count is stored in the manifest and printed. Stop with Ctrl-C.`
	watchStartedFormat = "watching %d directories in %s\n"
	watchTokensFormat  = "tokens: %s\n"
	recountBufferSize  = 16
)

func (app *application) createWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   watchUse,
		Short: watchShortDescription,
		Long:  watchLongDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			signalContext, stopSignals := signal.NotifyContext(command.Context(), os.Interrupt, syscall.SIGTERM)
			defer stopSignals()
			return app.runWatch(signalContext, command)
		},
	}
}

// runWatch runs the file watcher and the count reporter until ctx ends.
func (app *application) runWatch(ctx context.Context, command *cobra.Command) error {
	recounts := make(chan int, recountBufferSize)
	openedProject, openError := app.openProject(command, func(totalTokens int) {
		select {
		case recounts <- totalTokens:
		default:
		}
	})
	if openError != nil {
		return openError
	}
	defer openedProject.session.Close()

	watcher := watch.New(openedProject.session, openedProject.ignorePatterns, app.logger)
	if startError := watcher.Start(); startError != nil {
		return startError
	}
	writer := command.OutOrStdout()
	if _, writeError := fmt.Fprintf(writer, watchStartedFormat, len(watcher.WatchedDirectories()), openedProject.session.ProjectDirectory()); writeError != nil {
		return writeError
	}
	openedProject.session.RequestRecount()

	group, groupContext := errgroup.WithContext(ctx)
	watchContext, stopReporting := context.WithCancel(groupContext)
	group.Go(func() error {
		defer stopReporting()
		return watcher.Run(watchContext)
	})
	group.Go(func() error {
		for {
			select {
			case <-watchContext.Done():
				return nil
			case totalTokens := <-recounts:
				if _, writeError := fmt.Fprintf(writer, watchTokensFormat, formatTokens(totalTokens)); writeError != nil {
					return writeError
				}
			}
		}
	})
	return group.Wait()
}
