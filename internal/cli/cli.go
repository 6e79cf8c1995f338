// Package cli provides the command line interface.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/allcode/internal/config"
	"github.com/temirov/allcode/internal/services/clipboard"
	"github.com/temirov/allcode/internal/session"
	"github.com/temirov/allcode/internal/tokenizer"
	"github.com/temirov/allcode/internal/utils"
)

const (
	directoryFlagName    = "dir"
	configFlagName       = "config"
	verboseFlagName      = "verbose"
	modelFlagName        = "model"
	versionFlagName      = "version"
	versionTemplate      = "allcode version: %s\n"
	defaultPath          = "."
	rootUse              = "allcode"
	rootShortDescription = "select, order and merge project files for LLM prompts"
	rootLongDescription  = `allcode keeps an ordered selection of project files in a .allcode manifest.
It prints the filtered project tree, edits the selection, keeps a token
estimate current, and merges the selected files into one fenced document.`

	directoryFlagDescription = "project directory"
	configFlagDescription    = "configuration file (default <dir>/allcode.yaml)"
	verboseFlagDescription   = "enable debug logging"
	modelFlagDescription     = "token counting model (heuristic, gpt-4o, cl100k_base, ...)"
	versionFlagDescription   = "display application version"

	errorProjectDirectoryFormat = "project directory %s: %w"
	errorNotDirectoryFormat     = "project directory %s is not a directory"
	warningSelectionRepaired    = "selection repaired: files that no longer exist were removed"
)

// Dependencies are the collaborators commands use. Zero values select the
// production implementations.
type Dependencies struct {
	Logger    *zap.Logger
	Clipboard clipboard.Copier
	Counter   tokenizer.Counter
}

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	projectDirectory  string
	configurationPath string
	verbose           bool
	model             string
}

// application binds the parsed global flags to the dependencies.
type application struct {
	dependencies Dependencies
	options      globalOptions
	logger       *zap.Logger
}

// project is the per-command view of one opened project.
type project struct {
	session        *session.Session
	configuration  config.ApplicationConfiguration
	ignorePatterns []string
	tokenModel     string
}

// Execute runs the allcode application.
func Execute(ctx context.Context) error {
	rootCommand := NewRootCommand(Dependencies{})
	rootCommand.SetArgs(normalizeBooleanFlagArguments(rootCommand, os.Args[1:]))
	return rootCommand.ExecuteContext(ctx)
}

// NewRootCommand builds the root Cobra command.
func NewRootCommand(dependencies Dependencies) *cobra.Command {
	app := &application{dependencies: dependencies}
	var showVersion bool

	rootCommand := &cobra.Command{
		Use:           rootUse,
		Short:         rootShortDescription,
		Long:          rootLongDescription,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			if showVersion {
				_, writeError := fmt.Fprintf(command.OutOrStdout(), versionTemplate, utils.GetApplicationVersion())
				return writeError
			}
			return command.Help()
		},
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			return app.initializeLogger()
		},
	}
	persistentFlags := rootCommand.PersistentFlags()
	persistentFlags.StringVar(&app.options.projectDirectory, directoryFlagName, defaultPath, directoryFlagDescription)
	persistentFlags.StringVar(&app.options.configurationPath, configFlagName, "", configFlagDescription)
	persistentFlags.BoolVar(&app.options.verbose, verboseFlagName, false, verboseFlagDescription)
	persistentFlags.StringVar(&app.options.model, modelFlagName, "", modelFlagDescription)
	rootCommand.Flags().BoolVar(&showVersion, versionFlagName, false, versionFlagDescription)

	rootCommand.AddCommand(
		app.createTreeCommand(),
		app.createSelectCommand(),
		app.createDeselectCommand(),
		app.createToggleCommand(),
		app.createSelectAllCommand(),
		app.createDeselectAllCommand(),
		app.createMoveCommand(),
		app.createExpandCommand(),
		app.createCollapseCommand(),
		app.createStatusCommand(),
		app.createWrapCommand(),
		app.createMergeCommand(),
		app.createTokensCommand(),
		app.createWatchCommand(),
		app.createInitCommand(),
	)
	rootCommand.InitDefaultHelpCmd()
	rootCommand.InitDefaultCompletionCmd()
	return rootCommand
}

func (app *application) initializeLogger() error {
	if app.dependencies.Logger != nil {
		app.logger = app.dependencies.Logger
		return nil
	}
	logger, loggerError := utils.NewApplicationLogger(app.options.verbose)
	if loggerError != nil {
		return fmt.Errorf(utils.LoggerInitializationFailedMessageFormat, loggerError)
	}
	app.logger = logger
	return nil
}

func (app *application) clipboard() clipboard.Copier {
	if app.dependencies.Clipboard != nil {
		return app.dependencies.Clipboard
	}
	return clipboard.NewService()
}

// openProject loads configuration and ignore rules for the project directory
// and opens a session over its manifest. onRecount may be nil.
func (app *application) openProject(command *cobra.Command, onRecount func(int)) (*project, error) {
	logger := utils.LoggerOrNop(app.logger)
	projectDirectory, absoluteError := filepath.Abs(app.options.projectDirectory)
	if absoluteError != nil {
		return nil, fmt.Errorf(errorProjectDirectoryFormat, app.options.projectDirectory, absoluteError)
	}
	directoryInformation, statError := os.Stat(projectDirectory)
	if statError != nil {
		return nil, fmt.Errorf(errorProjectDirectoryFormat, projectDirectory, statError)
	}
	if !directoryInformation.IsDir() {
		return nil, fmt.Errorf(errorNotDirectoryFormat, projectDirectory)
	}

	configuration, configurationError := config.LoadApplicationConfiguration(config.LoadOptions{
		WorkingDirectory: projectDirectory,
		ExplicitFilePath: app.options.configurationPath,
	})
	if configurationError != nil {
		return nil, configurationError
	}
	if command.Flags().Changed(modelFlagName) {
		configuration.Tokens.Model = app.options.model
	}
	ignorePatterns, ignoreError := configuration.IgnorePatterns(projectDirectory)
	if ignoreError != nil {
		return nil, ignoreError
	}
	recountDelay, delayError := configuration.DebounceDelay()
	if delayError != nil {
		return nil, delayError
	}

	counter := app.dependencies.Counter
	tokenModel := configuration.TokenModel()
	if counter == nil {
		createdCounter, resolvedModel, counterError := tokenizer.NewCounter(tokenizer.Config{Model: tokenModel})
		if counterError != nil {
			return nil, counterError
		}
		counter = createdCounter
		tokenModel = resolvedModel
	}

	openedSession, openError := session.Open(projectDirectory, session.Options{
		AllowedExtensions: configuration.AllowedExtensions(),
		IgnorePatterns:    ignorePatterns,
		Counter:           counter,
		RecountDelay:      recountDelay,
		OnRecount:         onRecount,
		Logger:            logger,
	})
	if openError != nil {
		return nil, openError
	}
	if openedSession.Repaired() {
		logger.Warn(warningSelectionRepaired, zap.String("project", projectDirectory))
	}
	return &project{
		session:        openedSession,
		configuration:  configuration,
		ignorePatterns: ignorePatterns,
		tokenModel:     tokenModel,
	}, nil
}

// withProject opens the project, runs action and flushes pending recounts.
func (app *application) withProject(command *cobra.Command, action func(*project) error) error {
	openedProject, openError := app.openProject(command, nil)
	if openError != nil {
		return openError
	}
	defer openedProject.session.Close()
	return action(openedProject)
}
