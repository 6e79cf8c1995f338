package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/allcode/internal/merge"
	"github.com/temirov/allcode/internal/output"
	"github.com/temirov/allcode/internal/tree"
	"github.com/temirov/allcode/internal/utils"
)

const (
	treeUse                = "tree"
	statusUse              = "status"
	wrapUse                = "wrap"
	mergeUse               = "merge"
	tokensUse              = "tokens"
	treeAlias              = "t"
	mergeAlias             = "m"
	treeShortDescription   = "display the filtered project tree (" + treeAlias + ")"
	statusShortDescription = "show the ordered selection and token count"
	wrapShortDescription   = "set the intro and outro text of wrapped merges"
	mergeShortDescription  = "merge the selected files into one document (" + mergeAlias + ")"
	tokensShortDescription = "recount the tokens of the selection"
	treeLongDescription    = `List the directories and files that pass the extension filter and ignore rules.
Selected files are marked with [x] and their merge position.`
	mergeLongDescription = `Merge the selected files, in selection order, into one document of fenced blocks.
The result is printed unless --copy, --write or --output is given.`
	mergeUsageExample = `  # Write allcode.txt and copy the result
  allcode merge --write --copy

  # Wrap the merge with the stored intro and outro text
  allcode merge --wrapped --output prompt.md`

	formatFlagName           = "format"
	formatFlagDescription    = "output format: raw, json or xml"
	collapsedFlagName        = "collapsed"
	introFlagName            = "intro"
	outroFlagName            = "outro"
	wrappedFlagName          = "wrapped"
	copyFlagName             = "copy"
	writeFlagName            = "write"
	outputFlagName           = "output"
	collapsedFlagDescription = "hide the contents of directories that are not expanded"
	introFlagDescription     = "text placed before wrapped merges"
	outroFlagDescription     = "text placed after wrapped merges"
	wrappedFlagDescription   = "surround the merge with the intro and outro text"
	copyFlagDescription      = "copy the merge to the clipboard"
	writeFlagDescription     = "write the merge to allcode.txt in the project"
	outputFlagDescription    = "write the merge to this file"

	statusEntryFormat       = "%d. %s\n"
	statusEmptyMessage      = "no files selected"
	statusTokensFormat      = "tokens: %s (%s)\n"
	statusTextFormat        = "%s: %d characters\n"
	tokensFormat            = "%s tokens (%s)\n"
	mergeWrittenFormat      = "merged %d files (%s) into %s\n"
	mergeCopiedFormat       = "merged %d files (%s) to the clipboard\n"
	warningSkippedFile      = "skipped selected file"
	errorAllFilesSkippedFmt = "%w: all %d selected files were skipped"
	errorWriteOutputFormat  = "write %s: %w"
	errorCopyFormat         = "copy merge: %w"
)

func (app *application) createTreeCommand() *cobra.Command {
	var collapsed bool
	var outputFormat string
	treeCommand := &cobra.Command{
		Use:     treeUse,
		Aliases: []string{treeAlias},
		Short:   treeShortDescription,
		Long:    treeLongDescription,
		Args:    cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			format, formatError := output.ParseFormat(outputFormat)
			if formatError != nil {
				return formatError
			}
			return app.withProject(command, func(openedProject *project) error {
				nodes, treeError := openedProject.session.Tree()
				if treeError != nil {
					return treeError
				}
				current := openedProject.session.Manifest()
				options := tree.RenderOptions{
					Selected:       make(map[string]int, len(current.SelectedFiles)),
					Expanded:       make(map[string]struct{}, len(current.ExpandedDirectories)),
					HonorExpansion: collapsed,
				}
				for index, selectedPath := range current.SelectedFiles {
					options.Selected[selectedPath] = index + 1
				}
				for _, directory := range current.ExpandedDirectories {
					options.Expanded[directory] = struct{}{}
				}
				return output.RenderTree(command.OutOrStdout(), format, nodes, options)
			})
		},
	}
	registerBooleanFlag(treeCommand.Flags(), &collapsed, collapsedFlagName, false, collapsedFlagDescription)
	treeCommand.Flags().StringVar(&outputFormat, formatFlagName, output.FormatRaw, formatFlagDescription)
	return treeCommand
}

func (app *application) createStatusCommand() *cobra.Command {
	var outputFormat string
	statusCommand := &cobra.Command{
		Use:   statusUse,
		Short: statusShortDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			format, formatError := output.ParseFormat(outputFormat)
			if formatError != nil {
				return formatError
			}
			return app.withProject(command, func(openedProject *project) error {
				current := openedProject.session.Manifest()
				writer := command.OutOrStdout()
				if format != output.FormatRaw {
					return output.RenderStatus(writer, format, output.Status{
						Project:             openedProject.session.ProjectDirectory(),
						SelectedFiles:       current.SelectedFiles,
						ExpandedDirectories: current.ExpandedDirectories,
						TotalTokens:         current.TotalTokens,
						Model:               openedProject.tokenModel,
						IntroText:           current.IntroText,
						OutroText:           current.OutroText,
					})
				}
				if len(current.SelectedFiles) == 0 {
					if _, writeError := fmt.Fprintln(writer, statusEmptyMessage); writeError != nil {
						return writeError
					}
				}
				for index, selectedPath := range current.SelectedFiles {
					if _, writeError := fmt.Fprintf(writer, statusEntryFormat, index+1, selectedPath); writeError != nil {
						return writeError
					}
				}
				if _, writeError := fmt.Fprintf(writer, statusTokensFormat, formatTokens(current.TotalTokens), openedProject.tokenModel); writeError != nil {
					return writeError
				}
				if current.IntroText != "" {
					if _, writeError := fmt.Fprintf(writer, statusTextFormat, introFlagName, len([]rune(current.IntroText))); writeError != nil {
						return writeError
					}
				}
				if current.OutroText != "" {
					if _, writeError := fmt.Fprintf(writer, statusTextFormat, outroFlagName, len([]rune(current.OutroText))); writeError != nil {
						return writeError
					}
				}
				return nil
			})
		},
	}
	statusCommand.Flags().StringVar(&outputFormat, formatFlagName, output.FormatRaw, formatFlagDescription)
	return statusCommand
}

func (app *application) createWrapCommand() *cobra.Command {
	var introText string
	var outroText string
	wrapCommand := &cobra.Command{
		Use:   wrapUse,
		Short: wrapShortDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			return app.withProject(command, func(openedProject *project) error {
				current := openedProject.session.Manifest()
				nextIntro := current.IntroText
				nextOutro := current.OutroText
				if command.Flags().Changed(introFlagName) {
					nextIntro = introText
				}
				if command.Flags().Changed(outroFlagName) {
					nextOutro = outroText
				}
				return openedProject.session.SetTexts(nextIntro, nextOutro)
			})
		},
	}
	wrapCommand.Flags().StringVar(&introText, introFlagName, "", introFlagDescription)
	wrapCommand.Flags().StringVar(&outroText, outroFlagName, "", outroFlagDescription)
	return wrapCommand
}

// mergeOptions stores the merge command flags.
type mergeOptions struct {
	wrapped    bool
	copy       bool
	write      bool
	outputPath string
}

func (app *application) createMergeCommand() *cobra.Command {
	var options mergeOptions
	mergeCommand := &cobra.Command{
		Use:     mergeUse,
		Aliases: []string{mergeAlias},
		Short:   mergeShortDescription,
		Long:    mergeLongDescription,
		Example: mergeUsageExample,
		Args:    cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			return app.withProject(command, func(openedProject *project) error {
				mode, modeError := openedProject.configuration.MergeMode()
				if modeError != nil {
					return modeError
				}
				if command.Flags().Changed(wrappedFlagName) {
					mode = merge.ModeMerged
					if options.wrapped {
						mode = merge.ModeWrapped
					}
				}
				copyRequested := openedProject.configuration.ClipboardEnabled()
				if command.Flags().Changed(copyFlagName) {
					copyRequested = options.copy
				}
				return app.runMerge(command, openedProject, mode, copyRequested, options)
			})
		},
	}
	registerBooleanFlag(mergeCommand.Flags(), &options.wrapped, wrappedFlagName, false, wrappedFlagDescription)
	registerBooleanFlag(mergeCommand.Flags(), &options.copy, copyFlagName, false, copyFlagDescription)
	registerBooleanFlag(mergeCommand.Flags(), &options.write, writeFlagName, false, writeFlagDescription)
	mergeCommand.Flags().StringVar(&options.outputPath, outputFlagName, "", outputFlagDescription)
	return mergeCommand
}

func (app *application) runMerge(command *cobra.Command, openedProject *project, mode merge.Mode, copyRequested bool, options mergeOptions) error {
	logger := utils.LoggerOrNop(app.logger)
	result, mergeError := openedProject.session.Merge(mode)
	if mergeError != nil {
		return mergeError
	}
	for _, skippedPath := range result.Skipped {
		logger.Warn(warningSkippedFile, zap.String("path", skippedPath))
	}
	if result.Empty {
		return fmt.Errorf(errorAllFilesSkippedFmt, merge.ErrNothingToMerge, len(result.Skipped))
	}

	reportWriter := command.ErrOrStderr()
	mergedSize := utils.FormatFileSize(int64(len(result.Text)))
	destinations := make([]string, 0, 2)
	if options.write {
		markerPath, writeError := merge.WriteMarker(openedProject.session.ProjectDirectory(), result.Text)
		if writeError != nil {
			return writeError
		}
		destinations = append(destinations, markerPath)
	}
	if options.outputPath != "" {
		outputPath, absoluteError := filepath.Abs(options.outputPath)
		if absoluteError != nil {
			return fmt.Errorf(errorWriteOutputFormat, options.outputPath, absoluteError)
		}
		if writeError := os.WriteFile(outputPath, []byte(result.Text), 0o644); writeError != nil {
			return fmt.Errorf(errorWriteOutputFormat, outputPath, writeError)
		}
		destinations = append(destinations, outputPath)
	}
	for _, destination := range destinations {
		if _, reportError := fmt.Fprintf(reportWriter, mergeWrittenFormat, len(result.Included), mergedSize, destination); reportError != nil {
			return reportError
		}
	}
	if copyRequested {
		if copyError := app.clipboard().Copy(result.Text); copyError != nil {
			return fmt.Errorf(errorCopyFormat, copyError)
		}
		if _, reportError := fmt.Fprintf(reportWriter, mergeCopiedFormat, len(result.Included), mergedSize); reportError != nil {
			return reportError
		}
	}
	if len(destinations) == 0 && !copyRequested {
		return writeText(command.OutOrStdout(), result.Text)
	}
	return nil
}

func (app *application) createTokensCommand() *cobra.Command {
	return &cobra.Command{
		Use:   tokensUse,
		Short: tokensShortDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			return app.withProject(command, func(openedProject *project) error {
				totalTokens, recountError := openedProject.session.Recount()
				if recountError != nil {
					return recountError
				}
				_, writeError := fmt.Fprintf(command.OutOrStdout(), tokensFormat, formatTokens(totalTokens), openedProject.tokenModel)
				return writeError
			})
		},
	}
}

func formatTokens(totalTokens int) string {
	return utils.FormatCount(totalTokens, utils.EnvironmentLanguage())
}

func writeText(writer io.Writer, text string) error {
	if _, writeError := io.WriteString(writer, text); writeError != nil {
		return writeError
	}
	if !strings.HasSuffix(text, "\n") {
		_, writeError := io.WriteString(writer, "\n")
		return writeError
	}
	return nil
}
