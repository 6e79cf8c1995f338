package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

const (
	selectUse                   = "select <paths...>"
	deselectUse                 = "deselect <paths...>"
	toggleUse                   = "toggle <paths...>"
	selectAllUse                = "select-all"
	deselectAllUse              = "deselect-all"
	moveUse                     = "move <path> <position>"
	expandUse                   = "expand [directories...]"
	collapseUse                 = "collapse [directories...]"
	selectShortDescription      = "append files to the selection"
	deselectShortDescription    = "remove files from the selection"
	toggleShortDescription      = "flip the selection state of files"
	selectAllShortDescription   = "select every file shown in the tree"
	deselectAllShortDescription = "clear the selection"
	moveShortDescription        = "move a selected file to a 1-based position"
	expandShortDescription      = "mark directories as expanded"
	collapseShortDescription    = "mark directories as collapsed"
	moveUsageExample            = `  # Put main.go first in the merge order
  allcode move main.go 1`
	selectUsageExample = `  # Select two files in merge order
  allcode select cmd/app/main.go internal/app/app.go`

	allFlagName                = "all"
	expandAllFlagDescription   = "expand every directory in the tree"
	collapseAllFlagDescription = "collapse every directory"
	errorInvalidPositionFormat = "invalid position %q: %w"
	errorDirectoriesOrAll      = "give directories or --all"
	selectionSummaryFormat     = "%d files selected\n"
)

func (app *application) createSelectCommand() *cobra.Command {
	return &cobra.Command{
		Use:     selectUse,
		Short:   selectShortDescription,
		Example: selectUsageExample,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			return app.mutateSelection(command, func(openedProject *project) error {
				return openedProject.session.Select(arguments...)
			})
		},
	}
}

func (app *application) createDeselectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   deselectUse,
		Short: deselectShortDescription,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			return app.mutateSelection(command, func(openedProject *project) error {
				return openedProject.session.Deselect(arguments...)
			})
		},
	}
}

func (app *application) createToggleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   toggleUse,
		Short: toggleShortDescription,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			return app.mutateSelection(command, func(openedProject *project) error {
				return openedProject.session.Toggle(arguments...)
			})
		},
	}
}

func (app *application) createSelectAllCommand() *cobra.Command {
	return &cobra.Command{
		Use:   selectAllUse,
		Short: selectAllShortDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			return app.mutateSelection(command, func(openedProject *project) error {
				return openedProject.session.SelectAll()
			})
		},
	}
}

func (app *application) createDeselectAllCommand() *cobra.Command {
	return &cobra.Command{
		Use:   deselectAllUse,
		Short: deselectAllShortDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			return app.mutateSelection(command, func(openedProject *project) error {
				return openedProject.session.DeselectAll()
			})
		},
	}
}

func (app *application) createMoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     moveUse,
		Short:   moveShortDescription,
		Example: moveUsageExample,
		Args:    cobra.ExactArgs(2),
		RunE: func(command *cobra.Command, arguments []string) error {
			position, parseError := strconv.Atoi(arguments[1])
			if parseError != nil {
				return fmt.Errorf(errorInvalidPositionFormat, arguments[1], parseError)
			}
			return app.mutateSelection(command, func(openedProject *project) error {
				return openedProject.session.Move(arguments[0], position)
			})
		},
	}
}

func (app *application) createExpandCommand() *cobra.Command {
	var all bool
	expandCommand := &cobra.Command{
		Use:   expandUse,
		Short: expandShortDescription,
		RunE: func(command *cobra.Command, arguments []string) error {
			if !all && len(arguments) == 0 {
				return errors.New(errorDirectoriesOrAll)
			}
			return app.withProject(command, func(openedProject *project) error {
				if all {
					return openedProject.session.ExpandAll()
				}
				return openedProject.session.Expand(arguments...)
			})
		},
	}
	registerBooleanFlag(expandCommand.Flags(), &all, allFlagName, false, expandAllFlagDescription)
	return expandCommand
}

func (app *application) createCollapseCommand() *cobra.Command {
	var all bool
	collapseCommand := &cobra.Command{
		Use:   collapseUse,
		Short: collapseShortDescription,
		RunE: func(command *cobra.Command, arguments []string) error {
			if !all && len(arguments) == 0 {
				return errors.New(errorDirectoriesOrAll)
			}
			return app.withProject(command, func(openedProject *project) error {
				if all {
					return openedProject.session.CollapseAll()
				}
				return openedProject.session.Collapse(arguments...)
			})
		},
	}
	registerBooleanFlag(collapseCommand.Flags(), &all, allFlagName, false, collapseAllFlagDescription)
	return collapseCommand
}

// mutateSelection applies change and reports the resulting selection size.
// The pending recount is flushed when the project closes.
func (app *application) mutateSelection(command *cobra.Command, change func(*project) error) error {
	return app.withProject(command, func(openedProject *project) error {
		if changeError := change(openedProject); changeError != nil {
			return changeError
		}
		_, writeError := fmt.Fprintf(command.OutOrStdout(), selectionSummaryFormat, len(openedProject.session.Manifest().SelectedFiles))
		return writeError
	})
}
