package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/temirov/allcode/internal/config"
)

const (
	initUse                 = "init"
	initShortDescription    = "write the default configuration file"
	globalFlagName          = "global"
	forceFlagName           = "force"
	globalFlagDescription   = "write ~/.allcode/config.yaml instead of <dir>/allcode.yaml"
	forceFlagDescription    = "overwrite an existing configuration file"
	configurationWrittenFmt = "configuration written to %s\n"
)

func (app *application) createInitCommand() *cobra.Command {
	var global bool
	var force bool
	initCommand := &cobra.Command{
		Use:   initUse,
		Short: initShortDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			target := config.InitTargetLocal
			if global {
				target = config.InitTargetGlobal
			}
			destinationPath, initError := config.InitializeConfiguration(config.InitOptions{
				Target:           target,
				Force:            force,
				WorkingDirectory: app.options.projectDirectory,
			})
			if initError != nil {
				return initError
			}
			_, writeError := fmt.Fprintf(command.OutOrStdout(), configurationWrittenFmt, destinationPath)
			return writeError
		},
	}
	registerBooleanFlag(initCommand.Flags(), &global, globalFlagName, false, globalFlagDescription)
	registerBooleanFlag(initCommand.Flags(), &force, forceFlagName, false, forceFlagDescription)
	return initCommand
}
