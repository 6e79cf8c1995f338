package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/temirov/allcode/internal/cli"
	"github.com/temirov/allcode/internal/utils"
)

// main is the entry point for the allcode command.
func main() {
	loggerInstance, loggerInitializationError := utils.NewApplicationLogger(false)
	if loggerInitializationError != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf(utils.LoggerInitializationFailedMessageFormat, loggerInitializationError))
		os.Exit(1)
	}
	defer func() { _ = loggerInstance.Sync() }()
	if applicationExecutionError := cli.Execute(context.Background()); applicationExecutionError != nil {
		loggerInstance.Error(utils.ApplicationExecutionFailedMessage, zap.Error(applicationExecutionError))
		_ = loggerInstance.Sync()
		os.Exit(1)
	}
}
