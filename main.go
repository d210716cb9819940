// Package main is the entry point for the glue relay.
package main

import (
	"fmt"
	"os"

	"github.com/danielolaszy/glue-relay/cmd"
	"github.com/danielolaszy/glue-relay/internal/logging"
)

// main is the entry point of the application.
// It executes the root command and handles any errors that occur.
func main() {
	if err := cmd.Execute(); err != nil {
		logging.Error("command execution failed", "error", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
