// Package main is the entry point for the reconcile CLI.
package main

import (
	"fmt"
	"os"

	"github.com/ambre-dwings/reconcile/internal/logging"
)

func main() {
	logging.Init("reconcile")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
