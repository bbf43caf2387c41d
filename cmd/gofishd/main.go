// Package main provides the gofishd binary: the Go Fish room coordinator
// serving websocket clients, health checks, and metrics.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "gofishd",
		Short:         "Go Fish room coordinator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(serveCmd(), versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "gofishd: %s\n", err)
		os.Exit(1)
	}
}
