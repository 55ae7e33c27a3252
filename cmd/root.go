// Package cmd defines the lsst-io-analysis command line.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lsst-io-analysis",
		Short: "Inventory documentation projects published on LSST the Docs.",
		Long: `lsst-io-analysis lists every product registered with LTD Keeper,
collects edition and rebuild data for each one, enriches the records with
metadata from the Algolia documentation index and reports the result on the
console or as CSV.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("config", "", "config file (YAML, TOML or JSON)")
	cmd.AddCommand(newAnalyzeCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
