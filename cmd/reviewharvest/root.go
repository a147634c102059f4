package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for reviewharvest.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reviewharvest",
		Short: "Harvest app reviews from rendered listing pages",
		Long: `reviewharvest drives a headless Chrome over one or more review listings,
reveals the lazily loaded reviews, and appends each accepted review to a
JSON Lines file as {"app", "username", "rating", "review"}.

Every source runs as an isolated job; a bounded number of jobs run at once.
The process exits non-zero when any job fails.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")

	// Add subcommands
	cmd.AddCommand(NewHarvestCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		// The summary already reported failed jobs.
		if !errors.Is(err, errJobsFailed) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
