package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/nao1215/reviewharvest/internal/config"
	"github.com/nao1215/reviewharvest/internal/database"
	"github.com/nao1215/reviewharvest/internal/model"
	"github.com/nao1215/reviewharvest/internal/report"
	"github.com/spf13/cobra"
)

// defaultHistoryLimit is the number of runs listed without --limit.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
// This command shows runs stored in the run database.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past harvest runs",
		Long: `History lists the runs recorded in the run database, newest first.

With --run-id it prints the summary of that run, including every job, its
record count, soft events and error. With --forget it deletes the stored
review fingerprints of a listing, so the next --skip-seen run harvests it
from scratch.

Examples:
  # List the last 20 runs
  reviewharvest history

  # Show one run as Markdown
  reviewharvest history --run-id 7 --markdown

  # Output the run list in JSON format
  reviewharvest history --json --limit 100

  # Forget what was harvested for a listing
  reviewharvest history --forget "https://play.google.com/store/apps/details?id=com.example.app"`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().Int64P("run-id", "i", 0,
		"Show the summary of a specific run (use history to see available IDs)")
	cmd.Flags().IntP("limit", "n", defaultHistoryLimit,
		"Maximum number of runs to list (0 lists all)")
	cmd.Flags().String("forget", "",
		"Delete the stored review fingerprints of a listing")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output in Markdown format")
	cmd.MarkFlagsMutuallyExclusive("json", "markdown")

	// Database location, mainly for tests and custom setups
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the run database")

	return cmd
}

// historyOptions holds the parsed flags of the history command.
type historyOptions struct {
	runID  int64
	limit  int
	forget string
	format string
	dbDir  string
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	opts, err := parseHistoryFlags(cmd)
	if err != nil {
		return err
	}
	return runHistory(cmd, opts)
}

func parseHistoryFlags(cmd *cobra.Command) (historyOptions, error) {
	var opts historyOptions
	var err error

	if opts.runID, err = cmd.Flags().GetInt64("run-id"); err != nil {
		return opts, err
	}
	if opts.limit, err = cmd.Flags().GetInt("limit"); err != nil {
		return opts, err
	}
	if opts.forget, err = cmd.Flags().GetString("forget"); err != nil {
		return opts, err
	}
	if opts.dbDir, err = cmd.Flags().GetString("db-dir"); err != nil {
		return opts, err
	}

	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return opts, err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return opts, err
	}
	switch {
	case jsonOutput:
		opts.format = report.FormatJSON
	case markdownOutput:
		opts.format = report.FormatMarkdown
	default:
		opts.format = report.FormatText
	}

	if opts.runID < 0 {
		return opts, fmt.Errorf("invalid run ID: %d", opts.runID)
	}
	return opts, nil
}

func runHistory(cmd *cobra.Command, opts historyOptions) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	// Validate arguments before opening the database.
	var forget model.Source
	if opts.forget != "" {
		var err error
		if forget, err = model.NormalizeSource(opts.forget); err != nil {
			return fmt.Errorf("invalid source: %w", err)
		}
	}

	db, err := database.Open(opts.dbDir, database.Options{CreateIfNotExists: false, EnableWAL: true})
	if errors.Is(err, database.ErrNotFound) {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if forget != "" {
		n, err := db.ForgetSource(ctx, forget)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Forgot %d fingerprint(s) of %s\n", n, forget)
		return nil
	}

	w, err := report.NewWriter(opts.format, out, getVersion())
	if err != nil {
		return err
	}

	if opts.runID > 0 {
		return showRun(cmd, db, w, opts.runID)
	}

	runs, err := db.ListRuns(ctx, opts.limit)
	if err != nil {
		return err
	}
	_, err = w.WriteRuns(runs)
	return err
}

// showRun writes the summary of one stored run.
func showRun(cmd *cobra.Command, db *database.HarvestDB, w report.Writer, runID int64) error {
	ctx := cmd.Context()

	run, err := db.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %d not found", runID)
	}

	jobs, err := db.ListJobs(ctx, runID)
	if err != nil {
		return err
	}

	if !run.Finished() {
		printUnfinished(cmd.ErrOrStderr(), run)
	}
	_, err = w.WriteSummary(run.Summary(jobs))
	return err
}

func printUnfinished(w io.Writer, run *database.RunRecord) {
	fmt.Fprintf(w, "Run %d did not finish; showing the jobs recorded so far.\n", run.ID)
}
