package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/nao1215/reviewharvest/internal/browser"
	"github.com/nao1215/reviewharvest/internal/browser/chrome"
	"github.com/nao1215/reviewharvest/internal/config"
	"github.com/nao1215/reviewharvest/internal/database"
	rhlog "github.com/nao1215/reviewharvest/internal/log"
	"github.com/nao1215/reviewharvest/internal/model"
	"github.com/nao1215/reviewharvest/internal/pipeline"
	"github.com/nao1215/reviewharvest/internal/report"
	"github.com/nao1215/reviewharvest/internal/sink"
	"github.com/spf13/cobra"
)

// errJobsFailed is returned when the run finished but some job failed.
var errJobsFailed = errors.New("one or more jobs failed")

// errSkipSeenNeedsDB is returned when cross-run dedup is requested without
// the run database.
var errSkipSeenNeedsDB = errors.New("--skip-seen needs the run database (remove --no-db)")

// NewHarvestCmd creates the harvest command.
func NewHarvestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvest [listing-url...]",
		Short: "Harvest reviews from one or more listings",
		Long: `Harvest opens every listing in a browser tab, passes the consent or
"see all reviews" gate, scrolls the review list until it stops growing, and
appends each accepted review to a JSON Lines file.

Per listing, at most --max-per-rating reviews are kept for each star rating,
identical review texts are kept once, and short reviews are kept only when
enough people found them helpful.

Examples:
  # Harvest one listing
  reviewharvest harvest "https://play.google.com/store/apps/details?id=com.example.app&hl=en&gl=US"

  # Harvest the listings of the config file, five at a time
  reviewharvest harvest -b 5

  # Walk the star filter and keep 20 reviews per rating
  reviewharvest harvest -R -r 20 <listing-url>

  # Skip reviews written by earlier runs and print a Markdown summary
  reviewharvest harvest --skip-seen --summary markdown <listing-url>

  # Use an already running Chrome
  reviewharvest harvest --remote-browser ws://127.0.0.1:9222/devtools/browser/<id> <listing-url>`,
		Args: cobra.ArbitraryArgs,
		RunE: runHarvestCmd,
	}

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .reviewharvest in current or home directory)")

	// Output flags
	cmd.Flags().StringP("output", "o", config.DefaultOutputPath,
		"JSON Lines file reviews are appended to")
	cmd.Flags().String("summary", config.SummaryText,
		"Summary format printed to stdout: text, json or markdown")
	cmd.Flags().String("report-file", "",
		"Also write a Markdown summary to this file")

	// Harvest behavior flags
	cmd.Flags().IntP("concurrency", "b", config.DefaultConcurrency,
		"Number of listings harvested at the same time")
	cmd.Flags().IntP("max-per-rating", "r", config.DefaultMaxPerRating,
		"Maximum reviews kept per star rating and listing")
	cmd.Flags().IntP("min-body-length", "l", config.DefaultMinBodyLength,
		"Reviews this short need helpful votes to be kept")
	cmd.Flags().BoolP("by-rating", "R", false,
		"Iterate the star filter 1..5 instead of reading the list once")
	cmd.Flags().Bool("drop-unrated", false,
		"Drop reviews whose rating cannot be read")
	cmd.Flags().Bool("skip-seen", false,
		"Skip reviews already written for the same listing by earlier runs")
	cmd.Flags().String("rounding", config.NewConfig().Rounding,
		"How fractional ratings become buckets: floor, round or ceil")
	cmd.Flags().Int("scroll-attempts", config.DefaultScrollAttempts,
		"Maximum scrolls while waiting for the list to stop growing")
	cmd.Flags().Duration("scroll-delay", config.DefaultScrollDelay,
		"Pause between scrolls")
	cmd.Flags().DurationP("timeout", "t", browser.DefaultNavigationTimeout,
		"Navigation timeout for each listing")

	// Browser flags
	cmd.Flags().String("remote-browser", "",
		"DevTools WebSocket URL of an already running Chrome")
	cmd.Flags().Bool("headful", false,
		"Show the browser window")
	cmd.Flags().Bool("no-stealth", false,
		"Disable bot-detection hardening of new pages")

	// Storage flags
	cmd.Flags().Bool("no-db", false,
		"Do not record the run in the run database")

	return cmd
}

// runHarvestCmd executes the harvest command.
func runHarvestCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	logger := setupLogger(cmd, cfg.Verbose)
	slog.SetDefault(logger)

	// SIGINT/SIGTERM stop admission; running jobs see the cancelled context
	// at their next wait.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reportFile, err := cmd.Flags().GetString("report-file")
	if err != nil {
		return err
	}

	h := &harvestRun{
		cfg:        cfg,
		logger:     logger,
		stdout:     cmd.OutOrStdout(),
		progress:   cmd.ErrOrStderr(),
		launch:     launchChrome,
		reportFile: reportFile,
	}
	return h.run(ctx)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// setupLogger creates a masking logger on stderr.
func setupLogger(cmd *cobra.Command, verbose bool) *slog.Logger {
	jsonLogs, err := cmd.Flags().GetBool("log-json")
	if err != nil {
		jsonLogs, _ = cmd.Root().PersistentFlags().GetBool("log-json") //nolint:errcheck // defaults to text
	}
	if jsonLogs {
		return rhlog.NewSecureJSONLogger(cmd.ErrOrStderr(), verbose)
	}
	return rhlog.NewSecureLogger(cmd.ErrOrStderr(), verbose)
}

// buildConfig creates a Config from defaults, the configuration file and
// the flags that were set explicitly, in that order. Positional sources
// come before the sources of the file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	cfg.ConfigFilePath, err = flags.GetString("config")
	if err != nil {
		return nil, err
	}
	if _, err := config.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	cfg.Sources = append(append([]string(nil), args...), cfg.Sources...)
	cfg.Verbose = getVerboseFlag(cmd)

	stringFlags := map[string]*string{
		"output":         &cfg.OutputPath,
		"summary":        &cfg.SummaryFormat,
		"rounding":       &cfg.Rounding,
		"remote-browser": &cfg.RemoteBrowser,
	}
	for name, dst := range stringFlags {
		if !flags.Changed(name) {
			continue
		}
		if *dst, err = flags.GetString(name); err != nil {
			return nil, err
		}
	}

	intFlags := map[string]*int{
		"concurrency":     &cfg.Concurrency,
		"max-per-rating":  &cfg.MaxPerRating,
		"min-body-length": &cfg.MinBodyLength,
		"scroll-attempts": &cfg.ScrollAttempts,
	}
	for name, dst := range intFlags {
		if !flags.Changed(name) {
			continue
		}
		if *dst, err = flags.GetInt(name); err != nil {
			return nil, err
		}
	}

	boolFlags := map[string]*bool{
		"by-rating":    &cfg.ByRating,
		"drop-unrated": &cfg.DropUnrated,
		"skip-seen":    &cfg.SkipSeen,
		"headful":      &cfg.Headful,
		"no-stealth":   &cfg.NoStealth,
	}
	for name, dst := range boolFlags {
		if !flags.Changed(name) {
			continue
		}
		if *dst, err = flags.GetBool(name); err != nil {
			return nil, err
		}
	}

	durationFlags := map[string]*time.Duration{
		"scroll-delay": &cfg.ScrollDelay,
		"timeout":      &cfg.NavigationTimeout,
	}
	for name, dst := range durationFlags {
		if !flags.Changed(name) {
			continue
		}
		if *dst, err = flags.GetDuration(name); err != nil {
			return nil, err
		}
	}

	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB

	return cfg, nil
}

// launchFunc starts the rendering browser for a run.
type launchFunc func(cfg *config.Config, logger *slog.Logger) (browser.Browser, error)

// launchChrome launches (or connects to) Chrome.
func launchChrome(cfg *config.Config, logger *slog.Logger) (browser.Browser, error) {
	return chrome.Launch(chrome.Config{
		RemoteURL: cfg.RemoteBrowser,
		Headful:   cfg.Headful,
		Stealth:   !cfg.NoStealth,
		Options: browser.Options{
			Viewport:          cfg.Viewport,
			Headers:           cfg.Headers,
			NavigationTimeout: cfg.NavigationTimeout,
		},
		Logger: logger,
	})
}

// harvestRun wires one invocation of the harvest command.
type harvestRun struct {
	cfg        *config.Config
	logger     *slog.Logger
	stdout     io.Writer
	progress   io.Writer
	launch     launchFunc
	reportFile string

	// harvesterOpts are appended to the options of the Harvester.
	harvesterOpts []pipeline.HarvesterOption
}

// run validates the configuration, harvests every source and prints the
// summary. It returns errJobsFailed when any job failed.
func (h *harvestRun) run(ctx context.Context) error {
	cfg := h.cfg

	sources, err := model.NormalizeSources(cfg.Sources)
	if err != nil {
		return fmt.Errorf("invalid source: %w", err)
	}
	cfg.Sources = make([]string, len(sources))
	for i, src := range sources {
		cfg.Sources[i] = src.String()
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if cfg.SkipSeen && !cfg.SaveToDB {
		return errSkipSeenNeedsDB
	}

	summaryWriter, closeReport, err := h.summaryWriter()
	if err != nil {
		return err
	}
	defer closeReport()

	// Open database connection if saving is enabled
	var db *database.HarvestDB
	if cfg.SaveToDB {
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		h.logger.Info("database opened", "path", db.Path())
	}

	out, err := sink.OpenJSONL(cfg.OutputPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := out.Close(); err != nil {
			h.logger.Error("failed to close output", "path", out.Path(), "error", err)
		}
	}()

	var sk sink.Sink = out
	harvesterOpts := []pipeline.HarvesterOption{pipeline.WithHarvesterLogger(h.logger)}
	if db != nil {
		sk = sink.NewRemembering(out, db, h.logger)
		harvesterOpts = append(harvesterOpts, pipeline.WithSeenStore(db))
	}

	br, err := h.launch(cfg, h.logger)
	if err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	defer func() {
		if err := br.Close(); err != nil {
			h.logger.Error("failed to close browser", "error", err)
		}
	}()

	harvesterOpts = append(harvesterOpts, h.harvesterOpts...)
	harvester, err := pipeline.NewHarvester(br, sk, cfg, harvesterOpts...)
	if err != nil {
		return err
	}

	rec := newRunRecorder(ctx, db, h.logger)
	rec.begin(len(sources))

	done := 0
	total := len(model.UniqueSources(sources))
	scheduler := pipeline.NewScheduler(harvester,
		pipeline.WithConcurrency(cfg.Concurrency),
		pipeline.WithSchedulerLogger(h.logger),
		pipeline.WithJobCallback(func(job *model.Job) {
			done++
			fmt.Fprintf(h.progress, "[%d/%d] %s %s (%d records)\n",
				done, total, job.State, job.Source, job.RecordsWritten)
			rec.job(job)
		}),
	)

	fmt.Fprintf(h.progress, "Harvesting %d source(s) into %s (concurrency: %d)...\n",
		total, out.Path(), cfg.Concurrency)

	summary := scheduler.Run(ctx, sources)
	rec.finish(summary)

	if _, err := summaryWriter.WriteSummary(summary); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}

	if !summary.OK() {
		return fmt.Errorf("%w: %d of %d", errJobsFailed, summary.Failed, summary.Total)
	}
	return nil
}

// summaryWriter returns the stdout writer, fanned out to a Markdown file
// when a report file was requested.
func (h *harvestRun) summaryWriter() (report.Writer, func(), error) {
	stdout, err := report.NewWriter(h.cfg.SummaryFormat, h.stdout, getVersion())
	if err != nil {
		return nil, nil, err
	}
	if h.reportFile == "" {
		return stdout, func() {}, nil
	}

	dir := filepath.Dir(h.reportFile)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	f, err := os.OpenFile(h.reportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create report file: %w", err)
	}
	closeFn := func() {
		if err := f.Close(); err != nil {
			h.logger.Error("failed to close report file", "path", h.reportFile, "error", err)
		}
	}
	return report.NewMultiWriter(stdout, report.NewMarkdownWriter(f, getVersion())), closeFn, nil
}

// runRecorder stores the run in the database. Storage failures are logged;
// the harvest itself already succeeded or failed on its own terms.
type runRecorder struct {
	ctx    context.Context
	db     *database.HarvestDB
	logger *slog.Logger
	runID  int64
}

func newRunRecorder(ctx context.Context, db *database.HarvestDB, logger *slog.Logger) *runRecorder {
	// The run is recorded even when the harvest is interrupted.
	return &runRecorder{ctx: context.WithoutCancel(ctx), db: db, logger: logger}
}

func (r *runRecorder) begin(sources int) {
	if r.db == nil {
		return
	}
	id, err := r.db.BeginRun(r.ctx, time.Now(), sources)
	if err != nil {
		r.logger.Error("failed to record run", "error", err)
		return
	}
	r.runID = id
}

func (r *runRecorder) job(job *model.Job) {
	if r.db == nil || r.runID == 0 {
		return
	}
	if err := r.db.SaveJob(r.ctx, r.runID, job); err != nil {
		r.logger.Error("failed to record job", "source", job.Source, "error", err)
	}
}

func (r *runRecorder) finish(summary *model.Summary) {
	if r.db == nil || r.runID == 0 {
		return
	}
	if err := r.db.FinishRun(r.ctx, r.runID, summary); err != nil {
		r.logger.Error("failed to record run summary", "error", err)
		return
	}
	r.logger.Info("run recorded", "run", r.runID)
}
