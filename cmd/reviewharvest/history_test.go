package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/reviewharvest/internal/database"
	"github.com/nao1215/reviewharvest/internal/model"
	"github.com/nao1215/reviewharvest/internal/quota"
)

// TestNewHistoryCmd tests the history command flags.
func TestNewHistoryCmd(t *testing.T) {
	t.Parallel()

	cmd := NewHistoryCmd()

	tests := []struct {
		name      string
		shorthand string
		defValue  string
	}{
		{name: "run-id", shorthand: "i", defValue: "0"},
		{name: "limit", shorthand: "n", defValue: "20"},
		{name: "forget", defValue: ""},
		{name: "json", shorthand: "j", defValue: "false"},
		{name: "markdown", shorthand: "m", defValue: "false"},
		{name: "db-dir"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			flag := cmd.Flags().Lookup(tt.name)
			if flag == nil {
				t.Fatalf("expected %s flag", tt.name)
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("expected shorthand %q, got %q", tt.shorthand, flag.Shorthand)
			}
			if tt.name != "db-dir" && flag.DefValue != tt.defValue {
				t.Errorf("expected default %q, got %q", tt.defValue, flag.DefValue)
			}
		})
	}
}

const (
	historyApp  = "https://play.example.com/app"
	historyDown = "https://play.example.com/down"
)

// seedHistory creates a database with one finished run of two jobs and one
// interrupted run. It returns the database directory.
func seedHistory(t *testing.T) string {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "db")
	db, err := database.Open(dir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	started := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

	runID, err := db.BeginRun(ctx, started, 2)
	if err != nil {
		t.Fatalf("BeginRun() error = %v", err)
	}

	ok := model.NewJob(historyApp)
	ok.Start()
	ok.Title = "Tower Defense"
	ok.Processed = 3
	ok.RecordWritten(5)
	ok.RecordWritten(1)
	ok.Succeed()

	failed := model.NewJob(historyDown)
	failed.Start()
	failed.Fail(errors.New("navigation failed: net::ERR_NAME_NOT_RESOLVED"))

	for _, job := range []*model.Job{ok, failed} {
		if err := db.SaveJob(ctx, runID, job); err != nil {
			t.Fatalf("SaveJob() error = %v", err)
		}
	}
	summary := model.NewSummary([]*model.Job{ok, failed})
	summary.StartedAt = started
	summary.FinishedAt = started.Add(time.Minute)
	if err := db.FinishRun(ctx, runID, summary); err != nil {
		t.Fatalf("FinishRun() error = %v", err)
	}

	for _, body := range []string{"Best tower defense I have played", "Crashes on every level start"} {
		if err := db.Remember(ctx, historyApp, quota.FingerprintOf(body)); err != nil {
			t.Fatalf("Remember() error = %v", err)
		}
	}

	if _, err := db.BeginRun(ctx, started.Add(time.Hour), 1); err != nil {
		t.Fatalf("BeginRun() error = %v", err)
	}
	return dir
}

// runHistoryArgs executes the history command and returns stdout and stderr.
func runHistoryArgs(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := NewHistoryCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	cmd.SetContext(context.Background())
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRunHistory(t *testing.T) {
	t.Parallel()

	t.Run("missing database", func(t *testing.T) {
		t.Parallel()

		out, _, err := runHistoryArgs(t, "--db-dir", filepath.Join(t.TempDir(), "none"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "No runs recorded.") {
			t.Errorf("unexpected output %q", out)
		}
	})

	t.Run("lists runs newest first", func(t *testing.T) {
		t.Parallel()

		out, _, err := runHistoryArgs(t, "--db-dir", seedHistory(t))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		lines := strings.Split(strings.TrimSpace(out), "\n")
		if len(lines) != 3 {
			t.Fatalf("expected a header and 2 runs, got:\n%s", out)
		}
		if !strings.HasPrefix(lines[0], "RUN") {
			t.Errorf("expected a header, got %q", lines[0])
		}
		if fields := strings.Fields(lines[1]); fields[0] != "2" || fields[3] != "-" {
			t.Errorf("expected the interrupted run first, got %q", lines[1])
		}
		if fields := strings.Fields(lines[2]); fields[0] != "1" || fields[3] != "2" {
			t.Errorf("expected the finished run last, got %q", lines[2])
		}
	})

	t.Run("limit", func(t *testing.T) {
		t.Parallel()

		out, _, err := runHistoryArgs(t, "--db-dir", seedHistory(t), "-n", "1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if lines := strings.Split(strings.TrimSpace(out), "\n"); len(lines) != 2 {
			t.Errorf("expected a header and 1 run, got:\n%s", out)
		}
	})

	t.Run("json list", func(t *testing.T) {
		t.Parallel()

		out, _, err := runHistoryArgs(t, "--db-dir", seedHistory(t), "--json")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var runs []map[string]any
		if err := json.Unmarshal([]byte(out), &runs); err != nil {
			t.Fatalf("invalid JSON output: %v\n%s", err, out)
		}
		if len(runs) != 2 {
			t.Fatalf("expected 2 runs, got %d", len(runs))
		}
		if runs[1]["records_written"] != float64(2) {
			t.Errorf("unexpected finished run %v", runs[1])
		}
		if _, ok := runs[0]["finished_at"]; ok {
			t.Errorf("interrupted run must not have finished_at: %v", runs[0])
		}
	})

	t.Run("shows one run", func(t *testing.T) {
		t.Parallel()

		out, _, err := runHistoryArgs(t, "--db-dir", seedHistory(t), "--run-id", "1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		for _, want := range []string{
			"total=2 succeeded=1 failed=1 records=2",
			historyApp,
			"Tower Defense",
			"ERR_NAME_NOT_RESOLVED",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q:\n%s", want, out)
			}
		}
	})

	t.Run("shows an interrupted run with a notice", func(t *testing.T) {
		t.Parallel()

		out, errOut, err := runHistoryArgs(t, "--db-dir", seedHistory(t), "-i", "2", "--markdown")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(errOut, "Run 2 did not finish") {
			t.Errorf("expected a notice on stderr, got %q", errOut)
		}
		if !strings.Contains(out, "# Review Harvest Summary") {
			t.Errorf("expected a Markdown summary:\n%s", out)
		}
	})

	t.Run("unknown run", func(t *testing.T) {
		t.Parallel()

		_, _, err := runHistoryArgs(t, "--db-dir", seedHistory(t), "-i", "99")
		if err == nil || !strings.Contains(err.Error(), "run 99 not found") {
			t.Errorf("expected a not found error, got %v", err)
		}
	})

	t.Run("negative run ID", func(t *testing.T) {
		t.Parallel()

		_, _, err := runHistoryArgs(t, "--db-dir", seedHistory(t), "-i", "-1")
		if err == nil || !strings.Contains(err.Error(), "invalid run ID") {
			t.Errorf("expected an invalid run ID error, got %v", err)
		}
	})

	t.Run("json and markdown are exclusive", func(t *testing.T) {
		t.Parallel()

		_, _, err := runHistoryArgs(t, "--db-dir", seedHistory(t), "--json", "--markdown")
		if err == nil {
			t.Error("expected an error for --json with --markdown")
		}
	})

	t.Run("forget removes fingerprints of one source", func(t *testing.T) {
		t.Parallel()

		dir := seedHistory(t)
		out, _, err := runHistoryArgs(t, "--db-dir", dir, "--forget", "https://PLAY.example.com/app")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "Forgot 2 fingerprint(s) of "+historyApp) {
			t.Errorf("unexpected output %q", out)
		}

		db, err := database.Open(dir, database.DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		fps, err := db.Fingerprints(context.Background(), historyApp)
		if err != nil {
			t.Fatalf("Fingerprints() error = %v", err)
		}
		if len(fps) != 0 {
			t.Errorf("expected no fingerprints, got %d", len(fps))
		}
	})

	t.Run("forget rejects an invalid source", func(t *testing.T) {
		t.Parallel()

		_, _, err := runHistoryArgs(t, "--db-dir", seedHistory(t), "--forget", "not a url")
		if !errors.Is(err, model.ErrInvalidSource) {
			t.Errorf("expected ErrInvalidSource, got %v", err)
		}
	})
}
