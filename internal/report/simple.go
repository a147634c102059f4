package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/reviewharvest/internal/database"
	"github.com/nao1215/reviewharvest/internal/model"
)

// SimpleWriter outputs human-readable text for terminal display.
// The first line is always the aggregate count line so scripts can grep it.
type SimpleWriter struct {
	baseWriter

	// verbose adds per-job soft event counters.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// WriteSummary outputs the run summary in human-readable format.
func (w *SimpleWriter) WriteSummary(summary *model.Summary) (int, error) {
	var sb strings.Builder

	sb.WriteString(countLine(summary))
	sb.WriteString("\n")

	w.writeJobs(&sb, summary)
	w.writeRatings(&sb, summary)
	w.writeEvents(&sb, summary.Events)

	if elapsed := summary.Elapsed(); elapsed > 0 {
		sb.WriteString(fmt.Sprintf("\nElapsed: %s\n", elapsed.Round(time.Millisecond)))
	}

	return w.output.Write([]byte(sb.String()))
}

// writeJobs writes one line per job.
func (w *SimpleWriter) writeJobs(sb *strings.Builder, summary *model.Summary) {
	if len(summary.Jobs) == 0 {
		return
	}

	sb.WriteString("\n")
	sb.WriteString(sectionRule("JOBS"))

	for _, job := range summary.Jobs {
		indicator := "ok"
		if job.State != model.JobSucceeded {
			indicator = "!!"
		}
		sb.WriteString(fmt.Sprintf("  [%s] %s\n", indicator, job.Source))
		if job.Title != "" {
			sb.WriteString(fmt.Sprintf("       Title:   %s\n", job.Title))
		}
		sb.WriteString(fmt.Sprintf("       Records: %d of %d processed\n", job.RecordsWritten, job.Processed))
		if job.Err != nil {
			sb.WriteString(fmt.Sprintf("       Error:   %s\n", job.ErrorMessage()))
		}
		if w.verbose && job.Events.Total() > 0 {
			for _, kind := range job.Events.Kinds() {
				sb.WriteString(fmt.Sprintf("       %-26s %d\n", kind+":", job.Events[kind]))
			}
		}
	}
}

// writeRatings writes the written-record distribution.
func (w *SimpleWriter) writeRatings(sb *strings.Builder, summary *model.Summary) {
	if summary.RecordsWritten == 0 {
		return
	}

	sb.WriteString("\n")
	sb.WriteString(sectionRule("RATINGS"))

	for i := model.MaxRating; i >= 0; i-- {
		n := summary.Ratings[i]
		if i == 0 && n == 0 {
			continue
		}
		sb.WriteString(fmt.Sprintf("  %-8s %d\n", ratingLabel(i)+":", n))
	}
}

// writeEvents writes the aggregate soft event counters.
func (w *SimpleWriter) writeEvents(sb *strings.Builder, events model.EventCounts) {
	if events.Total() == 0 {
		return
	}

	sb.WriteString("\n")
	sb.WriteString(sectionRule("SOFT EVENTS"))

	for _, kind := range events.Kinds() {
		sb.WriteString(fmt.Sprintf("  %-26s %d\n", kind+":", events[kind]))
	}
}

// WriteRuns outputs stored runs as a fixed-width table.
func (w *SimpleWriter) WriteRuns(runs []database.RunRecord) (int, error) {
	var sb strings.Builder

	if len(runs) == 0 {
		sb.WriteString("No runs recorded.\n")
		return w.output.Write([]byte(sb.String()))
	}

	sb.WriteString(fmt.Sprintf("%-6s %-20s %6s %9s %6s %8s %6s\n",
		"RUN", "STARTED", "TOTAL", "SUCCEEDED", "FAILED", "RECORDS", "EVENTS"))
	for _, run := range runs {
		total := strconv.Itoa(run.Total)
		if !run.Finished() {
			total = "-"
		}
		sb.WriteString(fmt.Sprintf("%-6d %-20s %6s %9d %6d %8d %6d\n",
			run.ID,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			total,
			run.Succeeded,
			run.Failed,
			run.RecordsWritten,
			run.Events.Total(),
		))
	}

	return w.output.Write([]byte(sb.String()))
}

func sectionRule(title string) string {
	return strings.Repeat("-", 60) + "\n" + title + "\n" + strings.Repeat("-", 60) + "\n"
}
