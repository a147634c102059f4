package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/reviewharvest/internal/database"
	"github.com/nao1215/reviewharvest/internal/model"
)

// MarkdownWriter outputs summaries in Markdown format for sharing, with a
// mermaid pie chart of the written ratings.
type MarkdownWriter struct {
	baseWriter

	// version is printed in the footer.
	version string
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer, version string) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
		version:    version,
	}
}

// WriteSummary outputs the run summary in Markdown format.
func (w *MarkdownWriter) WriteSummary(summary *model.Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeRatings(md, summary)
	w.writeJobs(md, summary)
	w.writeEvents(md, summary.Events)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the aggregate table and the run status alert.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, summary *model.Summary) {
	md.H1("Review Harvest Summary")
	md.PlainText("")

	rows := [][]string{
		{"Jobs", strconv.Itoa(summary.Total)},
		{"Succeeded", strconv.Itoa(summary.Succeeded)},
		{"Failed", strconv.Itoa(summary.Failed)},
		{"Records Written", strconv.Itoa(summary.RecordsWritten)},
	}
	if !summary.StartedAt.IsZero() {
		rows = append(rows, []string{"Started", summary.StartedAt.Format("2006-01-02 15:04:05 MST")})
	}
	if elapsed := summary.Elapsed(); elapsed > 0 {
		rows = append(rows, []string{"Elapsed", elapsed.String()})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	switch {
	case summary.Total == 0:
		md.Note("No sources were harvested.")
	case summary.OK():
		md.Tip(fmt.Sprintf("All %d job(s) succeeded.", summary.Total))
	case summary.Succeeded == 0:
		md.Cautionf("All %d job(s) failed.", summary.Total)
	default:
		md.Warningf("%d of %d job(s) failed.", summary.Failed, summary.Total)
	}
	md.PlainText("")
}

// writeRatings writes the rating distribution table and chart.
func (w *MarkdownWriter) writeRatings(md *markdown.Markdown, summary *model.Summary) {
	md.H2("Ratings")
	md.PlainText("")

	if summary.RecordsWritten == 0 {
		md.PlainText("No records were written.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, model.MaxRating+1)
	for i := model.MaxRating; i >= 0; i-- {
		if i == 0 && summary.Ratings[0] == 0 {
			continue
		}
		rows = append(rows, []string{ratingLabel(i), strconv.Itoa(summary.Ratings[i])})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Rating", "Records"},
		Rows:   rows,
	})
	md.PlainText("")

	w.writePieChart(md, summary)
}

// writePieChart writes a mermaid pie chart for the rating distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, summary *model.Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Records by Rating"),
		piechart.WithShowData(true),
	)

	for i := model.MaxRating; i >= 0; i-- {
		if n := summary.Ratings[i]; n > 0 {
			chart.LabelAndIntValue(ratingLabel(i), uint64(n))
		}
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeJobs writes one table row per job.
func (w *MarkdownWriter) writeJobs(md *markdown.Markdown, summary *model.Summary) {
	md.H2("Jobs")
	md.PlainText("")

	if len(summary.Jobs) == 0 {
		md.PlainText("No jobs.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(summary.Jobs))
	for i, job := range summary.Jobs {
		status := "✅ succeeded"
		if job.State != model.JobSucceeded {
			status = "❌ " + job.State.String()
		}
		title := job.Title
		if title == "" {
			title = "-"
		}
		errMsg := job.ErrorMessage()
		if errMsg == "" {
			errMsg = "-"
		}
		rows[i] = []string{
			"`" + truncateString(job.Source.String(), 60) + "`",
			truncateString(title, 40),
			status,
			strconv.Itoa(job.RecordsWritten),
			strconv.Itoa(job.Events.Total()),
			truncateString(errMsg, 60),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Source", "Title", "Status", "Records", "Events", "Error"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeEvents writes the soft event totals.
func (w *MarkdownWriter) writeEvents(md *markdown.Markdown, events model.EventCounts) {
	if events.Total() == 0 {
		return
	}

	md.H2("Soft Events")
	md.PlainText("")

	kinds := events.Kinds()
	rows := make([][]string, len(kinds))
	for i, kind := range kinds {
		rows[i] = []string{"`" + string(kind) + "`", strconv.Itoa(events[kind])}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Event", "Count"},
		Rows:   rows,
	})
	md.PlainText("")
}

// WriteRuns outputs stored runs as a Markdown table.
func (w *MarkdownWriter) WriteRuns(runs []database.RunRecord) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Harvest History")
	md.PlainText("")

	if len(runs) == 0 {
		md.PlainText("No runs recorded.")
		return len(md.String()), md.Build()
	}

	rows := make([][]string, len(runs))
	for i, run := range runs {
		finished := "running or interrupted"
		if run.Finished() {
			finished = run.FinishedAt.Format("2006-01-02 15:04:05 MST")
		}
		rows[i] = []string{
			strconv.FormatInt(run.ID, 10),
			run.StartedAt.Format("2006-01-02 15:04:05 MST"),
			finished,
			strconv.Itoa(run.Total),
			strconv.Itoa(run.Succeeded),
			strconv.Itoa(run.Failed),
			strconv.Itoa(run.RecordsWritten),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Run", "Started", "Finished", "Jobs", "Succeeded", "Failed", "Records"},
		Rows:   rows,
	})
	md.PlainText("")
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	if w.version != "" {
		md.PlainTextf("*Generated by reviewharvest %s*", w.version)
		return
	}
	md.PlainText("*Generated by reviewharvest*")
}
