package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/nao1215/reviewharvest/internal/database"
	"github.com/nao1215/reviewharvest/internal/model"
)

// JSONWriter outputs summaries in JSON format for tool integration.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	// When false, output is compact (no extra whitespace).
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string

	// version is stamped into summary documents when set.
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion stamps the tool version into summary documents.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// JSONSummary is the JSON document of a run summary.
type JSONSummary struct {
	Version        string                   `json:"version,omitempty"`
	StartedAt      *time.Time               `json:"started_at,omitempty"`
	FinishedAt     *time.Time               `json:"finished_at,omitempty"`
	ElapsedSeconds float64                  `json:"elapsed_seconds"`
	Total          int                      `json:"total"`
	Succeeded      int                      `json:"succeeded"`
	Failed         int                      `json:"failed"`
	RecordsWritten int                      `json:"records_written"`
	Ratings        [model.MaxRating + 1]int `json:"ratings"`
	Events         model.EventCounts        `json:"events"`
	Jobs           []JSONJob                `json:"jobs"`
}

// JSONJob is the JSON form of one job. Ratings is indexed by star count,
// index 0 holding unrated records.
type JSONJob struct {
	Source          model.Source             `json:"source"`
	Title           string                   `json:"title,omitempty"`
	State           string                   `json:"state"`
	RecordsWritten  int                      `json:"records_written"`
	Processed       int                      `json:"processed"`
	Ratings         [model.MaxRating + 1]int `json:"ratings"`
	Events          model.EventCounts        `json:"events"`
	Error           string                   `json:"error,omitempty"`
	DurationSeconds float64                  `json:"duration_seconds"`
}

// JSONRun is the JSON form of a stored run.
type JSONRun struct {
	ID             int64                    `json:"id"`
	StartedAt      time.Time                `json:"started_at"`
	FinishedAt     *time.Time               `json:"finished_at,omitempty"`
	Sources        int                      `json:"sources"`
	Total          int                      `json:"total"`
	Succeeded      int                      `json:"succeeded"`
	Failed         int                      `json:"failed"`
	RecordsWritten int                      `json:"records_written"`
	Ratings        [model.MaxRating + 1]int `json:"ratings"`
	Events         model.EventCounts        `json:"events"`
}

// NewJSONSummary converts a summary into its JSON document.
func NewJSONSummary(summary *model.Summary, version string) *JSONSummary {
	doc := &JSONSummary{
		Version:        version,
		StartedAt:      timePtr(summary.StartedAt),
		FinishedAt:     timePtr(summary.FinishedAt),
		ElapsedSeconds: summary.Elapsed().Seconds(),
		Total:          summary.Total,
		Succeeded:      summary.Succeeded,
		Failed:         summary.Failed,
		RecordsWritten: summary.RecordsWritten,
		Ratings:        summary.Ratings,
		Events:         nonNilEvents(summary.Events),
		Jobs:           make([]JSONJob, 0, len(summary.Jobs)),
	}
	for _, job := range summary.Jobs {
		doc.Jobs = append(doc.Jobs, JSONJob{
			Source:          job.Source,
			Title:           job.Title,
			State:           job.State.String(),
			RecordsWritten:  job.RecordsWritten,
			Processed:       job.Processed,
			Ratings:         job.Ratings,
			Events:          nonNilEvents(job.Events),
			Error:           job.ErrorMessage(),
			DurationSeconds: job.Duration().Seconds(),
		})
	}
	return doc
}

// WriteSummary outputs the run summary in JSON format.
func (w *JSONWriter) WriteSummary(summary *model.Summary) (int, error) {
	return w.writeJSON(NewJSONSummary(summary, w.version))
}

// WriteRuns outputs the stored runs as a JSON array.
func (w *JSONWriter) WriteRuns(runs []database.RunRecord) (int, error) {
	out := make([]JSONRun, 0, len(runs))
	for _, run := range runs {
		out = append(out, JSONRun{
			ID:             run.ID,
			StartedAt:      run.StartedAt,
			FinishedAt:     timePtr(run.FinishedAt),
			Sources:        run.Sources,
			Total:          run.Total,
			Succeeded:      run.Succeeded,
			Failed:         run.Failed,
			RecordsWritten: run.RecordsWritten,
			Ratings:        run.Ratings,
			Events:         nonNilEvents(run.Events),
		})
	}
	return w.writeJSON(out)
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func nonNilEvents(e model.EventCounts) model.EventCounts {
	if e == nil {
		return model.NewEventCounts()
	}
	return e
}
