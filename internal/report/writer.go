package report

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/reviewharvest/internal/database"
	"github.com/nao1215/reviewharvest/internal/model"
)

// Output formats accepted by NewWriter.
const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

// ErrUnknownFormat is returned by NewWriter for an unsupported format.
var ErrUnknownFormat = errors.New("unknown report format")

// Writer defines the interface for report output.
type Writer interface {
	// WriteSummary outputs the outcome of one run.
	// Returns the number of bytes written and any error encountered.
	WriteSummary(summary *model.Summary) (int, error)

	// WriteRuns outputs a list of stored runs, newest first.
	WriteRuns(runs []database.RunRecord) (int, error)
}

// NewWriter returns the writer for format. version is stamped into formats
// that carry metadata.
func NewWriter(format string, output io.Writer, version string) (Writer, error) {
	switch format {
	case FormatText, "":
		return NewSimpleWriter(output), nil
	case FormatJSON:
		return NewJSONWriter(output, WithPrettyPrint(), WithVersion(version)), nil
	case FormatMarkdown:
		return NewMarkdownWriter(output, version), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// WriteSummary outputs the summary to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) WriteSummary(summary *model.Summary) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteSummary(summary)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteRuns outputs the runs to all configured Writers.
func (m *MultiWriter) WriteRuns(runs []database.RunRecord) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteRuns(runs)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// ratingLabel names a Ratings index.
func ratingLabel(i int) string {
	if i == 0 {
		return "unrated"
	}
	return strconv.Itoa(i) + "★"
}

// countLine renders the one-line aggregate every format starts with.
func countLine(s *model.Summary) string {
	return fmt.Sprintf("total=%d succeeded=%d failed=%d records=%d",
		s.Total, s.Succeeded, s.Failed, s.RecordsWritten)
}

// truncateString truncates a string to maxLen runes with ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
