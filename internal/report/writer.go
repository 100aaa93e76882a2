package report

import (
	"errors"
	"fmt"
	"io"

	"github.com/nao1215/sitegrab/internal/model"
)

// ErrUnknownFormat is returned by NewWriter for an unsupported format name.
var ErrUnknownFormat = errors.New("unknown report format")

// Format names accepted by NewWriter.
const (
	FormatTable    = "table"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// Writer writes run summaries.
type Writer interface {
	// Write outputs the summary of a single run.
	// Returns the number of bytes written and any error encountered.
	Write(run *model.Run) (int, error)

	// WriteAll outputs the summary of a batch of runs.
	WriteAll(runs []*model.Run) (int, error)
}

// NewWriter returns the writer for format.
func NewWriter(format string, output io.Writer, version string) (Writer, error) {
	switch format {
	case FormatTable:
		return NewTableWriter(output), nil
	case FormatMarkdown:
		return NewMarkdownWriter(output), nil
	case FormatJSON:
		return NewJSONWriter(output, WithPrettyPrint(), WithVersion(version)), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// MultiWriter writes to multiple Writers, for example the terminal and a
// report file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the run to all configured Writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(run *model.Run) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(run)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteAll outputs the runs to all configured Writers.
func (m *MultiWriter) WriteAll(runs []*model.Run) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteAll(runs)
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

// countingWriter counts bytes for writers whose libraries do not report it.
type countingWriter struct {
	w   io.Writer
	n   int
	err error
}

func (c *countingWriter) Write(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	n, err := c.w.Write(p)
	c.n += n
	c.err = err
	return n, err
}

// statusText describes how a run ended.
func statusText(run *model.Run) string {
	switch {
	case run.Cancelled:
		return "cancelled (partial results)"
	case run.ErrorMessage != "":
		return "error: " + run.ErrorMessage
	default:
		return "complete"
	}
}

// failedOutcomes returns the outcomes whose fetch failed.
func failedOutcomes(run *model.Run) []model.PageOutcome {
	out := make([]model.PageOutcome, 0)
	for _, o := range run.Outcomes {
		if o.State == model.StateFailed {
			out = append(out, o)
		}
	}
	return out
}

// archiveCounts returns saved, skipped and failed, or zeros when the archive
// step did not run.
func archiveCounts(run *model.Run) (saved, skipped, failed int) {
	if run.Archive == nil {
		return 0, 0, 0
	}
	return run.Archive.Saved, run.Archive.Skipped, run.Archive.Failed
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
