package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rodaine/table"

	"github.com/nao1215/sitegrab/internal/model"
)

// TableWriter outputs runs as aligned text tables for the terminal.
type TableWriter struct {
	baseWriter

	// showPages adds a table with one row per discovered URL.
	showPages bool
}

// TableWriterOption configures a TableWriter.
type TableWriterOption func(*TableWriter)

// WithPages lists every discovered URL and its state.
func WithPages(show bool) TableWriterOption {
	return func(w *TableWriter) {
		w.showPages = show
	}
}

// NewTableWriter creates a TableWriter that outputs to the given writer.
func NewTableWriter(output io.Writer, opts ...TableWriterOption) *TableWriter {
	w := &TableWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs one run: a header, the counters and the failed pages.
func (w *TableWriter) Write(run *model.Run) (int, error) {
	cw := &countingWriter{w: w.output}
	w.writeRun(cw, run)
	return cw.n, cw.err
}

// WriteAll outputs every run followed by a one-row-per-seed summary.
func (w *TableWriter) WriteAll(runs []*model.Run) (int, error) {
	cw := &countingWriter{w: w.output}
	for _, run := range runs {
		w.writeRun(cw, run)
	}

	if len(runs) > 1 {
		fmt.Fprintln(cw, "Batch summary")
		tbl := table.New("Seed", "Discovered", "Fetched", "Failed", "Saved", "Status").WithWriter(cw)
		for _, run := range runs {
			saved, _, _ := archiveCounts(run)
			tbl.AddRow(run.Seed, run.Stats.Discovered, run.Stats.Fetched, run.Stats.Failed, saved, statusText(run))
		}
		tbl.Print()
	}

	return cw.n, cw.err
}

// writeRun writes the tables of a single run.
func (w *TableWriter) writeRun(out io.Writer, run *model.Run) {
	fmt.Fprintln(out, strings.Repeat("=", 60))
	fmt.Fprintf(out, "Seed:     %s\n", run.Seed)
	if run.Domain != "" {
		fmt.Fprintf(out, "Domain:   %s\n", run.Domain)
	}
	fmt.Fprintf(out, "Depth:    %d inside, %d outside\n", run.MaxDepth, run.OutsideDepth)
	fmt.Fprintf(out, "Duration: %s\n", run.Duration().Round(time.Millisecond))
	fmt.Fprintf(out, "Status:   %s\n", statusText(run))
	fmt.Fprintln(out, strings.Repeat("=", 60))
	fmt.Fprintln(out)

	saved, skipped, archiveFailed := archiveCounts(run)
	counts := table.New("Metric", "Count").WithWriter(out)
	counts.AddRow("Discovered", run.Stats.Discovered)
	counts.AddRow("Inside", run.CountByClass(model.ClassInside))
	counts.AddRow("Outside", run.CountByClass(model.ClassOutside))
	counts.AddRow("Fetched", run.Stats.Fetched)
	counts.AddRow("Expanded", run.Stats.Expanded)
	counts.AddRow("Fetch failed", run.Stats.Failed)
	counts.AddRow("Depth exceeded", run.Stats.DepthExceeded)
	if run.Stats.Pending > 0 {
		counts.AddRow("Pending", run.Stats.Pending)
	}
	if run.Archive != nil {
		counts.AddRow("Saved", saved)
		counts.AddRow("Skipped", skipped)
		counts.AddRow("Archive failed", archiveFailed)
	}
	counts.Print()
	fmt.Fprintln(out)

	if len(run.Groups) > 0 {
		groups := table.New("Prefix", "Files", "Output").WithWriter(out)
		for _, g := range run.Groups {
			prefix := g.Prefix
			if prefix == "" {
				prefix = "(root)"
			}
			groups.AddRow(prefix, g.Files, g.OutputFile)
		}
		groups.Print()
		fmt.Fprintln(out)
	}

	if failed := failedOutcomes(run); len(failed) > 0 {
		fmt.Fprintf(out, "Failed pages (%d):\n", len(failed))
		tbl := table.New("URL", "Depth", "Error").WithWriter(out)
		for _, o := range failed {
			tbl.AddRow(truncateString(o.URL, 70), o.Depth, truncateString(o.Error, 60))
		}
		tbl.Print()
		fmt.Fprintln(out)
	}

	if w.showPages && len(run.Outcomes) > 0 {
		tbl := table.New("URL", "Depth", "Class", "State").WithWriter(out)
		for _, o := range run.Outcomes {
			tbl.AddRow(truncateString(o.URL, 70), o.Depth, o.Class, o.State)
		}
		tbl.Print()
		fmt.Fprintln(out)
	}
}
