package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/sitegrab/internal/model"
)

// MarkdownWriter outputs runs as Markdown documents.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs one run as a Markdown document.
func (w *MarkdownWriter) Write(run *model.Run) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("sitegrab Report")
	md.PlainText("")
	w.writeRun(md, run)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteAll outputs every run in a single document.
func (w *MarkdownWriter) WriteAll(runs []*model.Run) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("sitegrab Report")
	md.PlainText("")

	if len(runs) > 1 {
		rows := make([][]string, 0, len(runs))
		for _, run := range runs {
			saved, _, _ := archiveCounts(run)
			rows = append(rows, []string{
				"`" + run.Seed + "`",
				strconv.Itoa(run.Stats.Discovered),
				strconv.Itoa(run.Stats.Failed),
				strconv.Itoa(saved),
				statusText(run),
			})
		}
		md.H2("Batch Summary")
		md.PlainText("")
		md.Table(markdown.TableSet{
			Header: []string{"Seed", "Discovered", "Failed", "Saved", "Status"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	for _, run := range runs {
		w.writeRun(md, run)
	}
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeRun writes the sections of one run.
func (w *MarkdownWriter) writeRun(md *markdown.Markdown, run *model.Run) {
	md.H2(run.Seed)
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Seed", "`" + run.Seed + "`"},
			{"Domain", "`" + run.Domain + "`"},
			{"Started", run.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", run.Duration().String()},
			{"Depth (inside / outside)", strconv.Itoa(run.MaxDepth) + " / " + strconv.Itoa(run.OutsideDepth)},
			{"Status", statusText(run)},
		},
	})
	md.PlainText("")

	w.writeAlert(md, run)
	w.writeCrawl(md, run)
	w.writeArchive(md, run)
	w.writeGroups(md, run)
	w.writeFailures(md, run)
}

// writeAlert writes an alert that matches how the run ended.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, run *model.Run) {
	switch {
	case run.Cancelled:
		md.Warning("The run was interrupted. Counts below are partial.")
	case run.ErrorMessage != "":
		md.Cautionf("The run stopped with an error: %s", run.ErrorMessage)
	case run.Stats.Failed > 0:
		md.Importantf("%d page(s) could not be fetched.", run.Stats.Failed)
	default:
		md.Tip("All discovered pages were processed.")
	}
	md.PlainText("")
}

// writeCrawl writes the crawl counters and the state distribution.
func (w *MarkdownWriter) writeCrawl(md *markdown.Markdown, run *model.Run) {
	md.H3("Crawl")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows: [][]string{
			{"Discovered", strconv.Itoa(run.Stats.Discovered)},
			{"Inside", strconv.Itoa(run.CountByClass(model.ClassInside))},
			{"Outside", strconv.Itoa(run.CountByClass(model.ClassOutside))},
			{"Fetched", strconv.Itoa(run.Stats.Fetched)},
			{"Expanded", strconv.Itoa(run.Stats.Expanded)},
			{"Fetch failed", strconv.Itoa(run.Stats.Failed)},
			{"Depth exceeded", strconv.Itoa(run.Stats.DepthExceeded)},
			{"Pending", strconv.Itoa(run.Stats.Pending)},
		},
	})
	md.PlainText("")

	if run.Stats.Discovered > 0 {
		w.writePieChart(md, run.Stats)
	}
}

// writePieChart writes a mermaid pie chart of the terminal states.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, stats model.CrawlStats) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Page States"),
		piechart.WithShowData(true),
	)

	if stats.Expanded > 0 {
		chart.LabelAndIntValue("Expanded", uint64(stats.Expanded))
	}
	if stats.Failed > 0 {
		chart.LabelAndIntValue("Failed", uint64(stats.Failed))
	}
	if stats.DepthExceeded > 0 {
		chart.LabelAndIntValue("Depth exceeded", uint64(stats.DepthExceeded))
	}
	if stats.Pending > 0 {
		chart.LabelAndIntValue("Pending", uint64(stats.Pending))
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeArchive writes the archive counters.
func (w *MarkdownWriter) writeArchive(md *markdown.Markdown, run *model.Run) {
	if run.Archive == nil {
		return
	}

	md.H3("Archive")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Output directory", "`" + run.Archive.OutputDir + "`"},
			{"Saved", strconv.Itoa(run.Archive.Saved)},
			{"Skipped", strconv.Itoa(run.Archive.Skipped)},
			{"Failed", strconv.Itoa(run.Archive.Failed)},
		},
	})
	md.PlainText("")
}

// writeGroups lists the combined documents.
func (w *MarkdownWriter) writeGroups(md *markdown.Markdown, run *model.Run) {
	if len(run.Groups) == 0 {
		return
	}

	md.H3("Combined Documents")
	md.PlainText("")
	items := make([]string, 0, len(run.Groups))
	for _, g := range run.Groups {
		prefix := g.Prefix
		if prefix == "" {
			prefix = "(root)"
		}
		items = append(items, "`"+prefix+"`: "+strconv.Itoa(g.Files)+" page(s) in `"+g.OutputFile+"`")
	}
	md.BulletList(items...)
	md.PlainText("")
}

// writeFailures lists the pages whose fetch failed.
func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, run *model.Run) {
	failed := failedOutcomes(run)
	if len(failed) == 0 {
		return
	}

	rows := make([][]string, len(failed))
	for i, o := range failed {
		rows[i] = []string{
			truncateString(o.URL, 70),
			strconv.Itoa(o.Depth),
			truncateString(o.Error, 60),
		}
	}

	md.H3("Failed Pages")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Depth", "Error"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [sitegrab](https://github.com/nao1215/sitegrab)*")
}
