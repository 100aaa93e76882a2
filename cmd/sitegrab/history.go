package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/rodaine/table"
	"github.com/spf13/cobra"

	"github.com/nao1215/sitegrab/internal/config"
	"github.com/nao1215/sitegrab/internal/database"
)

const historyDateLayout = "2006-01-02 15:04:05"

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [seed-url]",
		Short: "Show and compare previous crawl runs",
		Long: `History lists the crawl runs recorded in the database and compares the
pages found by two runs of the same seed.

A comparison reports pages that were added, pages that disappeared and pages
whose saved content changed (by SHA3-256 digest).

Examples:
  # List every recorded run
  sitegrab history

  # List runs for one seed
  sitegrab history https://example.com

  # List every seed in the database
  sitegrab history -L

  # Compare the latest two runs of a seed
  sitegrab history --diff https://example.com

  # Compare the latest run with run 3, as Markdown
  sitegrab history --diff --with-run-id 3 --markdown https://example.com

  # Delete runs started before a date
  sitegrab history --prune-before 2025-01-01`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	// Listing flags
	cmd.Flags().BoolP("list-seeds", "L", false,
		"List every seed in the database")
	cmd.Flags().IntP("limit", "n", 20,
		"Maximum number of runs listed (0 = no limit)")

	// Comparison flags
	cmd.Flags().Bool("diff", false,
		"Compare the pages of two runs of the seed")
	cmd.Flags().Int64P("with-run-id", "i", 0,
		"Compare the latest run with this run instead of the previous one")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false,
		"Output the comparison in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output the comparison in Markdown format")

	// Maintenance flags
	cmd.Flags().String("prune-before", "",
		"Delete runs started before this date (format: YYYY-MM-DD)")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory that holds the history database")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	listSeeds, err := cmd.Flags().GetBool("list-seeds")
	if err != nil {
		return err
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	diff, err := cmd.Flags().GetBool("diff")
	if err != nil {
		return err
	}
	withRunID, err := cmd.Flags().GetInt64("with-run-id")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	pruneBefore, err := cmd.Flags().GetString("prune-before")
	if err != nil {
		return err
	}
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}

	var seed string
	if len(args) > 0 {
		seed = args[0]
	}

	// Validate before opening the database so that a bad invocation never
	// creates an empty one.
	var cutoff time.Time
	if pruneBefore != "" {
		cutoff, err = time.ParseInLocation("2006-01-02", pruneBefore, time.Local)
		if err != nil {
			return fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
		}
	}
	if (diff || withRunID > 0) && seed == "" {
		return errors.New("a seed URL is required for --diff (use -L to see recorded seeds)")
	}

	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	switch {
	case pruneBefore != "":
		n, err := db.DeleteRunsBefore(ctx, cutoff)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted %d run(s) started before %s\n", n, pruneBefore)
		return nil
	case listSeeds:
		return listRecordedSeeds(ctx, out, db)
	case diff || withRunID > 0:
		result, err := compareLatest(ctx, db, seed, withRunID)
		if err != nil {
			return err
		}
		switch {
		case jsonOutput:
			return outputComparisonJSON(out, result)
		case markdownOutput:
			return outputComparisonMarkdown(out, result)
		default:
			return outputComparisonText(out, result)
		}
	default:
		return listRunHistory(ctx, out, db, seed, limit)
	}
}

// listRecordedSeeds prints every seed with at least one run.
func listRecordedSeeds(ctx context.Context, out io.Writer, db *database.CrawlDB) error {
	seeds, err := db.ListSeeds(ctx)
	if err != nil {
		return err
	}

	if len(seeds) == 0 {
		fmt.Fprintln(out, "No crawled seeds found in the database.")
		fmt.Fprintln(out, "\nUse 'sitegrab crawl <url>' to crawl a site.")
		return nil
	}

	fmt.Fprintf(out, "Crawled seeds (%d):\n\n", len(seeds))
	for _, s := range seeds {
		fmt.Fprintf(out, "  • %s\n", s)
	}
	fmt.Fprintln(out, "\nUse 'sitegrab history <url>' to see the runs of a seed.")
	return nil
}

// listRunHistory prints the runs of seed, or of every seed when it is empty.
func listRunHistory(ctx context.Context, out io.Writer, db *database.CrawlDB, seed string, limit int) error {
	runs, err := db.ListRuns(ctx, seed, limit)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		if seed != "" {
			fmt.Fprintf(out, "No runs found for %s\n", seed)
		} else {
			fmt.Fprintln(out, "No runs found in the database.")
		}
		fmt.Fprintln(out, "\nUse 'sitegrab crawl <url>' to crawl a site.")
		return nil
	}

	tbl := table.New("ID", "Started", "Seed", "Discovered", "Failed", "Saved", "Status").WithWriter(out)
	for _, r := range runs {
		tbl.AddRow(r.ID, r.StartedAt.Local().Format(historyDateLayout), r.Seed,
			r.Discovered, r.Failed, r.Saved, runStatus(r))
	}
	tbl.Print()

	if seed != "" {
		fmt.Fprintf(out, "\nUse 'sitegrab history --diff %s' to compare the latest two runs.\n", seed)
	}
	return nil
}

// runStatus summarizes how a recorded run ended.
func runStatus(r database.RunSummary) string {
	switch {
	case r.Cancelled:
		return "cancelled"
	case r.Error != "":
		return "error"
	default:
		return "complete"
	}
}

// RunInfo identifies one side of a comparison.
type RunInfo struct {
	ID         int64     `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	Discovered int       `json:"discovered"`
	Saved      int       `json:"saved"`
	Failed     int       `json:"failed"`
}

// ComparisonResult holds the page differences between two runs of a seed.
type ComparisonResult struct {
	// Seed is the crawled seed URL.
	Seed string `json:"seed"`

	// Previous is the older run.
	Previous RunInfo `json:"previous_run"`

	// Current is the newer run.
	Current RunInfo `json:"current_run"`

	// Added are URLs found only by the current run.
	Added []string `json:"added,omitempty"`

	// Removed are URLs found only by the previous run.
	Removed []string `json:"removed,omitempty"`

	// Changed are URLs saved by both runs with different content digests.
	Changed []string `json:"changed,omitempty"`

	// UnchangedCount is the number of URLs present in both runs and not changed.
	UnchangedCount int `json:"unchanged_count"`
}

// compareLatest compares the newest run of seed with the previous one, or
// with the run named by withRunID.
func compareLatest(ctx context.Context, db *database.CrawlDB, seed string, withRunID int64) (*ComparisonResult, error) {
	runs, err := db.ListRuns(ctx, seed, 0)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("no runs found for %s", seed)
	}

	current := runs[0]
	var previous *database.RunSummary

	if withRunID > 0 {
		for i := range runs {
			if runs[i].ID == withRunID {
				previous = &runs[i]
				break
			}
		}
		if previous == nil {
			return nil, fmt.Errorf("%w: run %d does not belong to %s", database.ErrRunNotFound, withRunID, seed)
		}
		if previous.ID == current.ID {
			return nil, fmt.Errorf("run %d is the latest run; choose an earlier run", withRunID)
		}
	} else {
		if len(runs) < 2 {
			return nil, fmt.Errorf("at least 2 runs are required for comparison (found %d)", len(runs))
		}
		previous = &runs[1]
	}

	previousPages, err := db.GetPages(ctx, previous.ID)
	if err != nil {
		return nil, err
	}
	currentPages, err := db.GetPages(ctx, current.ID)
	if err != nil {
		return nil, err
	}

	result := comparePages(previousPages, currentPages)
	result.Seed = seed
	result.Previous = runInfo(*previous)
	result.Current = runInfo(current)
	return result, nil
}

// runInfo extracts the displayed fields of a run.
func runInfo(r database.RunSummary) RunInfo {
	return RunInfo{
		ID:         r.ID,
		StartedAt:  r.StartedAt,
		Discovered: r.Discovered,
		Saved:      r.Saved,
		Failed:     r.Failed,
	}
}

// comparePages classifies every URL of two page lists. A URL counts as
// changed only when both runs recorded a digest for it.
func comparePages(previous, current []database.PageRecord) *ComparisonResult {
	result := &ComparisonResult{}

	previousByURL := make(map[string]database.PageRecord, len(previous))
	for _, p := range previous {
		previousByURL[p.URL] = p
	}
	currentByURL := make(map[string]database.PageRecord, len(current))
	for _, p := range current {
		currentByURL[p.URL] = p
	}

	for u, cur := range currentByURL {
		prev, ok := previousByURL[u]
		switch {
		case !ok:
			result.Added = append(result.Added, u)
		case prev.Digest != "" && cur.Digest != "" && prev.Digest != cur.Digest:
			result.Changed = append(result.Changed, u)
		default:
			result.UnchangedCount++
		}
	}
	for u := range previousByURL {
		if _, ok := currentByURL[u]; !ok {
			result.Removed = append(result.Removed, u)
		}
	}

	sort.Strings(result.Added)
	sort.Strings(result.Removed)
	sort.Strings(result.Changed)
	return result
}

// outputComparisonJSON outputs the comparison result in JSON format.
func outputComparisonJSON(out io.Writer, result *ComparisonResult) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// outputComparisonMarkdown outputs the comparison result in Markdown format.
func outputComparisonMarkdown(out io.Writer, result *ComparisonResult) error {
	md := markdown.NewMarkdown(out)

	md.H1("Run Comparison: " + result.Seed)
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Previous", "Current", "Change"},
		Rows: [][]string{
			{"Run ID", strconv.FormatInt(result.Previous.ID, 10), strconv.FormatInt(result.Current.ID, 10), "-"},
			{"Date", result.Previous.StartedAt.Local().Format(historyDateLayout),
				result.Current.StartedAt.Local().Format(historyDateLayout), "-"},
			{"Discovered", strconv.Itoa(result.Previous.Discovered), strconv.Itoa(result.Current.Discovered),
				formatDelta(result.Current.Discovered - result.Previous.Discovered)},
			{"Saved", strconv.Itoa(result.Previous.Saved), strconv.Itoa(result.Current.Saved),
				formatDelta(result.Current.Saved - result.Previous.Saved)},
			{"Failed", strconv.Itoa(result.Previous.Failed), strconv.Itoa(result.Current.Failed),
				formatDelta(result.Current.Failed - result.Previous.Failed)},
		},
	})
	md.PlainText("")

	writeURLSection := func(title string, urls []string) {
		if len(urls) == 0 {
			return
		}
		md.H2f("%s (%d)", title, len(urls))
		md.PlainText("")
		md.BulletList(urls...)
		md.PlainText("")
	}
	writeURLSection("Added Pages", result.Added)
	writeURLSection("Removed Pages", result.Removed)
	writeURLSection("Changed Pages", result.Changed)

	if result.UnchangedCount > 0 {
		md.HorizontalRule()
		md.PlainText(markdown.Italic(strconv.Itoa(result.UnchangedCount) + " pages unchanged"))
	}

	return md.Build()
}

// outputComparisonText outputs the comparison result in human-readable text format.
func outputComparisonText(out io.Writer, result *ComparisonResult) error {
	fmt.Fprintf(out, "Run Comparison: %s\n", result.Seed)
	fmt.Fprintf(out, "\nPrevious run: #%d %s\n", result.Previous.ID, result.Previous.StartedAt.Local().Format(historyDateLayout))
	fmt.Fprintf(out, "Current run:  #%d %s\n\n", result.Current.ID, result.Current.StartedAt.Local().Format(historyDateLayout))

	tbl := table.New("Metric", "Previous", "Current", "Change").WithWriter(out)
	tbl.AddRow("Discovered", result.Previous.Discovered, result.Current.Discovered,
		formatDelta(result.Current.Discovered-result.Previous.Discovered))
	tbl.AddRow("Saved", result.Previous.Saved, result.Current.Saved,
		formatDelta(result.Current.Saved-result.Previous.Saved))
	tbl.AddRow("Failed", result.Previous.Failed, result.Current.Failed,
		formatDelta(result.Current.Failed-result.Previous.Failed))
	tbl.Print()

	if len(result.Added) > 0 {
		fmt.Fprintf(out, "\nAdded Pages (%d):\n", len(result.Added))
		for _, u := range result.Added {
			fmt.Fprintf(out, "  [+] %s\n", u)
		}
	}
	if len(result.Removed) > 0 {
		fmt.Fprintf(out, "\nRemoved Pages (%d):\n", len(result.Removed))
		for _, u := range result.Removed {
			fmt.Fprintf(out, "  [-] %s\n", u)
		}
	}
	if len(result.Changed) > 0 {
		fmt.Fprintf(out, "\nChanged Pages (%d):\n", len(result.Changed))
		for _, u := range result.Changed {
			fmt.Fprintf(out, "  [~] %s\n", u)
		}
	}
	if result.UnchangedCount > 0 {
		fmt.Fprintf(out, "\nUnchanged: %d pages\n", result.UnchangedCount)
	}

	return nil
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}
