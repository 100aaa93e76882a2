package main

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/rodaine/table"
	"github.com/spf13/cobra"

	"github.com/nao1215/sitegrab/internal/config"
	"github.com/nao1215/sitegrab/internal/group"
	"github.com/nao1215/sitegrab/internal/model"
)

// NewGroupCmd creates the group command.
func NewGroupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Merge saved pages into one document per URL prefix",
		Long: `Group reads the URL map written by "sitegrab crawl" and merges the saved
pages that share a URL path prefix into a single HTML document.

The prefix is the URL path with the last --parents segments removed. With
--parents 1, /docs/a/1 and /docs/a/2 both end up in combined_docs_a.html.
Each page is wrapped in <!-- START OF url --> and <!-- END OF url --> comments.

Examples:
  # Group the pages of the last crawl
  sitegrab group

  # Drop two trailing segments and write elsewhere
  sitegrab group -p 2 -o merged`,
		Args: cobra.NoArgs,
		RunE: runGroupCmd,
	}

	cmd.Flags().StringP("map", "m", filepath.Join(config.DefaultOutputDir, config.DefaultMapFile),
		"URL map file written by the crawl command")
	cmd.Flags().StringP("input", "i", config.DefaultOutputDir,
		"Directory that holds the saved pages")
	cmd.Flags().StringP("output", "o", config.DefaultCombinedDir,
		"Directory that receives the combined documents")
	cmd.Flags().IntP("parents", "p", config.DefaultParents,
		"Number of trailing path segments dropped to form the prefix")
	cmd.Flags().BoolP("quiet", "q", false,
		"Only log errors and do not print the summary")

	return cmd
}

// runGroupCmd executes the group command.
func runGroupCmd(cmd *cobra.Command, _ []string) error {
	mapFile, err := cmd.Flags().GetString("map")
	if err != nil {
		return err
	}
	inputDir, err := cmd.Flags().GetString("input")
	if err != nil {
		return err
	}
	outputDir, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	parents, err := cmd.Flags().GetInt("parents")
	if err != nil {
		return err
	}
	quiet, err := cmd.Flags().GetBool("quiet")
	if err != nil {
		return err
	}

	logger := setupLogger(cmd, quiet, cmd.ErrOrStderr())

	mappings, err := group.ReadMap(mapFile, logger)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	groups, err := group.GroupByPrefix(mappings, parents)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	logger.Info("grouping pages", "pages", len(mappings), "groups", len(groups), "parents", parents)

	combiner := group.NewCombiner(inputDir, outputDir, group.WithCombinerLogger(logger))
	summaries, err := combiner.Combine(cmd.Context(), groups)
	if err != nil {
		return fmt.Errorf("failed to combine pages: %w", err)
	}

	if !quiet {
		printGroups(cmd.OutOrStdout(), summaries, logger)
	}
	return nil
}

// printGroups writes one row per combined document.
func printGroups(w io.Writer, summaries []model.GroupSummary, logger *slog.Logger) {
	if len(summaries) == 0 {
		logger.Warn("no combined documents written")
		return
	}

	tbl := table.New("Prefix", "Files", "Missing", "Output").WithWriter(w)
	for _, s := range summaries {
		prefix := s.Prefix
		if prefix == "" {
			prefix = "(root)"
		}
		tbl.AddRow(prefix, s.Files, s.Missing, s.OutputFile)
	}
	tbl.Print()
}
