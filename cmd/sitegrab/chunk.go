package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nao1215/sitegrab/internal/group"
)

// NewChunkCmd creates the chunk command.
func NewChunkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chunk",
		Short: "Concatenate saved pages into size-limited pieces",
		Long: `Chunk joins every .html file of a directory, in name order, into pieces
named <prefix>_1.html, <prefix>_2.html, ... that stay under --max-size.

A file larger than --max-size on its own is skipped with a warning.

Examples:
  # Split combined documents into pieces of at most 5 MiB
  sitegrab chunk -d combined_html

  # Use 1 MB pieces written to another directory
  sitegrab chunk -d downloaded_html --max-size 1MB --output pieces`,
		Args: cobra.NoArgs,
		RunE: runChunkCmd,
	}

	cmd.Flags().StringP("dir", "d", "combined_html",
		"Directory whose .html files are concatenated")
	cmd.Flags().String("prefix", group.DefaultChunkPrefix,
		"Name prefix of the pieces")
	cmd.Flags().String("max-size", humanize.IBytes(group.DefaultChunkSize),
		"Maximum size of one piece (e.g. 5MiB, 500KB, 1048576)")
	cmd.Flags().String("output", "",
		"Directory that receives the pieces (default: same as --dir)")
	cmd.Flags().BoolP("quiet", "q", false,
		"Only log errors and do not list the pieces")

	return cmd
}

// runChunkCmd executes the chunk command.
func runChunkCmd(cmd *cobra.Command, _ []string) error {
	dir, err := cmd.Flags().GetString("dir")
	if err != nil {
		return err
	}
	prefix, err := cmd.Flags().GetString("prefix")
	if err != nil {
		return err
	}
	maxSizeStr, err := cmd.Flags().GetString("max-size")
	if err != nil {
		return err
	}
	outputDir, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	quiet, err := cmd.Flags().GetBool("quiet")
	if err != nil {
		return err
	}

	maxSize, err := humanize.ParseBytes(maxSizeStr)
	if err != nil {
		return fmt.Errorf("configuration error: invalid --max-size %q: %w", maxSizeStr, err)
	}
	if maxSize == 0 {
		return fmt.Errorf("configuration error: %w", group.ErrInvalidChunkSize)
	}

	logger := setupLogger(cmd, quiet, cmd.ErrOrStderr())

	chunker := group.NewChunker(dir,
		group.WithChunkPrefix(prefix),
		group.WithChunkOutputDir(outputDir),
		group.WithMaxChunkSize(int64(maxSize)), //nolint:gosec // sizes beyond int64 are not meaningful
		group.WithChunkerLogger(logger),
	)

	pieces, err := chunker.Chunk()
	if err != nil {
		return fmt.Errorf("failed to chunk %s: %w", dir, err)
	}

	if !quiet {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Wrote %d piece(s) (limit %s)\n", len(pieces), humanize.IBytes(maxSize))
		for _, p := range pieces {
			fmt.Fprintf(out, "  %s\n", p)
		}
	}
	return nil
}
