package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitegrab/internal/log"
)

// NewRootCmd creates the root command for sitegrab.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sitegrab",
		Short: "Crawl and archive a web site",
		Long: `sitegrab discovers the pages of a web site starting from a seed URL,
saves them as local HTML files and optionally merges them into combined
documents grouped by URL path prefix.

Links inside the seed's site and links to other sites have separate depth
limits, so a crawl can follow the whole site while only touching the first
page of external sites.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write log records as JSON")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewGroupCmd())
	cmd.AddCommand(NewChunkCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// setupLogger creates the masking logger for the global flags and installs
// it as the slog default.
func setupLogger(cmd *cobra.Command, quiet bool, w io.Writer) *slog.Logger {
	jsonFormat, err := cmd.Flags().GetBool("log-json")
	if err != nil {
		jsonFormat = false
	}

	logger := log.NewLogger(w, log.Level(getVerboseFlag(cmd), quiet), jsonFormat)
	slog.SetDefault(logger)
	return logger
}
