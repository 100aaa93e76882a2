package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nao1215/sitegrab/internal/config"
	"github.com/nao1215/sitegrab/internal/database"
	"github.com/nao1215/sitegrab/internal/model"
	"github.com/nao1215/sitegrab/internal/pipeline"
	"github.com/nao1215/sitegrab/internal/report"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <seed-url>...",
		Short: "Crawl a site and save its pages",
		Long: `Crawl discovers pages starting from each seed URL and saves them as HTML files.

Links whose host equals the seed's host are "inside" and are followed up to
--depth. Other links are "outside" and are followed up to --outside-depth.
The seed is depth 1. Every discovered URL is then downloaded into the output
directory, and a url_map.tsv file records which file holds which URL.
Responses larger than --max-body-size are not saved and count as failures.

Examples:
  # Crawl a site with the default depths (2 inside, 1 outside)
  sitegrab crawl https://example.com

  # Crawl deeper, only archive pages of the site itself
  sitegrab crawl -d 4 --same-domain https://example.com

  # Crawl and merge the pages into one document per directory
  sitegrab crawl --group --parents 1 https://example.com

  # Crawl two sites at once and write a Markdown report
  sitegrab crawl -b 2 --report markdown --report-file report.md https://a.example https://b.example

Configuration file (.sitegrab) example:
  defaults:
    ignorePatterns: ["*.pdf"]
  sites:
    docs.example.com:
      depth: 5
      headers:
        Accept-Language: "en"`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Traversal flags
	cmd.Flags().IntP("depth", "d", config.DefaultMaxDepth,
		"Maximum depth for links inside the seed's site (seed is depth 1)")
	cmd.Flags().Int("outside-depth", config.DefaultOutsideDepth,
		"Maximum depth for links to other sites")
	cmd.Flags().Int("max-pages", 0,
		"Maximum number of pages fetched while crawling each seed (0 = no limit)")
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers,
		"Number of pages fetched concurrently while crawling")
	cmd.Flags().DurationP("timeout", "t", config.DefaultCrawlTimeout,
		"Timeout for each request while crawling")

	// Archive flags
	cmd.Flags().StringP("output", "o", config.DefaultOutputDir,
		"Directory that receives the saved pages")
	cmd.Flags().Bool("same-domain", false,
		"Only save pages inside the seed's site")
	cmd.Flags().Duration("archive-timeout", config.DefaultArchiveTimeout,
		"Timeout for each request while saving pages")
	cmd.Flags().Int("archive-concurrency", config.DefaultArchiveConcurrency,
		"Number of pages downloaded concurrently")

	// Grouping flags
	cmd.Flags().Bool("group", false,
		"Merge saved pages into combined documents by URL prefix")
	cmd.Flags().Int("parents", config.DefaultParents,
		"Number of trailing path segments dropped to form the group prefix")
	cmd.Flags().String("combined-output", config.DefaultCombinedDir,
		"Directory that receives the combined documents")

	cmd.Flags().String("max-body-size", humanize.IBytes(config.DefaultMaxBodySize),
		"Largest response read per page, e.g. 512KiB or 20MB")

	// Network flags
	cmd.Flags().String("proxy", "",
		"Route requests through a SOCKS5 proxy (host:port)")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with every request")

	// Batch flags
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of seeds crawled concurrently")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .sitegrab in current or home directory)")

	// Output flags
	cmd.Flags().BoolP("quiet", "q", false,
		"Only log errors and do not print the report to the terminal")
	cmd.Flags().Bool("progress", false,
		"Print crawl progress to stderr")
	cmd.Flags().String("report", config.ReportTable,
		"Report format: table, markdown or json")
	cmd.Flags().String("report-file", "",
		"Write the report to this file (creates directories if needed)")
	cmd.Flags().Bool("no-db", false,
		"Do not record the run in the history database")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory that holds the history database")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd, cfg.Quiet, cmd.ErrOrStderr())

	// Cancel the crawl on interrupt; pages fetched so far are still saved
	// and recorded.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	progressOut := io.Writer(nil)
	showProgress, err := cmd.Flags().GetBool("progress")
	if err != nil {
		return err
	}
	if showProgress && !cfg.Quiet {
		progressOut = cmd.ErrOrStderr()
	}

	return runCrawl(ctx, cfg, logger, cmd.OutOrStdout(), progressOut)
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error

	cfg.MaxDepth, err = cmd.Flags().GetInt("depth")
	if err != nil {
		return nil, err
	}
	cfg.OutsideDepth, err = cmd.Flags().GetInt("outside-depth")
	if err != nil {
		return nil, err
	}
	cfg.MaxPages, err = cmd.Flags().GetInt("max-pages")
	if err != nil {
		return nil, err
	}
	cfg.Workers, err = cmd.Flags().GetInt("workers")
	if err != nil {
		return nil, err
	}
	cfg.CrawlTimeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}

	cfg.OutputDir, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}
	cfg.SameDomain, err = cmd.Flags().GetBool("same-domain")
	if err != nil {
		return nil, err
	}
	cfg.ArchiveTimeout, err = cmd.Flags().GetDuration("archive-timeout")
	if err != nil {
		return nil, err
	}
	cfg.ArchiveConcurrency, err = cmd.Flags().GetInt("archive-concurrency")
	if err != nil {
		return nil, err
	}

	cfg.Group, err = cmd.Flags().GetBool("group")
	if err != nil {
		return nil, err
	}
	cfg.Parents, err = cmd.Flags().GetInt("parents")
	if err != nil {
		return nil, err
	}
	cfg.CombinedDir, err = cmd.Flags().GetString("combined-output")
	if err != nil {
		return nil, err
	}

	maxBodySize, err := cmd.Flags().GetString("max-body-size")
	if err != nil {
		return nil, err
	}
	size, err := humanize.ParseBytes(maxBodySize)
	if err != nil || size > math.MaxInt64 {
		return nil, fmt.Errorf("configuration error: %w: %q", config.ErrInvalidMaxBodySize, maxBodySize)
	}
	cfg.MaxBodySize = int64(size)

	cfg.ProxyAddress, err = cmd.Flags().GetString("proxy")
	if err != nil {
		return nil, err
	}
	cfg.UserAgent, err = cmd.Flags().GetString("user-agent")
	if err != nil {
		return nil, err
	}
	cfg.BatchSize, err = cmd.Flags().GetInt("batch")
	if err != nil {
		return nil, err
	}

	cfg.Quiet, err = cmd.Flags().GetBool("quiet")
	if err != nil {
		return nil, err
	}
	cfg.Verbose = getVerboseFlag(cmd)
	cfg.ReportFormat, err = cmd.Flags().GetString("report")
	if err != nil {
		return nil, err
	}
	cfg.ReportFile, err = cmd.Flags().GetString("report-file")
	if err != nil {
		return nil, err
	}
	noDB, err := cmd.Flags().GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB
	cfg.DBDir, err = cmd.Flags().GetString("db-dir")
	if err != nil {
		return nil, err
	}

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// An explicit --config must exist; otherwise a missing file just means
	// no per-site settings.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	} else if explicitConfigPath {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	cfg.Seeds = args

	return cfg, nil
}

// runCrawl processes every seed and writes the report.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout, progressOut io.Writer) error {
	logger.Info("starting crawl",
		"seeds", cfg.Seeds,
		"max_depth", cfg.MaxDepth,
		"outside_depth", cfg.OutsideDepth,
		"batch_size", cfg.BatchSize,
		"save_to_db", cfg.SaveToDB,
	)

	opts := []pipeline.DefaultPipelineOption{
		pipeline.WithPipelineLogger(logger),
	}

	if cfg.SaveToDB {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "path", db.Path())
		opts = append(opts, pipeline.WithPipelineRecorder(db))
	}

	if progressOut != nil {
		opts = append(opts, pipeline.WithPipelineProgress(progressOut))
	}

	bp := pipeline.NewBatchProcessor(
		func(seed string) (*pipeline.Pipeline, error) {
			return pipeline.DefaultPipeline(cfg, seed, []pipeline.Option{pipeline.WithLogger(logger)}, opts...)
		},
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	runs, batchErr := bp.ProcessBatch(ctx, cfg.Seeds)

	if err := outputReport(cfg, runs, stdout); err != nil {
		logger.Error("report failed", "error", err)
		return fmt.Errorf("failed to write report: %w", err)
	}

	if batchErr != nil {
		return fmt.Errorf("crawl interrupted, results are partial: %w", batchErr)
	}
	return runsError(runs)
}

// runsError summarizes the seeds that ended with an error.
func runsError(runs []*model.Run) error {
	var errs []error
	for _, run := range runs {
		if run.Error != nil && !run.Cancelled {
			errs = append(errs, fmt.Errorf("%s: %w", run.Seed, run.Error))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d seeds failed: %w", len(errs), len(runs), errors.Join(errs...))
}

// outputReport writes the runs in the requested format. With --report-file
// the terminal still gets the table unless --quiet is set.
func outputReport(cfg *config.Config, runs []*model.Run, stdout io.Writer) error {
	var writers []report.Writer

	if cfg.ReportFile != "" {
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()

		w, err := report.NewWriter(cfg.ReportFormat, f, getVersion())
		if err != nil {
			return err
		}
		writers = append(writers, w)
		if !cfg.Quiet {
			writers = append(writers, report.NewTableWriter(stdout, report.WithPages(cfg.Verbose)))
		}
	} else if !cfg.Quiet {
		if cfg.ReportFormat == config.ReportTable {
			writers = append(writers, report.NewTableWriter(stdout, report.WithPages(cfg.Verbose)))
		} else {
			w, err := report.NewWriter(cfg.ReportFormat, stdout, getVersion())
			if err != nil {
				return err
			}
			writers = append(writers, w)
		}
	}

	if len(writers) == 0 {
		return nil
	}

	mw := report.NewMultiWriter(writers...)
	var err error
	if len(runs) == 1 {
		_, err = mw.Write(runs[0])
	} else {
		_, err = mw.WriteAll(runs)
	}
	return err
}
