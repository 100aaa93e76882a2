package group

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/nao1215/sitegrab/internal/model"
	"golang.org/x/sync/errgroup"
)

// Combiner writes one combined document per Group.
type Combiner struct {
	inputDir    string
	outputDir   string
	concurrency int
	logger      *slog.Logger
}

// CombinerOption configures a Combiner.
type CombinerOption func(*Combiner)

// WithCombinerLogger sets a custom logger.
func WithCombinerLogger(logger *slog.Logger) CombinerOption {
	return func(c *Combiner) {
		c.logger = logger
	}
}

// WithCombinerConcurrency sets how many documents are written at once.
func WithCombinerConcurrency(n int) CombinerOption {
	return func(c *Combiner) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// NewCombiner creates a Combiner that reads pages from inputDir and writes
// combined documents to outputDir.
func NewCombiner(inputDir, outputDir string, opts ...CombinerOption) *Combiner {
	c := &Combiner{
		inputDir:    inputDir,
		outputDir:   outputDir,
		concurrency: 4,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// OutputDir returns the directory the combined documents are written to.
func (c *Combiner) OutputDir() string {
	return c.outputDir
}

// Combine writes every group and returns one summary per document, in group
// order. Missing page files are skipped with a warning. A group whose
// document cannot be written is logged and left out of the summaries.
func (c *Combiner) Combine(ctx context.Context, groups []Group) ([]model.GroupSummary, error) {
	if err := os.MkdirAll(c.outputDir, 0o750); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrOutputDir, c.outputDir, err)
	}

	summaries := make([]*model.GroupSummary, len(groups))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for i, grp := range groups {
		if len(grp.Items) == 0 {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			summary, err := c.combineGroup(grp)
			if err != nil {
				c.logger.Warn("failed to write combined document", "prefix", grp.Prefix, "error", err)
				return nil
			}
			summaries[i] = summary
			return nil
		})
	}

	err := g.Wait()

	out := make([]model.GroupSummary, 0, len(summaries))
	for _, s := range summaries {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out, err
}

// combineGroup writes the document for a single group.
func (c *Combiner) combineGroup(grp Group) (*model.GroupSummary, error) {
	summary := &model.GroupSummary{
		Prefix:     grp.Prefix,
		OutputFile: filepath.Join(c.outputDir, OutputName(grp.Prefix)),
	}

	parts := make([]string, 0, len(grp.Items))
	for _, item := range grp.Items {
		path := filepath.Join(c.inputDir, filepath.Base(item.FileName))
		data, err := os.ReadFile(path) //nolint:gosec // file names come from our own map
		if err != nil {
			c.logger.Warn("archived file not found, skipping", "path", path, "url", item.URL)
			summary.Missing++
			continue
		}
		parts = append(parts, wrapPage(item.URL, string(data)))
		summary.Files++
	}

	if err := os.WriteFile(summary.OutputFile, []byte(strings.Join(parts, "\n")), 0o600); err != nil {
		return nil, err
	}

	c.logger.Info("wrote combined document",
		"prefix", grp.Prefix,
		"path", summary.OutputFile,
		"files", summary.Files,
		"missing", summary.Missing,
	)
	return summary, nil
}

// wrapPage surrounds a page body with comments naming its URL.
func wrapPage(rawURL, body string) string {
	return fmt.Sprintf("<!-- START OF %s -->\n%s\n<!-- END OF %s -->\n", rawURL, body, rawURL)
}
