package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/sitegrab/internal/model"
)

// Factory builds the pipeline for one seed. Seeds may need different
// pipelines because per-site settings come from the config file.
type Factory func(seed string) (*Pipeline, error)

// BatchProcessor processes several seeds concurrently.
type BatchProcessor struct {
	// factory creates a fresh pipeline for each seed.
	factory Factory

	// concurrency is the maximum number of seeds processed at once.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of seeds processed at once.
// Default is 1.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a BatchProcessor that builds pipelines with
// factory.
func NewBatchProcessor(factory Factory, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		factory:     factory,
		concurrency: 1,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch runs the pipeline for every seed and returns one run per
// seed, in input order. A seed whose pipeline fails does not stop the others;
// its error is stored in the run. The returned error is ctx.Err() if the
// batch was cancelled.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, seeds []string) ([]*model.Run, error) {
	bp.logger.Info("starting batch processing",
		"total_seeds", len(seeds),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()
	runs := make([]*model.Run, len(seeds))

	var g errgroup.Group
	g.SetLimit(bp.concurrency)

	for i, seed := range seeds {
		run := model.NewRun(seed)
		runs[i] = run

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				run.Cancelled = true
				run.Error = err
				run.ErrorMessage = err.Error()
				run.FinishedAt = time.Now()
				return nil
			}

			bp.logger.Info("processing seed",
				"seed", seed,
				"index", i+1,
				"total", len(seeds),
			)

			p, err := bp.factory(seed)
			if err != nil {
				run.Error = err
				run.ErrorMessage = err.Error()
				run.FinishedAt = time.Now()
				bp.logger.Warn("failed to build pipeline", "seed", seed, "error", err)
				return nil
			}

			// Errors are stored in the run.
			if err := p.Execute(ctx, run); err != nil {
				bp.logger.Warn("seed failed",
					"seed", seed,
					"error", err,
				)
				return nil
			}

			bp.logger.Info("seed completed", "seed", seed)
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // workers never return errors

	bp.logger.Info("batch processing complete",
		"total_seeds", len(seeds),
		"elapsed", time.Since(startTime),
	)

	return runs, ctx.Err()
}
