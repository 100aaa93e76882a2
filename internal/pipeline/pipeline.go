package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/sitegrab/internal/model"
)

// Step is one stage of processing a seed.
type Step interface {
	// Do executes the step. Non-critical problems are recorded in run and
	// nil is returned; a returned error stops the remaining regular steps.
	Do(ctx context.Context, run *model.Run) error

	// Name returns the step's name for logging and the run record.
	Name() string
}

// Pipeline executes steps in order.
type Pipeline struct {
	// steps run in order until one fails or the context is cancelled.
	steps []Step

	// finalSteps always run, after the regular steps.
	finalSteps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger

	// continueOnError keeps running regular steps after a failure.
	continueOnError bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError keeps executing regular steps after one fails.
// The last error is still recorded in the run and returned.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates an empty Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps:      make([]Step, 0),
		finalSteps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a regular step.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends several regular steps.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// AddFinalStep appends a step that runs after the regular steps whatever
// their outcome. Final steps get a context that is not cancelled with ctx.
func (p *Pipeline) AddFinalStep(step Step) {
	p.finalSteps = append(p.finalSteps, step)
}

// Execute runs the regular steps, sets run.FinishedAt, then runs the final
// steps. It returns the error that stopped the regular steps, or the first
// final step error.
func (p *Pipeline) Execute(ctx context.Context, run *model.Run) error {
	var stepErr error

	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"seed", run.Seed,
				"reason", err,
			)
			run.Cancelled = true
			stepErr = err
			break
		}

		if err := p.runStep(ctx, step, run); err != nil {
			stepErr = err
			if ctx.Err() != nil {
				run.Cancelled = true
			}
			if !p.continueOnError || ctx.Err() != nil {
				break
			}
		}
	}

	run.FinishedAt = time.Now()

	finalCtx := context.WithoutCancel(ctx)
	for _, step := range p.finalSteps {
		if err := p.runStep(finalCtx, step, run); err != nil && stepErr == nil {
			stepErr = err
		}
	}

	return stepErr
}

// runStep executes one step and records its name and error in run.
func (p *Pipeline) runStep(ctx context.Context, step Step, run *model.Run) error {
	p.logger.Info("executing step",
		"step", step.Name(),
		"seed", run.Seed,
	)

	err := step.Do(ctx, run)
	run.PerformedSteps = append(run.PerformedSteps, step.Name())
	if err != nil {
		p.logger.Error("step failed",
			"step", step.Name(),
			"seed", run.Seed,
			"error", err,
		)
		run.Error = err
		run.ErrorMessage = err.Error()
		return err
	}

	p.logger.Debug("step completed",
		"step", step.Name(),
		"seed", run.Seed,
	)
	return nil
}

// StepCount returns the number of regular and final steps.
func (p *Pipeline) StepCount() int {
	return len(p.steps) + len(p.finalSteps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, 0, p.StepCount())
	for _, step := range p.steps {
		names = append(names, step.Name())
	}
	for _, step := range p.finalSteps {
		names = append(names, step.Name())
	}
	return names
}
