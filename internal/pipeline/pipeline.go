package pipeline

import (
	"context"
	"log/slog"

	"linkharvest/internal/crawler"
	"linkharvest/internal/model"
)

// Job carries the state of one crawl invocation through the pipeline steps.
// The crawl step fills the result set and pagination seeds; later steps
// consume them and update the report.
type Job struct {
	// Seed is the URL the crawl starts from.
	Seed string

	// Report accumulates the crawl outcome for the writers and database.
	Report *model.CrawlReport

	// Results is the shared, deduplicated link collection.
	Results *crawler.ResultSet

	// PaginationSeeds lists the endpoint runs discovered during the crawl.
	PaginationSeeds []crawler.PaginationSeed
}

// NewJob creates a Job for the given seed with an empty report and result
// set.
func NewJob(seed string) *Job {
	return &Job{
		Seed:    seed,
		Report:  model.NewCrawlReport(seed),
		Results: crawler.NewResultSet(),
	}
}

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, with each step receiving the accumulated
// job state from previous steps.
//
// Design decision: We use an interface rather than function types because:
// 1. It allows steps to carry configuration state
// 2. It provides a Name() method for logging and debugging
// 3. It's more extensible for future features (e.g., priority, dependencies)
type Step interface {
	// Do executes the pipeline step.
	// It receives the context for cancellation, and the job to modify.
	// Returns an error if the step fails critically; non-critical errors
	// should be recorded in the report and return nil.
	Do(ctx context.Context, job *Job) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
// It maintains a list of steps and executes them in order.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger

	// continueOnError determines whether to continue executing steps
	// after one fails. If false, the pipeline stops on first error.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, a default logger is created.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to continue execution
// even when a step fails. Failed steps are logged and their errors
// are recorded in the report, but subsequent steps still execute.
//
// Design decision: The default is to stop on error because an early
// failure (unreachable seed, bad configuration) makes the later steps
// meaningless. Continue-on-error exists so a failed persist step can
// still let the report writers run.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all pipeline steps in sequence.
// It respects context cancellation and logs each step's execution.
//
// Design decision: We check context.Done() before each step rather than
// during, because steps handle their own cancellation internally. This
// allows graceful cleanup between steps while still respecting
// cancellation; a cancelled crawl still flows into the report writers.
//
// Returns the first error encountered if continueOnError is false,
// or nil if all steps complete (errors are recorded in the report).
func (p *Pipeline) Execute(ctx context.Context, job *Job) error {
	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"reason", ctx.Err(),
			)
			job.Report.Cancelled = true
			return ctx.Err()
		default:
		}

		p.logger.Info("executing step",
			"step", step.Name(),
			"seed", job.Seed,
		)

		if err := step.Do(ctx, job); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"seed", job.Seed,
				"error", err,
			)

			job.Report.ErrorMessage = err.Error()

			if !p.continueOnError {
				return err
			}
		} else {
			p.logger.Debug("step completed",
				"step", step.Name(),
				"seed", job.Seed,
			)
		}
	}

	return nil
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
