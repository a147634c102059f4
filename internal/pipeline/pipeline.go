package pipeline

import (
	"context"
	"errors"
	"log/slog"
)

// Step is one phase of a job. Steps run in sequence against the job's
// Session.
type Step interface {
	// Do executes the step. Soft failures are recorded on the session as
	// events and Do returns nil; a returned error fails the job.
	Do(ctx context.Context, s *Session) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline runs steps in order and stops at the first failing one.
type Pipeline struct {
	steps  []Step
	logger *slog.Logger
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger used for step tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a new Pipeline with the given options.
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
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all steps in sequence. Cancellation is checked between
// steps; steps observe ctx at their own suspension points.
//
// The returned error is always a *JobError naming the failing phase.
func (p *Pipeline) Execute(ctx context.Context, s *Session) error {
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"source", s.Job.Source,
				"reason", err,
			)
			return sessionError(s.Job.Source, Phase(step.Name()), err)
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"source", s.Job.Source,
		)

		if err := step.Do(ctx, s); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"source", s.Job.Source,
				"error", err,
			)
			var jobErr *JobError
			if errors.As(err, &jobErr) {
				return jobErr
			}
			return sessionError(s.Job.Source, Phase(step.Name()), err)
		}

		p.logger.Debug("step completed",
			"step", step.Name(),
			"source", s.Job.Source,
		)
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
