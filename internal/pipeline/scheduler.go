package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nao1215/reviewharvest/internal/model"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of concurrent jobs when none is given.
const DefaultConcurrency = 3

// Runner harvests one job. Harvester implements it.
type Runner interface {
	Harvest(ctx context.Context, job *model.Job) (int, error)
}

// Scheduler runs jobs with a fixed upper bound on simultaneous sessions.
type Scheduler struct {
	runner      Runner
	concurrency int
	logger      *slog.Logger

	// onJob is called once per job after it reaches a terminal state.
	// Calls are serialized.
	onJob func(job *model.Job)
	mu    sync.Mutex
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerLogger sets the logger.
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent jobs.
// Non-positive values are ignored.
func WithConcurrency(n int) SchedulerOption {
	return func(s *Scheduler) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithJobCallback registers fn to be called for each finished job. Calls
// never overlap, so fn may write to a shared store without locking.
func WithJobCallback(fn func(job *model.Job)) SchedulerOption {
	return func(s *Scheduler) {
		s.onJob = fn
	}
}

// NewScheduler creates a Scheduler.
func NewScheduler(runner Runner, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		runner:      runner,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Run deduplicates sources and harvests each of them, admitting a new job
// whenever a running one finishes. Jobs are isolated: a failure or panic in
// one never cancels another. Cancelling ctx stops admission; jobs not yet
// started finish as failed with ErrNotStarted.
//
// The returned Summary lists every job in seed order.
func (s *Scheduler) Run(ctx context.Context, sources []model.Source) *model.Summary {
	unique := model.UniqueSources(sources)
	jobs := make([]*model.Job, len(unique))
	for i, src := range unique {
		jobs[i] = model.NewJob(src)
	}

	s.logger.Info("starting harvest",
		"sources", len(sources),
		"jobs", len(jobs),
		"concurrency", s.concurrency,
	)
	startedAt := time.Now()

	// A plain Group: one job's failure must not cancel its siblings.
	var g errgroup.Group
	g.SetLimit(s.concurrency)

	for i, job := range jobs {
		g.Go(func() error {
			s.runJob(ctx, job, i, len(jobs))
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // jobs never return errors to the group

	summary := model.NewSummary(jobs)
	summary.StartedAt = startedAt
	summary.FinishedAt = time.Now()

	s.logger.Info("harvest complete",
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"records", summary.RecordsWritten,
		"elapsed", summary.Elapsed(),
	)
	return summary
}

func (s *Scheduler) runJob(ctx context.Context, job *model.Job, index, total int) {
	defer s.finish(job)

	if err := ctx.Err(); err != nil {
		job.Fail(&JobError{Source: job.Source, Phase: PhaseQueued, Err: fmt.Errorf("%w: %w", ErrNotStarted, err)})
		return
	}

	s.logger.Info("harvesting source",
		"source", job.Source,
		"index", index+1,
		"total", total,
	)
	job.Start()

	defer func() {
		if r := recover(); r != nil {
			job.Fail(sessionError(job.Source, "panic", fmt.Errorf("%v", r)))
		}
	}()

	written, err := s.runner.Harvest(ctx, job)
	if err != nil {
		s.logger.Warn("job failed",
			"source", job.Source,
			"records", written,
			"error", err,
		)
		job.Fail(err)
		return
	}
	job.Succeed()
	s.logger.Info("job succeeded",
		"source", job.Source,
		"records", written,
		"events", job.Events.Total(),
	)
}

func (s *Scheduler) finish(job *model.Job) {
	if s.onJob == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onJob(job)
}
