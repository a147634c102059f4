package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/reviewharvest/internal/browser"
	"github.com/nao1215/reviewharvest/internal/config"
	"github.com/nao1215/reviewharvest/internal/extract"
	"github.com/nao1215/reviewharvest/internal/model"
	"github.com/nao1215/reviewharvest/internal/quota"
	"github.com/nao1215/reviewharvest/internal/rating"
	"github.com/nao1215/reviewharvest/internal/sink"
	"github.com/nao1215/reviewharvest/internal/stabilize"
)

// filterOpenSettle is the pause between opening the rating filter and
// choosing an option.
const filterOpenSettle = time.Second

// containerSurface exposes the list container of a page to the
// stabilization detector.
type containerSurface struct {
	page    browser.Page
	locator string
}

func (c containerSurface) ScrollToEnd(ctx context.Context) (int, error) {
	return c.page.ScrollToEnd(ctx, c.locator)
}

func (c containerSurface) Visible(ctx context.Context) (bool, error) {
	return c.page.Visible(ctx, c.locator)
}

// CollectStep loads the review list and turns its nodes into records. With
// rating buckets enabled it repeats this once per rating filter, 1 to 5.
type CollectStep struct {
	cfg       *config.Config
	detector  *stabilize.Detector
	extractor *extract.Extractor
	rounding  rating.Rounding
	sink      sink.Sink
	pace      pacer
}

// NewCollectStep creates the step covering BucketSelect, Stabilizing and
// Enumerating.
func NewCollectStep(cfg *config.Config, detector *stabilize.Detector, rounding rating.Rounding, sk sink.Sink, pace pacer) *CollectStep {
	return &CollectStep{
		cfg:       cfg,
		detector:  detector,
		extractor: extract.New(cfg.Locators.Fields),
		rounding:  rounding,
		sink:      sk,
		pace:      pace,
	}
}

// Name returns the step name.
func (st *CollectStep) Name() string {
	return "collect"
}

// Do collects the natural list order once, or every rating bucket in
// ascending order. Buckets stop as soon as every quota is full.
func (st *CollectStep) Do(ctx context.Context, s *Session) error {
	if !s.Settings.ByRating {
		return st.collect(ctx, s, 0)
	}

	for r := 1; r <= model.MaxRating; r++ {
		if s.Acc.Full() {
			s.Logger().Debug("all rating buckets full", "rating", r)
			return nil
		}
		if s.Acc.BucketFull(r) {
			continue
		}

		if err := st.selectBucket(ctx, s.Page, r); err != nil {
			if cause := hardCause(ctx, err); cause != nil {
				return sessionError(s.Job.Source, PhaseBucketSelect, cause)
			}
			s.Event(ctx, model.EventBucketSelect, err, "rating", r)
			continue
		}
		if err := st.collect(ctx, s, r); err != nil {
			return err
		}
	}
	return nil
}

func (st *CollectStep) selectBucket(ctx context.Context, page browser.Page, r int) error {
	if err := page.ClickLast(ctx, st.cfg.Locators.FilterOpen); err != nil {
		return fmt.Errorf("open rating filter: %w", err)
	}
	if err := st.pace.settle(ctx, filterOpenSettle); err != nil {
		return err
	}
	if err := page.ClickLast(ctx, st.cfg.Locators.RatingOptions[r-1]); err != nil {
		return fmt.Errorf("choose rating %d: %w", r, err)
	}
	return st.pace.settle(ctx, st.cfg.BucketSettle)
}

// collect stabilizes the current list view and enumerates it. bucket is the
// selected rating, or 0 for the unfiltered list.
func (st *CollectStep) collect(ctx context.Context, s *Session, bucket int) error {
	if err := st.stabilize(ctx, s, bucket); err != nil {
		return err
	}
	return st.enumerate(ctx, s, bucket)
}

func (st *CollectStep) stabilize(ctx context.Context, s *Session, bucket int) error {
	src := s.Job.Source
	loc := st.cfg.Locators.Container

	if err := s.Page.WaitVisible(ctx, loc, st.cfg.ContainerTimeout); err != nil {
		if cause := hardCause(ctx, err); cause != nil {
			return sessionError(src, PhaseStabilizing, cause)
		}
		s.Event(ctx, model.EventStabilizationInterrupted, err, "bucket", bucket)
		return nil
	}
	if err := st.pace.pause(ctx, st.cfg.InitialSettle); err != nil {
		return sessionError(src, PhaseStabilizing, err)
	}

	res := st.detector.Stabilize(ctx, containerSurface{page: s.Page, locator: loc})
	attrs := []any{"bucket", bucket, "outcome", res.Outcome, "attempts", res.Attempts, "extent", res.Extent}

	switch res.Outcome {
	case stabilize.Converged, stabilize.ContainerMissing:
		s.Logger().Debug("list stabilized", attrs...)
	case stabilize.Exhausted:
		s.Event(ctx, model.EventStabilizationExhausted, ErrStabilizationExhausted, attrs...)
	case stabilize.ViewChanged:
		s.Event(ctx, model.EventStabilizationInterrupted, nil, attrs...)
	case stabilize.Interrupted:
		if cause := hardCause(ctx, res.Err); cause != nil {
			return sessionError(src, PhaseStabilizing, cause)
		}
		s.Event(ctx, model.EventStabilizationInterrupted, res.Err, attrs...)
	case stabilize.Cancelled:
		return sessionError(src, PhaseStabilizing, res.Err)
	}
	return nil
}

// enumerate processes the rendered review nodes in order. Every node handle
// is released exactly once, including the ones skipped after an early halt.
func (st *CollectStep) enumerate(ctx context.Context, s *Session, bucket int) error {
	src := s.Job.Source

	nodes, err := s.Page.Elements(ctx, st.cfg.Locators.Item)
	switch {
	case errors.Is(err, browser.ErrNotFound):
		nodes = nil
	case err != nil:
		return sessionError(src, PhaseEnumerating, err)
	}
	s.Logger().Debug("review nodes collected", "bucket", bucket, "nodes", len(nodes))

	stopErr := st.pace.pause(ctx, st.cfg.EnumerationSettle)
	stopped := stopErr != nil
	processed := 0

	for _, node := range nodes {
		if !stopped {
			switch {
			case ctx.Err() != nil:
				stopErr, stopped = ctx.Err(), true
			case s.Acc.Full():
				s.Logger().Debug("all rating buckets full", "bucket", bucket, "processed", processed)
				stopped = true
			case processed >= st.cfg.NodeCap:
				s.Event(ctx, model.EventNodeCap, nil, "bucket", bucket, "cap", st.cfg.NodeCap)
				stopped = true
			}
		}
		if stopped {
			st.release(ctx, s, node)
			continue
		}

		processed++
		st.process(ctx, s, node)
	}

	if stopErr != nil {
		return sessionError(src, PhaseEnumerating, stopErr)
	}
	return nil
}

// process runs one node through extraction, rating, the accumulator and
// the sink, then releases it. Faults never leave this function.
func (st *CollectStep) process(ctx context.Context, s *Session, node browser.Element) {
	defer st.release(ctx, s, node)
	defer func() {
		if r := recover(); r != nil {
			s.Event(ctx, model.EventExtractionFault, fmt.Errorf("%w: panic: %v", ErrExtractionFault, r))
		}
	}()

	s.Job.Processed++

	fields := st.extractor.Extract(ctx, node)
	if fields.Err != nil {
		s.Event(ctx, model.EventExtractionFault, fields.Err)
		return
	}
	if missing := fields.Missing(); len(missing) > 0 {
		s.Event(ctx, model.EventMissingField, nil, "fields", missing)
	}

	value, ok := rating.Parse(fields.RatingLabel)
	stars := st.rounding.Stars(value, ok, model.MaxRating)

	decision := s.Acc.Accept(quota.Candidate{
		Body:         fields.Body,
		HelpfulCount: fields.HelpfulCount,
		Rating:       stars,
	})
	if decision != quota.Accepted {
		s.Event(ctx, rejectionEvent(decision), nil, "rating", stars, "review", fields.Body)
		return
	}

	rec := model.Record{
		Source:   s.Job.Source,
		App:      s.Job.Title,
		Username: fields.Author,
		Rating:   stars,
		Review:   fields.Body,
	}
	if err := st.sink.Write(ctx, rec); err != nil {
		s.Event(ctx, model.EventSinkWrite, fmt.Errorf("%w: %w", ErrSinkWrite, err))
		return
	}
	s.Job.RecordWritten(stars)
}

// release disposes node, counting a failure as a soft event.
func (st *CollectStep) release(ctx context.Context, s *Session, node browser.Element) {
	defer func() {
		if r := recover(); r != nil {
			s.Event(ctx, model.EventDisposeFault, fmt.Errorf("panic: %v", r))
		}
	}()
	if err := node.Release(); err != nil {
		s.Event(ctx, model.EventDisposeFault, err)
	}
}
