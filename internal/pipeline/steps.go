package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/nao1215/reviewharvest/internal/browser"
	"github.com/nao1215/reviewharvest/internal/model"
	"github.com/nao1215/reviewharvest/internal/stabilize"
)

// pacer inserts the settle delays between interactive actions.
type pacer struct {
	sleep  stabilize.SleepFunc
	jitter time.Duration
}

// pause waits exactly d.
func (p pacer) pause(ctx context.Context, d time.Duration) error {
	return p.sleep(ctx, d)
}

// settle waits d plus a random jitter.
func (p pacer) settle(ctx context.Context, d time.Duration) error {
	if p.jitter > 0 {
		d += rand.N(p.jitter)
	}
	return p.sleep(ctx, d)
}

// hardCause returns the error to fail the job with when err means the
// session cannot continue (the run was cancelled or the page is gone), or
// nil for a soft failure.
func hardCause(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, browser.ErrClosed) {
		return err
	}
	return nil
}

// OpenStep opens the source page and reads its title.
type OpenStep struct {
	browser      browser.Browser
	options      browser.Options
	titleLocator string
	titleTimeout time.Duration
}

// NewOpenStep creates the Opening step.
func NewOpenStep(b browser.Browser, opts browser.Options, titleLocator string, titleTimeout time.Duration) *OpenStep {
	return &OpenStep{
		browser:      b,
		options:      opts,
		titleLocator: titleLocator,
		titleTimeout: titleTimeout,
	}
}

// Name returns the step name.
func (st *OpenStep) Name() string {
	return string(PhaseOpening)
}

// Do opens the page. Both failures fail the job with ErrNavigation; a page
// that was opened is left on the session so the Harvester closes it.
func (st *OpenStep) Do(ctx context.Context, s *Session) error {
	page, err := st.browser.Open(ctx, s.Job.Source.String(), st.options)
	if err != nil {
		return navigationError(s.Job.Source, err)
	}
	s.Page = page

	title, err := page.Text(ctx, st.titleLocator, st.titleTimeout)
	if err != nil {
		return navigationError(s.Job.Source, fmt.Errorf("title %q: %w", st.titleLocator, err))
	}
	s.Job.Title = strings.TrimSpace(title)

	s.Logger().Debug("page opened", "app", s.Job.Title)
	return nil
}

// GateStep dismisses the consent or interstitial prompt. It is best effort:
// when the control is absent or does not lead to the list, the job goes on
// after a fallback delay.
type GateStep struct {
	gate      string
	container string
	timeout   time.Duration
	settle    time.Duration
	fallback  time.Duration
	pace      pacer
}

// NewGateStep creates the GateHandling step.
func NewGateStep(gate, container string, timeout, settle, fallback time.Duration, pace pacer) *GateStep {
	return &GateStep{
		gate:      gate,
		container: container,
		timeout:   timeout,
		settle:    settle,
		fallback:  fallback,
		pace:      pace,
	}
}

// Name returns the step name.
func (st *GateStep) Name() string {
	return string(PhaseGate)
}

// Do activates the last matching gate control and waits for the list. An
// empty gate locator disables the step.
func (st *GateStep) Do(ctx context.Context, s *Session) error {
	if st.gate == "" {
		return nil
	}

	err := st.pass(ctx, s.Page)
	if err == nil {
		return nil
	}
	if cause := hardCause(ctx, err); cause != nil {
		return sessionError(s.Job.Source, PhaseGate, cause)
	}

	s.Event(ctx, model.EventGate, fmt.Errorf("%w: %w", ErrGate, err))
	if err := st.pace.pause(ctx, st.fallback); err != nil {
		return sessionError(s.Job.Source, PhaseGate, err)
	}
	return nil
}

func (st *GateStep) pass(ctx context.Context, page browser.Page) error {
	if err := page.WaitVisible(ctx, st.gate, st.timeout); err != nil {
		return fmt.Errorf("gate control: %w", err)
	}
	if err := page.ClickLast(ctx, st.gate); err != nil {
		return fmt.Errorf("activate gate: %w", err)
	}
	if err := st.pace.settle(ctx, st.settle); err != nil {
		return err
	}
	if err := page.WaitVisible(ctx, st.container, st.timeout); err != nil {
		return fmt.Errorf("list after gate: %w", err)
	}
	return nil
}
