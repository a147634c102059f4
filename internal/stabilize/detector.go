package stabilize

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/nao1215/reviewharvest/internal/browser"
)

// Defaults for the reveal loop.
const (
	// DefaultMaxAttempts bounds the number of reveal actions.
	DefaultMaxAttempts = 50
	// DefaultBaseDelay is the pause after each reveal action, giving the
	// listing time to fetch the next page.
	DefaultBaseDelay = 700 * time.Millisecond
	// DefaultJitter is the upper bound of the random delay added to
	// DefaultBaseDelay.
	DefaultJitter = 200 * time.Millisecond
)

// Surface is a scrollable container holding the list.
type Surface interface {
	// ScrollToEnd reads the content extent and advances the container to
	// it. It returns browser.ErrNotFound when the container is missing.
	ScrollToEnd(ctx context.Context) (int, error)
	// Visible reports whether the container is still rendered.
	Visible(ctx context.Context) (bool, error)
}

// Outcome explains why stabilization stopped.
type Outcome int

const (
	// Converged means two consecutive extent readings were equal.
	Converged Outcome = iota
	// Exhausted means the attempt budget ran out while the list still grew.
	Exhausted
	// ContainerMissing means the container could not be located.
	ContainerMissing
	// ViewChanged means the container stopped being visible.
	ViewChanged
	// Interrupted means reading or advancing the container faulted.
	Interrupted
	// Cancelled means the context ended.
	Cancelled
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case Converged:
		return "converged"
	case Exhausted:
		return "exhausted"
	case ContainerMissing:
		return "container_missing"
	case ViewChanged:
		return "view_changed"
	case Interrupted:
		return "interrupted"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Result describes a finished stabilization.
type Result struct {
	Outcome Outcome
	// Attempts counts reveal actions that observed growth.
	Attempts int
	// Extent is the last extent read, or -1 when none was read.
	Extent int
	// Err holds the fault behind Interrupted or Cancelled.
	Err error
}

// SleepFunc pauses for d or until ctx ends.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Detector runs the reveal loop.
type Detector struct {
	maxAttempts int
	baseDelay   time.Duration
	jitter      time.Duration
	sleep       SleepFunc
}

// Option configures a Detector.
type Option func(*Detector)

// WithJitter sets the upper bound of the random delay added to each pause.
// Zero disables jitter.
func WithJitter(d time.Duration) Option {
	return func(det *Detector) {
		if d >= 0 {
			det.jitter = d
		}
	}
}

// WithSleep replaces the pause implementation.
func WithSleep(fn SleepFunc) Option {
	return func(det *Detector) {
		if fn != nil {
			det.sleep = fn
		}
	}
}

// New returns a Detector that performs at most maxAttempts reveal actions
// and pauses baseDelay plus jitter after each of them.
func New(maxAttempts int, baseDelay time.Duration, opts ...Option) *Detector {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if baseDelay < 0 {
		baseDelay = 0
	}
	d := &Detector{
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		jitter:      DefaultJitter,
		sleep:       Sleep,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// MaxAttempts returns the attempt budget.
func (d *Detector) MaxAttempts() int {
	return d.maxAttempts
}

// Stabilize reveals content until the extent stops changing, the container
// goes away, or the attempt budget is spent.
func (d *Detector) Stabilize(ctx context.Context, s Surface) Result {
	res := Result{Extent: -1}
	last := -1

	for res.Attempts < d.maxAttempts {
		if err := ctx.Err(); err != nil {
			res.Outcome, res.Err = Cancelled, err
			return res
		}

		extent, err := s.ScrollToEnd(ctx)
		switch {
		case errors.Is(err, browser.ErrNotFound):
			res.Outcome = ContainerMissing
			return res
		case err != nil:
			res.Outcome, res.Err = Interrupted, err
			return res
		}
		res.Extent = extent

		if extent == last {
			res.Outcome = Converged
			return res
		}
		last = extent
		res.Attempts++

		if err := d.sleep(ctx, d.delay()); err != nil {
			res.Outcome, res.Err = Cancelled, err
			return res
		}

		visible, err := s.Visible(ctx)
		if err != nil {
			res.Outcome, res.Err = Interrupted, err
			return res
		}
		if !visible {
			res.Outcome = ViewChanged
			return res
		}
	}

	res.Outcome = Exhausted
	return res
}

func (d *Detector) delay() time.Duration {
	if d.jitter <= 0 {
		return d.baseDelay
	}
	return d.baseDelay + rand.N(d.jitter)
}

// Sleep pauses for d or until ctx ends, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
