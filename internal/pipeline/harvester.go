package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/reviewharvest/internal/browser"
	"github.com/nao1215/reviewharvest/internal/config"
	"github.com/nao1215/reviewharvest/internal/model"
	"github.com/nao1215/reviewharvest/internal/quota"
	"github.com/nao1215/reviewharvest/internal/rating"
	"github.com/nao1215/reviewharvest/internal/sink"
	"github.com/nao1215/reviewharvest/internal/stabilize"
)

// SeenStore returns the fingerprints already written for a source by
// earlier runs.
type SeenStore interface {
	Fingerprints(ctx context.Context, src model.Source) ([]quota.Fingerprint, error)
}

// Harvester is the session controller: it owns one job end to end, from
// opening the page to the last record written.
type Harvester struct {
	browser  browser.Browser
	sink     sink.Sink
	cfg      *config.Config
	rounding rating.Rounding
	seen     SeenStore
	logger   *slog.Logger
	sleep    stabilize.SleepFunc
	jitter   time.Duration
}

// HarvesterOption configures a Harvester.
type HarvesterOption func(*Harvester)

// WithHarvesterLogger sets the logger.
func WithHarvesterLogger(logger *slog.Logger) HarvesterOption {
	return func(h *Harvester) {
		h.logger = logger
	}
}

// WithSeenStore seeds every job with earlier fingerprints when the
// configuration enables SkipSeen.
func WithSeenStore(store SeenStore) HarvesterOption {
	return func(h *Harvester) {
		h.seen = store
	}
}

// WithSleep replaces the pause implementation of every delay.
func WithSleep(fn stabilize.SleepFunc) HarvesterOption {
	return func(h *Harvester) {
		h.sleep = fn
	}
}

// WithJitter sets the upper bound of the random delay added to settle and
// stabilization pauses.
func WithJitter(d time.Duration) HarvesterOption {
	return func(h *Harvester) {
		h.jitter = d
	}
}

// NewHarvester creates a Harvester. cfg must have been validated.
func NewHarvester(b browser.Browser, sk sink.Sink, cfg *config.Config, opts ...HarvesterOption) (*Harvester, error) {
	rounding, err := cfg.RoundingPolicy()
	if err != nil {
		return nil, err
	}

	h := &Harvester{
		browser:  b,
		sink:     sk,
		cfg:      cfg,
		rounding: rounding,
		sleep:    stabilize.Sleep,
		jitter:   stabilize.DefaultJitter,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.sleep == nil {
		h.sleep = stabilize.Sleep
	}
	return h, nil
}

// Pipeline builds the steps of a job for src.
func (h *Harvester) Pipeline(src model.Source) *Pipeline {
	cfg := h.cfg
	pace := pacer{sleep: h.sleep, jitter: h.jitter}
	detector := stabilize.New(cfg.ScrollAttempts, cfg.ScrollDelay,
		stabilize.WithSleep(h.sleep),
		stabilize.WithJitter(h.jitter),
	)

	p := New(WithLogger(h.logger))
	p.AddSteps(
		NewOpenStep(h.browser, cfg.BrowserOptions(src), cfg.Locators.Title, cfg.TitleTimeout),
		NewGateStep(cfg.Locators.Gate, cfg.Locators.Container, cfg.GateTimeout, cfg.GateSettle, cfg.GateFallback, pace),
		NewCollectStep(cfg, detector, h.rounding, h.sink, pace),
	)
	return p
}

// Harvest runs job and returns the number of records written. The page is
// closed on every exit path. A returned error is a *JobError wrapping
// ErrNavigation or ErrSession.
func (h *Harvester) Harvest(ctx context.Context, job *model.Job) (int, error) {
	settings := h.cfg.JobSettings(job.Source)
	acc := quota.New(settings.MaxPerRating, h.cfg.MinBodyLength,
		quota.WithHelpfulThreshold(h.cfg.HelpfulThreshold),
		quota.WithDropUnrated(h.cfg.DropUnrated),
		quota.WithSeen(h.seenFingerprints(ctx, job.Source)),
	)

	s := NewSession(job, acc, settings, h.logger)
	defer h.closePage(s)

	err := h.Pipeline(job.Source).Execute(ctx, s)
	return job.RecordsWritten, err
}

func (h *Harvester) seenFingerprints(ctx context.Context, src model.Source) []quota.Fingerprint {
	if !h.cfg.SkipSeen || h.seen == nil {
		return nil
	}
	fps, err := h.seen.Fingerprints(ctx, src)
	if err != nil {
		h.logger.Warn("failed to load fingerprints of earlier runs", "source", src, "error", err)
		return nil
	}
	h.logger.Debug("loaded fingerprints of earlier runs", "source", src, "count", len(fps))
	return fps
}

func (h *Harvester) closePage(s *Session) {
	if s.Page == nil {
		return
	}
	if err := s.Page.Close(); err != nil {
		h.logger.Warn("failed to close page", "source", s.Job.Source, "error", err)
	}
}
