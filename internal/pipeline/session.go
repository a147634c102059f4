package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/reviewharvest/internal/browser"
	"github.com/nao1215/reviewharvest/internal/config"
	"github.com/nao1215/reviewharvest/internal/model"
	"github.com/nao1215/reviewharvest/internal/quota"
)

// Session is the private state of one running job. It is owned by the
// goroutine running the job and never shared.
type Session struct {
	Job *model.Job
	// Page is set by the open step and closed by the Harvester.
	Page browser.Page
	// Acc holds the job's FingerprintSet and RatingQuota.
	Acc *quota.Accumulator
	// Settings are the per-source quota settings.
	Settings config.JobSettings

	logger *slog.Logger
}

// NewSession returns the state of a job about to run.
func NewSession(job *model.Job, acc *quota.Accumulator, settings config.JobSettings, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		Job:      job,
		Acc:      acc,
		Settings: settings,
		logger:   logger.With("source", job.Source),
	}
}

// Logger returns the job logger.
func (s *Session) Logger() *slog.Logger {
	return s.logger
}

// Event counts a soft event and logs it.
func (s *Session) Event(ctx context.Context, kind model.EventKind, err error, attrs ...any) {
	s.Job.Events.Add(kind)

	args := append([]any{"event", kind}, attrs...)
	if err != nil {
		args = append(args, "error", err)
	}
	s.logger.Log(ctx, eventLevel(kind), "soft event", args...)
}

// eventLevel keeps expected rejections out of the default log output.
func eventLevel(kind model.EventKind) slog.Level {
	switch kind {
	case model.EventRejectedEmpty, model.EventRejectedDuplicate, model.EventRejectedShort,
		model.EventRejectedQuota, model.EventRejectedUnrated, model.EventMissingField:
		return slog.LevelDebug
	case model.EventNodeCap, model.EventStabilizationExhausted:
		return slog.LevelInfo
	default:
		return slog.LevelWarn
	}
}

// rejectionEvent maps an accumulator decision to its event kind.
func rejectionEvent(d quota.Decision) model.EventKind {
	switch d {
	case quota.RejectedEmpty:
		return model.EventRejectedEmpty
	case quota.RejectedDuplicate:
		return model.EventRejectedDuplicate
	case quota.RejectedShort:
		return model.EventRejectedShort
	case quota.RejectedQuota:
		return model.EventRejectedQuota
	default:
		return model.EventRejectedUnrated
	}
}
