package pipeline

import (
	"errors"
	"fmt"

	"github.com/nao1215/reviewharvest/internal/extract"
	"github.com/nao1215/reviewharvest/internal/model"
)

// Harvest errors. ErrNavigation and ErrSession fail a job; the others are
// recorded as soft events.
var (
	// ErrNavigation means the source could not be reached or its title
	// landmark did not appear in time.
	ErrNavigation = errors.New("navigation failed")
	// ErrGate means the consent gate could not be passed.
	ErrGate = errors.New("gate not handled")
	// ErrStabilizationExhausted means the list was still growing when the
	// attempt budget ran out.
	ErrStabilizationExhausted = errors.New("stabilization attempts exhausted")
	// ErrExtractionFault means reading a review node faulted.
	ErrExtractionFault = extract.ErrExtractionFault
	// ErrSinkWrite means an accepted record could not be written.
	ErrSinkWrite = errors.New("sink write failed")
	// ErrSession means the interactive session became unusable.
	ErrSession = errors.New("session failed")
	// ErrNotStarted means the run was cancelled before the job was admitted.
	ErrNotStarted = errors.New("job not started")
)

// Phase names a state of the per-job state machine.
type Phase string

// Job phases, in execution order.
const (
	PhaseQueued       Phase = "queued"
	PhaseOpening      Phase = "opening"
	PhaseGate         Phase = "gate"
	PhaseBucketSelect Phase = "bucket_select"
	PhaseStabilizing  Phase = "stabilizing"
	PhaseEnumerating  Phase = "enumerating"
)

// JobError is the hard error of a failed job.
type JobError struct {
	Source model.Source
	Phase  Phase
	Err    error
}

// Error implements error.
func (e *JobError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Source, e.Phase, e.Err)
}

// Unwrap returns the underlying error.
func (e *JobError) Unwrap() error {
	return e.Err
}

func navigationError(src model.Source, err error) *JobError {
	return &JobError{Source: src, Phase: PhaseOpening, Err: fmt.Errorf("%w: %w", ErrNavigation, err)}
}

func sessionError(src model.Source, phase Phase, err error) *JobError {
	return &JobError{Source: src, Phase: phase, Err: fmt.Errorf("%w: %w", ErrSession, err)}
}
