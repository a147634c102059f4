package model

import "time"

// JobState is the lifecycle state of a Job.
// Jobs move pending -> running -> succeeded|failed and never back.
type JobState int

const (
	// JobPending means the job is queued and waiting for a free slot.
	JobPending JobState = iota
	// JobRunning means a session is harvesting the source.
	JobRunning
	// JobSucceeded means the job reached its natural end.
	JobSucceeded
	// JobFailed means the job ended with a hard error.
	JobFailed
)

// String returns the state name.
func (s JobState) String() string {
	switch s {
	case JobPending:
		return "pending"
	case JobRunning:
		return "running"
	case JobSucceeded:
		return "succeeded"
	case JobFailed:
		return "failed"
	default:
		return unknownStr
	}
}

// ParseJobState returns the state named s, as produced by String.
func ParseJobState(s string) (JobState, bool) {
	for _, st := range []JobState{JobPending, JobRunning, JobSucceeded, JobFailed} {
		if st.String() == s {
			return st, true
		}
	}
	return JobPending, false
}

// Terminal reports whether the state is final.
func (s JobState) Terminal() bool {
	return s == JobSucceeded || s == JobFailed
}

const unknownStr = "unknown"

// MaxRating is the highest star rating a record can carry.
const MaxRating = 5

// Job is one attempt to harvest a Source.
// A Job is owned by the goroutine running it; other goroutines read it only
// after it reaches a terminal state.
type Job struct {
	// Source is the harvested subject.
	Source Source
	// Title is the human-readable name read from the page; every record
	// written by the job carries it.
	Title string
	// State is the lifecycle state.
	State JobState
	// RecordsWritten counts records that reached the output.
	RecordsWritten int
	// Ratings counts written records per rating; index 0 holds unrated ones.
	Ratings [MaxRating + 1]int
	// Processed counts review nodes that were read.
	Processed int
	// Events tallies soft failures and rejections.
	Events EventCounts
	// Err is the hard error for failed jobs.
	Err error

	StartedAt  time.Time
	FinishedAt time.Time
}

// NewJob creates a pending job for src.
func NewJob(src Source) *Job {
	return &Job{
		Source: src,
		State:  JobPending,
		Events: NewEventCounts(),
	}
}

// Start marks the job as running.
func (j *Job) Start() {
	j.State = JobRunning
	j.StartedAt = time.Now()
}

// Succeed marks the job as succeeded.
func (j *Job) Succeed() {
	j.State = JobSucceeded
	j.FinishedAt = time.Now()
}

// Fail marks the job as failed with err.
func (j *Job) Fail(err error) {
	j.State = JobFailed
	j.Err = err
	j.FinishedAt = time.Now()
}

// RecordWritten accounts for one record that reached the output.
func (j *Job) RecordWritten(rating int) {
	j.RecordsWritten++
	if rating < 0 || rating > MaxRating {
		rating = 0
	}
	j.Ratings[rating]++
}

// Duration returns how long the job ran.
func (j *Job) Duration() time.Duration {
	if j.StartedAt.IsZero() || j.FinishedAt.IsZero() {
		return 0
	}
	return j.FinishedAt.Sub(j.StartedAt)
}

// ErrorMessage returns the hard error text, or an empty string.
func (j *Job) ErrorMessage() string {
	if j.Err == nil {
		return ""
	}
	return j.Err.Error()
}
