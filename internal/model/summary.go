package model

import "time"

// Summary is the aggregate outcome of a run.
type Summary struct {
	Total          int
	Succeeded      int
	Failed         int
	RecordsWritten int
	// Ratings sums Job.Ratings across all jobs.
	Ratings [MaxRating + 1]int
	// Events sums the soft events of all jobs.
	Events EventCounts
	// Jobs holds every job in scheduling order.
	Jobs []*Job

	StartedAt  time.Time
	FinishedAt time.Time
}

// NewSummary aggregates terminal jobs into a Summary.
func NewSummary(jobs []*Job) *Summary {
	s := &Summary{
		Total:  len(jobs),
		Events: NewEventCounts(),
		Jobs:   jobs,
	}
	for _, j := range jobs {
		switch j.State {
		case JobSucceeded:
			s.Succeeded++
		default:
			// A job that never reached a terminal state did not succeed.
			s.Failed++
		}
		s.RecordsWritten += j.RecordsWritten
		for i, n := range j.Ratings {
			s.Ratings[i] += n
		}
		s.Events.Merge(j.Events)
	}
	return s
}

// OK reports whether every job succeeded.
func (s *Summary) OK() bool {
	return s.Failed == 0
}

// FailedJobs returns the jobs that did not succeed.
func (s *Summary) FailedJobs() []*Job {
	var failed []*Job
	for _, j := range s.Jobs {
		if j.State != JobSucceeded {
			failed = append(failed, j)
		}
	}
	return failed
}

// Elapsed returns the wall time of the run.
func (s *Summary) Elapsed() time.Duration {
	if s.StartedAt.IsZero() || s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
