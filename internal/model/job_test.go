package model

import (
	"errors"
	"testing"
)

func TestJobLifecycle(t *testing.T) {
	t.Parallel()

	t.Run("new job is pending", func(t *testing.T) {
		t.Parallel()

		j := NewJob("https://example.com/a")
		if j.State != JobPending {
			t.Errorf("expected pending, got %s", j.State)
		}
		if j.Events == nil {
			t.Error("expected initialized event counts")
		}
	})

	t.Run("succeeded job is terminal", func(t *testing.T) {
		t.Parallel()

		j := NewJob("https://example.com/a")
		j.Start()
		if j.State.Terminal() {
			t.Error("running job must not be terminal")
		}
		j.Succeed()
		if !j.State.Terminal() {
			t.Error("succeeded job must be terminal")
		}
		if j.Duration() < 0 {
			t.Errorf("unexpected negative duration %v", j.Duration())
		}
	})

	t.Run("failed job keeps its error", func(t *testing.T) {
		t.Parallel()

		cause := errors.New("boom")
		j := NewJob("https://example.com/a")
		j.Start()
		j.Fail(cause)
		if !errors.Is(j.Err, cause) {
			t.Errorf("expected error %v, got %v", cause, j.Err)
		}
		if j.ErrorMessage() != "boom" {
			t.Errorf("expected message 'boom', got %q", j.ErrorMessage())
		}
	})

	t.Run("records are counted per rating", func(t *testing.T) {
		t.Parallel()

		j := NewJob("https://example.com/a")
		j.RecordWritten(5)
		j.RecordWritten(5)
		j.RecordWritten(0)
		j.RecordWritten(9)
		if j.RecordsWritten != 4 {
			t.Errorf("expected 4 records, got %d", j.RecordsWritten)
		}
		if j.Ratings[5] != 2 {
			t.Errorf("expected 2 five-star records, got %d", j.Ratings[5])
		}
		if j.Ratings[0] != 2 {
			t.Errorf("expected out-of-range rating to count as unrated, got %d", j.Ratings[0])
		}
	})
}

func TestJobStateString(t *testing.T) {
	t.Parallel()

	tests := map[JobState]string{
		JobPending:   "pending",
		JobRunning:   "running",
		JobSucceeded: "succeeded",
		JobFailed:    "failed",
		JobState(42): "unknown",
	}
	for state, want := range tests {
		if got := state.String(); got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	}
}

func TestParseJobState(t *testing.T) {
	t.Parallel()

	for _, want := range []JobState{JobPending, JobRunning, JobSucceeded, JobFailed} {
		got, ok := ParseJobState(want.String())
		if !ok || got != want {
			t.Errorf("ParseJobState(%q) = %v, %v", want.String(), got, ok)
		}
	}
	if _, ok := ParseJobState("exploded"); ok {
		t.Error("expected an unknown state to be rejected")
	}
}

func TestNewSummary(t *testing.T) {
	t.Parallel()

	ok := NewJob("https://example.com/a")
	ok.Start()
	ok.RecordWritten(4)
	ok.Events.Add(EventGate)
	ok.Succeed()

	bad := NewJob("https://example.com/b")
	bad.Start()
	bad.Events.Add(EventGate)
	bad.Events.Add(EventSinkWrite)
	bad.Fail(errors.New("navigation timeout"))

	pending := NewJob("https://example.com/c")

	s := NewSummary([]*Job{ok, bad, pending})

	if s.Total != 3 {
		t.Errorf("expected total 3, got %d", s.Total)
	}
	if s.Succeeded != 1 {
		t.Errorf("expected 1 succeeded, got %d", s.Succeeded)
	}
	if s.Failed != 2 {
		t.Errorf("expected 2 failed, got %d", s.Failed)
	}
	if s.OK() {
		t.Error("expected summary with failures to be not OK")
	}
	if s.RecordsWritten != 1 || s.Ratings[4] != 1 {
		t.Errorf("unexpected record totals: %d, %v", s.RecordsWritten, s.Ratings)
	}
	if s.Events[EventGate] != 2 || s.Events.Total() != 3 {
		t.Errorf("unexpected event totals: %v", s.Events)
	}
	if len(s.FailedJobs()) != 2 {
		t.Errorf("expected 2 failed jobs, got %d", len(s.FailedJobs()))
	}
}

func TestEventCountsKinds(t *testing.T) {
	t.Parallel()

	c := NewEventCounts()
	c.Add(EventSinkWrite)
	c.Add(EventGate)
	c.Add(EventGate)

	kinds := c.Kinds()
	if len(kinds) != 2 || kinds[0] != EventGate || kinds[1] != EventSinkWrite {
		t.Errorf("unexpected kinds order: %v", kinds)
	}
}
