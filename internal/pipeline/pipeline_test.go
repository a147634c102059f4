package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nao1215/reviewharvest/internal/config"
	"github.com/nao1215/reviewharvest/internal/model"
	"github.com/nao1215/reviewharvest/internal/quota"
)

// mockStep is a test helper that implements the Step interface.
type mockStep struct {
	name      string
	doFunc    func(ctx context.Context, s *Session) error
	callCount int
}

func (m *mockStep) Do(ctx context.Context, s *Session) error {
	m.callCount++
	if m.doFunc != nil {
		return m.doFunc(ctx, s)
	}
	return nil
}

func (m *mockStep) Name() string {
	return m.name
}

func newTestSession() *Session {
	return NewSession(model.NewJob("https://example.com/app"), quota.New(1, 0), config.JobSettings{MaxPerRating: 1}, nil)
}

// TestPipelineExecute tests step sequencing and error mapping.
func TestPipelineExecute(t *testing.T) {
	t.Parallel()

	t.Run("executes all steps in order", func(t *testing.T) {
		t.Parallel()

		var order []string
		p := New()
		for _, name := range []string{"first", "second", "third"} {
			p.AddStep(&mockStep{name: name, doFunc: func(context.Context, *Session) error {
				order = append(order, name)
				return nil
			}})
		}

		if err := p.Execute(context.Background(), newTestSession()); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if diff := cmp.Diff([]string{"first", "second", "third"}, order); diff != "" {
			t.Errorf("order mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff(order, p.StepNames()); diff != "" {
			t.Errorf("StepNames mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("stops at the first failing step", func(t *testing.T) {
		t.Parallel()

		failing := &mockStep{name: "gate", doFunc: func(context.Context, *Session) error {
			return errors.New("page crashed")
		}}
		after := &mockStep{name: "collect"}
		p := New()
		p.AddSteps(&mockStep{name: "opening"}, failing, after)

		err := p.Execute(context.Background(), newTestSession())

		var jobErr *JobError
		if !errors.As(err, &jobErr) {
			t.Fatalf("expected *JobError, got %v", err)
		}
		if jobErr.Phase != PhaseGate || !errors.Is(err, ErrSession) {
			t.Errorf("expected a session error in the gate phase, got %v", err)
		}
		if after.callCount != 0 {
			t.Error("steps after a failure must not run")
		}
	})

	t.Run("keeps the phase of a job error", func(t *testing.T) {
		t.Parallel()

		p := New()
		p.AddStep(&mockStep{name: "opening", doFunc: func(_ context.Context, s *Session) error {
			return navigationError(s.Job.Source, errors.New("dns"))
		}})

		err := p.Execute(context.Background(), newTestSession())
		if !errors.Is(err, ErrNavigation) {
			t.Errorf("expected ErrNavigation, got %v", err)
		}
	})

	t.Run("cancelled context stops before the next step", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		step := &mockStep{name: "opening"}
		p := New()
		p.AddStep(step)
		cancel()

		err := p.Execute(ctx, newTestSession())
		if !errors.Is(err, context.Canceled) || !errors.Is(err, ErrSession) {
			t.Errorf("expected cancelled session error, got %v", err)
		}
		if step.callCount != 0 {
			t.Error("no step must run after cancellation")
		}
	})
}

// TestSessionEvent tests that soft events are counted.
func TestSessionEvent(t *testing.T) {
	t.Parallel()

	s := newTestSession()
	s.Event(context.Background(), model.EventGate, ErrGate)
	s.Event(context.Background(), model.EventGate, nil)
	s.Event(context.Background(), model.EventRejectedShort, nil, "rating", 3)

	want := model.EventCounts{model.EventGate: 2, model.EventRejectedShort: 1}
	if diff := cmp.Diff(want, s.Job.Events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

// TestJobError tests the error text and unwrapping.
func TestJobError(t *testing.T) {
	t.Parallel()

	err := sessionError("https://example.com/app", PhaseEnumerating, context.DeadlineExceeded)

	if got, want := err.Error(), "https://example.com/app: enumerating: session failed: context deadline exceeded"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("expected the cause to be unwrapped")
	}
}
