package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/nao1215/reviewharvest/internal/browser"
	"github.com/nao1215/reviewharvest/internal/model"
)

var testFields = model.FieldMap{
	Author:  "div.author",
	Rating:  "div[role='img']",
	Body:    "div.body",
	Helpful: "div.helpful",
}

// fakeNode serves field values keyed by locator.
type fakeNode struct {
	values map[string]string
	faults map[string]error
	panic  bool
	modes  map[string]browser.ReadMode
}

func (n *fakeNode) Lookup(_ context.Context, locator string, mode browser.ReadMode) (string, bool, error) {
	if n.panic {
		panic("detached node")
	}
	if n.modes == nil {
		n.modes = make(map[string]browser.ReadMode)
	}
	n.modes[locator] = mode
	if err, ok := n.faults[locator]; ok {
		return "", false, err
	}
	v, ok := n.values[locator]
	return v, ok, nil
}

func (n *fakeNode) Release() error { return nil }

func TestExtractorExtract(t *testing.T) {
	t.Parallel()

	t.Run("reads every field", func(t *testing.T) {
		t.Parallel()

		node := &fakeNode{values: map[string]string{
			"div.author":      "  Jane Doe \n",
			"div[role='img']": "Rated 4 stars out of five stars",
			"div.body":        "\n Solid tower defense game. \n",
			"div.helpful":     "12 people found this review helpful",
		}}

		got := New(testFields).Extract(context.Background(), node)

		want := model.ExtractedFields{
			Author:       "Jane Doe",
			RatingLabel:  "Rated 4 stars out of five stars",
			Body:         "Solid tower defense game.",
			HelpfulCount: 12,
			Found: map[model.Field]bool{
				model.FieldAuthor:  true,
				model.FieldRating:  true,
				model.FieldBody:    true,
				model.FieldHelpful: true,
			},
		}
		if diff := cmp.Diff(want, got, cmpopts.EquateErrors()); diff != "" {
			t.Errorf("extracted fields mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("reads rating and helpful count from labels", func(t *testing.T) {
		t.Parallel()

		node := &fakeNode{values: map[string]string{}}
		New(testFields).Extract(context.Background(), node)

		if node.modes["div[role='img']"] != browser.ReadLabel {
			t.Error("expected rating to be read from its label")
		}
		if node.modes["div.helpful"] != browser.ReadLabel {
			t.Error("expected helpful count to be read from its label")
		}
		if node.modes["div.body"] != browser.ReadText {
			t.Error("expected body to be read as text")
		}
	})

	t.Run("missing fields do not stop the others", func(t *testing.T) {
		t.Parallel()

		node := &fakeNode{values: map[string]string{
			"div.body": "Only a body here",
		}}

		got := New(testFields).Extract(context.Background(), node)

		if got.Err != nil {
			t.Fatalf("absence must not be a fault: %v", got.Err)
		}
		if got.Body != "Only a body here" {
			t.Errorf("unexpected body %q", got.Body)
		}
		want := []model.Field{model.FieldAuthor, model.FieldRating, model.FieldHelpful}
		if diff := cmp.Diff(want, got.Missing()); diff != "" {
			t.Errorf("missing fields mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("faults are reported and other fields still read", func(t *testing.T) {
		t.Parallel()

		cause := errors.New("node detached")
		node := &fakeNode{
			values: map[string]string{"div.body": "A body that survived"},
			faults: map[string]error{"div.author": cause},
		}

		got := New(testFields).Extract(context.Background(), node)

		if !errors.Is(got.Err, ErrExtractionFault) {
			t.Fatalf("expected ErrExtractionFault, got %v", got.Err)
		}
		if !errors.Is(got.Err, cause) {
			t.Errorf("expected fault to wrap cause, got %v", got.Err)
		}
		if got.Body != "A body that survived" {
			t.Errorf("unexpected body %q", got.Body)
		}
	})

	t.Run("panics become faults", func(t *testing.T) {
		t.Parallel()

		got := New(testFields).Extract(context.Background(), &fakeNode{panic: true})

		if !errors.Is(got.Err, ErrExtractionFault) {
			t.Errorf("expected ErrExtractionFault, got %v", got.Err)
		}
	})
}

func TestLeadingInt(t *testing.T) {
	t.Parallel()

	tests := map[string]int{
		"":                    0,
		"12":                  12,
		"  7 people":          7,
		"Helpful":             0,
		"-3":                  -3,
		"1,234 found helpful": 1,
	}
	for in, want := range tests {
		if got := leadingInt(in); got != want {
			t.Errorf("leadingInt(%q): expected %d, got %d", in, want, got)
		}
	}
}
