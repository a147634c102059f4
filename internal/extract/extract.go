// Package extract reads the fields of one rendered review node through a
// declared field map.
//
// Extraction never fails as a whole: a missing field is reported through
// ExtractedFields.Found and the remaining fields are still read. Only a
// fault while talking to the rendering layer sets ExtractedFields.Err.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nao1215/reviewharvest/internal/browser"
	"github.com/nao1215/reviewharvest/internal/model"
)

// ErrExtractionFault wraps every fault recorded in ExtractedFields.Err.
var ErrExtractionFault = errors.New("extraction fault")

// Extractor reads review nodes.
type Extractor struct {
	fields model.FieldMap
}

// New returns an Extractor using the given locators.
func New(fields model.FieldMap) *Extractor {
	return &Extractor{fields: fields}
}

// Extract reads every field of node independently. It does not release
// node; the caller owns the handle.
func (e *Extractor) Extract(ctx context.Context, node browser.Element) (out model.ExtractedFields) {
	out.Found = make(map[model.Field]bool, len(model.AllFields))

	var faults []error
	defer func() {
		if r := recover(); r != nil {
			faults = append(faults, fmt.Errorf("panic: %v", r))
		}
		if len(faults) > 0 {
			out.Err = fmt.Errorf("%w: %w", ErrExtractionFault, errors.Join(faults...))
		}
	}()

	for _, f := range model.AllFields {
		mode := browser.ReadText
		if f == model.FieldRating || f == model.FieldHelpful {
			mode = browser.ReadLabel
		}

		value, found, err := node.Lookup(ctx, e.fields.Locator(f), mode)
		if err != nil {
			faults = append(faults, fmt.Errorf("%s: %w", f, err))
			continue
		}
		out.Found[f] = found
		if !found {
			continue
		}

		switch f {
		case model.FieldAuthor:
			out.Author = strings.TrimSpace(value)
		case model.FieldRating:
			out.RatingLabel = value
		case model.FieldBody:
			out.Body = strings.TrimSpace(value)
		case model.FieldHelpful:
			out.HelpfulCount = leadingInt(value)
		}
	}

	return out
}

// leadingInt parses the integer at the start of s, ignoring leading
// whitespace and anything after the digits: "12 people found this
// helpful" yields 12. It returns 0 when s does not start with a number.
func leadingInt(s string) int {
	s = strings.TrimSpace(s)
	neg := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}

	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
	}
	if neg {
		return -n
	}
	return n
}
