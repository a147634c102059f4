package rating

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// labelPatterns are the recognised label phrasings, one per locale.
// The first submatch is the decimal value.
var labelPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Rated\s*([\d.]+)\s*stars`),
	regexp.MustCompile(`(?i)Đã xếp hạng\s*([\d,]+)\s*sao`),
}

// Parse extracts the star value from a label such as "Rated 4.5 stars" or
// "Đã xếp hạng 3 sao". A comma is accepted as the decimal separator.
// It returns false for an empty label or an unrecognised phrasing.
// The value is not clamped.
func Parse(label string) (float64, bool) {
	if label == "" {
		return 0, false
	}
	// Labels may arrive in decomposed form; the patterns are NFC.
	label = norm.NFC.String(label)

	for _, re := range labelPatterns {
		m := re.FindStringSubmatch(label)
		if len(m) < 2 || m[1] == "" {
			continue
		}
		v, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
		if err != nil {
			return 0, false
		}
		return v, true
	}
	return 0, false
}

// Rounding maps a parsed rating onto an integer star bucket.
type Rounding int

const (
	// Floor truncates toward zero: 4.5 belongs to bucket 4.
	Floor Rounding = iota
	// Round rounds half away from zero: 4.5 belongs to bucket 5.
	Round
	// Ceil rounds up: 4.1 belongs to bucket 5.
	Ceil
)

// ErrUnknownRounding is returned by ParseRounding for an unknown policy name.
var ErrUnknownRounding = errors.New("unknown rounding policy: expected floor, round or ceil")

// ParseRounding returns the policy named s.
func ParseRounding(s string) (Rounding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "floor":
		return Floor, nil
	case "round":
		return Round, nil
	case "ceil":
		return Ceil, nil
	default:
		return Floor, fmt.Errorf("%w: %q", ErrUnknownRounding, s)
	}
}

// String returns the policy name.
func (r Rounding) String() string {
	switch r {
	case Floor:
		return "floor"
	case Round:
		return "round"
	case Ceil:
		return "ceil"
	default:
		return "unknown"
	}
}

// Stars converts a parsed value to a bucket in 1..max. It returns 0, the
// unknown rating, when ok is false, the value is not finite, or the rounded
// value falls outside 1..max.
func (r Rounding) Stars(v float64, ok bool, max int) int {
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	var rounded float64
	switch r {
	case Round:
		rounded = math.Round(v)
	case Ceil:
		rounded = math.Ceil(v)
	default:
		rounded = math.Floor(v)
	}
	if rounded < 1 || rounded > float64(max) {
		return 0
	}
	return int(rounded)
}
