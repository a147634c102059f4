package quota

import "unicode/utf8"

// Buckets is the number of tracked rating buckets (ratings 1..5).
const Buckets = 5

// DefaultHelpfulThreshold is the helpful-vote count above which a short
// review is still kept.
const DefaultHelpfulThreshold = 5

// Decision is the outcome of Accept.
type Decision int

const (
	// Accepted means the record must be written.
	Accepted Decision = iota
	// RejectedEmpty means the body was empty.
	RejectedEmpty
	// RejectedDuplicate means the body was already accepted by this job.
	RejectedDuplicate
	// RejectedShort means the body was too short and not voted helpful enough.
	RejectedShort
	// RejectedQuota means the rating bucket was already full.
	RejectedQuota
	// RejectedUnrated means the record had no rating and unrated records
	// are dropped.
	RejectedUnrated
)

// String returns the decision name.
func (d Decision) String() string {
	switch d {
	case Accepted:
		return "accepted"
	case RejectedEmpty:
		return "empty"
	case RejectedDuplicate:
		return "duplicate"
	case RejectedShort:
		return "short"
	case RejectedQuota:
		return "quota"
	case RejectedUnrated:
		return "unrated"
	default:
		return "unknown"
	}
}

// Candidate is the part of an extracted review the policy looks at.
type Candidate struct {
	Body         string
	HelpfulCount int
	// Rating is 1..5, or 0 for unknown.
	Rating int
}

// bucket is one RatingQuota slot. count never exceeds max.
type bucket struct {
	count int
	max   int
}

// Accumulator applies the per-job acceptance policy.
type Accumulator struct {
	minBodyLength    int
	helpfulThreshold int
	dropUnrated      bool

	seen    map[Fingerprint]struct{}
	buckets [Buckets]bucket
}

// Option configures an Accumulator.
type Option func(*Accumulator)

// WithHelpfulThreshold sets the helpful-vote count a short body must exceed.
func WithHelpfulThreshold(n int) Option {
	return func(a *Accumulator) {
		a.helpfulThreshold = n
	}
}

// WithDropUnrated rejects records whose rating is unknown instead of
// accepting them outside the quota.
func WithDropUnrated(drop bool) Option {
	return func(a *Accumulator) {
		a.dropUnrated = drop
	}
}

// WithSeen seeds the FingerprintSet, typically with fingerprints written by
// earlier runs.
func WithSeen(fps []Fingerprint) Option {
	return func(a *Accumulator) {
		for _, fp := range fps {
			a.seen[fp] = struct{}{}
		}
	}
}

// New returns an Accumulator that keeps at most maxPerRating records per
// rating bucket and treats bodies of minBodyLength characters or fewer as
// short.
func New(maxPerRating, minBodyLength int, opts ...Option) *Accumulator {
	a := &Accumulator{
		minBodyLength:    minBodyLength,
		helpfulThreshold: DefaultHelpfulThreshold,
		seen:             make(map[Fingerprint]struct{}),
	}
	for i := range a.buckets {
		a.buckets[i].max = maxPerRating
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Accept applies the policy to c and, when the record is accepted, records
// its fingerprint and consumes one slot of its rating bucket.
//
// The checks run in order: empty body, duplicate body, short body without
// enough helpful votes, then the bucket quota. Records without a rating
// have no bucket and bypass the quota unless unrated records are dropped.
func (a *Accumulator) Accept(c Candidate) Decision {
	if c.Body == "" {
		return RejectedEmpty
	}

	fp := FingerprintOf(c.Body)
	if _, dup := a.seen[fp]; dup {
		return RejectedDuplicate
	}

	if utf8.RuneCountInString(c.Body) <= a.minBodyLength && c.HelpfulCount <= a.helpfulThreshold {
		return RejectedShort
	}

	idx := c.Rating - 1
	if idx < 0 || idx >= Buckets {
		if a.dropUnrated {
			return RejectedUnrated
		}
		a.seen[fp] = struct{}{}
		return Accepted
	}

	b := &a.buckets[idx]
	if b.count >= b.max {
		return RejectedQuota
	}
	a.seen[fp] = struct{}{}
	b.count++
	return Accepted
}

// Full reports whether every tracked bucket has reached its maximum.
func (a *Accumulator) Full() bool {
	for _, b := range a.buckets {
		if b.count < b.max {
			return false
		}
	}
	return true
}

// BucketFull reports whether the bucket of rating is full. Ratings outside
// 1..5 have no bucket and are never full.
func (a *Accumulator) BucketFull(rating int) bool {
	idx := rating - 1
	if idx < 0 || idx >= Buckets {
		return false
	}
	return a.buckets[idx].count >= a.buckets[idx].max
}

// Count returns how many records of rating have been accepted.
func (a *Accumulator) Count(rating int) int {
	idx := rating - 1
	if idx < 0 || idx >= Buckets {
		return 0
	}
	return a.buckets[idx].count
}

// Seen returns the size of the FingerprintSet.
func (a *Accumulator) Seen() int {
	return len(a.seen)
}
