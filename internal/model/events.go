package model

import "sort"

// EventKind names a soft failure or rejection observed while harvesting.
// Soft events never fail a job; they are counted so that contained
// failures stay visible in logs, the run database and the summary.
type EventKind string

// Soft event kinds.
const (
	// EventGate means the consent/interstitial control could not be activated.
	EventGate EventKind = "gate"
	// EventBucketSelect means a rating filter could not be applied.
	EventBucketSelect EventKind = "bucket_select"
	// EventStabilizationExhausted means the list kept growing until the
	// attempt budget ran out.
	EventStabilizationExhausted EventKind = "stabilization_exhausted"
	// EventStabilizationInterrupted means the list container vanished or
	// failed while loading more items.
	EventStabilizationInterrupted EventKind = "stabilization_interrupted"
	// EventExtractionFault means reading a review node faulted.
	EventExtractionFault EventKind = "extraction_fault"
	// EventMissingField means a review node lacked one of the fields.
	EventMissingField EventKind = "missing_field"
	// EventDisposeFault means releasing a review node handle failed.
	EventDisposeFault EventKind = "dispose_fault"
	// EventSinkWrite means an accepted record could not be written.
	EventSinkWrite EventKind = "sink_write"
	// EventNodeCap means enumeration stopped at the processed-node cap.
	EventNodeCap EventKind = "node_cap"

	// EventRejectedEmpty counts records dropped for an empty body.
	EventRejectedEmpty EventKind = "rejected_empty"
	// EventRejectedDuplicate counts records dropped as duplicates.
	EventRejectedDuplicate EventKind = "rejected_duplicate"
	// EventRejectedShort counts short records without enough helpful votes.
	EventRejectedShort EventKind = "rejected_short"
	// EventRejectedQuota counts records dropped because their bucket was full.
	EventRejectedQuota EventKind = "rejected_quota"
	// EventRejectedUnrated counts records dropped for having no rating.
	EventRejectedUnrated EventKind = "rejected_unrated"
)

// EventCounts tallies soft events by kind. Create it with NewEventCounts;
// Add on a nil EventCounts panics.
type EventCounts map[EventKind]int

// NewEventCounts returns an empty tally.
func NewEventCounts() EventCounts {
	return make(EventCounts)
}

// Add increments the counter for kind.
func (c EventCounts) Add(kind EventKind) {
	c[kind]++
}

// Merge adds every counter of other into c.
func (c EventCounts) Merge(other EventCounts) {
	for k, v := range other {
		c[k] += v
	}
}

// Kinds returns the recorded kinds in lexical order.
func (c EventCounts) Kinds() []EventKind {
	kinds := make([]EventKind, 0, len(c))
	for k := range c {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Total returns the sum of all counters.
func (c EventCounts) Total() int {
	total := 0
	for _, v := range c {
		total += v
	}
	return total
}
