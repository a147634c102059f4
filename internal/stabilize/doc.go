// Package stabilize decides when an incrementally loaded list has stopped
// growing.
//
// The Detector repeatedly asks a scrollable surface to reveal more content
// and compares two consecutive content-extent readings. Equal readings mean
// the list converged. The loop is bounded by an attempt budget, so a list
// that keeps growing forever still terminates. No outcome is an error:
// running out of attempts only means the list is as complete as it will get.
package stabilize
