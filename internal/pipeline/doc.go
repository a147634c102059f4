// Package pipeline runs harvest jobs.
//
// A job is one Source harvested through a fixed sequence of steps: open the
// page and read its title, pass the consent gate, then collect reviews
// (optionally once per rating filter), which stabilizes the incrementally
// loaded list and enumerates its review nodes through extraction, rating
// parsing and the quota accumulator into the sink.
//
// Only two kinds of error fail a job: navigation errors while opening and
// session errors when the page itself becomes unusable. Everything else is
// a soft event: it is counted on the job, logged with an "event" attribute,
// and the job carries on with partial results.
//
// The Scheduler fans jobs out over a bounded number of concurrent sessions
// with errgroup. Jobs never cancel each other.
package pipeline
