// Package rating turns the accessibility label of a star widget into a
// numeric rating and maps that rating onto an integer star bucket.
//
// Parsing and bucketing are kept apart on purpose: Parse returns the value
// exactly as the page states it (4.5 stays 4.5), and a Rounding policy
// decides which integer bucket a fractional value belongs to.
package rating
