// Package sink writes accepted records.
//
// The JSONL sink appends one JSON object per line and never truncates its
// file, so repeated runs against the same path keep growing it. Each line is
// written with a single write call under a mutex, which keeps lines whole
// when several jobs write at the same time.
package sink
