// Package database provides SQLite-based storage for reviewharvest.
//
// HarvestDB keeps:
//   - one row per run with its aggregate summary
//   - one row per job with its terminal state, counters and error
//   - the fingerprints of every record written, keyed by source, so later
//     runs can skip reviews they already delivered
//
// The store uses modernc.org/sqlite, a CGO-free driver, so the binary still
// cross-compiles. A single connection serializes writers; WAL mode keeps
// readers such as the history command from blocking a running harvest.
package database
