// Package model defines the data structures shared across reviewharvest.
//
// The types here describe one harvesting run from the outside in:
//   - Source: a listing page whose reviews are harvested
//   - Job: one attempt to harvest a Source, with its lifecycle state
//   - ExtractedFields: the raw fields read from one rendered review node
//   - Record: one accepted review as it is written to the output file
//   - Summary: aggregate outcome of all jobs in a run
//
// Design decision: model types carry no behavior that talks to the browser
// or the file system. Packages that do I/O depend on model, never the other
// way around, so the types can be used freely in tests.
package model
