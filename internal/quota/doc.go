// Package quota decides which extracted reviews a job keeps.
//
// An Accumulator owns the per-job FingerprintSet (exact-duplicate
// suppression) and the per-rating RatingQuota. It is not safe for
// concurrent use: every job creates its own.
package quota
