package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() so callers can use
// errors.Is() while users still get a readable message.
var (
	// ErrNoSource is returned when neither the command line nor the
	// configuration file names a source.
	ErrNoSource = errors.New("no source specified: provide a source URL or a sources list in the config file")

	// ErrInvalidConcurrency is returned when the concurrency limit is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidQuota is returned when the per-rating maximum is not positive.
	ErrInvalidQuota = errors.New("invalid max per rating: must be positive")

	// ErrInvalidMinBodyLength is returned when the minimum body length is negative.
	ErrInvalidMinBodyLength = errors.New("invalid min body length: must be non-negative")

	// ErrInvalidScrollAttempts is returned when the stabilization budget is not positive.
	ErrInvalidScrollAttempts = errors.New("invalid scroll attempts: must be positive")

	// ErrInvalidScrollDelay is returned when the stabilization delay is negative.
	ErrInvalidScrollDelay = errors.New("invalid scroll delay: must be non-negative")

	// ErrInvalidTimeout is returned when a bounded wait is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidNodeCap is returned when the processed-node cap is not positive.
	ErrInvalidNodeCap = errors.New("invalid node cap: must be positive")

	// ErrMissingLocator is returned when a required locator is empty.
	ErrMissingLocator = errors.New("missing locator")

	// ErrMissingFilterLocator is returned when rating buckets are enabled
	// without the filter control and one option per rating.
	ErrMissingFilterLocator = errors.New("missing rating filter locator: by_rating needs filter_open and five rating_options")

	// ErrInvalidRounding is returned for an unknown rating rounding policy.
	ErrInvalidRounding = errors.New("invalid rounding: must be floor, round or ceil")

	// ErrInvalidSummaryFormat is returned for an unknown summary format.
	ErrInvalidSummaryFormat = errors.New("invalid summary format: must be text, json or markdown")
)
