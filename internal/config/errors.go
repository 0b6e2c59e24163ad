package config

import (
	"errors"
	"fmt"
)

// Configuration validation errors.
//
// Design decision: We use package-level sentinel errors rather than creating
// new error instances in Validate(). Callers can use errors.Is() for
// programmatic handling while the messages stay human-readable.
var (
	// ErrNoSeed is returned when no seed URL is specified.
	ErrNoSeed = errors.New("no seed specified: provide at least one seed URL")

	// ErrInvalidDepth is returned when the depth limit is below -1.
	// Use 0 to crawl only the seed page, -1 for no limit.
	ErrInvalidDepth = errors.New("invalid max depth: must be -1 (unlimited) or non-negative")

	// ErrInvalidMaxPages is returned when the page limit is negative.
	// Use 0 for no limit.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be non-negative")

	// ErrInvalidPoliteness is returned when the politeness interval is
	// negative. Use 0 to disable throttling.
	ErrInvalidPoliteness = errors.New("invalid politeness interval: must be non-negative")

	// ErrInvalidWorkers is returned when the worker count is not positive.
	ErrInvalidWorkers = errors.New("invalid worker count: must be positive")

	// ErrInvalidTimeout is returned when the fetch timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid fetch timeout: must be positive")

	// ErrInvalidRetryCount is returned when the retry count is negative.
	ErrInvalidRetryCount = errors.New("invalid retry count: must be non-negative")

	// ErrInvalidDeferredWait is returned when deferred-content waiting is
	// enabled with a non-positive delay.
	ErrInvalidDeferredWait = errors.New("invalid deferred wait: must be positive when --wait-deferred is set")

	// ErrInvalidBatchSize is returned when the seed batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrConflictingReportFormats is returned when more than one of --json,
	// --markdown, and --csv is specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: choose at most one of --json, --markdown, --csv")
)

// InvalidSeedError is returned when a seed URL cannot be parsed or lacks an
// http(s) scheme or host.
type InvalidSeedError struct {
	// Seed is the offending seed URL.
	Seed string
}

// Error implements the error interface.
func (e *InvalidSeedError) Error() string {
	return fmt.Sprintf("invalid seed URL: %q (must be absolute http or https)", e.Seed)
}
