package config

import (
	"net/url"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values. Politeness-related defaults follow common
// crawler practice; fetch-related defaults match the behavior of the
// directory sites this tool was written against.
const (
	// DefaultPolitenessInterval is the minimum time between two requests to
	// the same origin. One second is conservative and respectful of the
	// small PHP hosts that typically serve link directories.
	DefaultPolitenessInterval = time.Second

	// DefaultWorkers is the number of concurrent frontier workers.
	// Directories rarely span many origins, so a small pool is enough;
	// the rate gate throttles same-origin parallelism anyway.
	DefaultWorkers = 4

	// DefaultFetchTimeout bounds a single page fetch. Link directories are
	// usually slow shared hosts, so 15 seconds is generous but not unbounded.
	DefaultFetchTimeout = 15 * time.Second

	// DefaultRetryCount is the number of retries after a transient fetch
	// failure (network error, timeout, 5xx, 429).
	DefaultRetryCount = 2

	// DefaultRetryBackoff is the base delay between retries. The fetcher
	// multiplies it by the attempt number and adds small jitter.
	DefaultRetryBackoff = 500 * time.Millisecond

	// DefaultDeferredWait is how long to wait before the optional second
	// fetch that captures content inserted by delayed client-side logic.
	DefaultDeferredWait = 8 * time.Second

	// DefaultMaxBodySize limits the response body size to read. 5MB is
	// sufficient for any HTML page while preventing memory exhaustion.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultBatchSize is the number of seeds crawled concurrently when
	// multiple seeds are given.
	DefaultBatchSize = 2

	// DefaultUserAgent identifies linkharvest in HTTP requests so that
	// operators can recognize crawler traffic in their logs.
	DefaultUserAgent = "linkharvest/1.0 (link resolution crawler)"

	// UnlimitedDepth disables the depth limit. Depth 0 is a valid limit
	// (crawl only the seed page), so "unlimited" needs its own value.
	UnlimitedDepth = -1

	// AppName is the application name used for XDG directory paths.
	AppName = "linkharvest"
)

// Config holds all configuration for a crawl invocation.
// It is populated from CLI flags and passed through the application by
// dependency injection; there is no global state.
//
// Design decision: We use a single flat struct instead of nested structs.
// The number of options is manageable, and nesting would add complexity
// without significant benefit.
type Config struct {
	// Seeds is the list of URLs to start crawling from. Each seed is
	// crawled independently; BatchSize controls the concurrency.
	Seeds []string

	// MaxDepth is the maximum link depth from the seed. 0 crawls only the
	// seed page; UnlimitedDepth disables the limit.
	MaxDepth int

	// MaxPages is the maximum number of pages the frontier fetches per
	// seed. 0 means unlimited.
	MaxPages int

	// PolitenessInterval is the minimum time between two requests to the
	// same origin.
	PolitenessInterval time.Duration

	// Workers is the size of the frontier worker pool.
	Workers int

	// FetchTimeout bounds a single page fetch, including body read.
	FetchTimeout time.Duration

	// RetryCount is the number of retries after a transient fetch failure.
	RetryCount int

	// RetryBackoff is the base delay between retries.
	RetryBackoff time.Duration

	// WaitDeferred enables a second fetch of each crawled page after
	// DeferredWait, merging links inserted by delayed client-side logic.
	// This is an explicit opt-in; nothing infers it from page content.
	WaitDeferred bool

	// DeferredWait is the delay before the second fetch when WaitDeferred
	// is enabled.
	DeferredWait time.Duration

	// ResolveGateways enables the post-crawl phase that fetches every
	// gateway link and extracts the deferred target URL.
	ResolveGateways bool

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes to read.
	MaxBodySize int64

	// BatchSize is the number of seeds processed concurrently.
	BatchSize int

	// Verbose enables debug-level log output.
	Verbose bool

	// JSONReport selects JSON report output. Mutually exclusive with
	// MarkdownReport and CSVReport.
	JSONReport bool

	// MarkdownReport selects Markdown report output.
	MarkdownReport bool

	// CSVReport selects CSV output of the target links, matching the
	// export format of the validation collaborator.
	CSVReport bool

	// ReportFile is the output file path for the report. Empty writes to
	// stdout.
	ReportFile string

	// DBDir is the directory for the SQLite database. When set, discovered
	// targets are persisted for cross-run deduplication and history.
	DBDir string

	// SaveToDB indicates whether to persist crawl results. Automatically
	// set when DBDir is configured.
	SaveToDB bool

	// ConfigFilePath is the explicit path of the YAML configuration file.
	// Empty triggers the default search (current dir, then home dir).
	ConfigFilePath string

	// Profiles holds per-site extraction profiles loaded from the
	// configuration file.
	Profiles *File
}

// NewConfig creates a Config with default values.
//
// Design decision: We use a constructor instead of relying on zero values
// because most defaults are non-zero, and the constructor documents them.
func NewConfig() *Config {
	return &Config{
		MaxDepth:           UnlimitedDepth,
		MaxPages:           0,
		PolitenessInterval: DefaultPolitenessInterval,
		Workers:            DefaultWorkers,
		FetchTimeout:       DefaultFetchTimeout,
		RetryCount:         DefaultRetryCount,
		RetryBackoff:       DefaultRetryBackoff,
		DeferredWait:       DefaultDeferredWait,
		ResolveGateways:    true,
		UserAgent:          DefaultUserAgent,
		MaxBodySize:        DefaultMaxBodySize,
		BatchSize:          DefaultBatchSize,
	}
}

// XDGDataDir returns the XDG data directory for linkharvest.
// On Linux: ~/.local/share/linkharvest
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for linkharvest.
// On Linux: ~/.config/linkharvest
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the configuration and returns a specific error describing
// the first problem found. It is called once after CLI parsing, before any
// worker starts; this is the only fatal error path in the application.
func (c *Config) Validate() error {
	if len(c.Seeds) == 0 {
		return ErrNoSeed
	}

	for _, seed := range c.Seeds {
		u, err := url.Parse(seed)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return &InvalidSeedError{Seed: seed}
		}
	}

	if c.MaxDepth < UnlimitedDepth {
		return ErrInvalidDepth
	}

	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}

	if c.PolitenessInterval < 0 {
		return ErrInvalidPoliteness
	}

	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}

	if c.FetchTimeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.RetryCount < 0 {
		return ErrInvalidRetryCount
	}

	if c.WaitDeferred && c.DeferredWait <= 0 {
		return ErrInvalidDeferredWait
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	if moreThanOne(c.JSONReport, c.MarkdownReport, c.CSVReport) {
		return ErrConflictingReportFormats
	}

	return nil
}

// moreThanOne reports whether more than one of the flags is set.
func moreThanOne(flags ...bool) bool {
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n > 1
}
