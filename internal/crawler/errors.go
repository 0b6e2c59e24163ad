package crawler

import (
	"errors"
	"fmt"
)

// FailureKind classifies a fetch failure. The kind decides whether the
// fetcher retries and how the spider reports the skip.
type FailureKind string

// Failure kinds, mirroring the error taxonomy of the crawl engine.
const (
	// FailureNetwork covers connection errors and timeouts. Retried.
	FailureNetwork FailureKind = "network"

	// FailureClient covers HTTP 4xx other than 429. Never retried; the
	// URL is treated as non-recoverable.
	FailureClient FailureKind = "client"

	// FailureServer covers HTTP 5xx. Retried with backoff.
	FailureServer FailureKind = "server"

	// FailureRateLimit covers HTTP 429. Retried with backoff.
	FailureRateLimit FailureKind = "rate-limit"

	// FailureContentType covers responses whose Content-Type is not a
	// text/HTML document. Never retried; binary payloads are not worth
	// a second request.
	FailureContentType FailureKind = "content-type"
)

// FetchError describes a failed page fetch after the retry policy has been
// exhausted (or skipped, for non-retryable kinds).
type FetchError struct {
	// URL is the URL whose fetch failed.
	URL string

	// Kind classifies the failure.
	Kind FailureKind

	// StatusCode is the HTTP status code, or 0 for network failures.
	StatusCode int

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: %s (status %d)", e.URL, e.Kind, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
}

// Unwrap returns the underlying error for errors.Is / errors.As chains.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure kind is transient.
func (e *FetchError) Retryable() bool {
	switch e.Kind {
	case FailureNetwork, FailureServer, FailureRateLimit:
		return true
	}
	return false
}

// ParseError describes malformed page content. The spider logs it and
// treats the page as having zero links; it is never fatal to the crawl.
type ParseError struct {
	// URL is the page whose content failed to parse.
	URL string

	// Err is the underlying parser error.
	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// ErrInvalidPageURL is returned when a page URL cannot be parsed during
// extraction. Extraction needs a valid base URL to resolve relative links.
var ErrInvalidPageURL = errors.New("invalid page URL")
