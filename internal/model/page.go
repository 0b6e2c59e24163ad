package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// MaxPageSize is the maximum size of raw page content to keep in memory.
// Larger bodies are truncated by the fetcher before Page construction.
const MaxPageSize = 5 * 1024 * 1024 // 5 MB

// Page represents one fetched web page.
//
// Design decision: We keep the decoded UTF-8 body rather than the raw wire
// bytes because every consumer (extractor, gateway resolver, paginator)
// operates on text. The hash allows change detection across crawl sessions.
type Page struct {
	// URL is the URL that was requested.
	URL string `json:"url"`

	// FinalURL is the URL after following redirects. Equal to URL when no
	// redirect occurred.
	FinalURL string `json:"final_url"`

	// StatusCode is the HTTP response status code.
	StatusCode int `json:"status_code"`

	// ContentType is the MIME type from the Content-Type header, without
	// parameters.
	ContentType string `json:"content_type"`

	// Body is the response body decoded to UTF-8.
	Body string `json:"-"` // Excluded from JSON to keep reports small.

	// Hash is the SHA-256 hash of the body.
	Hash string `json:"hash,omitempty"`
}

// ComputeHash calculates and sets the SHA-256 hash of the page body.
func (p *Page) ComputeHash() {
	if p.Body == "" {
		p.Hash = ""
		return
	}
	sum := sha256.Sum256([]byte(p.Body))
	p.Hash = hex.EncodeToString(sum[:])
}

// IsHTML reports whether the content type indicates an HTML document.
// Endpoints that return bare HTML fragments usually send text/html too,
// but some omit the header entirely, which we treat as HTML.
func (p *Page) IsHTML() bool {
	if p.ContentType == "" {
		return true
	}
	return strings.HasPrefix(p.ContentType, "text/html") ||
		strings.HasPrefix(p.ContentType, "application/xhtml+xml")
}
