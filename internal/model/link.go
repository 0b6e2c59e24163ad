package model

import (
	"net/url"
	"strings"
)

// LinkKind describes how a target link was discovered and whether it still
// needs (or failed) gateway resolution.
//
// Design decision: We use a string type rather than iota constants because
// the kind appears verbatim in JSON reports, CSV exports, and the database.
// A string enum keeps those representations stable and human-readable.
type LinkKind string

// Link kinds. A link starts as KindDirect, KindGateway, or KindPaginated
// depending on where the extractor found it. Gateway links transition to
// KindGatewayResolved or KindGatewayUnresolved after the resolution phase.
const (
	// KindDirect marks a target URL found verbatim in page markup.
	KindDirect LinkKind = "direct"

	// KindGateway marks an intermediate URL whose page must be fetched
	// to discover the real target. This is a transient kind; after the
	// resolution phase every gateway link is either resolved or unresolved.
	KindGateway LinkKind = "gateway"

	// KindGatewayResolved marks a target URL recovered from a gateway page.
	KindGatewayResolved LinkKind = "gateway-resolved"

	// KindGatewayUnresolved marks a gateway link whose page matched no known
	// redirect idiom. The gateway URL itself is kept as the target to
	// preserve traceability.
	KindGatewayUnresolved LinkKind = "gateway-unresolved"

	// KindPaginated marks a link found via an incremental-load endpoint.
	KindPaginated LinkKind = "paginated"
)

// IsValid reports whether k is one of the defined link kinds.
func (k LinkKind) IsValid() bool {
	switch k {
	case KindDirect, KindGateway, KindGatewayResolved, KindGatewayUnresolved, KindPaginated:
		return true
	}
	return false
}

// NeedsResolution reports whether the link still requires a gateway fetch.
func (k LinkKind) NeedsResolution() bool {
	return k == KindGateway
}

// TargetLink is a discovered link to the content of interest.
//
// Design decision: The original implementation passed loosely-shaped
// dictionaries between scraping and display. We use a fixed-shape struct
// with an explicit kind enumeration so downstream consumers (reports,
// database, validation) can handle every case exhaustively.
type TargetLink struct {
	// SourceURL is the page on which the link was discovered. For resolved
	// gateway links this is the gateway page, keeping the chain traceable.
	SourceURL string `json:"source_url"`

	// TargetURL is the resolved or resolvable link. For KindGateway it is
	// the gateway page URL until the resolution phase rewrites it.
	TargetURL string `json:"target_url"`

	// Kind records how the link was discovered.
	Kind LinkKind `json:"kind"`
}

// Key returns the deduplication key for the link: the target URL with the
// fragment stripped and scheme/host lowercased. The query string is kept
// because gateway ids live there.
func (l TargetLink) Key() string {
	return NormalizeURL(l.TargetURL)
}

// NormalizeURL canonicalizes a URL for use as a map key.
//
// Design decision: We keep the query string (pagination counters and gateway
// ids are query parameters, so stripping it would merge distinct links) but
// drop the fragment, lowercase the scheme and host, and normalize an empty
// path to "/". Unparseable URLs are returned unchanged so they still
// deduplicate exact-string matches.
func NormalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	u.Fragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" && u.Host != "" {
		u.Path = "/"
	}

	return u.String()
}

// Origin returns the politeness-throttling unit for a URL: its lowercased
// scheme and host. The empty string is returned for unparseable input.
func Origin(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
}
