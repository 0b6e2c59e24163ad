package model

import "time"

// CrawlReport aggregates the outcome of one crawl invocation.
// It is created when the crawl starts, filled by the pipeline steps, and
// handed to the report writers and the database once the crawl stops.
type CrawlReport struct {
	// Seed is the URL the crawl started from.
	Seed string `json:"seed"`

	// DateCrawled is the time the crawl started.
	DateCrawled time.Time `json:"date_crawled"`

	// Duration is the wall-clock time the crawl took.
	Duration time.Duration `json:"duration"`

	// Targets holds the deduplicated discovered links, in discovery order.
	Targets []TargetLink `json:"targets"`

	// PagesVisited is the number of pages fetched by the frontier workers.
	// Pagination and gateway fetches are counted separately below.
	PagesVisited int `json:"pages_visited"`

	// PaginationFetches is the number of incremental-load requests issued.
	PaginationFetches int `json:"pagination_fetches"`

	// GatewaysResolved is the number of gateway links successfully resolved.
	GatewaysResolved int `json:"gateways_resolved"`

	// SkippedURLs lists URLs abandoned after fetch or parse failures.
	// Failures are local; the crawl keeps whatever it collected.
	SkippedURLs []string `json:"skipped_urls,omitempty"`

	// Cancelled is true when the crawl stopped on external cancellation
	// rather than frontier exhaustion or a page limit.
	Cancelled bool `json:"cancelled,omitempty"`

	// ErrorMessage holds the message of a fatal error, if any.
	ErrorMessage string `json:"error,omitempty"`
}

// NewCrawlReport creates an empty report for the given seed URL.
func NewCrawlReport(seed string) *CrawlReport {
	return &CrawlReport{
		Seed:        seed,
		DateCrawled: time.Now(),
		Targets:     make([]TargetLink, 0),
	}
}

// CountByKind returns the number of target links of each kind.
func (r *CrawlReport) CountByKind() map[LinkKind]int {
	counts := make(map[LinkKind]int)
	for _, t := range r.Targets {
		counts[t.Kind]++
	}
	return counts
}

// Unresolved returns the links that still need gateway resolution.
func (r *CrawlReport) Unresolved() []TargetLink {
	links := make([]TargetLink, 0)
	for _, t := range r.Targets {
		if t.Kind.NeedsResolution() {
			links = append(links, t)
		}
	}
	return links
}
