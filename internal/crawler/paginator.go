package crawler

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"linkharvest/internal/config"
	"linkharvest/internal/model"
)

// PaginationSeed identifies one pagination run: a site endpoint plus the
// category scope discovered on a crawled page.
type PaginationSeed struct {
	// BaseURL is the site root the endpoint path is resolved against,
	// e.g. "https://realgrouplinks.com".
	BaseURL string

	// Endpoint is the incremental-load endpoint to drive.
	Endpoint config.Endpoint

	// CategoryID scopes category endpoints. Zero for site-wide endpoints.
	CategoryID int
}

// Key returns a deduplication key so the same endpoint+category pair is
// paginated at most once per crawl.
func (s PaginationSeed) Key() string {
	return s.BaseURL + s.Endpoint.Path + "#" + strconv.Itoa(s.CategoryID)
}

// Paginator drives a site's incremental-load endpoint the way the site's own
// client-side loader does: POST the endpoint with a monotonically increasing
// count until the site signals the end.
//
// Each response is an HTML fragment, not a full page, so the paginator only
// extracts target links from it (kind paginated); it never enqueues crawl
// URLs or follows gateways found in fragments.
type Paginator struct {
	fetcher   *Fetcher
	gate      *RateGate
	extractor *Extractor
	results   *ResultSet
	logger    *slog.Logger
}

// NewPaginator creates a Paginator sharing the crawl's fetcher, rate gate,
// extractor, and result set.
func NewPaginator(fetcher *Fetcher, gate *RateGate, extractor *Extractor, results *ResultSet, logger *slog.Logger) *Paginator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Paginator{
		fetcher:   fetcher,
		gate:      gate,
		extractor: extractor,
		results:   results,
		logger:    logger,
	}
}

// Run paginates the seed's endpoint until an end condition and returns the
// number of fetches performed, including the final one that signalled the
// end. End conditions, checked in order per response:
//
//  1. an effectively empty body,
//  2. the endpoint's sentinel substring appearing in the body,
//  3. a batch contributing zero links not already in the result set.
//
// A fetch error ends the run and is returned alongside the count of fetches
// completed so far; links from earlier batches are already in the result set.
//
// There is no step limit. Some directory sites grow without bound, so the
// only external stop is cancelling ctx.
func (p *Paginator) Run(ctx context.Context, seed PaginationSeed) (int, error) {
	endpointURL, err := joinPath(seed.BaseURL, seed.Endpoint.Path)
	if err != nil {
		return 0, err
	}
	origin := model.Origin(endpointURL)

	fetches := 0
	for step := 1; ; step++ {
		if err := p.gate.Acquire(ctx, origin); err != nil {
			return fetches, err
		}

		form := url.Values{}
		form.Set(seed.Endpoint.CountParam, strconv.Itoa(seed.Endpoint.Start+(step-1)*seed.Endpoint.Stride))
		if seed.Endpoint.CategoryParam != "" && seed.CategoryID > 0 {
			form.Set(seed.Endpoint.CategoryParam, strconv.Itoa(seed.CategoryID))
		}

		page, err := p.fetcher.PostForm(ctx, endpointURL, form)
		if err != nil {
			return fetches, err
		}
		fetches++

		body := strings.TrimSpace(page.Body)
		if body == "" {
			p.logger.Debug("pagination ended: empty body",
				"endpoint", endpointURL, "fetches", fetches)
			return fetches, nil
		}
		if seed.Endpoint.Sentinel != "" && strings.Contains(body, seed.Endpoint.Sentinel) {
			p.logger.Debug("pagination ended: sentinel",
				"endpoint", endpointURL, "fetches", fetches)
			return fetches, nil
		}

		added, err := p.harvest(body, endpointURL)
		if err != nil {
			p.logger.Warn("pagination fragment unparseable",
				"endpoint", endpointURL, "error", err)
			return fetches, nil
		}
		if added == 0 {
			p.logger.Debug("pagination ended: no new links",
				"endpoint", endpointURL, "fetches", fetches)
			return fetches, nil
		}

		p.logger.Debug("pagination batch",
			"endpoint", endpointURL, "step", step, "new_links", added)
	}
}

// harvest extracts target links from a pagination fragment and adds them to
// the result set with kind paginated. It returns the number of links that
// were new to the set.
func (p *Paginator) harvest(fragment, endpointURL string) (int, error) {
	extracted, err := p.extractor.Extract(fragment, endpointURL)
	if err != nil {
		return 0, err
	}

	added := 0
	for _, link := range extracted.Direct {
		link.Kind = model.KindPaginated
		if p.results.Add(link) {
			added++
		}
	}
	for _, link := range extracted.Gateways {
		if p.results.Add(link) {
			added++
		}
	}
	return added, nil
}

// joinPath resolves an endpoint path against a site base URL.
func joinPath(base, path string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	p, err := url.Parse(path)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(p).String(), nil
}
