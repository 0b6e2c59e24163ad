package crawler

import (
	"context"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"linkharvest/internal/model"
)

// redirectIdiom is one recognizable client-side redirect pattern. The
// resolver tries idioms in order and takes the first match.
type redirectIdiom struct {
	name string
	re   *regexp.Regexp
}

// Known redirect idioms on gateway pages, most specific first. The timed
// redirect (a countdown followed by a location assignment) is what these
// sites actually serve; the rest are fallbacks seen on variant templates.
var redirectIdioms = []redirectIdiom{
	{
		name: "timed-location",
		re:   regexp.MustCompile(`(?s)setTimeout\s*\(.*?(?:window\.)?location(?:\.href)?\s*=\s*['"]([^'"]+)['"]`),
	},
	{
		name: "location-assign",
		re:   regexp.MustCompile(`(?:window\.|document\.)?location(?:\.href)?\s*=\s*['"]([^'"]+)['"]`),
	},
	{
		name: "location-replace",
		re:   regexp.MustCompile(`location\.replace\s*\(\s*['"]([^'"]+)['"]`),
	},
	{
		name: "window-open",
		re:   regexp.MustCompile(`window\.open\s*\(\s*['"]([^'"]+)['"]`),
	},
}

// GatewayResolver fetches gateway pages and recovers the real target URL
// hidden behind the site's countdown redirect.
//
// Resolution runs after the crawl phase so a slow gateway page never stalls
// frontier progress, but it goes through the same rate gate: gateway pages
// live on the crawled origin and count against its politeness budget.
type GatewayResolver struct {
	fetcher *Fetcher
	gate    *RateGate

	// targetRe recognizes target-domain URLs; a resolved URL that already
	// matches it needs no redirect-idiom scan.
	targetRe *regexp.Regexp

	logger *slog.Logger
}

// NewGatewayResolver creates a resolver sharing the crawl's fetcher and rate
// gate.
func NewGatewayResolver(fetcher *Fetcher, gate *RateGate, targetRe *regexp.Regexp, logger *slog.Logger) *GatewayResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &GatewayResolver{
		fetcher:  fetcher,
		gate:     gate,
		targetRe: targetRe,
		logger:   logger,
	}
}

// Resolve fetches the gateway page and extracts the destination URL.
//
// The outcomes are:
//   - (url, KindGatewayResolved, nil): a redirect idiom or target anchor
//     matched and yielded the destination.
//   - (gatewayURL, KindGatewayUnresolved, nil): the page was fetched but no
//     idiom matched. The gateway URL itself is kept as the target.
//   - ("", "", err): the fetch failed; the caller records the gateway as
//     skipped.
func (r *GatewayResolver) Resolve(ctx context.Context, gatewayURL string) (string, model.LinkKind, error) {
	if err := r.gate.Acquire(ctx, model.Origin(gatewayURL)); err != nil {
		return "", "", err
	}

	page, err := r.fetcher.Fetch(ctx, gatewayURL)
	if err != nil {
		return "", "", err
	}

	// The server may redirect straight to the target without serving a
	// countdown page at all.
	if page.FinalURL != gatewayURL && r.targetRe.MatchString(page.FinalURL) {
		return page.FinalURL, model.KindGatewayResolved, nil
	}

	if dest, idiom := findRedirect(page.Body); dest != "" {
		abs := absolutize(gatewayURL, dest)
		r.logger.Debug("gateway resolved",
			"gateway", gatewayURL,
			"idiom", idiom,
			"target", abs,
		)
		return abs, model.KindGatewayResolved, nil
	}

	// Variant templates put the destination in a plain anchor instead of a
	// script. Accept it only when it matches the target pattern; arbitrary
	// anchors on the countdown page are navigation, not the destination.
	if dest := r.findTargetAnchor(page.Body, gatewayURL); dest != "" {
		return dest, model.KindGatewayResolved, nil
	}

	r.logger.Debug("gateway unresolved", "gateway", gatewayURL)
	return gatewayURL, model.KindGatewayUnresolved, nil
}

// findRedirect scans the body for the known redirect idioms and returns the
// destination URL and the idiom name, or empty strings when nothing matches.
func findRedirect(body string) (string, string) {
	for _, idiom := range redirectIdioms {
		if m := idiom.re.FindStringSubmatch(body); m != nil {
			return m[1], idiom.name
		}
	}
	return "", ""
}

// findTargetAnchor returns the first anchor href matching the target pattern.
func (r *GatewayResolver) findTargetAnchor(body, gatewayURL string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return ""
	}

	var found string
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, ok := sel.Attr("href")
		if !ok {
			return true
		}
		abs := absolutize(gatewayURL, href)
		if r.targetRe.MatchString(abs) {
			found = abs
			return false
		}
		return true
	})
	return found
}

// absolutize resolves ref against base, returning ref unchanged when either
// URL fails to parse.
func absolutize(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
