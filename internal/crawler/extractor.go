package crawler

import (
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"linkharvest/internal/config"
	"linkharvest/internal/model"
)

// ExtractResult is the outcome of one extraction pass over a page.
type ExtractResult struct {
	// Crawlable holds same-origin page URLs to enqueue at depth+1.
	Crawlable []string

	// Direct holds target links found verbatim in anchors.
	Direct []model.TargetLink

	// Gateways holds intermediate links found in click handlers; each
	// needs a second fetch to resolve.
	Gateways []model.TargetLink

	// CategoryID is the numeric category id from the page's hidden
	// category input, or 0 when absent. The pagination sequencer needs it
	// to drive category-scoped incremental-load endpoints.
	CategoryID int
}

// Extractor parses a fetched page into crawlable, direct, and gateway links.
// It performs no network I/O, and extraction is deterministic: the same body
// always yields the same link sets.
//
// Design decision: We parse with goquery rather than scanning the raw HTML
// with regular expressions because it correctly handles the malformed markup
// these directory sites serve, and attribute lookups stay readable. Only the
// onclick handler *content* is matched with a regex, since that is
// JavaScript, not markup.
type Extractor struct {
	// targetRe matches absolute target-domain URLs.
	targetRe *regexp.Regexp

	// handlerRe matches the site's "open record" call inside an onclick
	// attribute and captures the embedded gateway URL.
	handlerRe *regexp.Regexp

	logger *slog.Logger
}

// NewExtractor compiles the profile's patterns into an Extractor.
// An invalid pattern is a configuration error and fails fast.
func NewExtractor(profile config.Profile, logger *slog.Logger) (*Extractor, error) {
	if logger == nil {
		logger = slog.Default()
	}

	targetRe, err := regexp.Compile(profile.TargetPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid target pattern %q: %w", profile.TargetPattern, err)
	}

	// Call signature: identifier, opening paren, quoted URL containing the
	// gateway path followed by a numeric id. Everything site-specific is
	// quoted into the pattern from the profile.
	handlerRe, err := regexp.Compile(
		regexp.QuoteMeta(profile.HandlerName) +
			`\(\s*['"]([^'"]*` + regexp.QuoteMeta(profile.GatewayPath) + `\d+[^'"]*)['"]`,
	)
	if err != nil {
		return nil, fmt.Errorf("invalid handler pattern: %w", err)
	}

	return &Extractor{
		targetRe:  targetRe,
		handlerRe: handlerRe,
		logger:    logger,
	}, nil
}

// Extract runs both extraction passes over body: the anchor scan for direct
// and crawlable links, and the embedded-handler scan for gateway links.
// Duplicates within the page are removed; malformed attributes are skipped.
func (e *Extractor) Extract(body, pageURL string) (*ExtractResult, error) {
	base, err := url.Parse(pageURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPageURL, pageURL)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, &ParseError{URL: pageURL, Err: err}
	}

	result := &ExtractResult{
		Crawlable: make([]string, 0),
		Direct:    make([]model.TargetLink, 0),
		Gateways:  make([]model.TargetLink, 0),
	}

	seenCrawlable := make(map[string]struct{})
	seenTarget := make(map[string]struct{})

	// Anchor scan.
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}

		abs := resolveRef(base, href)
		if abs == "" {
			return
		}

		switch {
		case e.targetRe.MatchString(abs):
			key := model.NormalizeURL(abs)
			if _, dup := seenTarget[key]; dup {
				return
			}
			seenTarget[key] = struct{}{}
			result.Direct = append(result.Direct, model.TargetLink{
				SourceURL: pageURL,
				TargetURL: abs,
				Kind:      model.KindDirect,
			})

		case sameOrigin(base, abs):
			key := model.NormalizeURL(abs)
			if _, dup := seenCrawlable[key]; dup {
				return
			}
			seenCrawlable[key] = struct{}{}
			result.Crawlable = append(result.Crawlable, abs)
		}
	})

	// Embedded-handler scan.
	doc.Find("[onclick]").Each(func(_ int, sel *goquery.Selection) {
		onclick, ok := sel.Attr("onclick")
		if !ok {
			return
		}

		m := e.handlerRe.FindStringSubmatch(onclick)
		if m == nil {
			return
		}

		abs := resolveRef(base, m[1])
		if abs == "" {
			return
		}

		key := model.NormalizeURL(abs)
		if _, dup := seenTarget[key]; dup {
			return
		}
		seenTarget[key] = struct{}{}
		result.Gateways = append(result.Gateways, model.TargetLink{
			SourceURL: pageURL,
			TargetURL: abs,
			Kind:      model.KindGateway,
		})
	})

	// Pagination hint: hidden category id input.
	if val, ok := doc.Find("input#catid").First().Attr("value"); ok {
		if id, err := strconv.Atoi(strings.TrimSpace(val)); err == nil && id > 0 {
			result.CategoryID = id
		}
	}

	return result, nil
}

// resolveRef resolves href against base and returns the absolute URL, or ""
// for refs that cannot lead to a page (scripts, mail, fragments).
func resolveRef(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || href == "#" ||
		strings.HasPrefix(href, "javascript:") ||
		strings.HasPrefix(href, "mailto:") ||
		strings.HasPrefix(href, "tel:") ||
		strings.HasPrefix(href, "data:") {
		return ""
	}

	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}

	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	return abs.String()
}

// sameOrigin reports whether the absolute URL shares base's origin,
// treating "www.example.com" and "example.com" as the same host.
func sameOrigin(base *url.URL, absURL string) bool {
	u, err := url.Parse(absURL)
	if err != nil {
		return false
	}
	if !strings.EqualFold(u.Scheme, base.Scheme) && u.Scheme != "" {
		// Allow http/https crossover; sites flip between them freely.
		if (u.Scheme != "http" && u.Scheme != "https") || (base.Scheme != "http" && base.Scheme != "https") {
			return false
		}
	}
	return strings.EqualFold(stripWWW(u.Hostname()), stripWWW(base.Hostname()))
}

// stripWWW removes a leading "www." from a hostname.
func stripWWW(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}
