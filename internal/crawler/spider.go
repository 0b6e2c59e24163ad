package crawler

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"linkharvest/internal/config"
	"linkharvest/internal/model"
)

// dequeuePollInterval is how long an idle worker waits before re-checking
// the frontier.
const dequeuePollInterval = 50 * time.Millisecond

// ProgressEvent is emitted after each processed page.
type ProgressEvent struct {
	WorkerID     int
	URL          string
	Depth        int
	PagesVisited int
	FrontierSize int
}

// ProgressFunc receives progress events. It is called from worker goroutines
// and must be safe for concurrent use.
type ProgressFunc func(ProgressEvent)

// CrawlStats summarizes one crawl phase.
type CrawlStats struct {
	// PagesVisited is the number of pages fetched successfully.
	PagesVisited int

	// Skipped lists URLs abandoned after the retry policy was exhausted.
	Skipped []string

	// PaginationSeeds lists the endpoint runs discovered during the crawl,
	// deduplicated by endpoint and category.
	PaginationSeeds []PaginationSeed

	// Cancelled reports whether the crawl stopped on context cancellation
	// rather than frontier exhaustion or the page budget.
	Cancelled bool
}

// frontierItem is one pending fetch.
type frontierItem struct {
	url   string
	depth int
}

// Spider runs the breadth-style crawl: a shared frontier of (URL, depth)
// pairs drained by a fixed pool of workers. Each worker dequeues a page,
// waits on the rate gate, fetches, extracts, records target links, and
// enqueues same-origin pages one level deeper.
//
// Termination is cooperative. A crawl ends when the frontier is empty and no
// worker has a page in flight, when the page budget is spent, or when the
// context is cancelled. Workers poll the frontier rather than blocking on a
// channel so the in-flight count and the frontier can be inspected together.
type Spider struct {
	fetcher   *Fetcher
	gate      *RateGate
	extractor *Extractor
	visited   *VisitedSet
	results   *ResultSet

	workers      int
	maxDepth     int
	maxPages     int
	waitDeferred bool
	deferredWait time.Duration
	endpoints    []config.Endpoint
	progress     ProgressFunc
	logger       *slog.Logger

	mu       sync.Mutex
	frontier []frontierItem
	pagSeeds map[string]PaginationSeed
	skipped  []string

	// pending counts frontier entries plus in-flight pages. The crawl is
	// exhausted when it reaches zero.
	pending atomic.Int64

	// pages counts reserved page-budget slots. A slot is reserved before
	// the fetch and released again if the fetch fails, so the number of
	// successful fetches never exceeds the budget.
	pages atomic.Int64

	// stopped is set when the page budget is spent; workers then drain the
	// frontier without fetching.
	stopped atomic.Bool
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithWorkers sets the worker pool size.
func WithWorkers(n int) SpiderOption {
	return func(s *Spider) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithMaxDepth sets the crawl depth limit. Zero crawls only the seed;
// config.UnlimitedDepth removes the limit.
func WithMaxDepth(depth int) SpiderOption {
	return func(s *Spider) {
		s.maxDepth = depth
	}
}

// WithMaxPages sets the page budget. Zero means unlimited.
func WithMaxPages(n int) SpiderOption {
	return func(s *Spider) {
		s.maxPages = n
	}
}

// WithDeferredWait enables a second fetch of each page after the given wait,
// catching links the site injects client-side shortly after load.
func WithDeferredWait(wait time.Duration) SpiderOption {
	return func(s *Spider) {
		s.waitDeferred = wait > 0
		s.deferredWait = wait
	}
}

// WithEndpoints sets the incremental-load endpoints to seed pagination runs
// from during the crawl.
func WithEndpoints(endpoints []config.Endpoint) SpiderOption {
	return func(s *Spider) {
		s.endpoints = endpoints
	}
}

// WithProgress sets the progress callback.
func WithProgress(fn ProgressFunc) SpiderOption {
	return func(s *Spider) {
		s.progress = fn
	}
}

// WithSpiderLogger sets the logger.
func WithSpiderLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		s.logger = logger
	}
}

// NewSpider creates a Spider around shared crawl components.
func NewSpider(fetcher *Fetcher, gate *RateGate, extractor *Extractor, visited *VisitedSet, results *ResultSet, opts ...SpiderOption) *Spider {
	s := &Spider{
		fetcher:   fetcher,
		gate:      gate,
		extractor: extractor,
		visited:   visited,
		results:   results,
		workers:   config.DefaultWorkers,
		maxDepth:  config.UnlimitedDepth,
		pagSeeds:  make(map[string]PaginationSeed),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s
}

// Crawl runs the crawl from seedURL until exhaustion, budget, or
// cancellation, and returns the phase summary. Discovered target links
// accumulate in the shared ResultSet.
func (s *Spider) Crawl(ctx context.Context, seedURL string) (*CrawlStats, error) {
	seedOrigin := model.Origin(seedURL)
	if seedOrigin == "" {
		return nil, &config.InvalidSeedError{Seed: seedURL}
	}

	// Site-wide endpoints are seeded once up front; category endpoints are
	// seeded as pages reveal their category ids.
	for _, ep := range s.endpoints {
		if ep.CategoryParam == "" {
			s.addPaginationSeed(PaginationSeed{BaseURL: seedOrigin, Endpoint: ep})
		}
	}

	s.enqueue(seedURL, 0)

	var cancelled atomic.Bool
	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.work(ctx, workerID, &cancelled)
		}(i)
	}
	wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &CrawlStats{
		PagesVisited:    int(s.pages.Load()),
		Skipped:         append([]string(nil), s.skipped...),
		PaginationSeeds: s.sortedSeedsLocked(),
		Cancelled:       cancelled.Load(),
	}

	s.logger.Info("crawl phase finished",
		"seed", seedURL,
		"pages", stats.PagesVisited,
		"links", s.results.Len(),
		"skipped", len(stats.Skipped),
		"pagination_seeds", len(stats.PaginationSeeds),
		"cancelled", stats.Cancelled,
	)

	return stats, nil
}

// work is one worker's loop: dequeue, process, repeat until the crawl is
// exhausted or the context is cancelled.
func (s *Spider) work(ctx context.Context, workerID int, cancelled *atomic.Bool) {
	for {
		if ctx.Err() != nil {
			cancelled.Store(true)
			return
		}

		item, ok := s.dequeue()
		if !ok {
			if s.pending.Load() == 0 {
				return
			}
			// Another worker is mid-page and may enqueue more.
			select {
			case <-ctx.Done():
				cancelled.Store(true)
				return
			case <-time.After(dequeuePollInterval):
			}
			continue
		}

		s.process(ctx, workerID, item)
		s.pending.Add(-1)
	}
}

// process handles one frontier item end to end.
func (s *Spider) process(ctx context.Context, workerID int, item frontierItem) {
	if s.stopped.Load() {
		return
	}
	if !s.visited.MarkVisited(item.url) {
		return
	}
	if !s.reservePageSlot() {
		return
	}

	if err := s.gate.Acquire(ctx, model.Origin(item.url)); err != nil {
		s.pages.Add(-1)
		return
	}

	page, err := s.fetcher.Fetch(ctx, item.url)
	if err != nil {
		s.pages.Add(-1)
		s.recordSkip(item.url, err)
		return
	}

	if !page.IsHTML() {
		s.logger.Debug("skipping non-HTML page", "url", item.url, "content_type", page.ContentType)
		return
	}

	extracted, err := s.extractor.Extract(page.Body, page.FinalURL)
	if err != nil {
		s.logger.Warn("page unparseable", "url", item.url, "error", err)
		return
	}

	if s.waitDeferred {
		extracted = s.mergeDeferred(ctx, item.url, page, extracted)
	}

	s.record(extracted, item)

	if s.progress != nil {
		s.mu.Lock()
		frontierSize := len(s.frontier)
		s.mu.Unlock()
		s.progress(ProgressEvent{
			WorkerID:     workerID,
			URL:          item.url,
			Depth:        item.depth,
			PagesVisited: int(s.pages.Load()),
			FrontierSize: frontierSize,
		})
	}
}

// record stores the extraction results: target links into the result set,
// category pagination seeds, and crawlable URLs one level deeper.
func (s *Spider) record(extracted *ExtractResult, item frontierItem) {
	for _, link := range extracted.Direct {
		s.results.Add(link)
	}
	for _, link := range extracted.Gateways {
		s.results.Add(link)
	}

	if extracted.CategoryID > 0 {
		origin := model.Origin(item.url)
		for _, ep := range s.endpoints {
			if ep.CategoryParam != "" {
				s.addPaginationSeed(PaginationSeed{
					BaseURL:    origin,
					Endpoint:   ep,
					CategoryID: extracted.CategoryID,
				})
			}
		}
	} else if s.hasCategoryEndpoint() && strings.Contains(item.url, "/category/") {
		s.logger.Debug("category endpoint skipped: no category id on page",
			"url", item.url)
	}

	if s.maxDepth != config.UnlimitedDepth && item.depth >= s.maxDepth {
		return
	}
	for _, u := range extracted.Crawlable {
		if s.stopped.Load() || s.visited.Seen(u) {
			continue
		}
		s.enqueue(u, item.depth+1)
	}
}

// hasCategoryEndpoint reports whether any configured endpoint is
// category-scoped.
func (s *Spider) hasCategoryEndpoint() bool {
	for _, ep := range s.endpoints {
		if ep.CategoryParam != "" {
			return true
		}
	}
	return false
}

// mergeDeferred refetches the page after the configured wait and merges any
// newly appeared links into the original extraction. The refetch goes
// through the rate gate but does not consume a page-budget slot: it is the
// same page, observed twice.
func (s *Spider) mergeDeferred(ctx context.Context, rawURL string, first *model.Page, extracted *ExtractResult) *ExtractResult {
	timer := time.NewTimer(s.deferredWait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return extracted
	case <-timer.C:
	}

	if err := s.gate.Acquire(ctx, model.Origin(rawURL)); err != nil {
		return extracted
	}
	second, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil || second.Hash == first.Hash {
		return extracted
	}

	again, err := s.extractor.Extract(second.Body, second.FinalURL)
	if err != nil {
		return extracted
	}

	s.logger.Debug("deferred content picked up",
		"url", rawURL,
		"extra_direct", len(again.Direct),
		"extra_gateways", len(again.Gateways),
	)

	merged := mergeExtractions(extracted, again)
	return merged
}

// mergeExtractions unions two extraction results, keeping a's entries first.
func mergeExtractions(a, b *ExtractResult) *ExtractResult {
	out := &ExtractResult{
		Crawlable:  append([]string(nil), a.Crawlable...),
		Direct:     append([]model.TargetLink(nil), a.Direct...),
		Gateways:   append([]model.TargetLink(nil), a.Gateways...),
		CategoryID: a.CategoryID,
	}
	if out.CategoryID == 0 {
		out.CategoryID = b.CategoryID
	}

	seenCrawl := make(map[string]struct{}, len(out.Crawlable))
	for _, u := range out.Crawlable {
		seenCrawl[model.NormalizeURL(u)] = struct{}{}
	}
	for _, u := range b.Crawlable {
		key := model.NormalizeURL(u)
		if _, ok := seenCrawl[key]; ok {
			continue
		}
		seenCrawl[key] = struct{}{}
		out.Crawlable = append(out.Crawlable, u)
	}

	seenTarget := make(map[string]struct{}, len(out.Direct)+len(out.Gateways))
	for _, l := range out.Direct {
		seenTarget[l.Key()] = struct{}{}
	}
	for _, l := range out.Gateways {
		seenTarget[l.Key()] = struct{}{}
	}
	for _, l := range b.Direct {
		if _, ok := seenTarget[l.Key()]; ok {
			continue
		}
		seenTarget[l.Key()] = struct{}{}
		out.Direct = append(out.Direct, l)
	}
	for _, l := range b.Gateways {
		if _, ok := seenTarget[l.Key()]; ok {
			continue
		}
		seenTarget[l.Key()] = struct{}{}
		out.Gateways = append(out.Gateways, l)
	}

	return out
}

// reservePageSlot claims one unit of the page budget. When the budget is
// spent it sets the stopped flag and reports false.
func (s *Spider) reservePageSlot() bool {
	if s.maxPages <= 0 {
		s.pages.Add(1)
		return true
	}
	for {
		cur := s.pages.Load()
		if cur >= int64(s.maxPages) {
			s.stopped.Store(true)
			return false
		}
		if s.pages.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// enqueue adds a URL to the frontier.
func (s *Spider) enqueue(rawURL string, depth int) {
	s.pending.Add(1)
	s.mu.Lock()
	s.frontier = append(s.frontier, frontierItem{url: rawURL, depth: depth})
	s.mu.Unlock()
}

// dequeue pops the oldest frontier item.
func (s *Spider) dequeue() (frontierItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.frontier) == 0 {
		return frontierItem{}, false
	}
	item := s.frontier[0]
	s.frontier = s.frontier[1:]
	return item, true
}

// addPaginationSeed records a pagination run, deduplicated by key.
func (s *Spider) addPaginationSeed(seed PaginationSeed) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pagSeeds[seed.Key()]; ok {
		return
	}
	s.pagSeeds[seed.Key()] = seed
}

// recordSkip logs and remembers an abandoned URL.
func (s *Spider) recordSkip(rawURL string, err error) {
	s.logger.Warn("page skipped", "url", rawURL, "error", err)
	s.mu.Lock()
	s.skipped = append(s.skipped, rawURL)
	s.mu.Unlock()
}

// sortedSeedsLocked returns the pagination seeds in a stable order.
// Caller holds the lock.
func (s *Spider) sortedSeedsLocked() []PaginationSeed {
	seeds := make([]PaginationSeed, 0, len(s.pagSeeds))
	for _, seed := range s.pagSeeds {
		seeds = append(seeds, seed)
	}
	sort.Slice(seeds, func(i, j int) bool {
		return seeds[i].Key() < seeds[j].Key()
	})
	return seeds
}
