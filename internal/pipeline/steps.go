package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"linkharvest/internal/crawler"
	"linkharvest/internal/database"
	"linkharvest/internal/model"
)

// CrawlStep runs the frontier crawl and fills the job's result set and
// pagination seeds.
type CrawlStep struct {
	spider *crawler.Spider
	logger *slog.Logger
}

// NewCrawlStep creates a CrawlStep around a configured spider.
func NewCrawlStep(spider *crawler.Spider, logger *slog.Logger) *CrawlStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &CrawlStep{spider: spider, logger: logger}
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do runs the crawl from the job's seed. Cancellation is not an error:
// partial results flow into the report.
func (s *CrawlStep) Do(ctx context.Context, job *Job) error {
	start := time.Now()
	stats, err := s.spider.Crawl(ctx, job.Seed)
	if err != nil {
		return err
	}

	job.Report.Duration = time.Since(start)
	job.Report.PagesVisited = stats.PagesVisited
	job.Report.SkippedURLs = append(job.Report.SkippedURLs, stats.Skipped...)
	job.Report.Cancelled = stats.Cancelled
	job.PaginationSeeds = stats.PaginationSeeds
	return nil
}

// PaginateStep drives the incremental-load endpoints discovered during the
// crawl. Runs are sequential per endpoint; the rate gate already spaces the
// requests, so parallel runs against one origin would only queue up.
type PaginateStep struct {
	paginator *crawler.Paginator
	logger    *slog.Logger
}

// NewPaginateStep creates a PaginateStep around a configured paginator.
func NewPaginateStep(paginator *crawler.Paginator, logger *slog.Logger) *PaginateStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &PaginateStep{paginator: paginator, logger: logger}
}

// Name returns the step name.
func (s *PaginateStep) Name() string {
	return "paginate"
}

// Do runs every pagination seed. A failed run is logged and skipped; the
// other endpoints still run.
func (s *PaginateStep) Do(ctx context.Context, job *Job) error {
	for _, seed := range job.PaginationSeeds {
		if ctx.Err() != nil {
			job.Report.Cancelled = true
			return nil
		}

		fetches, err := s.paginator.Run(ctx, seed)
		job.Report.PaginationFetches += fetches
		if err != nil {
			s.logger.Warn("pagination run failed",
				"endpoint", seed.Endpoint.Path,
				"category", seed.CategoryID,
				"fetches", fetches,
				"error", err,
			)
		}
	}
	return nil
}

// ResolveStep fetches the gateway pages collected during the crawl and
// rewrites their entries with the recovered destinations.
type ResolveStep struct {
	resolver *crawler.GatewayResolver

	// concurrency bounds the number of gateway fetches in flight. The rate
	// gate still spaces same-origin requests; the bound keeps a crawl with
	// many gateways from holding hundreds of idle goroutines.
	concurrency int

	logger *slog.Logger
}

// NewResolveStep creates a ResolveStep around a configured resolver.
func NewResolveStep(resolver *crawler.GatewayResolver, concurrency int, logger *slog.Logger) *ResolveStep {
	if concurrency <= 0 {
		concurrency = 2
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ResolveStep{resolver: resolver, concurrency: concurrency, logger: logger}
}

// Name returns the step name.
func (s *ResolveStep) Name() string {
	return "resolve-gateways"
}

// Do resolves every unresolved gateway link in the result set. A failed
// gateway fetch leaves the entry as-is and records the URL as skipped;
// resolution failures never abort the step.
func (s *ResolveStep) Do(ctx context.Context, job *Job) error {
	unresolved := job.Results.Unresolved()
	if len(unresolved) == 0 {
		return nil
	}

	var resolved atomic.Int64
	var mu sync.Mutex
	var failed []string

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, link := range unresolved {
		gatewayURL := link.TargetURL
		g.Go(func() error {
			target, kind, err := s.resolver.Resolve(gctx, gatewayURL)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				s.logger.Warn("gateway fetch failed",
					"gateway", gatewayURL,
					"error", err,
				)
				job.Results.Resolve(gatewayURL, gatewayURL, model.KindGatewayUnresolved)
				mu.Lock()
				failed = append(failed, gatewayURL)
				mu.Unlock()
				return nil
			}

			job.Results.Resolve(gatewayURL, target, kind)
			if kind == model.KindGatewayResolved {
				resolved.Add(1)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		job.Report.Cancelled = true
	}

	job.Report.SkippedURLs = append(job.Report.SkippedURLs, failed...)
	job.Report.GatewaysResolved = int(resolved.Load())
	return nil
}

// CollectStep snapshots the result set into the report. It runs after the
// steps that mutate the set so the report sees the final link kinds.
type CollectStep struct{}

// NewCollectStep creates a CollectStep.
func NewCollectStep() *CollectStep {
	return &CollectStep{}
}

// Name returns the step name.
func (s *CollectStep) Name() string {
	return "collect"
}

// Do copies the links into the report in discovery order.
func (s *CollectStep) Do(_ context.Context, job *Job) error {
	job.Report.Targets = job.Results.Links()
	return nil
}

// PersistStep stores the report and its links in the database.
type PersistStep struct {
	db     *database.LinkDB
	logger *slog.Logger
}

// NewPersistStep creates a PersistStep around an open database.
func NewPersistStep(db *database.LinkDB, logger *slog.Logger) *PersistStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &PersistStep{db: db, logger: logger}
}

// Name returns the step name.
func (s *PersistStep) Name() string {
	return "persist"
}

// Do inserts the session row and its targets.
func (s *PersistStep) Do(ctx context.Context, job *Job) error {
	sessionID, err := s.db.InsertSession(ctx, job.Report)
	if err != nil {
		return err
	}
	if err := s.db.InsertTargets(ctx, sessionID, job.Seed, job.Report.Targets); err != nil {
		return err
	}

	s.logger.Info("session persisted",
		"session_id", sessionID,
		"targets", len(job.Report.Targets),
		"db", s.db.Path(),
	)
	return nil
}
