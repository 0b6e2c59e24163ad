package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"linkharvest/internal/model"
)

// BatchProcessor handles concurrent crawling of multiple seed URLs.
// It uses errgroup to manage goroutines and respect concurrency limits.
//
// Design decision: We use a separate BatchProcessor rather than adding batch
// functionality to Pipeline because:
// 1. It keeps the Pipeline focused on single-crawl execution
// 2. It allows different batch strategies (e.g., rate limiting, retries)
// 3. It provides cleaner separation of concerns
type BatchProcessor struct {
	// pipelineFactory creates a new pipeline for each seed.
	// We use a factory to ensure each crawl gets a fresh pipeline instance
	// with its own spider and result set.
	pipelineFactory func(seed string) (*Pipeline, *Job, error)

	// concurrency is the maximum number of concurrent crawls.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent crawls.
// Default is 2 if not specified; seeds usually share a machine's uplink,
// and each crawl already runs its own worker pool.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
//
// The pipelineFactory function is called for each seed to create a fresh
// pipeline and job. This ensures that crawl state doesn't leak between
// seeds and allows per-seed customization (site profiles).
func NewBatchProcessor(pipelineFactory func(seed string) (*Pipeline, *Job, error), opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     2,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch crawls multiple seeds concurrently.
// It respects the configured concurrency limit and context cancellation.
//
// Design decision: We use errgroup.SetLimit rather than a worker pool
// because it's simpler and errgroup handles the concurrency correctly.
// Each seed gets its own goroutine, but only 'concurrency' goroutines
// run simultaneously.
//
// Returns all reports collected in seed order, even for seeds that failed;
// a failed seed's report carries its error message. The error return
// indicates batch-level cancellation.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, seeds []string) ([]*model.CrawlReport, error) {
	bp.logger.Info("starting batch processing",
		"total_seeds", len(seeds),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()

	// Pre-allocated so reports keep seed order without locking.
	reports := make([]*model.CrawlReport, len(seeds))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, seed := range seeds {
		i, seed := i, seed
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			bp.logger.Info("crawling seed",
				"seed", seed,
				"index", i+1,
				"total", len(seeds),
			)

			p, job, err := bp.pipelineFactory(seed)
			if err != nil {
				report := model.NewCrawlReport(seed)
				report.ErrorMessage = err.Error()
				reports[i] = report
				return nil
			}

			if err := p.Execute(gctx, job); err != nil {
				// The report already carries the error message; a failed
				// seed must not abort its siblings.
				bp.logger.Warn("seed crawl failed", "seed", seed, "error", err)
			}
			reports[i] = job.Report
			return nil
		})
	}

	err := g.Wait()

	bp.logger.Info("batch processing finished",
		"total_seeds", len(seeds),
		"elapsed", time.Since(startTime),
	)

	// Fill in placeholders for seeds cancelled before their goroutine ran.
	for i, r := range reports {
		if r == nil {
			report := model.NewCrawlReport(seeds[i])
			report.Cancelled = true
			reports[i] = report
		}
	}

	return reports, err
}
