package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"linkharvest/internal/config"
	"linkharvest/internal/crawler"
	"linkharvest/internal/database"
	"linkharvest/internal/log"
	"linkharvest/internal/model"
	"linkharvest/internal/pipeline"
	"linkharvest/internal/report"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [seed-url]...",
		Short: "Crawl a link directory and collect outbound target links",
		Long: `Crawl fetches a link-directory site breadth-first and collects the outbound
target links it publishes, in all the shapes these sites use:

- direct links in page markup
- links hidden behind gateway pages with countdown redirects
- links delivered by "load more" pagination endpoints

Examples:
  # Crawl a directory site
  linkharvest crawl https://example-directory.com

  # Limit to 50 pages, two levels deep, a request every 2 seconds
  linkharvest crawl --max-pages 50 --depth 2 --delay 2s https://example-directory.com

  # Crawl several sites concurrently and export CSV
  linkharvest crawl --csv -o links.csv https://site-a.com https://site-b.com

  # Use a custom configuration file
  linkharvest crawl -c myconfig.yaml https://example-directory.com

Configuration file (.linkharvest) example:
  sites:
    example-directory.com:
      cookie: "session_id=abc123"
      targetPattern: 'https?://t\.me/[^\s"''<>]+'
      handlerName: "openchannel"
      depth: 3`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Crawl behavior flags
	cmd.Flags().IntP("depth", "d", config.UnlimitedDepth,
		"Maximum link depth from the seed (0 crawls only the seed, -1 unlimited)")
	cmd.Flags().IntP("max-pages", "p", 0,
		"Maximum number of pages to fetch per seed (0 means unlimited)")
	cmd.Flags().Duration("delay", config.DefaultPolitenessInterval,
		"Minimum interval between requests to the same origin")
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers,
		"Number of concurrent frontier workers")
	cmd.Flags().DurationP("timeout", "t", config.DefaultFetchTimeout,
		"Timeout for each page fetch")
	cmd.Flags().Int("retries", config.DefaultRetryCount,
		"Retries after a transient fetch failure")
	cmd.Flags().Bool("wait-deferred", false,
		"Fetch each page a second time after --deferred-wait to catch late-inserted links")
	cmd.Flags().Duration("deferred-wait", config.DefaultDeferredWait,
		"Delay before the second fetch when --wait-deferred is set")
	cmd.Flags().Bool("skip-gateways", false,
		"Skip the gateway resolution phase (gateway links stay unresolved)")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with every request")

	// Batch crawling flags
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of concurrent seed crawls")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .linkharvest in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown and --csv)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json and --csv)")
	cmd.Flags().Bool("csv", false,
		"Output discovered links as CSV (mutually exclusive with --json and --markdown)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	// Persistence flags
	cmd.Flags().Bool("no-db", false,
		"Do not persist results to the local database")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	// Context with signal handling for graceful shutdown. A cancelled crawl
	// still reports the links collected so far.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return runCrawl(ctx, cfg, logger)
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error

	cfg.MaxDepth, err = cmd.Flags().GetInt("depth")
	if err != nil {
		return nil, err
	}

	cfg.MaxPages, err = cmd.Flags().GetInt("max-pages")
	if err != nil {
		return nil, err
	}

	cfg.PolitenessInterval, err = cmd.Flags().GetDuration("delay")
	if err != nil {
		return nil, err
	}

	cfg.Workers, err = cmd.Flags().GetInt("workers")
	if err != nil {
		return nil, err
	}

	cfg.FetchTimeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}

	cfg.RetryCount, err = cmd.Flags().GetInt("retries")
	if err != nil {
		return nil, err
	}

	cfg.WaitDeferred, err = cmd.Flags().GetBool("wait-deferred")
	if err != nil {
		return nil, err
	}

	cfg.DeferredWait, err = cmd.Flags().GetDuration("deferred-wait")
	if err != nil {
		return nil, err
	}

	skipGateways, err := cmd.Flags().GetBool("skip-gateways")
	if err != nil {
		return nil, err
	}
	cfg.ResolveGateways = !skipGateways

	cfg.UserAgent, err = cmd.Flags().GetString("user-agent")
	if err != nil {
		return nil, err
	}

	cfg.BatchSize, err = cmd.Flags().GetInt("batch")
	if err != nil {
		return nil, err
	}

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// Load site profiles from the config file. An explicitly specified
	// path must exist; the default search may come up empty.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		cfg.Profiles, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	} else if explicitConfigPath {
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	} else {
		cfg.Profiles = &config.File{
			Sites: make(map[string]config.Profile),
		}
	}

	cfg.JSONReport, err = cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}

	cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}

	cfg.CSVReport, err = cmd.Flags().GetBool("csv")
	if err != nil {
		return nil, err
	}

	cfg.ReportFile, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}

	noDB, err := cmd.Flags().GetBool("no-db")
	if err != nil {
		return nil, err
	}
	if !noDB {
		cfg.SaveToDB = true
		cfg.DBDir = config.XDGDataDir()
	}

	cfg.Verbose = getVerboseFlag(cmd)

	// Positional arguments are the seed URLs.
	cfg.Seeds = args

	return cfg, nil
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// runCrawl executes the crawl over all seeds.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting crawl",
		"seeds", cfg.Seeds,
		"depth", cfg.MaxDepth,
		"maxPages", cfg.MaxPages,
		"workers", cfg.Workers,
		"saveToDB", cfg.SaveToDB,
	)

	var db *database.LinkDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "dir", cfg.DBDir)
	}

	factory := func(seed string) (*pipeline.Pipeline, *pipeline.Job, error) {
		return buildPipeline(cfg, db, logger, seed)
	}

	if len(cfg.Seeds) > 1 && cfg.BatchSize > 1 {
		return runBatchCrawl(ctx, cfg, factory, logger)
	}

	return runSequentialCrawl(ctx, cfg, factory, logger)
}

// runSequentialCrawl crawls seeds one at a time.
func runSequentialCrawl(ctx context.Context, cfg *config.Config, factory func(string) (*pipeline.Pipeline, *pipeline.Job, error), logger *slog.Logger) error {
	for _, seed := range cfg.Seeds {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		p, job, err := factory(seed)
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stderr, "Crawling %s...\n", seed)
		startTime := time.Now()

		if err := p.Execute(ctx, job); err != nil {
			logger.Error("crawl failed", "seed", seed, "error", err)
			fmt.Fprintf(os.Stderr, "Crawl error for %s: %v\n", seed, err)
			continue
		}

		job.Report.Duration = time.Since(startTime)
		fmt.Fprintf(os.Stderr, "Crawl completed in %s\n\n", job.Report.Duration.Round(time.Millisecond))

		if err := outputReport(cfg, job.Report); err != nil {
			logger.Error("report failed", "seed", seed, "error", err)
		}
	}

	return nil
}

// runBatchCrawl crawls multiple seeds concurrently using BatchProcessor.
func runBatchCrawl(ctx context.Context, cfg *config.Config, factory func(string) (*pipeline.Pipeline, *pipeline.Job, error), logger *slog.Logger) error {
	fmt.Fprintf(os.Stderr, "Starting batch crawl of %d seeds (concurrency: %d)...\n\n",
		len(cfg.Seeds), cfg.BatchSize)

	bp := pipeline.NewBatchProcessor(factory,
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	reports, err := bp.ProcessBatch(ctx, cfg.Seeds)
	for _, r := range reports {
		if outErr := outputReport(cfg, r); outErr != nil {
			logger.Error("report failed", "seed", r.Seed, "error", outErr)
		}
	}
	return err
}

// buildPipeline wires the crawl components for one seed according to its
// site profile.
func buildPipeline(cfg *config.Config, db *database.LinkDB, logger *slog.Logger, seed string) (*pipeline.Pipeline, *pipeline.Job, error) {
	u, err := url.Parse(seed)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid seed %q: %w", seed, err)
	}
	profile := cfg.Profiles.GetProfile(u.Hostname())

	targetRe, err := regexp.Compile(profile.TargetPattern)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid target pattern for %s: %w", u.Hostname(), err)
	}

	job := pipeline.NewJob(seed)

	fetcher := crawler.NewFetcher(newHTTPClient(cfg),
		crawler.WithTimeout(cfg.FetchTimeout),
		crawler.WithRetries(cfg.RetryCount, cfg.RetryBackoff),
		crawler.WithUserAgent(cfg.UserAgent),
		crawler.WithMaxBodySize(cfg.MaxBodySize),
		crawler.WithCookie(profile.Cookie),
		crawler.WithHeaders(profile.Headers),
		crawler.WithFetcherLogger(logger),
	)
	gate := crawler.NewRateGate(cfg.PolitenessInterval)

	extractor, err := crawler.NewExtractor(profile, logger)
	if err != nil {
		return nil, nil, err
	}

	depth := cfg.MaxDepth
	if profile.Depth != 0 {
		depth = profile.Depth
	}

	spiderOpts := []crawler.SpiderOption{
		crawler.WithWorkers(cfg.Workers),
		crawler.WithMaxDepth(depth),
		crawler.WithMaxPages(cfg.MaxPages),
		crawler.WithEndpoints(profile.Endpoints),
		crawler.WithSpiderLogger(logger),
	}
	if cfg.WaitDeferred {
		spiderOpts = append(spiderOpts, crawler.WithDeferredWait(cfg.DeferredWait))
	}
	spider := crawler.NewSpider(fetcher, gate, extractor, crawler.NewVisitedSet(), job.Results, spiderOpts...)

	p := pipeline.New(pipeline.WithLogger(logger), pipeline.WithContinueOnError(true))
	p.AddStep(pipeline.NewCrawlStep(spider, logger))
	p.AddStep(pipeline.NewPaginateStep(crawler.NewPaginator(fetcher, gate, extractor, job.Results, logger), logger))
	if cfg.ResolveGateways {
		resolver := crawler.NewGatewayResolver(fetcher, gate, targetRe, logger)
		p.AddStep(pipeline.NewResolveStep(resolver, cfg.Workers, logger))
	}
	p.AddStep(pipeline.NewCollectStep())
	if db != nil {
		p.AddStep(pipeline.NewPersistStep(db, logger))
	}

	return p, job, nil
}

// newHTTPClient creates the shared HTTP client. Per-attempt timeouts are
// handled by the fetcher; the client itself only bounds idle connections.
func newHTTPClient(cfg *config.Config) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Workers * 2,
			MaxIdleConnsPerHost: cfg.Workers,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// outputReport writes the report in the configured format and destination.
func outputReport(cfg *config.Config, r *model.CrawlReport) error {
	out := os.Stdout
	if cfg.ReportFile != "" {
		if dir := filepath.Dir(cfg.ReportFile); dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create report directory: %w", err)
			}
		}
		f, err := os.Create(cfg.ReportFile) //nolint:gosec // User-provided output path is intentional
		if err != nil {
			return fmt.Errorf("failed to create report file: %w", err)
		}
		defer f.Close()
		out = f
	}

	var w report.Writer
	switch {
	case cfg.JSONReport:
		w = report.NewJSONWriter(out, report.WithPrettyPrint())
	case cfg.MarkdownReport:
		w = report.NewMarkdownWriter(out)
	case cfg.CSVReport:
		w = report.NewCSVWriter(out)
	default:
		w = report.NewSimpleWriter(out, report.WithVerbose(cfg.Verbose))
	}

	_, err := w.Write(r)
	return err
}
