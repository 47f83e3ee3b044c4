// Package crawler provides the core web crawling functionality.
// It implements a concurrent, frontier-based crawler with retry/backoff,
// resumable progress and per-page content analysis.
package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/masahif/rebrandcrawl/internal/analyzer"
	"github.com/masahif/rebrandcrawl/internal/config"
	"github.com/masahif/rebrandcrawl/internal/urlfilter"
)

// DefaultCrawler implements the Crawler interface
type DefaultCrawler struct {
	config      *config.CrawlConfig
	recorder    Recorder
	client      Fetcher
	frontier    *Frontier
	analyzer    *analyzer.Analyzer
	rateLimiter *RateLimiter
	logger      *slog.Logger

	statsInterval time.Duration

	findings findings

	// State
	stats      CrawlStats
	statsMutex sync.RWMutex
	cancel     context.CancelFunc
	cancelMu   sync.Mutex
}

var _ Crawler = (*DefaultCrawler)(nil)

// Option configures a DefaultCrawler
type Option func(*DefaultCrawler)

// WithLogger sets the logger every component logs through.
func WithLogger(logger *slog.Logger) Option {
	return func(c *DefaultCrawler) {
		c.logger = logger
	}
}

// WithFetcher replaces the HTTP client.
func WithFetcher(f Fetcher) Option {
	return func(c *DefaultCrawler) {
		c.client = f
	}
}

// WithStatsInterval sets how often progress is logged.
func WithStatsInterval(d time.Duration) Option {
	return func(c *DefaultCrawler) {
		c.statsInterval = d
	}
}

// findings holds the in-memory result collections, guarded separately from
// the frontier and the log artifacts.
type findings struct {
	mu              sync.Mutex
	nameChanges     []NameChangeEvent
	staleReferences []StaleReferenceFinding
}

func (f *findings) addNameChange(ev NameChangeEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nameChanges = append(f.nameChanges, ev)
}

func (f *findings) addStaleReference(sf StaleReferenceFinding) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.staleReferences = append(f.staleReferences, sf)
}

func (f *findings) snapshot() ([]NameChangeEvent, []StaleReferenceFinding) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]NameChangeEvent(nil), f.nameChanges...),
		append([]StaleReferenceFinding(nil), f.staleReferences...)
}

// NewCrawler creates a new crawler instance with the provided configuration
// and recorder. The start URL's authority becomes the only crawlable host.
func NewCrawler(cfg *config.CrawlConfig, recorder Recorder, opts ...Option) (*DefaultCrawler, error) {
	start, err := url.Parse(cfg.StartURL)
	if err != nil || start.Host == "" {
		return nil, fmt.Errorf("invalid start URL %q", cfg.StartURL)
	}

	filter, err := urlfilter.NewFilter(cfg.ExcludePatterns)
	if err != nil {
		return nil, err
	}

	c := &DefaultCrawler{
		config:        cfg,
		recorder:      recorder,
		frontier:      NewFrontier(filter),
		rateLimiter:   NewRateLimiter(cfg.RateLimit),
		logger:        slog.Default(),
		statsInterval: 10 * time.Second,
		analyzer: analyzer.New(analyzer.Options{
			Host:         start.Host,
			OldBrand:     cfg.Brand.Old,
			NewBrands:    cfg.Brand.New,
			StaleDomains: cfg.Brand.StaleDomains,
			Filter:       filter,
		}),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.client == nil {
		client := NewHTTPClient(cfg.UserAgent, cfg.RequestTimeout, cfg.MaxBodyBytes)
		if headers := parseHeaders(cfg.Headers, c.logger); len(headers) > 0 {
			client.SetCustomHeaders(headers)
			c.logger.Info("Set custom headers", "count", len(headers))
		}
		c.client = client
	}

	return c, nil
}

// parseHeaders turns "Name: Value" strings into a header map
func parseHeaders(raw []string, logger *slog.Logger) map[string]string {
	headers := make(map[string]string, len(raw))
	for _, header := range raw {
		name, value, found := strings.Cut(header, ":")
		name, value = strings.TrimSpace(name), strings.TrimSpace(value)
		if !found || name == "" || value == "" {
			logger.Warn("Skipping invalid header format", "header", header)
			continue
		}
		headers[name] = value
	}
	return headers
}

// Start runs the crawl to completion and returns its summary.
// Startup process:
// 1. Preload previously checked URLs into the visited set (resume mode)
// 2. Admit the start URL
// 3. Start the configured number of workers
// 4. Wait until the frontier drains (queue empty, nothing in flight)
func (c *DefaultCrawler) Start(ctx context.Context) (*CrawlSummary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.cancelMu.Lock()
	c.cancel = cancel
	c.cancelMu.Unlock()

	startTime := time.Now()
	c.statsMutex.Lock()
	c.stats = CrawlStats{StartTime: startTime}
	c.statsMutex.Unlock()

	c.logger.Info("Starting crawl", "start_url", c.config.StartURL, "workers", c.config.MaxWorkers)
	c.logger.Info("Using checked log for previously visited URLs", "resume", c.config.Resume)

	if c.config.Resume {
		urls, err := c.recorder.LoadChecked()
		if err != nil {
			c.logger.Error("Error loading previously checked URLs", "error", err)
		} else {
			loaded := c.frontier.Preload(urls)
			c.logger.Info("Loaded previously checked URLs", "count", loaded)
		}
	}

	if !c.frontier.Admit(c.config.StartURL) {
		c.logger.Info("Start URL already checked or filtered", "start_url", c.config.StartURL)
	}

	reporterCtx, stopReporter := context.WithCancel(ctx)
	var reporterDone sync.WaitGroup
	reporterDone.Add(1)
	go func() {
		defer reporterDone.Done()
		c.statsReporter(reporterCtx)
	}()

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < c.config.MaxWorkers; i++ {
		g.Go(func() error {
			c.worker(gctx, i)
			return nil
		})
	}
	_ = g.Wait()

	stopReporter()
	reporterDone.Wait()

	frontierStats := c.frontier.Stats()
	c.frontier.Close()
	elapsed := time.Since(startTime)

	if ctx.Err() != nil {
		c.logger.Info("Crawl cancelled", "elapsed", elapsed)
	} else {
		c.logger.Info("Crawl completed", "elapsed", elapsed, "visited", frontierStats.Visited)
	}

	checked, errorCount, err := c.recorder.Counts()
	if err != nil {
		return nil, fmt.Errorf("failed to count persisted results: %w", err)
	}

	nameChanges, staleRefs := c.findings.snapshot()
	summary := &CrawlSummary{
		StartURL:        c.config.StartURL,
		StartTime:       startTime,
		Elapsed:         elapsed,
		Visited:         frontierStats.Visited,
		Checked:         checked,
		Errors:          errorCount,
		NameChanges:     nameChanges,
		StaleReferences: staleRefs,
	}

	c.logSummary(summary)
	return summary, nil
}

// Stop cancels a running crawl and releases resources
func (c *DefaultCrawler) Stop() error {
	c.cancelMu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.cancelMu.Unlock()
	c.frontier.Close()
	c.client.Close()
	return nil
}

// GetStats returns current crawling statistics
func (c *DefaultCrawler) GetStats() CrawlStats {
	c.statsMutex.RLock()
	defer c.statsMutex.RUnlock()

	stats := c.stats
	stats.Duration = time.Since(stats.StartTime)
	return stats
}

// Frontier exposes the crawl frontier
func (c *DefaultCrawler) Frontier() *Frontier {
	return c.frontier
}

// statsReporter periodically reports crawling statistics
func (c *DefaultCrawler) statsReporter(ctx context.Context) {
	if c.statsInterval <= 0 {
		return
	}

	ticker := time.NewTicker(c.statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fs := c.frontier.Stats()
			stats := c.GetStats()
			c.logger.Info("Crawling stats",
				"checked", stats.PagesChecked, "errors", stats.ErrorCount,
				"attempts", stats.FetchAttempts,
				"visited", fs.Visited, "pending", fs.Pending, "in_flight", fs.InFlight,
				"duration", stats.Duration)
		}
	}
}

func (c *DefaultCrawler) logSummary(s *CrawlSummary) {
	c.logger.Info("Successfully processed", "pages", s.Checked)
	c.logger.Info("Failed to process", "pages", s.Errors)

	if len(s.NameChanges) > 0 {
		c.logger.Info("Found pages with name changes", "count", len(s.NameChanges))
		for _, ev := range s.NameChanges {
			c.logger.Info("Name change", "url", ev.URL)
		}
	}

	if len(s.StaleReferences) > 0 {
		c.logger.Info("Found pages with old URL references", "count", len(s.StaleReferences))
		for _, f := range s.StaleReferences {
			c.logger.Info("Old URL reference", "url", f.URL, "findings", f.Matches)
		}
	}
}

// Helper methods

func (c *DefaultCrawler) incrementChecked() {
	c.statsMutex.Lock()
	defer c.statsMutex.Unlock()
	c.stats.PagesChecked++
}

func (c *DefaultCrawler) incrementErrorCount() {
	c.statsMutex.Lock()
	defer c.statsMutex.Unlock()
	c.stats.ErrorCount++
}

func (c *DefaultCrawler) incrementAttempts() {
	c.statsMutex.Lock()
	defer c.statsMutex.Unlock()
	c.stats.FetchAttempts++
}
