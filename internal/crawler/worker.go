package crawler

import (
	"context"
	"time"

	"github.com/masahif/rebrandcrawl/internal/analyzer"
	"github.com/masahif/rebrandcrawl/internal/parser"
)

// worker drains the frontier until it is drained or the crawl is cancelled
func (c *DefaultCrawler) worker(ctx context.Context, id int) {
	c.logger.Debug("Worker started", "worker_id", id)
	defer c.logger.Debug("Worker stopped", "worker_id", id)

	for {
		url, ok := c.frontier.Next(ctx)
		if !ok {
			return
		}
		c.processURL(ctx, id, url)
		c.frontier.Done()
	}
}

// processURL fetches a single URL with retries and records exactly one outcome.
// Panics are recovered here so a bad page never takes the worker down.
func (c *DefaultCrawler) processURL(ctx context.Context, id int, url string) {
	recorded := false
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		target := url
		if target == "" {
			target = UnknownURL
		}
		c.logger.Error("Unexpected error in worker", "worker_id", id, "url", target, "error", r)
		if !recorded {
			c.saveError(id, target, unexpectedError(r))
		}
	}()

	c.logger.Info("Processing", "worker_id", id, "url", url)

	var lastErr error
	for attempt := 1; attempt <= c.config.MaxRetries; attempt++ {
		resp, err := c.fetch(ctx, url)
		if err == nil {
			c.handleSuccess(id, url, resp)
			recorded = true
			c.saveChecked(id, url)
			c.sleep(ctx, c.config.RequestDelay)
			return
		}

		lastErr = err
		if ctx.Err() != nil {
			// Cancelled crawl: leave the URL unrecorded so a resumed run retries it.
			return
		}

		c.logger.Error("Error fetching",
			"worker_id", id, "url", url,
			"attempt", attempt, "max_retries", c.config.MaxRetries,
			"error", err)

		if attempt < c.config.MaxRetries {
			c.sleep(ctx, c.config.BackoffDelay*time.Duration(attempt))
		}
	}

	fetchErr := &FetchError{URL: url, Attempts: c.config.MaxRetries, Err: lastErr}
	c.logger.Error("Failed to process URL",
		"worker_id", id, "url", url,
		"transient", fetchErr.Transient(),
		"error", fetchErr)
	c.saveError(id, url, lastErr.Error())
	recorded = true
}

// fetch performs one attempt. Transport failures and non-2xx statuses are
// both retryable.
func (c *DefaultCrawler) fetch(ctx context.Context, url string) (*HTTPResponse, error) {
	if err := c.rateLimiter.Wait(ctx, url); err != nil {
		return nil, err
	}

	c.incrementAttempts()
	resp, err := c.client.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: url}
	}
	return resp, nil
}

// handleSuccess analyzes the page and feeds new links to the frontier. The
// checked record is appended by the caller afterwards.
func (c *DefaultCrawler) handleSuccess(id int, url string, resp *HTTPResponse) {
	if resp.FinalURL != "" && resp.FinalURL != url {
		c.logger.Info("Followed redirect", "worker_id", id, "url", url, "final_url", resp.FinalURL)
	}

	result := c.analyze(id, url, resp)

	if result.NameChange {
		c.logger.Info("Name change detected", "worker_id", id, "url", url)
		ev := NameChangeEvent{URL: url, DetectedAt: time.Now().UTC()}
		c.findings.addNameChange(ev)
		if err := c.recorder.SaveNameChange(ev); err != nil {
			c.logger.Error("Worker failed to save name change", "worker_id", id, "url", url, "error", err)
		}
	}

	if len(result.StaleMatches) > 0 {
		c.logger.Warn("Old URL references found", "worker_id", id, "url", url, "findings", result.StaleMatches)
		finding := StaleReferenceFinding{URL: url, Matches: result.StaleMatches}
		c.findings.addStaleReference(finding)
		if err := c.recorder.SaveStaleReferences(finding); err != nil {
			c.logger.Error("Worker failed to save old URL references", "worker_id", id, "url", url, "error", err)
		}
	}

	admitted := 0
	for _, link := range result.Links {
		if c.frontier.Admit(link) {
			admitted++
		}
	}

	c.logger.Info("Worker processed URL",
		"worker_id", id, "url", url,
		"status", resp.StatusCode,
		"links", len(result.Links), "new_links", admitted,
		"ttfb", resp.Metrics.TTFB)
}

func (c *DefaultCrawler) saveChecked(id int, url string) {
	if err := c.recorder.SaveChecked(CheckedRecord{URL: url, CheckedAt: time.Now().UTC()}); err != nil {
		c.logger.Error("Worker failed to save checked URL", "worker_id", id, "url", url, "error", err)
	}
	c.incrementChecked()
}

// analyze parses the body and runs the content checks. A page that cannot be
// parsed yields no findings.
func (c *DefaultCrawler) analyze(id int, url string, resp *HTTPResponse) analyzer.Result {
	doc, err := parser.Parse(url, resp.Body, resp.ContentType)
	if err != nil {
		c.logger.Warn("Skipping analysis of unparsable page", "worker_id", id, "url", url, "error", err)
		return analyzer.Result{}
	}
	c.logger.Debug("Parsed page", "worker_id", id, "url", url, "title", doc.Title, "anchors", len(doc.Hrefs))
	return c.analyzer.Analyze(doc)
}

func (c *DefaultCrawler) saveError(id int, url, message string) {
	if err := c.recorder.SaveError(ErrorRecord{URL: url, Message: message, OccurredAt: time.Now().UTC()}); err != nil {
		c.logger.Error("Worker failed to save error", "worker_id", id, "url", url, "error", err)
	}
	c.incrementErrorCount()
}

// sleep waits for d or until ctx is done
func (c *DefaultCrawler) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
