package crawler

import (
	"context"
	"time"
)

// Crawler defines the main crawling interface
type Crawler interface {
	Start(ctx context.Context) (*CrawlSummary, error)
	Stop() error
	GetStats() CrawlStats
}

// Fetcher performs a single HTTP GET
type Fetcher interface {
	Get(ctx context.Context, url string) (*HTTPResponse, error)
	Close()
}

// Recorder persists crawl outcomes
type Recorder interface {
	// Outcomes (append-only)
	SaveChecked(rec CheckedRecord) error
	SaveError(rec ErrorRecord) error
	SaveNameChange(ev NameChangeEvent) error
	SaveStaleReferences(f StaleReferenceFinding) error

	// Resume support: URLs recorded as checked by a previous run
	LoadChecked() ([]string, error)

	// Counts re-reads the persisted outcomes
	Counts() (checked int, errors int, err error)

	Close() error
}

// CrawlStats represents crawling statistics
type CrawlStats struct {
	PagesChecked  int
	ErrorCount    int
	FetchAttempts int
	StartTime     time.Time
	Duration      time.Duration
}
