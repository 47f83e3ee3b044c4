package crawler

import "time"

// CheckedRecord marks a URL that was fetched and analyzed successfully
type CheckedRecord struct {
	URL       string    // Normalized URL
	CheckedAt time.Time // Timestamp when the page was processed (UTC)
}

// ErrorRecord marks a URL that exhausted its retry budget or failed unexpectedly
type ErrorRecord struct {
	URL        string    // Normalized URL, or UnknownURL
	Message    string    // Last error message
	OccurredAt time.Time // Error occurrence timestamp (UTC)
}

// NameChangeEvent records a page mentioning both the old and the new brand
type NameChangeEvent struct {
	URL        string
	DetectedAt time.Time
}

// StaleReferenceFinding lists the links to deprecated domains found on a page
type StaleReferenceFinding struct {
	URL     string   // Page containing the links
	Matches []string // In anchor order, duplicates preserved
}

// CrawlSummary is returned when a crawl reaches quiescence
type CrawlSummary struct {
	StartURL        string
	StartTime       time.Time
	Elapsed         time.Duration
	Visited         int // URLs admitted to the frontier, including preloaded ones
	Checked         int // Non-comment lines in the checked log
	Errors          int // Non-comment lines in the error log
	NameChanges     []NameChangeEvent
	StaleReferences []StaleReferenceFinding
}

// FrontierStats is a point-in-time view of the frontier
type FrontierStats struct {
	Visited  int // Size of the visited set
	Pending  int // URLs waiting to be taken
	InFlight int // URLs taken but not yet marked done
}
