package config

import (
	"errors"
	"fmt"
)

var (
	// ErrNoStartURL is returned when no start URL is provided
	ErrNoStartURL = errors.New("no start URL provided")
	// ErrInvalidStartURL is returned when the start URL is not an absolute http(s) URL
	ErrInvalidStartURL = errors.New("start_url must be an absolute http or https URL")
	// ErrInvalidWorkers is returned when max_workers is not greater than 0
	ErrInvalidWorkers = errors.New("max_workers must be greater than 0")
	// ErrInvalidTimeout is returned when request timeout is not greater than 0
	ErrInvalidTimeout = errors.New("timeout must be greater than 0")
	// ErrInvalidRetries is returned when max_retries is not greater than 0
	ErrInvalidRetries = errors.New("max_retries must be greater than 0")
	// ErrNegativeDelay is returned when delay or backoff_delay is negative
	ErrNegativeDelay = errors.New("delay and backoff_delay cannot be negative")
	// ErrInvalidRateLimit is returned when rate_limit is negative
	ErrInvalidRateLimit = errors.New("rate_limit cannot be negative")
	// ErrEmptyOutputDir is returned when output directory is empty
	ErrEmptyOutputDir = errors.New("output_dir cannot be empty")
	// ErrEmptyBrand is returned when the brand tokens are missing
	ErrEmptyBrand = errors.New("brand.old and brand.new must be set")
)

// PatternError reports an exclude pattern that does not compile
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid exclude pattern %q: %v", e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() error {
	return e.Err
}
