// Package config provides configuration management for the crawler.
// It defines configuration structures and default values for crawling parameters.
package config

import (
	"net/url"
	"path/filepath"
	"regexp"
	"time"

	"github.com/adrg/xdg"
)

// AppName is used for the config file name and the XDG config directory.
const AppName = "rebrandcrawl"

// BrandConfig holds the tokens the content analyzer looks for
type BrandConfig struct {
	Old          string   `mapstructure:"old" yaml:"old"`                     // Old brand token (lower case)
	New          []string `mapstructure:"new" yaml:"new"`                     // New brand variants (lower case)
	StaleDomains []string `mapstructure:"stale_domains" yaml:"stale_domains"` // Deprecated domain strings
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`             // debug, info, warn, error
	File       string `mapstructure:"file" yaml:"file"`               // Log file path (empty = console only)
	MaxSizeMB  int64  `mapstructure:"max_size_mb" yaml:"max_size_mb"` // Rotate after this many MB
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"` // Rotated files to keep
}

// CrawlConfig holds crawler configuration
type CrawlConfig struct {
	// Basic crawling parameters
	StartURL       string        `mapstructure:"start_url" yaml:"start_url"`           // Crawl entry point, defines the domain
	MaxWorkers     int           `mapstructure:"max_workers" yaml:"max_workers"`       // Number of concurrent workers
	RequestTimeout time.Duration `mapstructure:"timeout" yaml:"timeout"`               // Per-fetch timeout
	MaxRetries     int           `mapstructure:"max_retries" yaml:"max_retries"`       // Fetch attempts per URL
	RequestDelay   time.Duration `mapstructure:"delay" yaml:"delay"`                   // Politeness delay after a success
	BackoffDelay   time.Duration `mapstructure:"backoff_delay" yaml:"backoff_delay"`   // Base of the linear retry backoff
	Resume         bool          `mapstructure:"resume" yaml:"resume"`                 // Preload checked.txt into the visited set
	UserAgent      string        `mapstructure:"user_agent" yaml:"user_agent"`         // HTTP User-Agent header
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes" yaml:"max_body_bytes"` // Response body cap
	RateLimit      float64       `mapstructure:"rate_limit" yaml:"rate_limit"`         // Requests/second per host, 0 = off
	Headers        []string      `mapstructure:"headers" yaml:"headers"`               // Extra request headers, "Name: Value"

	// URL filtering
	ExcludePatterns []string `mapstructure:"exclude_patterns" yaml:"exclude_patterns"` // Extra regex patterns to ignore

	// Analysis
	Brand BrandConfig `mapstructure:"brand" yaml:"brand"`

	// Output
	OutputDir    string `mapstructure:"output_dir" yaml:"output_dir"`       // Directory for checked/error/old_urls logs
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"` // Optional SQLite mirror

	Log LogConfig `mapstructure:"log" yaml:"log"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *CrawlConfig {
	return &CrawlConfig{
		MaxWorkers:     10,
		RequestTimeout: 10 * time.Second,
		MaxRetries:     3,
		RequestDelay:   500 * time.Millisecond,
		BackoffDelay:   500 * time.Millisecond,
		UserAgent:      "RebrandCrawl/1.0",
		MaxBodyBytes:   10 * 1024 * 1024,
		Brand: BrandConfig{
			Old: "esn modena",
			New: []string{
				"esn modena and reggio emilia",
				"esn modena e reggio emilia",
				"esn more",
			},
			StaleDomains: []string{
				"modena.esn.it",
				"http://modena.esn.it",
				"https://modena.esn.it",
				"esnmodena.it",
				"http://esnmodena.it",
				"https://esnmodena.it",
			},
		},
		OutputDir: "crawler",
		Log: LogConfig{
			Level:      "info",
			File:       filepath.Join("crawler", "crawler.log"),
			MaxSizeMB:  100,
			MaxBackups: 5,
		},
	}
}

// ConfigDir returns the XDG config directory searched for rebrandcrawl.yml.
// On Linux: ~/.config/rebrandcrawl
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid
func (c *CrawlConfig) Validate() error {
	if c.StartURL == "" {
		return ErrNoStartURL
	}

	u, err := url.Parse(c.StartURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidStartURL
	}

	if c.MaxWorkers <= 0 {
		return ErrInvalidWorkers
	}

	if c.RequestTimeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.MaxRetries <= 0 {
		return ErrInvalidRetries
	}

	if c.RequestDelay < 0 || c.BackoffDelay < 0 {
		return ErrNegativeDelay
	}

	if c.RateLimit < 0 {
		return ErrInvalidRateLimit
	}

	if c.OutputDir == "" {
		return ErrEmptyOutputDir
	}

	if c.Brand.Old == "" || len(c.Brand.New) == 0 {
		return ErrEmptyBrand
	}

	for _, pattern := range c.ExcludePatterns {
		if _, err := regexp.Compile(pattern); err != nil {
			return &PatternError{Pattern: pattern, Err: err}
		}
	}

	return nil
}
