// Package urlfilter canonicalizes crawl URLs and decides which of them are
// eligible for crawling.
package urlfilter

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// DefaultIgnoredSubstrings are URL fragments that are never crawled.
var DefaultIgnoredSubstrings = []string{"sites", "facebook", "?q=events/"}

// trailingNumber matches URLs that end in three digits (e.g. paginated node ids).
var trailingNumber = regexp.MustCompile(`\d{3}$`)

// Normalize returns the canonical form of raw: scheme://authority/path with an
// optional ?query. The fragment is always dropped.
func Normalize(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	return format(u), nil
}

// Resolve resolves ref against base and normalizes the result.
func Resolve(base *url.URL, ref string) (string, error) {
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", fmt.Errorf("invalid reference %q: %w", ref, err)
	}
	return format(base.ResolveReference(r)), nil
}

// SameAuthority reports whether rawURL's host (including port) is exactly host.
func SameAuthority(rawURL, host string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Host == host
}

func format(u *url.URL) string {
	var b strings.Builder
	if u.Scheme != "" {
		b.WriteString(u.Scheme)
		b.WriteString(":")
	}
	if u.Scheme != "" || u.Host != "" {
		b.WriteString("//")
		b.WriteString(u.Host)
	}
	b.WriteString(u.EscapedPath())
	if u.RawQuery != "" {
		b.WriteString("?")
		b.WriteString(u.RawQuery)
	}
	return b.String()
}

// Filter rejects URLs that must never be fetched, logged or retried.
type Filter struct {
	substrings []string
	patterns   []*regexp.Regexp
}

// NewFilter creates a filter with the default rules plus the given extra
// exclude patterns.
func NewFilter(excludePatterns []string) (*Filter, error) {
	f := &Filter{
		substrings: DefaultIgnoredSubstrings,
		patterns:   []*regexp.Regexp{trailingNumber},
	}
	for _, p := range excludePatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", p, err)
		}
		f.patterns = append(f.patterns, re)
	}
	return f, nil
}

// Default returns a filter with only the built-in rules.
func Default() *Filter {
	f, _ := NewFilter(nil)
	return f
}

// Ignored reports whether rawURL is rejected by any rule.
func (f *Filter) Ignored(rawURL string) bool {
	for _, s := range f.substrings {
		if strings.Contains(rawURL, s) {
			return true
		}
	}
	for _, re := range f.patterns {
		if re.MatchString(rawURL) {
			return true
		}
	}
	return false
}
