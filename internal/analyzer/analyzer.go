// Package analyzer inspects fetched pages for brand-rename evidence, links to
// deprecated domains and same-domain outbound links.
package analyzer

import (
	"net/url"
	"strings"

	"github.com/masahif/rebrandcrawl/internal/parser"
	"github.com/masahif/rebrandcrawl/internal/urlfilter"
)

// staleLinkPrefix is prepended to every stale-reference match.
const staleLinkPrefix = "Found in link: "

// Options configures an Analyzer
type Options struct {
	Host         string            // Authority of the crawl's start URL
	OldBrand     string            // Old brand token
	NewBrands    []string          // New brand variants; any one counts
	StaleDomains []string          // Deprecated domain strings
	Filter       *urlfilter.Filter // Stale-reference matches on ignored URLs are dropped
}

// Analyzer runs the content checks on a parsed page
type Analyzer struct {
	host         string
	oldBrand     string
	newBrands    []string
	staleDomains []string
	filter       *urlfilter.Filter
}

// Result holds everything found on a single page
type Result struct {
	NameChange   bool
	StaleMatches []string // In anchor order, duplicates preserved
	Links        []string // Normalized same-domain targets, deduplicated
}

// New creates an analyzer. Brand tokens are compared case-insensitively.
func New(opts Options) *Analyzer {
	filter := opts.Filter
	if filter == nil {
		filter = urlfilter.Default()
	}

	newBrands := make([]string, 0, len(opts.NewBrands))
	for _, b := range opts.NewBrands {
		newBrands = append(newBrands, strings.ToLower(b))
	}

	return &Analyzer{
		host:         opts.Host,
		oldBrand:     strings.ToLower(opts.OldBrand),
		newBrands:    newBrands,
		staleDomains: opts.StaleDomains,
		filter:       filter,
	}
}

// Analyze runs all checks against doc.
func (a *Analyzer) Analyze(doc *parser.Document) Result {
	return Result{
		NameChange:   a.DetectNameChange(doc.Text),
		StaleMatches: a.StaleReferences(doc.Hrefs),
		Links:        a.ExtractLinks(doc.BaseURL, doc.Hrefs),
	}
}

// DetectNameChange reports whether text mentions the old brand together with
// at least one of the new brand variants.
func (a *Analyzer) DetectNameChange(text string) bool {
	text = strings.ToLower(text)
	if a.oldBrand == "" || !strings.Contains(text, a.oldBrand) {
		return false
	}
	for _, b := range a.newBrands {
		if strings.Contains(text, b) {
			return true
		}
	}
	return false
}

// StaleReferences returns a match for every href that points at a deprecated
// domain and is not ignored by the filter.
func (a *Analyzer) StaleReferences(hrefs []string) []string {
	var matches []string
	for _, href := range hrefs {
		if !a.isStale(href) || a.filter.Ignored(href) {
			continue
		}
		matches = append(matches, staleLinkPrefix+href)
	}
	return matches
}

func (a *Analyzer) isStale(href string) bool {
	for _, d := range a.staleDomains {
		if strings.Contains(href, d) {
			return true
		}
	}
	return false
}

// ExtractLinks resolves hrefs against base and returns the normalized targets
// on the crawl host, each once, in first-seen order.
func (a *Analyzer) ExtractLinks(base *url.URL, hrefs []string) []string {
	seen := make(map[string]struct{}, len(hrefs))
	links := make([]string, 0, len(hrefs))

	for _, href := range hrefs {
		link, err := urlfilter.Resolve(base, href)
		if err != nil {
			continue
		}
		if !urlfilter.SameAuthority(link, a.host) {
			continue
		}
		if _, ok := seen[link]; ok {
			continue
		}
		seen[link] = struct{}{}
		links = append(links, link)
	}

	return links
}
