// Package parser provides HTML parsing and content extraction capabilities.
// It decodes the response charset and exposes the page text and anchor targets.
package parser

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// Document is a parsed HTML page
type Document struct {
	BaseURL *url.URL
	Title   string
	Text    string   // All text content, as rendered by goquery's Text()
	Hrefs   []string // href attribute of every <a href>, in document order
}

// Parse decodes body according to contentType (and any <meta charset>) and
// parses it as HTML. baseURL is the URL the body was fetched from.
func Parse(baseURL string, body []byte, contentType string) (*Document, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to decode charset: %w", err)
	}

	root, err := html.Parse(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	dom := goquery.NewDocumentFromNode(root)
	doc := &Document{
		BaseURL: base,
		Title:   strings.TrimSpace(dom.Find("title").First().Text()),
		Text:    dom.Text(),
		Hrefs:   []string{},
	}

	dom.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		doc.Hrefs = append(doc.Hrefs, href)
	})

	return doc, nil
}
