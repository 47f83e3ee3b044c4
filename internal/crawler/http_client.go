package crawler

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
)

// HTTPClient performs page fetches with a bounded timeout
type HTTPClient struct {
	client        *http.Client
	userAgent     string
	maxBodyBytes  int64
	customHeaders map[string]string
}

// HTTPMetrics contains timing for an HTTP request
type HTTPMetrics struct {
	TTFB         time.Duration // Time to First Byte
	DownloadTime time.Duration // Total download time
}

// HTTPResponse contains the decoded response and metrics
type HTTPResponse struct {
	StatusCode  int
	Body        []byte // Decoded according to Content-Encoding
	ContentType string
	Metrics     HTTPMetrics
	FinalURL    string // After following redirects
}

// NewHTTPClient creates a new HTTP client. timeout bounds the whole request,
// including reading the body.
func NewHTTPClient(userAgent string, timeout time.Duration, maxBodyBytes int64) *HTTPClient {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	if maxBodyBytes <= 0 {
		maxBodyBytes = 10 * 1024 * 1024
	}

	return &HTTPClient{
		client:        client,
		userAgent:     userAgent,
		maxBodyBytes:  maxBodyBytes,
		customHeaders: make(map[string]string),
	}
}

// SetCustomHeaders sets custom HTTP headers sent with every request
func (h *HTTPClient) SetCustomHeaders(headers map[string]string) {
	for k, v := range headers {
		h.customHeaders[k] = v
	}
}

// Get performs an HTTP GET request. Non-2xx responses are returned, not
// treated as errors; the caller decides whether to retry.
func (h *HTTPClient) Get(ctx context.Context, url string) (*HTTPResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", h.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "it-IT,it;q=0.9,en;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	for name, value := range h.customHeaders {
		req.Header.Set(name, value)
	}

	var firstByteTime time.Time
	trace := &httptrace.ClientTrace{
		GotFirstResponseByte: func() {
			firstByteTime = time.Now()
		},
	}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))

	startTime := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var metrics HTTPMetrics
	if !firstByteTime.IsZero() {
		metrics.TTFB = firstByteTime.Sub(startTime)
	}

	body, err := h.readBody(resp)
	if err != nil {
		return nil, err
	}
	metrics.DownloadTime = time.Since(startTime)

	return &HTTPResponse{
		StatusCode:  resp.StatusCode,
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		Metrics:     metrics,
		FinalURL:    resp.Request.URL.String(),
	}, nil
}

// readBody decodes the Content-Encoding and enforces the body size cap
func (h *HTTPClient) readBody(resp *http.Response) ([]byte, error) {
	reader := io.Reader(resp.Body)

	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		defer func() { _ = gz.Close() }()
		reader = gz
	case "deflate":
		fl := flate.NewReader(resp.Body)
		defer func() { _ = fl.Close() }()
		reader = fl
	case "br":
		reader = brotli.NewReader(resp.Body)
	}

	body, err := io.ReadAll(io.LimitReader(reader, h.maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > h.maxBodyBytes {
		return nil, fmt.Errorf("response body exceeds limit of %d bytes", h.maxBodyBytes)
	}
	return body, nil
}

// Close closes idle connections
func (h *HTTPClient) Close() {
	h.client.CloseIdleConnections()
}
