package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/masahif/rebrandcrawl/internal/config"
)

var _ Recorder = (*MockRecorder)(nil)

// MockRecorder keeps every outcome in memory
type MockRecorder struct {
	mu          sync.Mutex
	checked     []CheckedRecord
	errors      []ErrorRecord
	nameChanges []NameChangeEvent
	stale       []StaleReferenceFinding
	preload     []string
}

func (m *MockRecorder) SaveChecked(rec CheckedRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checked = append(m.checked, rec)
	return nil
}

func (m *MockRecorder) SaveError(rec ErrorRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, rec)
	return nil
}

func (m *MockRecorder) SaveNameChange(ev NameChangeEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nameChanges = append(m.nameChanges, ev)
	return nil
}

func (m *MockRecorder) SaveStaleReferences(f StaleReferenceFinding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stale = append(m.stale, f)
	return nil
}

func (m *MockRecorder) LoadChecked() ([]string, error) {
	return m.preload, nil
}

func (m *MockRecorder) Counts() (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.checked), len(m.errors), nil
}

func (m *MockRecorder) Close() error { return nil }

func (m *MockRecorder) checkedURLs() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	urls := make(map[string]int)
	for _, rec := range m.checked {
		urls[rec.URL]++
	}
	return urls
}

func (m *MockRecorder) errorRecords() []ErrorRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ErrorRecord(nil), m.errors...)
}

// stubPage is one scripted response; panicMsg makes Get panic
type stubPage struct {
	status   int
	body     string
	err      error
	panicMsg string
	delay    time.Duration
}

// stubFetcher serves scripted responses. The n-th attempt on a URL gets the
// n-th page of its script, the last page repeats.
type stubFetcher struct {
	mu       sync.Mutex
	pages    map[string][]stubPage
	attempts map[string]int
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{
		pages:    make(map[string][]stubPage),
		attempts: make(map[string]int),
	}
}

func (s *stubFetcher) page(url string, script ...stubPage) *stubFetcher {
	s.pages[url] = script
	return s
}

func (s *stubFetcher) html(url, body string) *stubFetcher {
	return s.page(url, stubPage{status: 200, body: body})
}

func (s *stubFetcher) Get(ctx context.Context, url string) (*HTTPResponse, error) {
	s.mu.Lock()
	n := s.attempts[url]
	s.attempts[url]++
	script := s.pages[url]
	s.mu.Unlock()

	if len(script) == 0 {
		return &HTTPResponse{StatusCode: 404, FinalURL: url}, nil
	}
	p := script[min(n, len(script)-1)]

	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.panicMsg != "" {
		panic(p.panicMsg)
	}
	if p.err != nil {
		return nil, p.err
	}
	return &HTTPResponse{
		StatusCode:  p.status,
		Body:        []byte(p.body),
		ContentType: "text/html; charset=utf-8",
		FinalURL:    url,
	}, nil
}

func (s *stubFetcher) Close() {}

func (s *stubFetcher) attemptsFor(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts[url]
}

func (s *stubFetcher) totalAttempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.attempts {
		total += n
	}
	return total
}

var errConnRefused = errors.New("dial tcp: connection refused")

// testConfig returns a fast configuration for startURL
func testConfig(startURL string) *config.CrawlConfig {
	cfg := config.DefaultConfig()
	cfg.StartURL = startURL
	cfg.MaxWorkers = 2
	cfg.RequestTimeout = 2 * time.Second
	cfg.RequestDelay = time.Millisecond
	cfg.BackoffDelay = time.Millisecond
	cfg.OutputDir = ""
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestCrawler(cfg *config.CrawlConfig, rec Recorder, f Fetcher, opts ...Option) (*DefaultCrawler, error) {
	opts = append([]Option{WithFetcher(f), WithLogger(quietLogger())}, opts...)
	return NewCrawler(cfg, rec, opts...)
}

func linksPage(hrefs ...string) string {
	body := "<html><body>"
	for _, h := range hrefs {
		body += fmt.Sprintf(`<a href="%s">link</a>`, h)
	}
	return body + "</body></html>"
}
