package storage

import (
	"errors"

	"github.com/masahif/rebrandcrawl/internal/crawler"
)

var (
	_ crawler.Recorder = (*MultiRecorder)(nil)
	_ crawler.Recorder = (*CrawlLog)(nil)
	_ crawler.Recorder = (*SQLiteStorage)(nil)
)

// MultiRecorder fans every write out to a primary recorder and its mirrors.
// Reads (LoadChecked, Counts) come from the primary only.
type MultiRecorder struct {
	primary crawler.Recorder
	mirrors []crawler.Recorder
}

// NewMultiRecorder creates a recorder writing to primary and every mirror
func NewMultiRecorder(primary crawler.Recorder, mirrors ...crawler.Recorder) *MultiRecorder {
	return &MultiRecorder{primary: primary, mirrors: mirrors}
}

func (m *MultiRecorder) each(fn func(crawler.Recorder) error) error {
	errs := []error{fn(m.primary)}
	for _, r := range m.mirrors {
		errs = append(errs, fn(r))
	}
	return errors.Join(errs...)
}

func (m *MultiRecorder) SaveChecked(rec crawler.CheckedRecord) error {
	return m.each(func(r crawler.Recorder) error { return r.SaveChecked(rec) })
}

func (m *MultiRecorder) SaveError(rec crawler.ErrorRecord) error {
	return m.each(func(r crawler.Recorder) error { return r.SaveError(rec) })
}

func (m *MultiRecorder) SaveNameChange(ev crawler.NameChangeEvent) error {
	return m.each(func(r crawler.Recorder) error { return r.SaveNameChange(ev) })
}

func (m *MultiRecorder) SaveStaleReferences(f crawler.StaleReferenceFinding) error {
	return m.each(func(r crawler.Recorder) error { return r.SaveStaleReferences(f) })
}

func (m *MultiRecorder) LoadChecked() ([]string, error) {
	return m.primary.LoadChecked()
}

func (m *MultiRecorder) Counts() (int, int, error) {
	return m.primary.Counts()
}

// Close closes every recorder, mirrors first
func (m *MultiRecorder) Close() error {
	var errs []error
	for _, r := range m.mirrors {
		errs = append(errs, r.Close())
	}
	errs = append(errs, m.primary.Close())
	return errors.Join(errs...)
}
