package storage

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/masahif/rebrandcrawl/internal/crawler"
)

// Artifact file names inside the output directory
const (
	CheckedFileName = "checked.txt"
	ErrorFileName   = "error.txt"
	StaleFileName   = "old_urls.txt"
)

const (
	checkedHeader = "# Successfully checked URLs"
	errorHeader   = "# URLs that failed after max retries"
	staleHeader   = "# Pages referencing old domains"
)

// LogFile is an append-only line log. Lines starting with '#' are comments.
// Each Append is a single write under the file's own lock, so concurrent
// writers never interleave within a line.
type LogFile struct {
	path string
	mu   sync.Mutex
	file *os.File
}

// OpenLogFile opens path for appending. When truncate is set, or the file is
// new or empty, header is written first.
func OpenLogFile(path, header string, truncate bool) (*LogFile, error) {
	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if truncate {
		flags |= os.O_TRUNC
	}

	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if info.Size() == 0 && header != "" {
		if _, err := file.WriteString(header + "\n"); err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("failed to write header to %s: %w", path, err)
		}
	}

	return &LogFile{path: path, file: file}, nil
}

// Path returns the file location
func (l *LogFile) Path() string {
	return l.path
}

// Append writes one line. Embedded newlines are flattened to spaces.
func (l *LogFile) Append(line string) error {
	line = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(line)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return fmt.Errorf("log file %s is closed", l.path)
	}
	if _, err := l.file.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("failed to append to %s: %w", l.path, err)
	}
	return nil
}

// Entries returns the non-empty, non-comment lines in file order.
func (l *LogFile) Entries() ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return readEntries(l.path)
}

// Close closes the underlying file
func (l *LogFile) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func readEntries(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	var entries []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entries = append(entries, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return entries, nil
}

// CrawlLog is the text-file crawler.Recorder: checked.txt, error.txt and
// old_urls.txt inside one output directory.
type CrawlLog struct {
	dir     string
	checked *LogFile
	errors  *LogFile
	stale   *LogFile
	resumed bool
}

// OpenCrawlLog creates dir if needed and opens the three artifacts. A resumed
// run appends to the existing files; it only happens when resume is set and
// checked.txt already exists. Otherwise checked.txt and error.txt start over
// with just their header.
func OpenCrawlLog(dir string, resume bool) (*CrawlLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	checkedPath := filepath.Join(dir, CheckedFileName)
	resumed := false
	if resume {
		if _, err := os.Stat(checkedPath); err == nil {
			resumed = true
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat %s: %w", checkedPath, err)
		}
	}
	truncate := !resumed

	log := &CrawlLog{dir: dir, resumed: resumed}

	var err error
	if log.checked, err = OpenLogFile(checkedPath, checkedHeader, truncate); err != nil {
		return nil, err
	}
	if log.errors, err = OpenLogFile(filepath.Join(dir, ErrorFileName), errorHeader, truncate); err != nil {
		_ = log.Close()
		return nil, err
	}
	// old_urls.txt accumulates findings across runs and is never reset
	if log.stale, err = OpenLogFile(filepath.Join(dir, StaleFileName), staleHeader, false); err != nil {
		_ = log.Close()
		return nil, err
	}

	return log, nil
}

// Resumed reports whether existing artifacts were kept
func (l *CrawlLog) Resumed() bool {
	return l.resumed
}

// Dir returns the output directory
func (l *CrawlLog) Dir() string {
	return l.dir
}

// Files returns the paths of checked.txt, error.txt and old_urls.txt
func (l *CrawlLog) Files() []string {
	return []string{l.checked.Path(), l.errors.Path(), l.stale.Path()}
}

// SaveChecked appends the URL to checked.txt
func (l *CrawlLog) SaveChecked(rec crawler.CheckedRecord) error {
	return l.checked.Append(rec.URL)
}

// SaveError appends "<url> - <message>" to error.txt
func (l *CrawlLog) SaveError(rec crawler.ErrorRecord) error {
	return l.errors.Append(FormatErrorLine(rec))
}

// SaveNameChange is a no-op: name changes only appear in the summary and the
// database mirror.
func (l *CrawlLog) SaveNameChange(crawler.NameChangeEvent) error {
	return nil
}

// SaveStaleReferences appends "<url> - [<finding>, ...]" to old_urls.txt
func (l *CrawlLog) SaveStaleReferences(f crawler.StaleReferenceFinding) error {
	if len(f.Matches) == 0 {
		return nil
	}
	return l.stale.Append(FormatStaleLine(f))
}

// LoadChecked returns the URLs in checked.txt. The error log is never read
// back, so failed URLs are retried on resume.
func (l *CrawlLog) LoadChecked() ([]string, error) {
	return l.checked.Entries()
}

// Counts returns the number of entries in checked.txt and error.txt
func (l *CrawlLog) Counts() (int, int, error) {
	checked, err := l.checked.Entries()
	if err != nil {
		return 0, 0, err
	}
	errs, err := l.errors.Entries()
	if err != nil {
		return 0, 0, err
	}
	return len(checked), len(errs), nil
}

// Close closes every artifact
func (l *CrawlLog) Close() error {
	var errs []error
	for _, f := range []*LogFile{l.checked, l.errors, l.stale} {
		if f != nil {
			errs = append(errs, f.Close())
		}
	}
	return errors.Join(errs...)
}

// FormatErrorLine renders an error.txt entry
func FormatErrorLine(rec crawler.ErrorRecord) string {
	return rec.URL + " - " + rec.Message
}

// FormatStaleLine renders an old_urls.txt entry
func FormatStaleLine(f crawler.StaleReferenceFinding) string {
	return fmt.Sprintf("%s - [%s]", f.URL, strings.Join(f.Matches, ", "))
}
