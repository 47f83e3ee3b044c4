package logging

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// RotatingFileWriter is an io.WriteCloser that rolls the file over once it
// would grow past maxSize bytes. Backups are named crawler.1.log,
// crawler.2.log and so on, .1 being the newest. A maxSize of zero or less
// disables rotation.
type RotatingFileWriter struct {
	mu         sync.Mutex
	file       *os.File
	filePath   string
	maxSize    int64
	maxBackups int
	size       int64
}

// NewRotatingFileWriter opens filePath for appending, creating its directory
func NewRotatingFileWriter(filePath string, maxSize int64, maxBackups int) (*RotatingFileWriter, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	w := &RotatingFileWriter{
		filePath:   filePath,
		maxSize:    maxSize,
		maxBackups: maxBackups,
	}

	if err := w.openFile(); err != nil {
		return nil, err
	}

	info, err := w.file.Stat()
	if err != nil {
		_ = w.file.Close()
		return nil, err
	}
	w.size = info.Size()

	return w, nil
}

// Write implements io.Writer. A single record is never split across files.
func (w *RotatingFileWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, fs.ErrClosed
	}

	if w.maxSize > 0 && w.size > 0 && w.size+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}

	n, err = w.file.Write(p)
	w.size += int64(n)
	return n, err
}

// Close closes the file
func (w *RotatingFileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

func (w *RotatingFileWriter) openFile() error {
	file, err := os.OpenFile(w.filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	w.file = file
	return nil
}

// rotate shifts every backup up by one, drops the oldest and starts a fresh
// file. Without backups the current file is simply truncated.
func (w *RotatingFileWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return err
	}
	w.file = nil

	if w.maxBackups <= 0 {
		if err := os.Truncate(w.filePath, 0); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	} else {
		if err := os.Remove(w.backupName(w.maxBackups)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		for i := w.maxBackups - 1; i >= 1; i-- {
			if err := os.Rename(w.backupName(i), w.backupName(i+1)); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
		}
		if err := os.Rename(w.filePath, w.backupName(1)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	if err := w.openFile(); err != nil {
		return err
	}
	w.size = 0
	return nil
}

// backupName returns dir/name.<index>.ext for the log file
func (w *RotatingFileWriter) backupName(index int) string {
	ext := filepath.Ext(w.filePath)
	return fmt.Sprintf("%s.%d%s", w.filePath[:len(w.filePath)-len(ext)], index, ext)
}

var _ io.WriteCloser = (*RotatingFileWriter)(nil)
