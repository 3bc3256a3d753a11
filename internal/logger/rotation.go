package logger

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const rotatedTimeFormat = "20060102-150405.000"

// RotatingWriter is a log file writer that rotates by size and prunes by age.
// It is safe for concurrent use.
type RotatingWriter struct {
	filename string
	maxSize  int64 // bytes
	maxAge   int   // days
	compress bool

	mu   sync.Mutex
	file *os.File
	size int64
	wg   sync.WaitGroup
}

// NewRotatingWriter creates a new rotating writer
func NewRotatingWriter(filename string, maxSizeMB int, maxAge int, compress bool) (*RotatingWriter, error) {
	if maxSizeMB <= 0 {
		return nil, fmt.Errorf("max size must be positive, got %d", maxSizeMB)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	w := &RotatingWriter{
		filename: filename,
		maxSize:  int64(maxSizeMB) * 1024 * 1024,
		maxAge:   maxAge,
		compress: compress,
	}
	if err := w.open(); err != nil {
		return nil, err
	}

	w.prune()

	return w, nil
}

func (w *RotatingWriter) open() error {
	file, err := os.OpenFile(w.filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}

	w.file = file
	w.size = info.Size()
	return nil
}

// Write writes p to the log file, rotating first if p would exceed the size limit
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, os.ErrClosed
	}

	if w.size > 0 && w.size+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

// Close closes the current log file and waits for pending compression
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	var err error
	if w.file != nil {
		err = w.file.Close()
		w.file = nil
	}
	w.mu.Unlock()

	w.wg.Wait()
	return err
}

// rotate must be called with w.mu held
func (w *RotatingWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return err
	}
	w.file = nil

	rotated := w.filename + "." + time.Now().Format(rotatedTimeFormat)
	if err := os.Rename(w.filename, rotated); err != nil {
		return err
	}

	if w.compress {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			_ = compressFile(rotated)
		}()
	}

	return w.open()
}

// compressFile gzips filename to filename.gz and removes the original
func compressFile(filename string) error {
	src, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(filename+".gz", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}

	gzw := gzip.NewWriter(dst)
	if _, err := io.Copy(gzw, src); err != nil {
		_ = gzw.Close()
		_ = dst.Close()
		return err
	}
	if err := gzw.Close(); err != nil {
		_ = dst.Close()
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}

	return os.Remove(filename)
}

// prune removes rotated files older than maxAge days
func (w *RotatingWriter) prune() int {
	if w.maxAge <= 0 {
		return 0
	}

	files, err := filepath.Glob(w.filename + ".*")
	if err != nil {
		return 0
	}

	cutoff := time.Now().AddDate(0, 0, -w.maxAge)
	removed := 0
	for _, file := range files {
		if !strings.HasPrefix(filepath.Base(file), filepath.Base(w.filename)+".") {
			continue
		}
		info, err := os.Stat(file)
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if os.Remove(file) == nil {
			removed++
		}
	}
	return removed
}
