// Package scrollback is a per-pane append-only raw byte log, following
// original_source's terminal/scrollback.rs (ScrollbackFile).
package scrollback

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"sync"

	"github.com/akiojin/gwtermd/internal/termerr"
)

// Log persists a pane's raw PTY output to disk and serves ranged line reads.
// It is not a rendered buffer; rendering is the screen package's job.
type Log struct {
	mu        sync.Mutex
	filePath  string
	file      *os.File
	writer    *bufio.Writer
	lineCount int
}

// Open creates (or appends to) the scrollback file for paneID under dataDir,
// i.e. dataDir/<pane_id>.log. dataDir is created if absent.
func Open(dataDir, paneID string) (*Log, error) {
	return OpenPath(filepath.Join(dataDir, paneID+".log"))
}

// OpenPath creates a scrollback log at an explicit path. Useful for tests.
func OpenPath(path string) (*Log, error) {
	if parent := filepath.Dir(path); parent != "" {
		if err := os.MkdirAll(parent, 0700); err != nil {
			return nil, termerr.NewScrollbackOpenFailed("create directory: %v", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, termerr.NewScrollbackOpenFailed("open file: %v", err)
	}

	return &Log{
		filePath: path,
		file:     f,
		writer:   bufio.NewWriter(f),
	}, nil
}

// Write appends data to the log, counting newlines into the running total.
func (l *Log) Write(data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.writer.Write(data); err != nil {
		return termerr.NewScrollbackWriteFailed("write: %v", err)
	}
	for _, b := range data {
		if b == '\n' {
			l.lineCount++
		}
	}
	return nil
}

// Flush forces buffered bytes to disk.
func (l *Log) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.writer.Flush(); err != nil {
		return termerr.NewScrollbackWriteFailed("flush: %v", err)
	}
	return nil
}

// LineCount returns the number of complete lines written so far.
func (l *Log) LineCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lineCount
}

// FilePath returns the path to the scrollback file.
func (l *Log) FilePath() string {
	return l.filePath
}

// Close flushes and releases the underlying file handle. It does not delete
// the file; use Cleanup for that.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.writer.Flush()
	return l.file.Close()
}

// ReadLines returns up to count consecutive whole lines starting at the
// 0-based start index, with trailing newlines stripped. A trailing line
// with no newline yet is not returned. If start is beyond
// the end of the file, returns an empty (non-nil) slice, never an error.
func (l *Log) ReadLines(start, count int) ([]string, error) {
	f, err := os.Open(l.filePath)
	if err != nil {
		return nil, termerr.NewScrollbackWriteFailed("open for read: %v", err)
	}
	defer f.Close()

	// count may be huge (callers passing an effectively-unbounded read); cap
	// the initial capacity and let append grow it from there.
	const maxInitialCapacity = 4096
	initialCapacity := count
	if initialCapacity > maxInitialCapacity {
		initialCapacity = maxInitialCapacity
	}
	if initialCapacity < 0 {
		initialCapacity = 0
	}
	lines := make([]string, 0, initialCapacity)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	scanner.Split(func(data []byte, atEOF bool) (int, []byte, error) {
		if atEOF && len(data) > 0 && bytes.IndexByte(data, '\n') < 0 {
			// Unterminated tail: consume it without yielding a line.
			return len(data), nil, nil
		}
		return bufio.ScanLines(data, atEOF)
	})

	idx := 0
	for scanner.Scan() {
		if idx >= start && len(lines) < count {
			lines = append(lines, scanner.Text())
		}
		idx++
		if len(lines) >= count {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, termerr.NewScrollbackWriteFailed("scan: %v", err)
	}
	return lines, nil
}

// Cleanup removes the scrollback file for paneID under dataDir. Silent if
// the file does not exist.
func Cleanup(dataDir, paneID string) error {
	path := filepath.Join(dataDir, paneID+".log")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return termerr.NewScrollbackWriteFailed("remove %s: %v", path, err)
	}
	return nil
}

// CleanupAll removes every scrollback file under dataDir. Silent if the
// directory does not exist.
func CleanupAll(dataDir string) error {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return termerr.NewScrollbackWriteFailed("read dir %s: %v", dataDir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dataDir, entry.Name())
		if err := os.Remove(path); err != nil {
			return termerr.NewScrollbackWriteFailed("remove %s: %v", path, err)
		}
	}
	return nil
}
