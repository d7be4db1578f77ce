package source

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

const maxLineSize = 1024 * 1024 // 1 MiB

// Source yields lines from a text stream one at a time. It owns the
// underlying file when opened from a path and nothing when wrapped around a
// caller-supplied reader.
type Source struct {
	scanner *bufio.Scanner
	closer  io.Closer
	path    string
}

// Open opens the file at path for line-by-line reading.
func Open(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source %s: %w", path, err)
	}
	src := FromReader(f)
	src.closer = f
	src.path = path
	return src, nil
}

// FromReader wraps an arbitrary reader as a line source. The caller keeps
// ownership of the reader.
func FromReader(r io.Reader) *Source {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	return &Source{scanner: scanner}
}

// Next returns the next line without its terminator. The second return
// value is false once the stream is exhausted or a read error occurred;
// Err distinguishes the two.
func (s *Source) Next() (string, bool) {
	if s == nil || s.scanner == nil {
		return "", false
	}
	if !s.scanner.Scan() {
		return "", false
	}
	return s.scanner.Text(), true
}

// Err reports the first non-EOF error encountered while reading.
func (s *Source) Err() error {
	if s == nil || s.scanner == nil {
		return nil
	}
	return s.scanner.Err()
}

// Path returns the path the source was opened from, or an empty string for
// reader-backed sources.
func (s *Source) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Close releases the underlying file if the source owns one.
func (s *Source) Close() error {
	if s == nil || s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
