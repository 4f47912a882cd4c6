package records

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/flarebyte/timewarp/internal/document"
	"github.com/flarebyte/timewarp/internal/failure"
)

// Stream yields the records of one file in file order. It owns the file
// handle until Close and can be iterated once.
//
//	s, err := records.Open(path)
//	...
//	defer s.Close()
//	for s.Next() {
//		use(s.Record())
//	}
//	if err := s.Err(); err != nil { ... }
type Stream struct {
	path   string
	format Format
	f      *os.File
	r      *bufio.Reader
	line   int
	cur    any
	err    error
	done   bool
}

// Open classifies the file at path and returns a stream over its records.
func Open(path string) (*Stream, error) {
	format, err := Classify(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return &Stream{path: path, format: format, f: f, r: bufio.NewReader(f)}, nil
}

// Format returns the detected layout of the file.
func (s *Stream) Format() Format { return s.format }

// Path returns the file being read.
func (s *Stream) Path() string { return s.path }

// Line returns the line of the current record; JSON files report 1.
func (s *Stream) Line() int { return s.line }

// Record returns the record produced by the last successful Next.
func (s *Stream) Record() any { return s.cur }

// Err returns the error that stopped the stream, if any.
func (s *Stream) Err() error { return s.err }

// Next advances to the next record. It returns false at the end of the file or
// on the first record that fails to parse.
func (s *Stream) Next() bool {
	if s.done {
		return false
	}
	if s.format == JSON {
		return s.nextDocument()
	}
	return s.nextLine()
}

func (s *Stream) nextDocument() bool {
	s.done = true
	b, err := io.ReadAll(s.r)
	if err != nil {
		s.err = fmt.Errorf("read %s: %w", s.path, err)
		return false
	}
	v, err := document.Decode(b)
	if err != nil {
		s.err = failure.WithPath(failure.MalformedInput, "parse", s.path, err)
		return false
	}
	s.line = 1
	s.cur = v
	return true
}

func (s *Stream) nextLine() bool {
	for {
		b, readErr := s.r.ReadBytes('\n')
		if len(b) > 0 {
			s.line++
			trimmed := bytes.TrimSpace(b)
			if len(trimmed) > 0 {
				v, err := document.Decode(trimmed)
				if err != nil {
					s.done = true
					s.err = failure.WithPath(failure.MalformedInput, "parse", s.path,
						fmt.Errorf("line %d: %v: %s", s.line, err, excerpt(trimmed)))
					return false
				}
				s.cur = v
				if readErr == io.EOF {
					s.done = true
				}
				return true
			}
		}
		if readErr == io.EOF {
			s.done = true
			return false
		}
		if readErr != nil {
			s.done = true
			s.err = fmt.Errorf("read %s: %w", s.path, readErr)
			return false
		}
	}
}

// Close releases the file handle.
func (s *Stream) Close() error {
	s.done = true
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

// Each streams every record of path into fn, stopping at the first error.
func Each(path string, fn func(rec any, line int) error) error {
	s, err := Open(path)
	if err != nil {
		return err
	}
	defer s.Close()
	for s.Next() {
		if err := fn(s.Record(), s.Line()); err != nil {
			return err
		}
	}
	return s.Err()
}
