// Package records detects whether an exported file holds one JSON document or
// newline-delimited JSON, and streams its records one at a time.
package records

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/flarebyte/timewarp/internal/failure"
)

// Format is the layout of a record file.
type Format int

const (
	// JSON is a file holding a single object or array.
	JSON Format = iota + 1
	// NDJSON is a file holding one JSON value per non-blank line.
	NDJSON
)

func (f Format) String() string {
	switch f {
	case JSON:
		return "JSON"
	case NDJSON:
		return "NDJSON"
	default:
		return "unknown"
	}
}

// ErrInvalidFormat is wrapped by every classification failure.
var ErrInvalidFormat = errors.New("invalid JSON or NDJSON")

// Classify reports the format of the file at path. The whole-file parse is
// tried first, so a one-line file holding a single object is JSON.
func Classify(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}
	defer f.Close()

	whole, err := isSingleDocument(f)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}
	if whole {
		return JSON, nil
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}
	if err := validateLines(f, path); err != nil {
		return 0, err
	}
	return NDJSON, nil
}

// isSingleDocument reports whether r holds exactly one JSON object or array,
// optionally surrounded by whitespace. Only I/O problems are returned as errors.
func isSingleDocument(r io.Reader) (bool, error) {
	dec := json.NewDecoder(r)
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		if isSyntaxProblem(err) {
			return false, nil
		}
		return false, err
	}
	if len(raw) == 0 || (raw[0] != '{' && raw[0] != '[') {
		return false, nil
	}
	rest := bufio.NewReader(io.MultiReader(dec.Buffered(), r))
	for {
		b, err := rest.ReadByte()
		if err == io.EOF {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		if !isSpace(b) {
			return false, nil
		}
	}
}

func validateLines(r io.Reader, path string) error {
	br := bufio.NewReader(r)
	line := 0
	for {
		b, readErr := br.ReadBytes('\n')
		if len(b) > 0 {
			line++
			trimmed := bytes.TrimSpace(b)
			if len(trimmed) > 0 && !json.Valid(trimmed) {
				return failure.WithPath(failure.MalformedInput, "classify", path,
					fmt.Errorf("%w: line %d: %s", ErrInvalidFormat, line, excerpt(trimmed)))
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("read %s: %w", path, readErr)
		}
	}
}

func isSyntaxProblem(err error) bool {
	var se *json.SyntaxError
	var ue *json.UnmarshalTypeError
	return errors.As(err, &se) || errors.As(err, &ue) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

const maxExcerpt = 120

func excerpt(b []byte) string {
	if len(b) > maxExcerpt {
		return fmt.Sprintf("%q...", b[:maxExcerpt])
	}
	return fmt.Sprintf("%q", b)
}
