// Package failure defines the closed set of error kinds produced by timewarp,
// so callers can branch on the kind instead of on message text.
package failure

import (
	"errors"
	"strings"
)

// Kind classifies an error.
type Kind int

const (
	// Unknown is the zero kind for errors that did not originate here.
	Unknown Kind = iota
	// Usage covers bad arguments and unreachable inputs detected before work starts.
	Usage
	// MalformedInput covers files that are neither JSON nor NDJSON and records that fail to parse.
	MalformedInput
	// UnknownDiscriminator covers records without a usable resourceType.
	UnknownDiscriminator
	// TransportFailure covers rejected export requests and unusable manifests.
	TransportFailure
	// Timeout covers an export that did not complete within the maximum wait.
	Timeout
	// WriteBackFailure covers a single record the store refused to accept.
	WriteBackFailure
)

func (k Kind) String() string {
	switch k {
	case Usage:
		return "usage"
	case MalformedInput:
		return "malformed-input"
	case UnknownDiscriminator:
		return "unknown-discriminator"
	case TransportFailure:
		return "transport-failure"
	case Timeout:
		return "timeout"
	case WriteBackFailure:
		return "write-back-failure"
	default:
		return "unknown"
	}
}

// Error is a kinded error with optional operation and path context.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	parts := make([]string, 0, 3)
	if e.Op != "" {
		parts = append(parts, e.Op)
	}
	if e.Path != "" {
		parts = append(parts, e.Path)
	}
	msg := "error"
	if e.Err != nil {
		msg = e.Err.Error()
	}
	parts = append(parts, msg)
	return Sanitize(strings.Join(parts, ": "))
}

func (e *Error) Unwrap() error { return e.Err }

// New returns a kinded error.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// WithPath returns a kinded error that names the file it concerns.
func WithPath(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or Unknown.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Sanitize collapses whitespace so a message always fits on one line.
func Sanitize(msg string) string {
	s := strings.Join(strings.Fields(msg), " ")
	if s == "" {
		return "error"
	}
	return s
}
