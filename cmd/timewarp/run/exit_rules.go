package run

import (
	"errors"

	"github.com/flarebyte/timewarp/internal/failure"
)

const (
	exitCodeSuccess   = 0
	exitCodeFatal     = 1
	exitCodeUsage     = 2
	exitCodeTimeout   = 3
	exitCodeWriteBack = 4
)

type runExitError struct {
	code int
	err  error
}

func (e runExitError) Error() string { return e.err.Error() }
func (e runExitError) ExitCode() int { return e.code }
func (e runExitError) Unwrap() error { return e.err }

// exitCodeFor maps an error kind to the process exit code.
func exitCodeFor(err error) int {
	if err == nil {
		return exitCodeSuccess
	}
	switch failure.KindOf(err) {
	case failure.Usage:
		return exitCodeUsage
	case failure.Timeout:
		return exitCodeTimeout
	case failure.WriteBackFailure:
		return exitCodeWriteBack
	default:
		return exitCodeFatal
	}
}

// WithExitCode attaches the exit code matching err's kind.
func WithExitCode(err error) error { return evaluateRunExit(err) }

func evaluateRunExit(err error) error {
	if err == nil {
		return nil
	}
	var already runExitError
	if errors.As(err, &already) {
		return err
	}
	return runExitError{code: exitCodeFor(err), err: err}
}
