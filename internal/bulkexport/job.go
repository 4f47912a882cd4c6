// Package bulkexport drives a FHIR bulk $export job: kickoff, status polling
// with server-dictated backoff, and streamed download of the output files.
package bulkexport

import (
	"time"
)

// State is the lifecycle position of a Job.
type State int

const (
	Idle State = iota
	KickedOff
	Polling
	Completed
	Failed
	TimedOut
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case KickedOff:
		return "kicked-off"
	case Polling:
		return "polling"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case TimedOut:
		return "timed-out"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Completed || s == Failed || s == TimedOut
}

// DefaultMaxWait bounds the cumulative poll wait when a request sets none.
const DefaultMaxWait = 10 * time.Minute

// Request holds the kickoff parameters.
type Request struct {
	// Types restricts the export to these resource types (_type).
	Types []string
	// Since restricts the export to resources updated at or after it (_since).
	Since string
	// NoCache asks the store to bypass cached exports.
	NoCache bool
	// MaxWait bounds the cumulative Retry-After wait while polling.
	MaxWait time.Duration
}

func (r Request) maxWait() time.Duration {
	if r.MaxWait <= 0 {
		return DefaultMaxWait
	}
	return r.MaxWait
}

// OutputFile is one manifest entry.
type OutputFile struct {
	Type  string `json:"type"`
	URL   string `json:"url"`
	Count int    `json:"count,omitempty"`
}

// Manifest is the completion body of an export job.
type Manifest struct {
	TransactionTime     string       `json:"transactionTime,omitempty"`
	Request             string       `json:"request,omitempty"`
	RequiresAccessToken bool         `json:"requiresAccessToken,omitempty"`
	Output              []OutputFile `json:"output"`
	// Error lists OperationOutcome files as the bulk data protocol names them.
	Error []OutputFile `json:"error,omitempty"`
	// Errors is the inline variant some stores return.
	Errors []any `json:"errors,omitempty"`
}

// Job is the state of one export. It is owned by the Client methods that
// receive it and is not safe for concurrent use.
type Job struct {
	Request  Request
	State    State
	PollURL  string
	Waited   time.Duration
	Progress string
	Manifest *Manifest
	// Files are the local paths written by Download, in manifest order.
	Files []string
	Err   error
}

func (j *Job) fail(state State, err error) error {
	j.State = state
	j.Err = err
	return err
}
