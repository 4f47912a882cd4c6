package writeback

import (
	"fmt"

	"github.com/flarebyte/timewarp/internal/failure"
)

// Summary counts outcomes over a run. Failures keep every per-record error so
// they can be reported once at the end.
type Summary struct {
	Unchanged int
	Sent      int
	DryRun    int
	Failed    int
	Failures  []error
}

// Record adds one outcome.
func (s *Summary) Record(o Outcome, err error) {
	switch o {
	case Unchanged:
		s.Unchanged++
	case Sent:
		s.Sent++
	case DryRun:
		s.DryRun++
	case Failed:
		s.Failed++
		if err != nil {
			s.Failures = append(s.Failures, err)
		}
	}
}

// Merge adds the counts of o.
func (s *Summary) Merge(o Summary) {
	s.Unchanged += o.Unchanged
	s.Sent += o.Sent
	s.DryRun += o.DryRun
	s.Failed += o.Failed
	s.Failures = append(s.Failures, o.Failures...)
}

// Total is the number of records seen.
func (s Summary) Total() int {
	return s.Unchanged + s.Sent + s.DryRun + s.Failed
}

// Changed is the number of records the shift altered.
func (s Summary) Changed() int {
	return s.Sent + s.DryRun + s.Failed
}

// Err reports partial failure as a single WriteBackFailure, or nil.
func (s Summary) Err() error {
	if s.Failed == 0 {
		return nil
	}
	return failure.New(failure.WriteBackFailure, "write-back",
		fmt.Errorf("%d of %d changed records failed", s.Failed, s.Changed()))
}
