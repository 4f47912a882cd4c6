package stage

import (
	"cmp"
	"slices"

	"github.com/flarebyte/timewarp/internal/failure"
)

// SortEnvelopeErrors orders errors by stage, then locator, then message, so
// two runs over the same inputs report identically.
func SortEnvelopeErrors(env *Envelope) {
	if env == nil {
		return
	}
	slices.SortStableFunc(env.Errors, func(a, b Error) int {
		return cmp.Or(
			cmp.Compare(a.Stage, b.Stage),
			cmp.Compare(a.Locator, b.Locator),
			cmp.Compare(a.Message, b.Message),
		)
	})
}

// addErrors appends errs with single-line messages and restores the order.
func addErrors(env *Envelope, errs []Error) {
	for _, e := range errs {
		e.Message = failure.Sanitize(e.Message)
		env.Errors = append(env.Errors, e)
	}
	SortEnvelopeErrors(env)
}
