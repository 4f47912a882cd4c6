package run

import (
	"context"

	"github.com/flarebyte/timewarp/internal/stage"
)

// shiftStages is the fixed pipeline of `timewarp shift`.
var shiftStages = []string{
	"validate-settings",
	"probe-store",
	"bulk-export",
	"discover-files",
	"shift-records",
	"write-report",
}

// exportStages is the pipeline of `timewarp export`.
var exportStages = []string{
	"validate-settings",
	"probe-store",
	"bulk-export",
}

// runStages executes the stages in order, stopping at the first error. The
// envelope reached so far is returned alongside the error.
func runStages(ctx context.Context, in stage.Envelope, deps stage.Deps, stages []string, progress *progressReporter) (stage.Envelope, error) {
	out := in
	for _, name := range stages {
		if out.Meta != nil {
			out.Meta.Stage = name
		}
		next, err := progress.runStage(ctx, name, out, deps)
		if err != nil {
			return out, err
		}
		out = next
	}
	return out, nil
}
