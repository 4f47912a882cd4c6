package stage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/flarebyte/timewarp/internal/failure"
	"github.com/flarebyte/timewarp/internal/report"
	"github.com/flarebyte/timewarp/internal/resource"
	"github.com/flarebyte/timewarp/internal/writeback"
)

const (
	writeReportStage = "write-report"
	reportKind       = "timewarp-run"
)

// runSummary is the one-line JSON printed to stdout at the end of a run.
type runSummary struct {
	BaseURL string       `json:"baseUrl"`
	Days    int          `json:"days"`
	Job     *JobMeta     `json:"job,omitempty"`
	Summary *SummaryMeta `json:"summary"`
	Errors  int          `json:"errors"`
}

// write-report: print the run summary, write the optional YAML report, then
// turn partial failure into an error so the exit code reflects it.
func writeReportRunner(_ context.Context, in Envelope, deps Deps) (Envelope, error) {
	s, err := settingsOf(in.Meta)
	if err != nil {
		return Envelope{}, err
	}
	sum := in.Meta.Summary
	if sum == nil {
		sum = &SummaryMeta{}
	}
	SortEnvelopeErrors(&in)

	line, err := encodeJSONCompact(runSummary{
		BaseURL: s.BaseURL,
		Days:    s.Days,
		Job:     in.Meta.Job,
		Summary: sum,
		Errors:  len(in.Errors),
	})
	if err != nil {
		return Envelope{}, err
	}
	stdout := deps.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	if _, err := stdout.Write(line); err != nil {
		return Envelope{}, err
	}

	if s.ReportPath != "" {
		if err := report.Write(s.ReportPath, reportKind, reportBody(in, s.BaseURL, s.Days, s.WorkDir, sum)); err != nil {
			return Envelope{}, failure.WithPath(failure.Unknown, writeReportStage, s.ReportPath, err)
		}
		deps.logger().Infof("report written to %s", s.ReportPath)
	}

	if err := sum.outcomes().Err(); err != nil {
		return in, err
	}
	if sum.FileErrs > 0 {
		return in, failure.New(failure.Unknown, shiftRecordsStage,
			fmt.Errorf("%d of %d files failed", sum.FileErrs, sum.Files))
	}
	return in, nil
}

func reportBody(in Envelope, baseURL string, days int, workDir string, sum *SummaryMeta) map[string]any {
	body := map[string]any{
		"baseUrl": baseURL,
		"days":    days,
		"workDir": workDir,
		// Types with their own field exclusions; every other type shifts all dates.
		"specializedTypes": resource.Types(),
		"summary": map[string]any{
			"files":      sum.Files,
			"records":    sum.Records,
			"filtered":   sum.Filtered,
			"unchanged":  sum.Unchanged,
			"changed":    sum.Changed,
			"sent":       sum.Sent,
			"dryRun":     sum.DryRun,
			"failed":     sum.Failed,
			"fileErrors": sum.FileErrs,
		},
	}
	if j := in.Meta.Job; j != nil {
		body["job"] = map[string]any{
			"state":         j.State,
			"pollUrl":       j.PollURL,
			"waitedSeconds": j.WaitedSeconds,
			"progress":      j.Progress,
		}
	} else {
		body["job"] = nil
	}
	files := make([]map[string]any, 0, len(in.Records))
	for _, r := range in.Records {
		f := map[string]any{
			"locator":   r.Locator,
			"format":    r.Format,
			"records":   r.Records,
			"filtered":  r.Filtered,
			"unchanged": r.Unchanged,
			"sent":      r.Sent,
			"dryRun":    r.DryRun,
			"failed":    r.Failed,
		}
		if r.Error != nil {
			f["error"] = r.Error.Message
		}
		files = append(files, f)
	}
	body["files"] = files
	errs := make([]map[string]any, 0, len(in.Errors))
	for _, e := range in.Errors {
		errs = append(errs, map[string]any{"stage": e.Stage, "locator": e.Locator, "message": e.Message})
	}
	body["errors"] = errs
	return body
}

// outcomes restates the write-back counts of a run.
func (s *SummaryMeta) outcomes() writeback.Summary {
	return writeback.Summary{Unchanged: s.Unchanged, Sent: s.Sent, DryRun: s.DryRun, Failed: s.Failed}
}

func encodeJSONCompact(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func init() { Register(writeReportStage, writeReportRunner) }
