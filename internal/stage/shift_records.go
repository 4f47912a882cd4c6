package stage

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/flarebyte/timewarp/internal/failure"
	"github.com/flarebyte/timewarp/internal/records"
	"github.com/flarebyte/timewarp/internal/resource"
	"github.com/flarebyte/timewarp/internal/writeback"
)

const shiftRecordsStage = "shift-records"

// fileResult is the outcome of one file, kept by index so parallel runs
// report in discovery order.
type fileResult struct {
	rec     Record
	tally   writeback.Summary
	envErrs []Error
}

// shift-records: stream every discovered file, shift each kept resource and
// send the changed ones back. Failed PUTs are counted and reported without
// stopping the run; a file that cannot be read or classified stops the run
// unless errors.mode is keep-going.
func shiftRecordsRunner(ctx context.Context, in Envelope, deps Deps) (Envelope, error) {
	s, err := settingsOf(in.Meta)
	if err != nil {
		return Envelope{}, err
	}
	driver := writeback.New(deps.HTTP, s.BaseURL, writeback.Options{
		DryRun:    s.DryRun,
		RateLimit: s.RateLimit,
		Logger:    deps.logger(),
	})
	p := shiftPass{
		days:      s.Days,
		filter:    s.FilterInline,
		timeoutMs: s.FilterTimeoutMs,
		keepGoing: keepGoing(in.Meta),
		driver:    driver,
		deps:      deps,
	}

	results := make([]fileResult, len(in.Records))
	workers := getWorkers(s.Workers, len(in.Records))
	if workers <= 1 {
		for i, r := range in.Records {
			res, err := p.file(ctx, r)
			if err != nil {
				return Envelope{}, err
			}
			results[i] = res
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for i, r := range in.Records {
			g.Go(func() error {
				res, err := p.file(gctx, r)
				if err != nil {
					return err
				}
				results[i] = res
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return Envelope{}, err
		}
	}

	out := in
	out.Records = make([]Record, 0, len(results))
	sum := &SummaryMeta{Files: len(results)}
	var total writeback.Summary
	var envErrs []Error
	for _, res := range results {
		out.Records = append(out.Records, res.rec)
		envErrs = append(envErrs, res.envErrs...)
		sum.add(res.rec)
		total.Merge(res.tally)
	}
	out.Meta.Summary = sum
	addErrors(&out, envErrs)
	deps.logger().Infof("shifted %d file(s): %d record(s), %d submitted, %d changed, %d sent, %d failed",
		sum.Files, sum.Records, total.Total(), total.Changed(), total.Sent, total.Failed)
	return out, nil
}

type shiftPass struct {
	days      int
	filter    string
	timeoutMs int
	keepGoing bool
	driver    *writeback.Driver
	deps      Deps
}

// file processes one record file. The returned error is fatal for the run;
// in keep-going mode it is folded into the result instead.
func (p shiftPass) file(ctx context.Context, r Record) (fileResult, error) {
	res := fileResult{rec: r}
	err := p.stream(ctx, &res)
	if err == nil {
		return res, nil
	}
	if !p.keepGoing || ctx.Err() != nil {
		return fileResult{}, err
	}
	msg := failure.Sanitize(err.Error())
	res.rec.Error = &RecError{Stage: shiftRecordsStage, Message: msg}
	res.envErrs = append(res.envErrs, Error{Stage: shiftRecordsStage, Locator: r.Locator, Message: msg})
	p.deps.logger().Warnf("skipping %s: %s", r.Locator, msg)
	return res, nil
}

func (p shiftPass) stream(ctx context.Context, res *fileResult) error {
	rec := &res.rec
	f, err := newRecordFilter(p.filter, p.timeoutMs, rec.Locator)
	if err != nil {
		return failure.New(failure.Usage, shiftRecordsStage, err)
	}
	defer f.Close()

	st, err := records.Open(rec.Path)
	if err != nil {
		return err
	}
	defer st.Close()
	rec.Format = st.Format().String()
	p.deps.logger().Debugf("%s: %s", rec.Locator, rec.Format)

	tally := &res.tally
	defer func() {
		rec.Unchanged = tally.Unchanged
		rec.Sent = tally.Sent
		rec.DryRun = tally.DryRun
		rec.Failed = tally.Failed
	}()
	for st.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		at := rec.Locator + ":" + strconv.Itoa(st.Line())
		r, err := resource.Build(st.Record())
		if err != nil {
			return fmt.Errorf("%s: %w", at, err)
		}
		rec.Records++
		keep, err := f.Keep(ctx, r)
		if err != nil {
			return fmt.Errorf("%s: %w", at, err)
		}
		if !keep {
			rec.Filtered++
			continue
		}
		shifted, changed := r.Shift(p.days)
		outcome, err := p.driver.Submit(ctx, shifted, changed)
		tally.Record(outcome, err)
		if outcome == writeback.Failed {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			msg := failure.Sanitize(err.Error())
			res.envErrs = append(res.envErrs, Error{Stage: shiftRecordsStage, Locator: at, Message: msg})
			p.deps.logger().Warnf("write-back failed at %s: %s", at, msg)
		}
	}
	return st.Err()
}

func (s *SummaryMeta) add(r Record) {
	s.Records += r.Records
	s.Filtered += r.Filtered
	s.Unchanged += r.Unchanged
	s.Changed += r.Changed()
	s.Sent += r.Sent
	s.DryRun += r.DryRun
	s.Failed += r.Failed
	if r.Error != nil {
		s.FileErrs++
	}
}

func getWorkers(configured, files int) int {
	if configured < 1 {
		return 1
	}
	if configured > files {
		return files
	}
	return configured
}

func init() { Register(shiftRecordsStage, shiftRecordsRunner) }
