package bulkexport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/flarebyte/timewarp/internal/failure"
	"github.com/flarebyte/timewarp/internal/storeclient"
)

const (
	mediaFHIRJSON   = "application/fhir+json"
	mediaFHIRNDJSON = "application/fhir+ndjson"
	minRetryAfter   = time.Second
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Client runs export jobs against one store.
type Client struct {
	http   *resty.Client
	base   string
	logger *zap.SugaredLogger
	sleep  SleepFunc
	now    func() time.Time
}

// Option customizes a Client.
type Option func(*Client)

// WithSleep replaces the poll wait, mainly for tests.
func WithSleep(fn SleepFunc) Option {
	return func(c *Client) { c.sleep = fn }
}

// WithClock replaces the clock used for HTTP-date Retry-After values.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New returns a Client for the store at baseURL.
func New(hc *resty.Client, baseURL string, logger *zap.SugaredLogger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	c := &Client{
		http:   hc,
		base:   strings.TrimRight(baseURL, "/"),
		logger: logger,
		sleep:  sleepContext,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run kicks off an export, waits for it, and downloads every output file
// into dir. The returned job is in a terminal state.
func (c *Client) Run(ctx context.Context, req Request, dir string) (*Job, error) {
	job, err := c.Kickoff(ctx, req)
	if err != nil {
		return job, err
	}
	if err := c.Poll(ctx, job); err != nil {
		return job, err
	}
	if err := c.Download(ctx, job, dir); err != nil {
		return job, err
	}
	return job, nil
}

// Kickoff starts an export and returns a job ready to poll.
func (c *Client) Kickoff(ctx context.Context, req Request) (*Job, error) {
	job := &Job{Request: req, State: Idle}
	r := c.http.R().
		SetHeader("Accept", mediaFHIRJSON).
		SetHeader("Prefer", "respond-async")
	if req.NoCache {
		c.logger.Info("server-side caching disabled")
		r.SetHeader("Cache-Control", "no-cache")
	}
	if len(req.Types) > 0 {
		r.SetQueryParam("_type", strings.Join(req.Types, ","))
	}
	if req.Since != "" {
		r.SetQueryParam("_since", req.Since)
	}

	callCtx, cancel := storeclient.CallContext(ctx)
	defer cancel()
	res, err := r.SetContext(callCtx).Get(c.base + "/$export")
	if err != nil {
		return job, job.fail(Failed, failure.New(failure.TransportFailure, "kickoff", err))
	}
	if !res.IsSuccess() {
		msg := fmt.Sprintf("status %d: %s", res.StatusCode(), storeclient.Excerpt(res.Body()))
		if res.StatusCode() == http.StatusBadRequest {
			msg += " (is bulk export enabled on the store?)"
		}
		return job, job.fail(Failed, failure.New(failure.TransportFailure, "kickoff", errors.New(msg)))
	}
	location := res.Header().Get("Content-Location")
	if location == "" {
		return job, job.fail(Failed, failure.New(failure.TransportFailure, "kickoff", fmt.Errorf("status %d without Content-Location", res.StatusCode())))
	}
	job.State = KickedOff
	pollURL, err := ResolveURL(location, c.base)
	if err != nil {
		return job, job.fail(Failed, err)
	}
	job.PollURL = pollURL
	c.logger.Infof("export started, polling %s", pollURL)
	return job, nil
}

// Poll requests the status resource until the store stops asking for a
// wait, then parses the manifest. Exceeding the job's maximum cumulative
// wait moves it to TimedOut.
func (c *Client) Poll(ctx context.Context, job *Job) error {
	if job.State == Idle || job.State.Terminal() {
		return failure.New(failure.Unknown, "poll", fmt.Errorf("job is %s", job.State))
	}
	job.State = Polling
	maxWait := job.Request.maxWait()
	for {
		res, err := c.status(ctx, job.PollURL)
		if err != nil {
			return job.fail(Failed, failure.New(failure.TransportFailure, "poll", err))
		}
		if !res.IsSuccess() {
			return job.fail(Failed, failure.New(failure.TransportFailure, "poll",
				fmt.Errorf("status %d: %s", res.StatusCode(), storeclient.Excerpt(res.Body()))))
		}

		wait, more, err := retryAfter(res.Header().Get("Retry-After"), c.now())
		if err != nil {
			return job.fail(Failed, failure.New(failure.TransportFailure, "poll", err))
		}
		if !more {
			return c.complete(job, res.Body())
		}
		if p := res.Header().Get("X-Progress"); p != "" {
			job.Progress = p
			c.logger.Infof("progress: %s", p)
		}
		if job.Waited+wait > maxWait {
			return job.fail(TimedOut, failure.New(failure.Timeout, "poll",
				fmt.Errorf("export not ready after waiting %s (limit %s)", job.Waited, maxWait)))
		}
		c.logger.Infof("waiting %s", wait)
		if err := c.sleep(ctx, wait); err != nil {
			return job.fail(Failed, err)
		}
		job.Waited += wait
	}
}

func (c *Client) status(ctx context.Context, pollURL string) (*resty.Response, error) {
	ctx, cancel := storeclient.CallContext(ctx)
	defer cancel()
	return c.http.R().
		SetContext(ctx).
		SetHeader("Accept", mediaFHIRJSON).
		Get(pollURL)
}

// retryAfter parses a Retry-After value. Absent or zero means the export is
// complete.
func retryAfter(v string, now time.Time) (time.Duration, bool, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0, false, nil
		}
		return time.Duration(secs) * time.Second, true, nil
	}
	at, err := http.ParseTime(v)
	if err != nil {
		return 0, false, fmt.Errorf("invalid Retry-After %q", v)
	}
	d := at.Sub(now).Round(time.Second)
	if d < minRetryAfter {
		d = minRetryAfter
	}
	return d, true, nil
}

func (c *Client) complete(job *Job, body []byte) error {
	var m Manifest
	if err := json.Unmarshal(body, &m); err != nil {
		return job.fail(Failed, failure.New(failure.TransportFailure, "manifest",
			fmt.Errorf("export completed but response is not JSON (likely no resources were exported): %s", storeclient.Excerpt(body))))
	}
	for _, e := range m.Errors {
		c.logger.Warnf("export error: %v", e)
	}
	for _, e := range m.Error {
		c.logger.Warnf("export error file: %s %s", e.Type, e.URL)
	}
	job.Manifest = &m
	if len(m.Output) == 0 {
		return job.fail(Failed, failure.New(failure.TransportFailure, "manifest",
			fmt.Errorf("no files listed in completion response: %s", storeclient.Excerpt(body))))
	}
	job.State = Completed
	c.logger.Infof("export complete: %d file(s)", len(m.Output))
	return nil
}

// Download streams every manifest output file into dir.
func (c *Client) Download(ctx context.Context, job *Job, dir string) error {
	if job.State != Completed || job.Manifest == nil {
		return failure.New(failure.Unknown, "download", fmt.Errorf("job is %s", job.State))
	}
	for _, out := range job.Manifest.Output {
		link, err := ResolveURL(out.URL, c.base)
		if err != nil {
			return err
		}
		target, err := LocalName(dir, link, out.Type)
		if err != nil {
			return err
		}
		c.logger.Infof("downloading: %s", link)
		if err := c.fetch(ctx, link, target); err != nil {
			return err
		}
		c.logger.Infof("saved to: %s", target)
		job.Files = append(job.Files, target)
	}
	return nil
}

// fetch copies the body of link into target without buffering it; a partial
// file never replaces target. Only ctx bounds the transfer, so large files
// may stream for as long as the run allows.
func (c *Client) fetch(ctx context.Context, link, target string) (err error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", mediaFHIRNDJSON).
		SetDoNotParseResponse(true).
		Get(link)
	if err != nil {
		return failure.WithPath(failure.TransportFailure, "download", link, err)
	}
	body := res.RawBody()
	defer body.Close()
	if !res.IsSuccess() {
		b, _ := io.ReadAll(io.LimitReader(body, 4096))
		return failure.WithPath(failure.TransportFailure, "download", link,
			fmt.Errorf("status %d: %s", res.StatusCode(), storeclient.Excerpt(b)))
	}

	part := target + ".part"
	f, err := os.Create(part)
	if err != nil {
		return failure.WithPath(failure.Usage, "download", target, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(part)
		}
	}()
	if _, err = io.Copy(f, body); err != nil {
		_ = f.Close()
		return failure.WithPath(failure.TransportFailure, "download", link, err)
	}
	if err = f.Close(); err != nil {
		return failure.WithPath(failure.Usage, "download", target, err)
	}
	if err = os.Rename(part, target); err != nil {
		return failure.WithPath(failure.Usage, "download", target, err)
	}
	return nil
}
