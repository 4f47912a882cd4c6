package bulkexport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"

	"github.com/flarebyte/timewarp/internal/failure"
	"github.com/flarebyte/timewarp/internal/logging"
	"github.com/flarebyte/timewarp/internal/storeclient"
)

const base = "http://store/fhir"

type recorder struct{ waits []time.Duration }

func (r *recorder) sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

func newClient(t *testing.T) (*Client, *httpmock.MockTransport, *recorder, *logging.Buffer) {
	t.Helper()
	logger, out := logging.NewDebugLogger()
	transport := httpmock.NewMockTransport()
	rec := &recorder{}
	hc := storeclient.New(storeclient.Options{AuthToken: "tok", Logger: logger, Transport: transport})
	return New(hc, base+"/", logger, WithSleep(rec.sleep)), transport, rec, out
}

func withHeaders(res *http.Response, kv ...string) *http.Response {
	for i := 0; i+1 < len(kv); i += 2 {
		res.Header.Set(kv[i], kv[i+1])
	}
	return res
}

func kickoffAccepted(location string) httpmock.Responder {
	return httpmock.ResponderFromResponse(withHeaders(httpmock.NewStringResponse(202, ``), "Content-Location", location))
}

func TestRun_KickoffPollDownload(t *testing.T) {
	c, transport, rec, out := newClient(t)
	dir := t.TempDir()

	transport.RegisterResponder(http.MethodGet, base+"/$export", func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "application/fhir+json", req.Header.Get("Accept"))
		assert.Equal(t, "respond-async", req.Header.Get("Prefer"))
		assert.Equal(t, "no-cache", req.Header.Get("Cache-Control"))
		assert.Equal(t, "Bearer tok", req.Header.Get("Authorization"))
		assert.Equal(t, "Patient,Encounter", req.URL.Query().Get("_type"))
		assert.Equal(t, "2024-01-01T00:00:00Z", req.URL.Query().Get("_since"))
		return withHeaders(httpmock.NewStringResponse(202, ``),
			"Content-Location", "http://internal:8080/fhir/$export-poll-status?_jobId=abc"), nil
	})
	transport.RegisterResponder(http.MethodGet, base+"/$export-poll-status?_jobId=abc", httpmock.ResponderFromMultipleResponses([]*http.Response{
		withHeaders(httpmock.NewStringResponse(202, ``), "Retry-After", "5", "X-Progress", "in progress 40%"),
		withHeaders(httpmock.NewStringResponse(202, ``), "Retry-After", "3"),
		httpmock.NewStringResponse(200, `{
			"transactionTime": "2024-11-10T00:00:00Z",
			"output": [
				{"type": "Patient", "url": "http://internal:8080/fhir/Binary/42"},
				{"type": "Encounter", "url": "http://internal:8080/fhir/Binary/43"}
			],
			"errors": [{"issue": "partial"}]
		}`),
	}))
	transport.RegisterResponder(http.MethodGet, base+"/Binary/42", httpmock.NewStringResponder(200, "{\"resourceType\":\"Patient\",\"id\":\"p1\"}\n"))
	transport.RegisterResponder(http.MethodGet, base+"/Binary/43", httpmock.NewStringResponder(200, "{\"resourceType\":\"Encounter\",\"id\":\"e1\"}\n"))

	job, err := c.Run(context.Background(), Request{
		Types:   []string{"Patient", "Encounter"},
		Since:   "2024-01-01T00:00:00Z",
		NoCache: true,
	}, dir)
	assert.NoError(t, err)
	assert.Equal(t, Completed, job.State)
	assert.Equal(t, 8*time.Second, job.Waited)
	assert.Equal(t, []time.Duration{5 * time.Second, 3 * time.Second}, rec.waits)
	assert.Equal(t, "in progress 40%", job.Progress)
	assert.Equal(t, []string{
		filepath.Join(dir, "42.Patient.ndjson"),
		filepath.Join(dir, "43.Encounter.ndjson"),
	}, job.Files)

	b, err := os.ReadFile(filepath.Join(dir, "42.Patient.ndjson"))
	assert.NoError(t, err)
	assert.Equal(t, "{\"resourceType\":\"Patient\",\"id\":\"p1\"}\n", string(b))

	logs := out.String()
	assert.Contains(t, logs, "progress: in progress 40%")
	assert.Contains(t, logs, "export error:")
	assert.Contains(t, logs, "saved to: "+filepath.Join(dir, "43.Encounter.ndjson"))
}

func TestPoll_TimesOut(t *testing.T) {
	c, transport, rec, _ := newClient(t)
	transport.RegisterResponder(http.MethodGet, base+"/$export", kickoffAccepted(base+"/$export-poll-status?_jobId=1"))
	transport.RegisterResponder(http.MethodGet, base+"/$export-poll-status",
		httpmock.ResponderFromResponse(withHeaders(httpmock.NewStringResponse(202, ``), "Retry-After", "5")))

	job, err := c.Run(context.Background(), Request{MaxWait: 12 * time.Second}, t.TempDir())
	assert.True(t, failure.Is(err, failure.Timeout), "got %v", err)
	assert.Equal(t, TimedOut, job.State)
	assert.Len(t, rec.waits, 2)
	assert.Equal(t, 10*time.Second, job.Waited)
}

func TestKickoff_BadRequestHint(t *testing.T) {
	c, transport, _, _ := newClient(t)
	transport.RegisterResponder(http.MethodGet, base+"/$export", httpmock.NewStringResponder(400, `{"resourceType":"OperationOutcome"}`))

	job, err := c.Kickoff(context.Background(), Request{})
	assert.True(t, failure.Is(err, failure.TransportFailure))
	assert.Equal(t, Failed, job.State)
	assert.Contains(t, err.Error(), "status 400")
	assert.Contains(t, err.Error(), "OperationOutcome")
	assert.Contains(t, err.Error(), "is bulk export enabled")
}

func TestKickoff_MissingContentLocation(t *testing.T) {
	c, transport, _, _ := newClient(t)
	transport.RegisterResponder(http.MethodGet, base+"/$export", httpmock.NewStringResponder(202, ``))

	job, err := c.Kickoff(context.Background(), Request{})
	assert.True(t, failure.Is(err, failure.TransportFailure))
	assert.Equal(t, Failed, job.State)
}

func TestKickoff_NoOptionalParams(t *testing.T) {
	c, transport, _, _ := newClient(t)
	transport.RegisterResponder(http.MethodGet, base+"/$export", func(req *http.Request) (*http.Response, error) {
		assert.Empty(t, req.URL.RawQuery)
		assert.Empty(t, req.Header.Get("Cache-Control"))
		return withHeaders(httpmock.NewStringResponse(202, ``), "Content-Location", base+"/$export-poll-status?_jobId=2"), nil
	})

	job, err := c.Kickoff(context.Background(), Request{})
	assert.NoError(t, err)
	assert.Equal(t, KickedOff, job.State)
	assert.Equal(t, base+"/$export-poll-status?_jobId=2", job.PollURL)
}

func TestPoll_Failures(t *testing.T) {
	cases := []struct {
		name string
		res  *http.Response
		want string
	}{
		{"non json", httpmock.NewStringResponse(200, `<html>done</html>`), "not JSON"},
		{"empty output", httpmock.NewStringResponse(200, `{"output":[]}`), "no files listed"},
		{"server error", httpmock.NewStringResponse(500, `boom`), "status 500: boom"},
		{"bad retry-after", withHeaders(httpmock.NewStringResponse(202, ``), "Retry-After", "soon"), "invalid Retry-After"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, transport, _, _ := newClient(t)
			transport.RegisterResponder(http.MethodGet, base+"/$export", kickoffAccepted(base+"/$export-poll-status"))
			transport.RegisterResponder(http.MethodGet, base+"/$export-poll-status", httpmock.ResponderFromResponse(tc.res))

			job, err := c.Run(context.Background(), Request{}, t.TempDir())
			assert.True(t, failure.Is(err, failure.TransportFailure), "got %v", err)
			assert.Equal(t, Failed, job.State)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestPoll_ContextCancelled(t *testing.T) {
	c, transport, _, _ := newClient(t)
	c.sleep = func(ctx context.Context, _ time.Duration) error { return context.Canceled }
	transport.RegisterResponder(http.MethodGet, base+"/$export", kickoffAccepted(base+"/$export-poll-status"))
	transport.RegisterResponder(http.MethodGet, base+"/$export-poll-status",
		httpmock.ResponderFromResponse(withHeaders(httpmock.NewStringResponse(202, ``), "Retry-After", "1")))

	_, err := c.Run(context.Background(), Request{}, t.TempDir())
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestPoll_RefusesIdleOrFinishedJob(t *testing.T) {
	c, transport, _, _ := newClient(t)
	for _, st := range []State{Idle, Completed, Failed, TimedOut} {
		job := &Job{State: st, PollURL: base + "/status/1"}
		err := c.Poll(context.Background(), job)
		assert.True(t, failure.Is(err, failure.Unknown), "%s: %v", st, err)
		assert.Equal(t, st, job.State)
	}
	assert.Equal(t, 0, transport.GetTotalCallCount())
}

func TestDownload_FailureLeavesNoFile(t *testing.T) {
	c, transport, _, _ := newClient(t)
	dir := t.TempDir()
	transport.RegisterResponder(http.MethodGet, base+"/Binary/9", httpmock.NewStringResponder(404, `gone`))

	job := &Job{State: Completed, Manifest: &Manifest{Output: []OutputFile{{Type: "Patient", URL: base + "/Binary/9"}}}}
	err := c.Download(context.Background(), job, dir)
	assert.True(t, failure.Is(err, failure.TransportFailure))
	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries)
}

func TestDownload_SlowBodyOutlivesHeaderTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/fhir+ndjson")
		w.WriteHeader(http.StatusOK)
		for i := 0; i < 5; i++ {
			fmt.Fprintf(w, "{\"resourceType\":\"Patient\",\"id\":\"p%d\"}\n", i)
			w.(http.Flusher).Flush()
			time.Sleep(40 * time.Millisecond)
		}
	}))
	defer srv.Close()

	hc := storeclient.New(storeclient.Options{HeaderTimeout: 50 * time.Millisecond})
	c := New(hc, srv.URL+"/fhir/", nil)
	job := &Job{State: Completed, Manifest: &Manifest{Output: []OutputFile{{Type: "Patient", URL: srv.URL + "/fhir/Binary/1"}}}}
	assert.NoError(t, c.Download(context.Background(), job, t.TempDir()))
	if assert.Len(t, job.Files, 1) {
		b, err := os.ReadFile(job.Files[0])
		assert.NoError(t, err)
		assert.Equal(t, 5, strings.Count(string(b), "\n"))
	}
}

func TestDownload_RequiresCompletedJob(t *testing.T) {
	c, _, _, _ := newClient(t)
	assert.Error(t, c.Download(context.Background(), &Job{State: Polling}, t.TempDir()))
}

func TestResolveURL(t *testing.T) {
	cases := []struct {
		link, base, want string
	}{
		{"http://store/fhir/Binary/1", "http://store/fhir", "http://store/fhir/Binary/1"},
		{"http://internal/fhir/$export-poll-status?_jobId=7", "http://store/fhir/", "http://store/fhir/$export-poll-status?_jobId=7"},
		{"http://internal/fhir/Binary/abc", "https://store/fhir", "https://store/fhir/Binary/abc"},
		{"http://store/fhir/Binary/1", "https://store/fhir", "https://store/fhir/Binary/1"},
		{"$export-poll-status?_jobId=8", "http://store/fhir", "http://store/fhir/$export-poll-status?_jobId=8"},
		{"/fhir/Binary/2", "http://store/fhir", "http://store/fhir/Binary/2"},
	}
	for _, tc := range cases {
		got, err := ResolveURL(tc.link, tc.base)
		assert.NoError(t, err, tc.link)
		assert.Equal(t, tc.want, got, tc.link)
	}
}

func TestResolveURL_Unresolvable(t *testing.T) {
	_, err := ResolveURL("http://internal/fhir/Patient/1", "http://store/fhir")
	assert.True(t, errors.Is(err, ErrUnresolvableLink))
	assert.True(t, failure.Is(err, failure.TransportFailure))

	// A sibling path sharing the base as a string prefix is not under the base.
	_, err = ResolveURL("http://store/fhirX/Patient/1", "http://store/fhir")
	assert.True(t, errors.Is(err, ErrUnresolvableLink))
}

func TestLocalName(t *testing.T) {
	got, err := LocalName("/tmp/out", "http://store/fhir/Binary/42?x=1", "Patient")
	assert.NoError(t, err)
	assert.Equal(t, filepath.Join("/tmp/out", "42.Patient.ndjson"), got)

	got, err = LocalName("out", "http://store/fhir/Binary/42", "")
	assert.NoError(t, err)
	assert.Equal(t, filepath.Join("out", "42.unknown.ndjson"), got)

	_, err = LocalName("out", "http://store/", "Patient")
	assert.Error(t, err)
	_, err = LocalName("out", "http://store/fhir/Binary/1", "../x")
	assert.Error(t, err)
}

func TestRetryAfter(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	d, more, err := retryAfter("", now)
	assert.NoError(t, err)
	assert.False(t, more)
	assert.Zero(t, d)

	_, more, _ = retryAfter("0", now)
	assert.False(t, more)

	d, more, _ = retryAfter("120", now)
	assert.True(t, more)
	assert.Equal(t, 2*time.Minute, d)

	d, more, err = retryAfter("Wed, 01 Jan 2025 00:00:30 GMT", now)
	assert.NoError(t, err)
	assert.True(t, more)
	assert.Equal(t, 30*time.Second, d)

	d, _, _ = retryAfter("Tue, 31 Dec 2024 23:00:00 GMT", now)
	assert.Equal(t, time.Second, d)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "timed-out", TimedOut.String())
	assert.True(t, Completed.Terminal())
	assert.False(t, Polling.Terminal())
}
