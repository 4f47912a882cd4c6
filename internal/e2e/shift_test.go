package e2e

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/flarebyte/timewarp/cmd/timewarp/root"
	"github.com/flarebyte/timewarp/internal/testutil"
)

// fakeStore accepts OPTIONS on the base and records every PUT.
type fakeStore struct {
	mu      sync.Mutex
	puts    map[string]string
	failIDs map[string]bool
}

func newFakeStore(t *testing.T, failIDs ...string) (*fakeStore, *httptest.Server) {
	t.Helper()
	fs := &fakeStore{puts: map[string]string{}, failIDs: map[string]bool{}}
	for _, id := range failIDs {
		fs.failIDs[id] = true
	}
	srv := httptest.NewServer(http.HandlerFunc(fs.serve))
	t.Cleanup(srv.Close)
	return fs, srv
}

func (s *fakeStore) serve(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	case http.MethodPut:
		b, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		s.puts[r.URL.Path] = string(b)
		fail := s.failIDs[filepath.Base(r.URL.Path)]
		s.mu.Unlock()
		if fail {
			http.Error(w, `{"resourceType":"OperationOutcome"}`, http.StatusUnprocessableEntity)
			return
		}
		w.WriteHeader(http.StatusOK)
	default:
		http.Error(w, "unexpected", http.StatusMethodNotAllowed)
	}
}

func (s *fakeStore) paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for p := range s.puts {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

type runResult struct {
	err    error
	stdout string
	stderr string
}

func runTimewarp(t *testing.T, args ...string) runResult {
	t.Helper()
	cmd := root.NewRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return runResult{err: err, stdout: stdout.String(), stderr: stderr.String()}
}

func workdir(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "work")
	if err := testutil.CopyTree(filepath.Join("testdata", "workdir"), dir); err != nil {
		t.Fatalf("copy fixtures: %v", err)
	}
	return dir
}

func TestShift_SkipExportWritesChangedRecords(t *testing.T) {
	t.Setenv("TIMEWARP_AUTH_TOKEN", "")
	store, srv := newFakeStore(t)
	dir := workdir(t)
	report := filepath.Join(dir, "out", "report.yaml")

	res := runTimewarp(t, "shift", srv.URL+"/fhir", "3", dir, "--skip-export", "--report", report,
		"--env-file", filepath.Join("testdata", "empty.env"))
	if res.err != nil {
		t.Fatalf("shift: %v\n%s", res.err, res.stderr)
	}
	want := []string{"/fhir/MedicationRequest/mr-1", "/fhir/MedicationRequest/mr-2"}
	if got := store.paths(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("want PUTs %v, got %v", want, got)
	}
	body := store.puts["/fhir/MedicationRequest/mr-1"]
	if body != `{"resourceType":"MedicationRequest","id":"mr-1","meta":{"lastUpdated":"2024-11-10T09:00:00Z"},"authoredOn":"2024-11-09"}` {
		t.Fatalf("unexpected body %s", body)
	}
	if !strings.Contains(store.puts["/fhir/MedicationRequest/mr-2"], `"authoredOn":"2024-11-10T10:00:00+01:00"`) {
		t.Fatalf("unexpected body %s", store.puts["/fhir/MedicationRequest/mr-2"])
	}
	if strings.Count(res.stdout, "\n") != 1 || !strings.Contains(res.stdout, `"sent":2`) {
		t.Fatalf("unexpected summary %q", res.stdout)
	}
	if _, err := os.Stat(report); err != nil {
		t.Fatalf("report missing: %v", err)
	}
}

func TestShift_ReportIsDeterministic(t *testing.T) {
	t.Setenv("TIMEWARP_AUTH_TOKEN", "")
	_, srv := newFakeStore(t)
	var reports [][]byte
	for i := 0; i < 2; i++ {
		dir := workdir(t)
		report := filepath.Join(t.TempDir(), "report.yaml")
		res := runTimewarp(t, "shift", srv.URL+"/fhir", "3", dir, "--skip-export", "--workers", "2",
			"--report", report, "--env-file", filepath.Join("testdata", "empty.env"))
		if res.err != nil {
			t.Fatalf("run %d: %v", i, res.err)
		}
		b, err := os.ReadFile(report)
		if err != nil {
			t.Fatalf("read report: %v", err)
		}
		reports = append(reports, bytes.ReplaceAll(b, []byte(dir), []byte("WORK")))
	}
	if !bytes.Equal(reports[0], reports[1]) {
		t.Fatalf("reports differ:\n%s\n---\n%s", reports[0], reports[1])
	}
}

func TestShift_WriteBackFailureExitCode(t *testing.T) {
	t.Setenv("TIMEWARP_AUTH_TOKEN", "")
	_, srv := newFakeStore(t, "mr-2")
	dir := workdir(t)
	res := runTimewarp(t, "shift", srv.URL+"/fhir", "1", dir, "--skip-export",
		"--env-file", filepath.Join("testdata", "empty.env"))
	var ec interface{ ExitCode() int }
	if !errors.As(res.err, &ec) || ec.ExitCode() != 4 {
		t.Fatalf("want exit code 4, got %v", res.err)
	}
	if !strings.Contains(res.stdout, `"failed":1`) {
		t.Fatalf("summary must still be printed: %q", res.stdout)
	}
}

func TestShift_MissingWorkDirIsUsage(t *testing.T) {
	_, srv := newFakeStore(t)
	res := runTimewarp(t, "shift", srv.URL, "1", filepath.Join(t.TempDir(), "missing"), "--skip-export",
		"--env-file", filepath.Join("testdata", "empty.env"))
	var ec interface{ ExitCode() int }
	if !errors.As(res.err, &ec) || ec.ExitCode() != 2 {
		t.Fatalf("want exit code 2, got %v", res.err)
	}
}

func TestClassify_Fixtures(t *testing.T) {
	res := runTimewarp(t, "classify",
		filepath.Join("testdata", "workdir", "1.MedicationRequest.ndjson"),
		filepath.Join("testdata", "workdir", "2.Patient.json"))
	if res.err != nil {
		t.Fatalf("classify: %v", res.err)
	}
	if !strings.HasPrefix(res.stdout, "NDJSON\t") || !strings.Contains(res.stdout, "\nJSON\t") {
		t.Fatalf("unexpected output %q", res.stdout)
	}
}
