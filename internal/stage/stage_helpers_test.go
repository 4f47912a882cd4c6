package stage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jarcoal/httpmock"
	"go.uber.org/zap"

	"github.com/flarebyte/timewarp/internal/config"
	"github.com/flarebyte/timewarp/internal/logging"
	"github.com/flarebyte/timewarp/internal/storeclient"
)

const testBase = "http://store/fhir/"

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func testSettings(dir string) *config.Settings {
	s := config.Defaults()
	s.BaseURL = testBase
	s.WorkDir = dir
	s.ExportEnabled = false
	s.Retries = 0
	return &s
}

func testDeps(t *testing.T) (Deps, *httpmock.MockTransport, *logging.Buffer) {
	t.Helper()
	logger, out := logging.NewDebugLogger()
	transport := httpmock.NewMockTransport()
	hc := storeclient.New(storeclient.Options{Logger: logger, Transport: transport})
	return Deps{Logger: logger, HTTP: hc, Stdout: &logging.Buffer{}}, transport, out
}

func nopLogger() *zap.SugaredLogger { return zap.NewNop().Sugar() }
