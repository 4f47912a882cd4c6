package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestMarshal_RewriteStable(t *testing.T) {
	body := map[string]any{
		"summary": map[string]any{
			"sent":    2,
			"failed":  0,
			"changed": 2,
		},
		"files": []map[string]any{
			{"locator": "42.Patient.ndjson", "records": 3},
		},
		"baseUrl": "http://store/fhir/",
	}
	b1, err := Marshal("timewarp-run", body)
	if err != nil {
		t.Fatalf("marshal first: %v", err)
	}
	b2, err := Marshal("timewarp-run", body)
	if err != nil {
		t.Fatalf("marshal second: %v", err)
	}
	if !bytes.Equal(b1, b2) {
		t.Fatalf("not rewrite-stable\nfirst:\n%s\nsecond:\n%s", string(b1), string(b2))
	}
	want := "kind: timewarp-run\n" +
		"baseUrl: http://store/fhir/\n" +
		"files:\n  - locator: 42.Patient.ndjson\n    records: 3\n" +
		"summary:\n  changed: 2\n  failed: 0\n  sent: 2\n"
	if string(b1) != want {
		t.Fatalf("unexpected canonical output\nwant:\n%s\ngot:\n%s", want, string(b1))
	}
}

func TestMarshal_ListsAndNull(t *testing.T) {
	b, err := Marshal("x", map[string]any{
		"types":  []string{"Patient", "Encounter"},
		"errors": []any{},
		"since":  nil,
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := "kind: x\nerrors: []\nsince: null\ntypes:\n  - Patient\n  - Encounter\n"
	if string(b) != want {
		t.Fatalf("unexpected output\nwant:\n%s\ngot:\n%s", want, string(b))
	}
}

func TestWrite_CreatesParents(t *testing.T) {
	p := filepath.Join(t.TempDir(), "reports", "run.yaml")
	if err := Write(p, "timewarp-run", map[string]any{"days": 3}); err != nil {
		t.Fatalf("write: %v", err)
	}
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(b) != "kind: timewarp-run\ndays: 3\n" {
		t.Fatalf("unexpected content %q", string(b))
	}
}
