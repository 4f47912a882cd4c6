package run

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/flarebyte/timewarp/internal/failure"
)

func TestExitCodeFor(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitCodeSuccess},
		{"usage", failure.New(failure.Usage, "args", errors.New("missing FHIR_BASE_URL")), exitCodeUsage},
		{"timeout", failure.New(failure.Timeout, "poll", errors.New("gave up")), exitCodeTimeout},
		{"write-back", failure.New(failure.WriteBackFailure, "write-back", errors.New("1 of 2 changed records failed")), exitCodeWriteBack},
		{"wrapped write-back", fmt.Errorf("run: %w", failure.New(failure.WriteBackFailure, "put", errors.New("x"))), exitCodeWriteBack},
		{"malformed", failure.New(failure.MalformedInput, "parse", errors.New("x")), exitCodeFatal},
		{"transport", failure.New(failure.TransportFailure, "kickoff", errors.New("x")), exitCodeFatal},
		{"plain", context.Canceled, exitCodeFatal},
	}
	for _, c := range cases {
		if got := exitCodeFor(c.err); got != c.want {
			t.Fatalf("%s: want %d, got %d", c.name, c.want, got)
		}
	}
}

func TestEvaluateRunExit(t *testing.T) {
	if evaluateRunExit(nil) != nil {
		t.Fatalf("nil must stay nil")
	}
	err := evaluateRunExit(failure.New(failure.Timeout, "poll", errors.New("export not ready after 10m0s")))
	var ec interface{ ExitCode() int }
	if !errors.As(err, &ec) || ec.ExitCode() != exitCodeTimeout {
		t.Fatalf("unexpected exit error %v", err)
	}
	if err.Error() != "poll: export not ready after 10m0s" {
		t.Fatalf("message must be preserved: %q", err.Error())
	}
	if again := evaluateRunExit(err); again != err {
		t.Fatalf("exit error must not be wrapped twice")
	}
	if !failure.Is(err, failure.Timeout) {
		t.Fatalf("kind must survive wrapping")
	}
}
