package cli

// Version and Date can be injected by release scripts that predate the
// buildinfo package, e.g.:
//
//	-ldflags "-X 'github.com/flarebyte/timewarp/cli.Version=1.2.3' -X 'github.com/flarebyte/timewarp/cli.Date=2026-10-15'"
var (
	Version string
	Date    string
)
