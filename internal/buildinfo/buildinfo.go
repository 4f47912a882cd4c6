package buildinfo

import (
	"strings"

	"github.com/flarebyte/timewarp/cli"
)

// Package buildinfo exposes version metadata for the timewarp binary. Values
// are set with -ldflags; the cli package values are used as a fallback.

var (
	// Version is the release string. Falls back to cli.Version, then "dev".
	Version = "dev"
	// Commit is the VCS commit hash (optional).
	Commit = ""
	// Date is the build time (optional). Falls back to cli.Date.
	Date = ""
	// BuiltBy identifies the builder (optional).
	BuiltBy = ""
)

// Summary returns a concise single-line version string.
func Summary() string {
	v := Version
	if v == "" {
		v = cli.Version
	}
	if v == "" {
		v = "dev"
	}

	d := Date
	if d == "" {
		d = cli.Date
	}

	parts := make([]string, 0, 2)
	if Commit != "" {
		c := Commit
		if len(c) > 7 {
			c = c[:7]
		}
		parts = append(parts, "commit="+c)
	}
	if d != "" {
		parts = append(parts, "date="+d)
	}
	if len(parts) > 0 {
		v += " (" + strings.Join(parts, ", ") + ")"
	}
	return v
}

// UserAgent is the User-Agent header sent to FHIR stores.
func UserAgent() string {
	v := Version
	if v == "" {
		v = cli.Version
	}
	if v == "" {
		v = "dev"
	}
	return "timewarp/" + v
}
