package config

import (
	"os"
	"time"
)

// Defaults.
const (
	DefaultDays            = 1
	DefaultMaxTimeout      = 600 * time.Second
	DefaultFilterTimeoutMs = 2000
	DefaultRetries         = 3
	DefaultWorkers         = 1
)

// Settings is the resolved configuration of one run: defaults, then the CUE
// file, then the environment, then command-line values.
type Settings struct {
	BaseURL   string
	AuthToken string
	Days      int
	WorkDir   string

	ExportEnabled bool
	NoCache       bool
	Types         []string
	Since         string
	MaxTimeout    time.Duration

	Ignore []string

	FilterInline    string
	FilterTimeoutMs int

	DryRun    bool
	RateLimit float64
	Retries   int

	Workers    int
	ErrorMode  string
	ReportPath string
}

// Defaults returns the settings used when nothing else is given.
func Defaults() Settings {
	return Settings{
		Days:            DefaultDays,
		WorkDir:         os.TempDir(),
		ExportEnabled:   true,
		MaxTimeout:      DefaultMaxTimeout,
		FilterTimeoutMs: DefaultFilterTimeoutMs,
		Retries:         DefaultRetries,
		Workers:         DefaultWorkers,
		ErrorMode:       ModeFailFast,
	}
}

// Apply overlays the fields present in f onto s.
func (f File) Apply(s *Settings) {
	if f.Store.HasBaseURL {
		s.BaseURL = f.Store.BaseURL
	}
	if f.Store.HasAuthToken {
		s.AuthToken = f.Store.AuthToken
	}
	if f.Shift.HasDays {
		s.Days = f.Shift.Days
	}
	if f.Shift.HasWorkDir {
		s.WorkDir = f.Shift.WorkDir
	}
	if f.Export.HasEnabled {
		s.ExportEnabled = f.Export.Enabled
	}
	if f.Export.HasNoCache {
		s.NoCache = f.Export.NoCache
	}
	if f.Export.HasTypes {
		s.Types = append([]string(nil), f.Export.Types...)
	}
	if f.Export.HasSince {
		s.Since = f.Export.Since
	}
	if f.Export.HasMaxTimeoutSeconds {
		s.MaxTimeout = time.Duration(f.Export.MaxTimeoutSeconds) * time.Second
	}
	if f.Discovery.HasIgnore {
		s.Ignore = append([]string(nil), f.Discovery.Ignore...)
	}
	if f.Filter.HasInline {
		s.FilterInline = f.Filter.Inline
	}
	if f.Filter.HasTimeoutMs {
		s.FilterTimeoutMs = f.Filter.TimeoutMs
	}
	if f.WriteBack.HasDryRun {
		s.DryRun = f.WriteBack.DryRun
	}
	if f.WriteBack.HasRateLimit {
		s.RateLimit = f.WriteBack.RateLimit
	}
	if f.WriteBack.HasRetries {
		s.Retries = f.WriteBack.Retries
	}
	if f.HasWorkers {
		s.Workers = f.Workers
	}
	if f.Errors.HasMode {
		s.ErrorMode = f.Errors.Mode
	}
	if f.Report.HasPath {
		s.ReportPath = f.Report.Path
	}
}

// KeepGoing reports whether per-file errors are collected instead of fatal.
func (s Settings) KeepGoing() bool {
	return s.ErrorMode == ModeKeepGoing
}
