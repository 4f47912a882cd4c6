package run

import (
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/flarebyte/timewarp/internal/config"
)

// storeFlags are shared by shift and export.
type storeFlags struct {
	configPath string
	envFile    string
	authToken  string
	noCache    bool
	types      []string
	since      string
	maxTimeout int
	verbose    bool
	logFile    string
}

func (f *storeFlags) bind(fs *pflag.FlagSet) {
	fs.StringVarP(&f.configPath, "config", "c", "", "Path to config file (.cue)")
	fs.StringVar(&f.envFile, "env-file", "", "Load environment variables from this file (default .env when present)")
	fs.StringVar(&f.authToken, "auth-token", "", "Bearer token for the FHIR store (env "+config.EnvAuthToken+")")
	fs.BoolVar(&f.noCache, "no-cache", false, "Ask the store not to serve a cached export")
	fs.StringSliceVar(&f.types, "type", nil, "Export only these resource types (repeatable or comma-separated)")
	fs.StringVar(&f.since, "since", "", "Export only resources updated after this instant")
	fs.IntVar(&f.maxTimeout, "max-timeout", int(config.DefaultMaxTimeout.Seconds()), "Maximum seconds to wait for the export")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "Log every HTTP request")
	fs.StringVar(&f.logFile, "log-file", "", "Also write debug logs to this file")
}

// apply overlays the flags the user actually set.
func (f *storeFlags) apply(fs *pflag.FlagSet, s *config.Settings) {
	if fs.Changed("auth-token") {
		s.AuthToken = f.authToken
	}
	if fs.Changed("no-cache") {
		s.NoCache = f.noCache
	}
	if fs.Changed("type") {
		s.Types = splitTypes(f.types)
	}
	if fs.Changed("since") {
		s.Since = f.since
	}
	if fs.Changed("max-timeout") {
		s.MaxTimeout = seconds(f.maxTimeout)
	}
}

// shiftFlags extend storeFlags with the options of `timewarp shift`.
type shiftFlags struct {
	storeFlags
	skipExport bool
	dryRun     bool
	keepGoing  bool
	workers    int
	report     string
	filter     string
}

func (f *shiftFlags) bind(fs *pflag.FlagSet) {
	f.storeFlags.bind(fs)
	fs.BoolVar(&f.skipExport, "skip-export", false, "Shift the files already in WORK_DIR instead of exporting")
	fs.BoolVar(&f.dryRun, "dry-run", false, "Log the records that would be written back without sending them")
	fs.BoolVar(&f.keepGoing, "keep-going", false, "Report unreadable files and continue")
	fs.IntVar(&f.workers, "workers", config.DefaultWorkers, "Number of files processed concurrently")
	fs.StringVar(&f.report, "report", "", "Write a YAML run report to this path")
	fs.StringVar(&f.filter, "filter", "", "Lua predicate selecting the records to shift")
}

func (f *shiftFlags) apply(fs *pflag.FlagSet, s *config.Settings) {
	f.storeFlags.apply(fs, s)
	if fs.Changed("skip-export") {
		s.ExportEnabled = !f.skipExport
	}
	if fs.Changed("dry-run") {
		s.DryRun = f.dryRun
	}
	if fs.Changed("keep-going") {
		s.ErrorMode = config.ModeFailFast
		if f.keepGoing {
			s.ErrorMode = config.ModeKeepGoing
		}
	}
	if fs.Changed("workers") {
		s.Workers = f.workers
	}
	if fs.Changed("report") {
		s.ReportPath = f.report
	}
	if fs.Changed("filter") {
		s.FilterInline = f.filter
	}
}

func splitTypes(in []string) []string {
	var out []string
	for _, t := range in {
		for _, p := range strings.Split(t, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func parseDays(arg string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(arg))
}
