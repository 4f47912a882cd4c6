package run

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/flarebyte/timewarp/internal/config"
	"github.com/flarebyte/timewarp/internal/failure"
)

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// resolveSettings layers defaults, the CUE file, the environment, then flags.
func resolveSettings(configPath, envFile string, fs *pflag.FlagSet, applyFlags func(*pflag.FlagSet, *config.Settings)) (*config.Settings, error) {
	s := config.Defaults()
	if configPath != "" {
		f, err := config.Load(configPath)
		if err != nil {
			return nil, failure.WithPath(failure.Usage, "config", configPath, err)
		}
		f.Apply(&s)
	}
	if err := config.LoadEnv(envFile); err != nil {
		return nil, failure.New(failure.Usage, "env", err)
	}
	config.ApplyEnv(&s)
	applyFlags(fs, &s)
	return &s, nil
}

// shiftArgs applies `<FHIR_BASE_URL> [NUM_DAYS] [WORK_DIR]`.
func shiftArgs(args []string, s *config.Settings) error {
	if len(args) > 0 {
		s.BaseURL = args[0]
	}
	if len(args) > 1 {
		days, err := parseDays(args[1])
		if err != nil {
			return failure.New(failure.Usage, "args", fmt.Errorf("invalid NUM_DAYS %q: expected an integer", args[1]))
		}
		s.Days = days
	}
	if len(args) > 2 {
		s.WorkDir = args[2]
	}
	if s.BaseURL == "" {
		return failure.New(failure.Usage, "args", fmt.Errorf("missing FHIR_BASE_URL"))
	}
	return nil
}

// checkArgCount reports a wrong positional count as a Usage error.
func checkArgCount(args []string, max int) error {
	if len(args) > max {
		return failure.New(failure.Usage, "args", fmt.Errorf("accepts at most %d arg(s), received %d", max, len(args)))
	}
	return nil
}
