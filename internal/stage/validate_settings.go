package stage

import (
	"context"
	"fmt"
	"os"

	"github.com/flarebyte/timewarp/internal/config"
	"github.com/flarebyte/timewarp/internal/failure"
	"github.com/flarebyte/timewarp/internal/storeclient"
)

const validateSettingsStage = "validate-settings"

// validate-settings: normalize the base URL and check the work directory
// before any network or file work starts.
func validateSettingsRunner(ctx context.Context, in Envelope, deps Deps) (Envelope, error) {
	s, err := settingsOf(in.Meta)
	if err != nil {
		return Envelope{}, failure.New(failure.Usage, validateSettingsStage, err)
	}
	base, err := storeclient.NormalizeBaseURL(s.BaseURL)
	if err != nil {
		return Envelope{}, err
	}
	s.BaseURL = base

	info, err := os.Stat(s.WorkDir)
	if err != nil || !info.IsDir() {
		return Envelope{}, failure.WithPath(failure.Usage, validateSettingsStage, s.WorkDir, fmt.Errorf("can't access input directory"))
	}
	if s.ErrorMode != config.ModeFailFast && s.ErrorMode != config.ModeKeepGoing {
		return Envelope{}, failure.New(failure.Usage, validateSettingsStage, fmt.Errorf("invalid error mode %q", s.ErrorMode))
	}
	if s.Workers < 1 {
		s.Workers = 1
	}
	if s.FilterInline != "" {
		if err := checkFilterSyntax(s.FilterInline); err != nil {
			return Envelope{}, failure.New(failure.Usage, validateSettingsStage, fmt.Errorf("filter: %v", err))
		}
	}
	deps.logger().Debugf("settings: base=%s days=%d workDir=%s export=%t workers=%d mode=%s",
		s.BaseURL, s.Days, s.WorkDir, s.ExportEnabled, s.Workers, s.ErrorMode)
	return in, nil
}

func init() { Register(validateSettingsStage, validateSettingsRunner) }
