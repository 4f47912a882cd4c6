package config

import (
	"fmt"

	"cuelang.org/go/cue"
)

func parseStoreSection(v cue.Value, f *File) error {
	var err error
	if f.Store.BaseURL, f.Store.HasBaseURL, err = lookupString(v, "store.baseUrl"); err != nil {
		return err
	}
	if f.Store.AuthToken, f.Store.HasAuthToken, err = lookupString(v, "store.authToken"); err != nil {
		return err
	}
	return nil
}

func parseShiftSection(v cue.Value, f *File) error {
	var err error
	if f.Shift.Days, f.Shift.HasDays, err = lookupInt(v, "shift.days"); err != nil {
		return err
	}
	if f.Shift.WorkDir, f.Shift.HasWorkDir, err = lookupString(v, "shift.workDir"); err != nil {
		return err
	}
	return nil
}

func parseExportSection(v cue.Value, f *File) error {
	e := &f.Export
	var err error
	if e.Enabled, e.HasEnabled, err = lookupBool(v, "export.enabled"); err != nil {
		return err
	}
	if e.NoCache, e.HasNoCache, err = lookupBool(v, "export.noCache"); err != nil {
		return err
	}
	if e.Types, e.HasTypes, err = lookupStrings(v, "export.types"); err != nil {
		return err
	}
	if e.Since, e.HasSince, err = lookupString(v, "export.since"); err != nil {
		return err
	}
	if e.MaxTimeoutSeconds, e.HasMaxTimeoutSeconds, err = lookupInt(v, "export.maxTimeoutSeconds"); err != nil {
		return err
	}
	if e.HasMaxTimeoutSeconds && e.MaxTimeoutSeconds <= 0 {
		return fmt.Errorf("invalid value for export.maxTimeoutSeconds: must be > 0")
	}
	return nil
}

func parseDiscoverySection(v cue.Value, f *File) error {
	var err error
	f.Discovery.Ignore, f.Discovery.HasIgnore, err = lookupStrings(v, "discovery.ignore")
	return err
}

func parseFilterSection(v cue.Value, f *File) error {
	var err error
	if f.Filter.Inline, f.Filter.HasInline, err = lookupString(v, "filter.inline"); err != nil {
		return err
	}
	if f.Filter.TimeoutMs, f.Filter.HasTimeoutMs, err = lookupInt(v, "filter.timeoutMs"); err != nil {
		return err
	}
	if f.Filter.HasTimeoutMs && f.Filter.TimeoutMs < 0 {
		return fmt.Errorf("invalid value for filter.timeoutMs: must be >= 0")
	}
	return nil
}

func parseWriteBackSection(v cue.Value, f *File) error {
	w := &f.WriteBack
	var err error
	if w.DryRun, w.HasDryRun, err = lookupBool(v, "writeBack.dryRun"); err != nil {
		return err
	}
	if w.RateLimit, w.HasRateLimit, err = lookupNumber(v, "writeBack.rateLimit"); err != nil {
		return err
	}
	if w.Retries, w.HasRetries, err = lookupInt(v, "writeBack.retries"); err != nil {
		return err
	}
	if w.HasRetries && w.Retries < 0 {
		return fmt.Errorf("invalid value for writeBack.retries: must be >= 0")
	}
	return nil
}

func parseMiscSections(v cue.Value, f *File) error {
	var err error
	if f.Workers, f.HasWorkers, err = lookupInt(v, "workers"); err != nil {
		return err
	}
	if f.HasWorkers && f.Workers < 1 {
		return fmt.Errorf("invalid value for workers: must be >= 1")
	}
	if f.Errors.Mode, f.Errors.HasMode, err = lookupString(v, "errors.mode"); err != nil {
		return err
	}
	if f.Errors.HasMode && f.Errors.Mode != ModeFailFast && f.Errors.Mode != ModeKeepGoing {
		return fmt.Errorf("invalid errors.mode: %q (expected %s or %s)", f.Errors.Mode, ModeFailFast, ModeKeepGoing)
	}
	if f.Report.Path, f.Report.HasPath, err = lookupString(v, "report.path"); err != nil {
		return err
	}
	return nil
}
