package config

import (
	"fmt"

	"cuelang.org/go/cue"
)

// Error modes.
const (
	ModeFailFast  = "fail-fast"
	ModeKeepGoing = "keep-going"
)

// File is a parsed timewarp.cue. Every optional value carries a presence flag
// so that only fields written in the file override defaults.
type File struct {
	ConfigVersion string
	Store         Store
	Shift         Shift
	Export        Export
	Discovery     Discovery
	Filter        Filter
	WriteBack     WriteBack
	Errors        Errors
	Report        Report
	Workers       int
	HasWorkers    bool
}

// Store holds store.* fields.
type Store struct {
	BaseURL      string
	AuthToken    string
	HasBaseURL   bool
	HasAuthToken bool
}

// Shift holds shift.* fields.
type Shift struct {
	Days       int
	WorkDir    string
	HasDays    bool
	HasWorkDir bool
}

// Export holds export.* fields.
type Export struct {
	Enabled              bool
	NoCache              bool
	Types                []string
	Since                string
	MaxTimeoutSeconds    int
	HasEnabled           bool
	HasNoCache           bool
	HasTypes             bool
	HasSince             bool
	HasMaxTimeoutSeconds bool
}

// Discovery holds discovery.* fields.
type Discovery struct {
	Ignore    []string
	HasIgnore bool
}

// Filter holds the optional Lua record filter.
type Filter struct {
	Inline       string
	TimeoutMs    int
	HasInline    bool
	HasTimeoutMs bool
}

// WriteBack holds writeBack.* fields.
type WriteBack struct {
	DryRun       bool
	RateLimit    float64
	Retries      int
	HasDryRun    bool
	HasRateLimit bool
	HasRetries   bool
}

// Errors holds errors.* fields.
type Errors struct {
	Mode    string
	HasMode bool
}

// Report holds report.* fields.
type Report struct {
	Path    string
	HasPath bool
}

// Load compiles and validates the CUE config at path.
func Load(path string) (File, error) {
	v, err := compileCUE(path)
	if err != nil {
		return File{}, err
	}
	if err := requireStringField(v, "configVersion"); err != nil {
		return File{}, err
	}
	var f File
	if err := v.LookupPath(cue.ParsePath("configVersion")).Decode(&f.ConfigVersion); err != nil {
		return File{}, fmt.Errorf("invalid value for configVersion: %v", err)
	}
	if err := checkConfigVersion(f.ConfigVersion); err != nil {
		return File{}, err
	}
	parsers := []func(cue.Value, *File) error{
		parseStoreSection,
		parseShiftSection,
		parseExportSection,
		parseDiscoverySection,
		parseFilterSection,
		parseWriteBackSection,
		parseMiscSections,
	}
	for _, p := range parsers {
		if err := p(v, &f); err != nil {
			return File{}, err
		}
	}
	return f, nil
}
