package stage

import "github.com/flarebyte/timewarp/internal/config"

// Error is a run-level error attributed to a stage and a locator.
type Error struct {
	Stage   string `json:"stage"`
	Locator string `json:"locator,omitempty"`
	Message string `json:"message"`
}

// JobMeta records the outcome of the bulk export.
type JobMeta struct {
	State         string   `json:"state"`
	PollURL       string   `json:"pollUrl,omitempty"`
	WaitedSeconds int      `json:"waitedSeconds"`
	Progress      string   `json:"progress,omitempty"`
	Files         []string `json:"files,omitempty"`
}

// SummaryMeta totals the per-file counts.
type SummaryMeta struct {
	Files     int `json:"files"`
	Records   int `json:"records"`
	Filtered  int `json:"filtered"`
	Unchanged int `json:"unchanged"`
	Changed   int `json:"changed"`
	Sent      int `json:"sent"`
	DryRun    int `json:"dryRun"`
	Failed    int `json:"failed"`
	FileErrs  int `json:"fileErrors"`
}

// Meta holds the run settings and what earlier stages learned.
type Meta struct {
	Stage      string           `json:"stage,omitempty"`
	ConfigPath string           `json:"configPath,omitempty"`
	Settings   *config.Settings `json:"-"`
	Job        *JobMeta         `json:"job,omitempty"`
	Summary    *SummaryMeta     `json:"summary,omitempty"`
}

// Envelope is the contract between stages. Field order is stable to keep
// JSON deterministic.
type Envelope struct {
	Records []Record `json:"records"`
	Meta    *Meta    `json:"meta,omitempty"`
	Errors  []Error  `json:"errors,omitempty"`
}
