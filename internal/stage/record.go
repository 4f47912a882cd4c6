package stage

// Record is one discovered file and what happened to its resources.
type Record struct {
	Locator   string    `json:"locator"`
	Path      string    `json:"-"`
	Format    string    `json:"format,omitempty"`
	Records   int       `json:"records"`
	Filtered  int       `json:"filtered"`
	Unchanged int       `json:"unchanged"`
	Sent      int       `json:"sent"`
	DryRun    int       `json:"dryRun"`
	Failed    int       `json:"failed"`
	Error     *RecError `json:"error,omitempty"`
}

// Changed is the number of resources the shift altered.
func (r Record) Changed() int {
	return r.Sent + r.DryRun + r.Failed
}
