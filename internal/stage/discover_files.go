package stage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/flarebyte/timewarp/internal/failure"
)

const discoverFilesStage = "discover-files"

// discover-files: the files downloaded by this run's export, or, when the
// export was skipped, the record files directly inside the work directory.
func discoverFilesRunner(ctx context.Context, in Envelope, deps Deps) (Envelope, error) {
	s, err := settingsOf(in.Meta)
	if err != nil {
		return Envelope{}, err
	}
	absRoot, err := filepath.Abs(s.WorkDir)
	if err != nil {
		return Envelope{}, failure.WithPath(failure.Usage, discoverFilesStage, s.WorkDir, err)
	}

	var paths []string
	if in.Meta.Job != nil && len(in.Meta.Job.Files) > 0 {
		paths = append(paths, in.Meta.Job.Files...)
	} else {
		paths, err = scanWorkDir(absRoot, ignoreMatcher(absRoot, s.Ignore))
		if err != nil {
			return Envelope{}, failure.WithPath(failure.Usage, discoverFilesStage, s.WorkDir, err)
		}
	}

	out := in
	out.Records = make([]Record, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return Envelope{}, failure.WithPath(failure.Usage, discoverFilesStage, p, err)
		}
		out.Records = append(out.Records, Record{Locator: displayPath(absRoot, abs), Path: abs})
	}
	sort.Slice(out.Records, func(i, j int) bool { return out.Records[i].Locator < out.Records[j].Locator })
	deps.logger().Infof("found %d file(s) in %s", len(out.Records), s.WorkDir)
	return out, nil
}

// scanWorkDir lists the record files directly inside absRoot. Subdirectories
// are not walked.
func scanWorkDir(absRoot string, ignored func(name string) bool) ([]string, error) {
	entries, err := os.ReadDir(absRoot)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, ent := range entries {
		name := ent.Name()
		if !isRecordFile(name) || ignored(name) {
			continue
		}
		p := filepath.Join(absRoot, name)
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if !info.Mode().IsRegular() {
			continue
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func init() { Register(discoverFilesStage, discoverFilesRunner) }
