package stage

import (
	"context"

	"github.com/flarebyte/timewarp/internal/bulkexport"
)

// bulk-export: run the $export job into the work directory. Skipped when
// export is disabled so existing files can be shifted.
func bulkExportRunner(ctx context.Context, in Envelope, deps Deps) (Envelope, error) {
	s, err := settingsOf(in.Meta)
	if err != nil {
		return Envelope{}, err
	}
	log := deps.logger()
	if !s.ExportEnabled {
		log.Info("export skipped, using files already in the work directory")
		return in, nil
	}
	var opts []bulkexport.Option
	if deps.Sleep != nil {
		opts = append(opts, bulkexport.WithSleep(deps.Sleep))
	}
	client := bulkexport.New(deps.HTTP, s.BaseURL, log, opts...)
	job, err := client.Run(ctx, bulkexport.Request{
		Types:   s.Types,
		Since:   s.Since,
		NoCache: s.NoCache,
		MaxWait: s.MaxTimeout,
	}, s.WorkDir)

	out := in
	out.Meta.Job = jobMeta(job)
	return out, err
}

func jobMeta(job *bulkexport.Job) *JobMeta {
	if job == nil {
		return nil
	}
	return &JobMeta{
		State:         job.State.String(),
		PollURL:       job.PollURL,
		WaitedSeconds: int(job.Waited.Seconds()),
		Progress:      job.Progress,
		Files:         append([]string(nil), job.Files...),
	}
}

func init() { Register("bulk-export", bulkExportRunner) }
