package run

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/flarebyte/timewarp/internal/config"
	"github.com/flarebyte/timewarp/internal/failure"
)

// NewExportCmd returns `timewarp export`, the bulk export on its own.
func NewExportCmd() *cobra.Command {
	var f storeFlags
	var directory string
	cmd := &cobra.Command{
		Use:           "export <FHIR_BASE_URL>",
		Short:         "Run a bulk $export and download the NDJSON files",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := exportSettings(cmd.Flags(), &f, directory, args)
			if err != nil {
				if failure.Is(err, failure.Usage) {
					_ = cmd.Usage()
				}
				return evaluateRunExit(err)
			}
			out, err := execute(cmd, s, f.configPath, &f, exportStages)
			if err != nil {
				return evaluateRunExit(err)
			}
			if out.Meta != nil && out.Meta.Job != nil {
				for _, p := range out.Meta.Job.Files {
					if _, err := fmt.Fprintln(cmd.OutOrStdout(), p); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
	f.bind(cmd.Flags())
	cmd.Flags().StringVarP(&directory, "directory", "d", "./", "Directory to download the files into")
	return cmd
}

func exportSettings(fs *pflag.FlagSet, f *storeFlags, directory string, args []string) (*config.Settings, error) {
	if err := checkArgCount(args, 1); err != nil {
		return nil, err
	}
	s, err := resolveSettings(f.configPath, f.envFile, fs, f.apply)
	if err != nil {
		return nil, err
	}
	if len(args) == 1 {
		s.BaseURL = args[0]
	}
	if s.BaseURL == "" {
		return nil, failure.New(failure.Usage, "args", fmt.Errorf("missing FHIR_BASE_URL"))
	}
	s.WorkDir = directory
	s.ExportEnabled = true
	return s, nil
}
