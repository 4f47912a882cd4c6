package root

import (
	"github.com/spf13/cobra"

	"github.com/flarebyte/timewarp/cmd/timewarp/classify"
	"github.com/flarebyte/timewarp/cmd/timewarp/run"
	"github.com/flarebyte/timewarp/cmd/timewarp/version"
	"github.com/flarebyte/timewarp/internal/failure"
)

// NewRootCmd creates the root command for timewarp.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timewarp",
		Short: "Shift the dates of a FHIR store's records by a number of days",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Show help when no subcommand is provided.
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		_ = c.Usage()
		return failure.New(failure.Usage, c.Name(), err)
	})

	cmd.AddCommand(run.NewShiftCmd())
	cmd.AddCommand(run.NewExportCmd())
	cmd.AddCommand(classify.NewCmd())
	cmd.AddCommand(version.NewCmd())

	return cmd
}

// Execute runs the root command with provided args.
func Execute(args []string) error {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	return run.WithExitCode(cmd.Execute())
}
